package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"accel-dashboard/utils"
)

// Envelope is the frame exchanged on the WebSocket: a named event
// carrying one payload, e.g. {"event":"nuevos_datos","data":{"ax":1,...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WebSocketSubscriber delivers the Data of every envelope whose Event
// matches. It reconnects after Reconnect when the connection drops.
type WebSocketSubscriber struct {
	URL       string
	Event     string
	Reconnect time.Duration
	Header    http.Header
	Dialer    *websocket.Dialer // nil means websocket.DefaultDialer
}

func (s *WebSocketSubscriber) Subscribe(ctx context.Context, h Handler) (Subscription, error) {
	if s.URL == "" {
		return nil, &Error{Op: "subscribe", Err: errors.New("websocket url is empty")}
	}
	if h == nil {
		return nil, &Error{Op: "subscribe", Err: errors.New("nil handler")}
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{cancel: cancel, done: make(chan struct{})}
	go sub.run(ctx, s, h)
	return sub, nil
}

type wsSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops the subscription and waits for the reader goroutine.
func (w *wsSubscription) Close() error {
	w.once.Do(w.cancel)
	<-w.done
	return nil
}

func (w *wsSubscription) run(ctx context.Context, s *WebSocketSubscriber, h Handler) {
	defer close(w.done)

	log := utils.L().With("websocket")
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	backoff := s.Reconnect
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	for {
		conn, _, err := dialer.DialContext(ctx, s.URL, s.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("%v (retry in %s)", &Error{Op: "dial", Err: err}, backoff)
		} else {
			log.Info("connected to %s (event=%s)", s.URL, s.Event)
			err = readEnvelopes(ctx, conn, s.Event, h)
			conn.Close()
			if ctx.Err() != nil {
				log.Info("disconnected from %s", s.URL)
				return
			}
			log.Warn("disconnected from %s: %v (retry in %s)", s.URL, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func readEnvelopes(ctx context.Context, conn *websocket.Conn, event string, h Handler) error {
	// Unblock ReadMessage when the subscription is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return &Error{Op: "read", Err: err}
		}
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			utils.L().Warn("%v", &Error{Op: "decode", Err: fmt.Errorf("envelope: %w", err)})
			continue
		}
		if env.Event != event {
			continue
		}
		h(env.Data)
	}
}
