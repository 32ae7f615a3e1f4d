package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"accel-dashboard/models"
)

func TestHTTPFetcherReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte(`{"ax":1,"ay":2,"az":3}`))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL, time.Second, models.EncodingJSON)
	body, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != `{"ax":1,"ay":2,"az":3}` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHTTPFetcherErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		maxBody int64
		wantOp  string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantOp: "fetch",
		},
		{
			name: "body too large",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(strings.Repeat("x", 64)))
			},
			maxBody: 16,
			wantOp:  "read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			fetcher := &HTTPFetcher{URL: server.URL, MaxBody: tt.maxBody}
			_, err := fetcher.Fetch(context.Background())
			var terr *Error
			if !errors.As(err, &terr) {
				t.Fatalf("expected *transport.Error, got %v", err)
			}
			if terr.Op != tt.wantOp {
				t.Fatalf("op = %q, want %q", terr.Op, tt.wantOp)
			}
		})
	}
}

func TestHTTPFetcherRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPFetcher(url, time.Second, models.EncodingJSON).Fetch(context.Background())
	var terr *Error
	if !errors.As(err, &terr) || terr.Op != "fetch" {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestWebSocketSubscriberFiltersEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"status","data":{"ok":true}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"nuevos_datos","data":{"ax":1,"ay":2,"az":3}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"nuevos_datos","data":{"ax":4,"ay":5,"az":6}}`))
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	defer server.Close()

	received := make(chan string, 4)
	sub := &WebSocketSubscriber{
		URL:       "ws" + strings.TrimPrefix(server.URL, "http"),
		Event:     "nuevos_datos",
		Reconnect: 50 * time.Millisecond,
	}
	subscription, err := sub.Subscribe(context.Background(), func(data []byte) {
		received <- string(data)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer subscription.Close()

	want := []string{`{"ax":1,"ay":2,"az":3}`, `{"ax":4,"ay":5,"az":6}`}
	for i, w := range want {
		select {
		case got := <-received:
			if got != w {
				t.Fatalf("message %d = %s, want %s", i, got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestWebSocketSubscriberCloseStopsRetrying(t *testing.T) {
	sub := &WebSocketSubscriber{URL: "ws://127.0.0.1:1/ws", Event: "x", Reconnect: 10 * time.Millisecond}
	subscription, err := sub.Subscribe(context.Background(), func([]byte) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		subscription.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestSubscribeValidation(t *testing.T) {
	if _, err := (&WebSocketSubscriber{}).Subscribe(context.Background(), func([]byte) {}); err == nil {
		t.Fatal("expected error for empty websocket url")
	}
	if _, err := (&MQTTSubscriber{Broker: "tcp://localhost:1883"}).Subscribe(context.Background(), func([]byte) {}); err == nil {
		t.Fatal("expected error for missing mqtt topic")
	}
}
