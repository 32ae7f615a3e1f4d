// Package transport delivers raw telemetry payloads to the dashboard,
// either pushed by the server (WebSocket event, MQTT topic) or pulled
// from an HTTP endpoint on request. Decoding is left to the caller.
package transport

import (
	"context"
	"fmt"
)

// Handler receives one raw payload. Implementations call it from a
// single goroutine per subscription, in arrival order.
type Handler func(data []byte)

// Subscriber opens a push subscription. The subscription keeps itself
// alive (reconnects) until Close or ctx cancellation.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) (Subscription, error)
}

// Subscription is an open push stream.
type Subscription interface {
	Close() error
}

// Fetcher performs one pull request.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Error is a recoverable transport failure: connection refused, bad
// status, malformed response or undecodable payload.
type Error struct {
	Op  string // dial, read, fetch, decode, subscribe
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }
