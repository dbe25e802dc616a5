// Package transport provides the connection capability used by the binding
// client: a Dialer that opens text-frame connections, with a gorilla
// websocket implementation, plus the HTTP/2 client used to fetch pages.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by ReadMessage after a clean close by either side.
var ErrClosed = errors.New("connection closed")

// Conn is one live text-frame connection.
type Conn interface {
	// ReadMessage blocks until the next text frame arrives. Any error means
	// the connection is gone; ErrClosed marks a clean close.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text frame. Safe for one writer at a time.
	WriteMessage(frame []byte) error

	// Close tears the connection down and unblocks ReadMessage.
	Close() error
}

// Dialer opens connections. Dial blocks until the connection is open or has
// failed; there is no timeout unless ctx carries one.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
