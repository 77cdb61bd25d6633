package csms

import (
	"context"
	"errors"
)

// Transport errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrTransportClosed  = errors.New("transport closed")
)

// Handler receives transport callbacks. Implementations must not block;
// OnMessage is invoked from the transport's read goroutine.
type Handler interface {
	// OnMessage is called for every frame received from the CSMS.
	OnMessage(data []byte)

	// OnDisconnect is called once when the connection is lost.
	// err is nil for a locally initiated close.
	OnDisconnect(err error)
}

// Transport is a single full-duplex message stream to one CSMS endpoint.
type Transport interface {
	// Connect establishes the stream and starts delivering inbound
	// frames to the handler.
	Connect(ctx context.Context, handler Handler) error

	// Send transmits one frame to the CSMS.
	Send(data []byte) error

	// Close tears the stream down. Safe to call multiple times.
	Close() error

	// Connected reports whether the stream is up.
	Connected() bool
}
