package transport

import "errors"

var (
	// ErrClosed indicates an operation on a channel whose underlying
	// connection has already been closed.
	ErrClosed = errors.New("transport: connection closed")

	// ErrUnexpectedConnType indicates ListenConfig.Listen returned a
	// net.Listener whose Accept did not yield a *net.TCPConn.
	ErrUnexpectedConnType = errors.New("transport: unexpected connection type")
)
