package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
)

// Dial opens a TCP connection to addr with SO_REUSEADDR and TCP_NODELAY
// applied to the underlying socket before the handshake completes, so the
// first write after connect is never delayed by Nagle's algorithm — every
// exchange in this protocol is small, latency-sensitive request/response
// traffic, never a bulk stream.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSocketOpts(c)
		},
	}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Listener wraps a net.Listener configured with SO_REUSEADDR so a restarted
// coupling participant can immediately rebind its listen address.
type Listener struct {
	ln net.Listener
}

// Listen opens a TCP listener on addr.
func Listen(ctx context.Context, addr string) (*Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSocketOpts(c)
		},
	}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until a connection arrives or the listener is closed.
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accept: %w", err)
	}
	return conn, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if err := l.ln.Close(); err != nil {
		return fmt.Errorf("close listener: %w", err)
	}
	return nil
}

// AcceptN accepts exactly n connections, in arrival order, or returns the
// first error encountered. Used by a local master to accept connections
// from every one of its local slaves on the intra-participant channel.
func AcceptN(l *Listener, n int) ([]net.Conn, error) {
	conns := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		conn, err := l.Accept()
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}
