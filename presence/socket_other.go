//go:build !linux

package presence

import "time"

// OwnerTimeout bounds how long Announce waits for the current owner.
const OwnerTimeout = 100 * time.Millisecond

// Server is unavailable on this platform.
type Server struct{}

// Announce is not supported on this platform.
func Announce(identity string, payload []byte) (*Server, error) {
	return nil, ErrUnsupported
}

func (s *Server) Identity() string                { return "" }
func (s *Server) SetPayload(payload []byte) error { return ErrUnsupported }
func (s *Server) NumClients() int                 { return 0 }
func (s *Server) Update() error                   { return ErrUnsupported }
func (s *Server) Close() error                    { return nil }

// Conn is unavailable on this platform.
type Conn struct{}

// Dial is not supported on this platform.
func Dial(identity string) (*Conn, error) {
	return nil, ErrUnsupported
}

func (c *Conn) TryRecv() ([]byte, bool, error) { return nil, false, ErrUnsupported }
func (c *Conn) Closed() bool                   { return true }
func (c *Conn) Close() error                   { return nil }

// Fetch is not supported on this platform.
func Fetch(identity string, timeout time.Duration) ([]byte, error) {
	return nil, ErrUnsupported
}
