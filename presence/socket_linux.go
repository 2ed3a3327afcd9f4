//go:build linux

package presence

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// OwnerTimeout bounds how long Announce waits for the current owner to
// reveal its payload after a failed bind.
const OwnerTimeout = 100 * time.Millisecond

const backlog = 64

func socket() (int, error) {
	return unix.Socket(unix.AF_UNIX,
		unix.SOCK_SEQPACKET|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
}

func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR)
}

// Server serves one payload to every client of an identity.
type Server struct {
	lock     sync.Mutex
	identity string
	fd       int
	payload  []byte
	clients  map[int]struct{}
	probe    []byte
}

// Announce binds identity and starts serving payload. Nothing happens until
// the first Update.
func Announce(identity string, payload []byte) (*Server, error) {
	if len(payload) > PayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	fd, err := socket()
	if err != nil {
		return nil, fmt.Errorf("presence socket: %w", err)
	}

	err = unix.Bind(fd, &unix.SockaddrUnix{Name: identity})
	if errors.Is(err, unix.EADDRINUSE) {
		unix.Close(fd)

		owner, _ := Fetch(identity, OwnerTimeout)

		return nil, &NameTakenError{Identity: identity, Payload: owner}
	}

	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding %s: %w", identity, err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listening on %s: %w", identity, err)
	}

	return &Server{
		identity: identity,
		fd:       fd,
		payload:  append([]byte(nil), payload...),
		clients:  make(map[int]struct{}),
		probe:    make([]byte, 1),
	}, nil
}

// Identity returns the served identity.
func (s *Server) Identity() string {
	return s.identity
}

// SetPayload replaces what future clients receive.
func (s *Server) SetPayload(payload []byte) error {
	if len(payload) > PayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.payload = append(s.payload[:0], payload...)

	return nil
}

// NumClients returns the number of clients still connected.
func (s *Server) NumClients() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.clients)
}

// Update runs one non-blocking round. New clients receive the payload and
// clients that hung up are dropped.
func (s *Server) Update() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fd < 0 {
		return ErrClosed
	}

	err := s.acceptAll()
	s.evictClosed()

	return err
}

func (s *Server) acceptAll() error {
	for {
		nfd, _, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if wouldBlock(err) || errors.Is(err, unix.ECONNABORTED) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("accepting on %s: %w", s.identity, err)
		}

		if _, err := unix.Write(nfd, s.payload); err != nil {
			unix.Close(nfd)
			continue
		}

		s.clients[nfd] = struct{}{}
	}
}

func (s *Server) evictClosed() {
	for c := range s.clients {
		n, _, err := unix.Recvfrom(c, s.probe, unix.MSG_DONTWAIT|unix.MSG_PEEK)
		if wouldBlock(err) || (err == nil && n > 0) {
			continue
		}

		unix.Close(c)
		delete(s.clients, c)
	}
}

// Close stops serving and releases the identity.
func (s *Server) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fd < 0 {
		return nil
	}

	for c := range s.clients {
		unix.Close(c)
	}

	clear(s.clients)

	err := unix.Close(s.fd)
	s.fd = -1

	return err
}

// Conn is a client of an identity.
type Conn struct {
	identity string
	fd       int
	payload  []byte
	buf      []byte
	probe    []byte
}

// Dial connects to identity without waiting.
func Dial(identity string) (*Conn, error) {
	fd, err := socket()
	if err != nil {
		return nil, fmt.Errorf("presence socket: %w", err)
	}

	err = unix.Connect(fd, &unix.SockaddrUnix{Name: identity})
	if err != nil {
		unix.Close(fd)

		if errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.ENOENT) ||
			wouldBlock(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, identity)
		}

		return nil, fmt.Errorf("connecting to %s: %w", identity, err)
	}

	return &Conn{
		identity: identity,
		fd:       fd,
		buf:      make([]byte, PayloadSize),
		probe:    make([]byte, 1),
	}, nil
}

// TryRecv returns the payload once it has arrived. It never blocks.
func (c *Conn) TryRecv() ([]byte, bool, error) {
	if c.payload != nil {
		return c.payload, true, nil
	}

	n, err := unix.Read(c.fd, c.buf)
	if wouldBlock(err) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrClosed, c.identity, err)
	}

	if n == 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrClosed, c.identity)
	}

	c.payload = append([]byte(nil), c.buf[:n]...)

	return c.payload, true, nil
}

// Closed reports whether the server side hung up.
func (c *Conn) Closed() bool {
	n, _, err := unix.Recvfrom(c.fd, c.probe, unix.MSG_DONTWAIT|unix.MSG_PEEK)
	if wouldBlock(err) {
		return false
	}

	return err != nil || n == 0
}

// Close hangs up.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}

	err := unix.Close(c.fd)
	c.fd = -1

	return err
}

// Fetch connects to identity and waits up to timeout for its payload. The
// owner only sends during its own update rounds, so the timeout should
// cover at least one loop period.
func Fetch(identity string, timeout time.Duration) ([]byte, error) {
	c, err := Dial(identity)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	deadline := time.Now().Add(timeout)

	for {
		payload, ok, err := c.TryRecv()
		if err != nil {
			return nil, err
		}

		if ok {
			return payload, nil
		}

		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("%w: fetching %s", ErrTimeout, identity)
		}

		fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, int(left.Milliseconds())+1); err != nil &&
			!errors.Is(err, unix.EINTR) {
			return nil, fmt.Errorf("polling %s: %w", identity, err)
		}
	}
}
