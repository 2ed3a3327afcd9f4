//go:build !linux

package shm

// Create is not supported on this platform.
func Create(name string, recordSize int) (*Segment, error) {
	return nil, ErrUnsupported
}

// Open is not supported on this platform.
func Open(name string, recordSize int) (*Segment, error) {
	return nil, ErrUnsupported
}

// Close does nothing on this platform.
func (s *Segment) Close() error {
	return nil
}
