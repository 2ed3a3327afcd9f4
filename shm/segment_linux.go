//go:build linux

package shm

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Create creates or reuses the segment of a channel and maps it read-write.
// A file left by a crashed writer is reused. The region is zero-filled.
func Create(name string, recordSize int) (*Segment, error) {
	path := Path(name)
	total := HeaderSize + recordSize

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("creating segment %s: %w", path, err)
	}
	defer file.Close()

	if err := file.Truncate(0); err != nil {
		return nil, fmt.Errorf("clearing segment %s: %w", path, err)
	}

	if err := file.Truncate(int64(total)); err != nil {
		return nil, fmt.Errorf("resizing segment %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, total,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping segment %s: %w", path, err)
	}

	s := newSegment(name, path, mem, recordSize, true)
	atomic.StoreUint32(s.seq, 0)

	return s, nil
}

// Open maps the segment of a channel read-only.
func Open(name string, recordSize int) (*Segment, error) {
	path := Path(name)
	total := HeaderSize + recordSize

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("inspecting segment %s: %w", path, err)
	}

	if info.Size() < int64(total) {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d",
			ErrTooSmall, path, info.Size(), total)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, total,
		unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping segment %s: %w", path, err)
	}

	return newSegment(name, path, mem, recordSize, false), nil
}

func newSegment(
	name, path string,
	mem []byte,
	recordSize int,
	writable bool,
) *Segment {
	return &Segment{
		name:     name,
		path:     path,
		mem:      mem,
		seq:      (*uint32)(unsafe.Pointer(&mem[0])),
		size:     recordSize,
		writable: writable,
	}
}

// Close unmaps the segment. The segment must not be used afterwards.
func (s *Segment) Close() error {
	if s.mem == nil {
		return nil
	}

	err := unix.Munmap(s.mem)
	s.mem = nil
	s.seq = nil

	return err
}
