// Package shm maps the shared-memory segments that back channels.
//
// A segment is a file under /dev/shm laid out as a 32-bit sequence counter
// padded to one cache line, followed by the bytes of exactly one record. The
// single writer makes the counter odd while it copies and even once the
// record is published. Readers copy optimistically and retry when the
// counter moved.
package shm

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
)

const (
	// HeaderSize is the cache-line prefix that holds the sequence counter.
	HeaderSize = 64

	// MaxReadAttempts bounds the retries of a consistent read so that a
	// writer that died in the middle of a write cannot hang its readers.
	MaxReadAttempts = 10000
)

var (
	// ErrContended is returned when no consistent copy could be taken within
	// MaxReadAttempts.
	ErrContended = errors.New("shm: record is being rewritten")

	// ErrTooSmall is returned when an existing segment is smaller than the
	// layout that should be mapped over it.
	ErrTooSmall = errors.New("shm: segment smaller than record layout")

	// ErrUnsupported is returned on platforms without shared memory.
	ErrUnsupported = errors.New("shm: not supported on this platform")
)

// Segment is one mapped channel region.
type Segment struct {
	name     string
	path     string
	mem      []byte
	seq      *uint32
	size     int
	writable bool
}

// Dir returns the directory segment files live in. It is /dev/shm when
// available and the temporary directory otherwise.
func Dir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}

	return os.TempDir()
}

// Path returns the file backing the channel name. The leading slash is
// dropped and the rest is path-escaped, so nested names stay one file.
func Path(name string) string {
	return filepath.Join(Dir(), url.PathEscape(strings.TrimPrefix(name, "/")))
}

// Name returns the channel name of the segment.
func (s *Segment) Name() string {
	return s.name
}

// FilePath returns the backing file.
func (s *Segment) FilePath() string {
	return s.path
}

// RecordSize returns the size of the record region.
func (s *Segment) RecordSize() int {
	return s.size
}

// Writable reports whether the segment was created by a writer.
func (s *Segment) Writable() bool {
	return s.writable
}

// Seq loads the sequence counter.
func (s *Segment) Seq() uint32 {
	return atomic.LoadUint32(s.seq)
}

// Record returns the record bytes. Readers must not access them directly
// while a writer may be active; use ReadConsistent instead.
func (s *Segment) Record() []byte {
	return s.mem[HeaderSize : HeaderSize+s.size]
}

// BeginWrite makes the counter odd.
func (s *Segment) BeginWrite() {
	s.mustWritable()
	atomic.AddUint32(s.seq, 1)
}

// EndWrite makes the counter even and publishes the record.
func (s *Segment) EndWrite() {
	s.mustWritable()
	atomic.AddUint32(s.seq, 1)
}

func (s *Segment) mustWritable() {
	if !s.writable {
		panic("shm: write on a read-only segment " + s.name)
	}
}

var fenceWord uint32

// fence orders the record copy before the second counter load. A read-modify
// write is a full barrier on every supported architecture.
func fence() {
	atomic.AddUint32(&fenceWord, 1)
}

// ReadConsistent copies the record into dst and returns the even sequence
// value the copy corresponds to.
func (s *Segment) ReadConsistent(dst []byte) (uint32, error) {
	src := s.Record()

	for attempt := 0; attempt < MaxReadAttempts; attempt++ {
		before := atomic.LoadUint32(s.seq)
		if before&1 == 1 {
			runtime.Gosched()
			continue
		}

		copy(dst, src)
		fence()

		if atomic.LoadUint32(s.seq) == before {
			return before, nil
		}
	}

	return 0, ErrContended
}

// Unlink removes the backing file. Mappings stay valid until Close.
func (s *Segment) Unlink() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}
