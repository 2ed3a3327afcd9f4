package ipc

import (
	"errors"
	"fmt"

	"github.com/sarchlab/bbos/presence"
)

var (
	// ErrDuplicateWriter is returned when a channel already has a live
	// writer.
	ErrDuplicateWriter = errors.New("ipc: channel already has a writer")

	// ErrWriterClosed is returned when publishing on a closed writer.
	ErrWriterClosed = errors.New("ipc: writer closed")

	// ErrChannelUnavailable is returned by tools that gave up waiting for
	// a writer.
	ErrChannelUnavailable = errors.New("ipc: channel unavailable")
)

// DuplicateWriterError names the channel and, when it answered in time, the
// writer that owns it.
type DuplicateWriterError struct {
	Name  string
	Owner *presence.Record
}

func (e *DuplicateWriterError) Error() string {
	if e.Owner == nil {
		return fmt.Sprintf("%s: %s", ErrDuplicateWriter, e.Name)
	}

	return fmt.Sprintf("%s: %s is owned by %s (pid %d) at %s",
		ErrDuplicateWriter, e.Name, e.Owner.Owner, e.Owner.PID, e.Owner.Caller)
}

// Unwrap makes errors.Is match ErrDuplicateWriter.
func (e *DuplicateWriterError) Unwrap() error {
	return ErrDuplicateWriter
}

func duplicateWriter(name string, taken *presence.NameTakenError) error {
	e := &DuplicateWriterError{Name: name}

	if len(taken.Payload) > 0 {
		if rec, err := presence.DecodeRecord(taken.Payload); err == nil {
			e.Owner = &rec
		}
	}

	return e
}
