package presence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/sarchlab/bbos/schema"
)

// Record describes the writer of a channel. It is the payload of the
// channel identity.
type Record struct {
	Caller   string            `json:"caller"`
	Owner    string            `json:"owner"`
	PID      int               `json:"pid"`
	Instance string            `json:"instance"`
	DType    schema.Descriptor `json:"dtype"`
	Period   int               `json:"period"`
	Priority int               `json:"priority"`
	Cores    []int             `json:"cores"`
}

// NewRecord describes a writer of typ created at the given call site.
func NewRecord(caller string, typ schema.Type) Record {
	cores := typ.Cores
	if cores == nil {
		cores = []int{}
	}

	return Record{
		Caller:   caller,
		Owner:    Owner(),
		PID:      os.Getpid(),
		Instance: uuid.NewString(),
		DType:    schema.Descriptor(typ.Fields),
		Period:   typ.PeriodMs,
		Priority: typ.Priority,
		Cores:    cores,
	}
}

// Encode serializes the record and checks it fits in one packet.
func (r Record) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	if len(data) > PayloadSize {
		return nil, fmt.Errorf("%w: record of %d bytes", ErrPayloadTooLarge,
			len(data))
	}

	return data, nil
}

// DecodeRecord parses a channel payload.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decoding presence record: %w", err)
	}

	return r, nil
}

// Caller returns the absolute file:line of a frame of the current stack.
// Skip 0 is the caller of Caller.
func Caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown:0"
	}

	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}

	return fmt.Sprintf("%s:%d", file, line)
}

// Owner names the running program as <dir>/<exe>.
func Owner() string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}

	return filepath.Base(filepath.Dir(exe)) + "/" + filepath.Base(exe)
}
