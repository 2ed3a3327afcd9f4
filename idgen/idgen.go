// Package idgen generates process-unique identifiers.
package idgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ID is a sequential identifier.
type ID uint64

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first ID is 0.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next atomic.Uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(g.next.Add(1) - 1)
}

var consumers = New()

// ConsumerID names one consumer of this process as <exe>.<pid>.<n>. Every
// call returns a new name.
func ConsumerID() string {
	return Qualify(consumers.Generate())
}

// Qualify prefixes id with the executable name and the process ID.
func Qualify(id ID) string {
	return fmt.Sprintf("%s.%d.%d", exeName(), os.Getpid(), id)
}

func exeName() string {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	return filepath.Base(exe)
}
