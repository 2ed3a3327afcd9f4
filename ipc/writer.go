// Package ipc implements channels: one writer, any number of readers and a
// single latest-value record in shared memory.
//
// A Writer announces ownership of its channel through presence, creates the
// shared-memory segment, and publishes under a seqlock. A Reader resolves
// the writer through presence, maps the segment read-only, and polls for
// fresh records without ever blocking the writer.
package ipc

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/bbos/hooking"
	"github.com/sarchlab/bbos/loop"
	"github.com/sarchlab/bbos/presence"
	"github.com/sarchlab/bbos/schema"
	"github.com/sarchlab/bbos/shm"
)

// Clock stamps published records.
type Clock interface {
	Now() time.Time
}

// WriterBuilder creates writers.
type WriterBuilder struct {
	scheduler *loop.Scheduler
	clock     Clock
	pacing    bool
	realtime  *loop.Realtime
	useRT     bool
	registry  *schema.Registry
}

// MakeWriterBuilder returns a builder that paces with the default scheduler.
func MakeWriterBuilder() WriterBuilder {
	return WriterBuilder{pacing: true}
}

// WithScheduler sets the scheduler that paces the writer.
func (b WriterBuilder) WithScheduler(s *loop.Scheduler) WriterBuilder {
	b.scheduler = s
	return b
}

// WithClock sets the clock that stamps records.
func (b WriterBuilder) WithClock(c Clock) WriterBuilder {
	b.clock = c
	return b
}

// WithoutPacing makes every publish a real publish and never waits.
func (b WriterBuilder) WithoutPacing() WriterBuilder {
	b.pacing = false
	return b
}

// WithRealtime applies the type's priority and cores to the calling thread
// with the process-wide real-time tracker.
func (b WriterBuilder) WithRealtime() WriterBuilder {
	b.useRT = true
	return b
}

// WithRealtimeTracker is like WithRealtime with a specific tracker.
func (b WriterBuilder) WithRealtimeTracker(rt *loop.Realtime) WriterBuilder {
	b.useRT = true
	b.realtime = rt
	return b
}

// WithRegistry sets the registry BuildNamed looks types up in.
func (b WriterBuilder) WithRegistry(r *schema.Registry) WriterBuilder {
	b.registry = r
	return b
}

// Build creates the writer of channel name carrying typ.
func (b WriterBuilder) Build(name string, typ schema.Type) (*Writer, error) {
	return b.build(name, typ, presence.Caller(1))
}

// BuildNamed is like Build with the type of the same name as the channel,
// looked up in the registry.
func (b WriterBuilder) BuildNamed(name string) (*Writer, error) {
	typ, err := b.lookup(name)
	if err != nil {
		return nil, err
	}

	return b.build(name, typ, presence.Caller(1))
}

// MustBuild is Build for daemon mains. Any failure is logged and the process
// exits with status 1 after running the atexit handlers.
func (b WriterBuilder) MustBuild(name string, typ schema.Type) *Writer {
	w, err := b.build(name, typ, presence.Caller(1))
	if err != nil {
		slog.Error("bbos/ipc: cannot open writer", "channel", name, "error", err)
		atexit.Exit(1)
	}

	return w
}

func (b WriterBuilder) lookup(name string) (schema.Type, error) {
	r := b.registry
	if r == nil {
		r = schema.Default()
	}

	return r.LookupType(strings.TrimLeft(name, "/"))
}

func (b WriterBuilder) build(
	name string,
	typ schema.Type,
	caller string,
) (*Writer, error) {
	name = presence.Normalize(name)

	layout, err := typ.Layout()
	if err != nil {
		return nil, fmt.Errorf("writer %s: %w", name, err)
	}

	record := presence.NewRecord(caller, typ)

	payload, err := record.Encode()
	if err != nil {
		return nil, fmt.Errorf("writer %s: %w", name, err)
	}

	server, err := presence.Announce(presence.Identity(name), payload)
	if err != nil {
		var taken *presence.NameTakenError
		if errors.As(err, &taken) {
			return nil, duplicateWriter(name, taken)
		}

		return nil, fmt.Errorf("writer %s: %w", name, err)
	}

	seg, err := shm.Create(name, layout.Size())
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("writer %s: %w", name, err)
	}

	w := &Writer{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		typ:          typ,
		layout:       layout,
		record:       record,
		server:       server,
		seg:          seg,
		live:         layout.View(seg.Record()),
		scratch:      layout.NewRecord(),
		clock:        b.clock,
	}

	if w.clock == nil {
		w.clock = clock.New()
	}

	if typ.HasPeriod() && b.pacing {
		w.scheduler = b.scheduler
		if w.scheduler == nil {
			w.scheduler = loop.Default()
		}

		w.trigger = w.scheduler.NewTrigger()
		if err := w.scheduler.SetPeriod(typ.PeriodMs, w.trigger); err != nil {
			w.Close()
			return nil, fmt.Errorf("writer %s: %w", name, err)
		}
	}

	if b.useRT && typ.Priority > schema.DefaultPriority {
		b.configRealtime(typ)
	}

	return w, nil
}

func (b WriterBuilder) configRealtime(typ schema.Type) {
	var err error
	if b.realtime != nil {
		_, err = b.realtime.Configure(typ.Cores, typ.Priority)
	} else {
		_, err = loop.ConfigRealtime(typ.Cores, typ.Priority)
	}

	if err != nil {
		slog.Warn("bbos/ipc: real-time configuration failed",
			"type", typ.Name, "priority", typ.Priority, "cores", typ.Cores,
			"error", err)
	}
}

// Writer publishes the records of one channel.
type Writer struct {
	*hooking.HookableBase

	name   string
	typ    schema.Type
	layout *schema.Layout
	record presence.Record
	server *presence.Server
	seg    *shm.Segment

	live    schema.Record
	scratch schema.Record

	scheduler *loop.Scheduler
	trigger   *loop.Trigger
	clock     Clock

	lastStamp int64
	published uint64
	closed    bool
}

// Name returns the normalized channel name.
func (w *Writer) Name() string {
	return w.name
}

// Type returns the channel type.
func (w *Writer) Type() schema.Type {
	return w.typ
}

// Layout returns the record layout.
func (w *Writer) Layout() *schema.Layout {
	return w.layout
}

// Presence returns the record served to readers.
func (w *Writer) Presence() presence.Record {
	return w.record
}

// Published returns how many records readers could observe.
func (w *Writer) Published() uint64 {
	return w.published
}

// Due reports whether the next publish reaches readers.
func (w *Writer) Due() bool {
	return w.trigger == nil || w.trigger.Due()
}

// Buffer is an open write. Closing it publishes.
type Buffer struct {
	// Record is the record to fill. On a tick that is not the stream's it
	// is a zeroed scratch record that readers never see.
	Record schema.Record

	// Due reports whether Record is the live record.
	Due bool

	w      *Writer
	closed bool
}

// Begin opens a write. The counter stays odd until the buffer is closed.
func (w *Writer) Begin() *Buffer {
	if w.closed {
		log.Panicf("ipc: write on closed writer %s", w.name)
	}

	w.poll()
	w.seg.BeginWrite()

	b := &Buffer{w: w, Due: w.Due()}

	if b.Due {
		w.live.SetTimestamp(w.stamp())
		b.Record = w.live
	} else {
		w.scratch.Clear()
		b.Record = w.scratch
	}

	return b
}

func (w *Writer) stamp() int64 {
	now := w.clock.Now().UnixNano()
	if now <= w.lastStamp {
		now = w.lastStamp + 1
	}

	w.lastStamp = now

	return now
}

// Close publishes the buffer and keeps time. It is safe to call twice.
func (b *Buffer) Close() {
	if b.closed {
		return
	}

	b.closed = true
	w := b.w

	w.seg.EndWrite()

	if b.Due {
		w.published++
		w.InvokeHook(hooking.HookCtx{
			Domain: w,
			Pos:    HookPosPublish,
			Item:   b.Record,
		})
	}

	if w.trigger != nil {
		w.scheduler.KeepTime()
	}
}

// Publish runs fill on an open buffer and publishes it, also when fill
// returns an error or panics.
func (w *Writer) Publish(fill func(rec schema.Record) error) error {
	if w.closed {
		return ErrWriterClosed
	}

	b := w.Begin()
	defer b.Close()

	return fill(b.Record)
}

// Poll serves new readers without publishing.
func (w *Writer) Poll() {
	if w.closed {
		return
	}

	w.poll()
}

func (w *Writer) poll() {
	if err := w.server.Update(); err != nil {
		slog.Debug("bbos/ipc: presence round failed",
			"channel", w.name, "error", err)
	}
}

// Close withdraws the writer. Readers see the channel go away.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	if w.trigger != nil {
		w.scheduler.Remove(w.trigger)
	}

	return errors.Join(w.seg.Unlink(), w.seg.Close(), w.server.Close())
}
