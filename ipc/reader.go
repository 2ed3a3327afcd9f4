package ipc

import (
	"log/slog"
	"time"

	"github.com/sarchlab/bbos/hooking"
	"github.com/sarchlab/bbos/loop"
	"github.com/sarchlab/bbos/presence"
	"github.com/sarchlab/bbos/schema"
	"github.com/sarchlab/bbos/shm"
	"github.com/sarchlab/bbos/telemetry"
)

// ReaderBuilder creates readers.
type ReaderBuilder struct {
	scheduler *loop.Scheduler
	pacing    bool
	telemetry bool
	tlog      telemetry.Builder
	consumer  string
}

// MakeReaderBuilder returns a builder of paced readers with telemetry.
func MakeReaderBuilder() ReaderBuilder {
	return ReaderBuilder{
		pacing:    true,
		telemetry: true,
		tlog:      telemetry.MakeBuilder(),
	}
}

// WithScheduler sets the scheduler that paces the reader.
func (b ReaderBuilder) WithScheduler(s *loop.Scheduler) ReaderBuilder {
	b.scheduler = s
	return b
}

// WithoutPacing makes Ready never take part in the loop. Tools that poll
// channels from their own goroutines use it.
func (b ReaderBuilder) WithoutPacing() ReaderBuilder {
	b.pacing = false
	return b
}

// WithTelemetry sets how the telemetry log is built.
func (b ReaderBuilder) WithTelemetry(tb telemetry.Builder) ReaderBuilder {
	b.telemetry = true
	b.tlog = tb
	return b
}

// WithoutTelemetry drops the telemetry log.
func (b ReaderBuilder) WithoutTelemetry() ReaderBuilder {
	b.telemetry = false
	return b
}

// WithConsumer names the reader in telemetry. By default the name is
// generated.
func (b ReaderBuilder) WithConsumer(name string) ReaderBuilder {
	b.consumer = name
	return b
}

// Build creates a reader of channel name. It never blocks and never fails;
// the writer is resolved by Ready.
func (b ReaderBuilder) Build(name string) *Reader {
	r := &Reader{
		HookableBase: hooking.NewHookableBase(),
		name:         presence.Normalize(name),
	}

	if b.pacing {
		r.scheduler = b.scheduler
		if r.scheduler == nil {
			r.scheduler = loop.Default()
		}

		r.trigger = r.scheduler.NewTrigger()
	}

	if b.telemetry {
		r.tlog = b.tlog.Build(r.name, b.consumer)
	}

	return r
}

// Reader polls the latest record of one channel.
type Reader struct {
	*hooking.HookableBase

	name      string
	scheduler *loop.Scheduler
	trigger   *loop.Trigger
	tlog      *telemetry.Log

	conn     *presence.Conn
	owner    *presence.Record
	layout   *schema.Layout
	seg      *shm.Segment
	readable bool

	data  schema.Record
	spare schema.Record
	fresh uint64
}

// Name returns the normalized channel name.
func (r *Reader) Name() string {
	return r.name
}

// Ready reports whether a fresh record is available in Data. It resolves
// the writer when needed and never blocks.
func (r *Reader) Ready() bool {
	if r.trigger != nil {
		defer r.scheduler.KeepTime()
	}

	if r.readable && r.conn.Closed() {
		r.disconnect()
	}

	if !r.readable && !r.resolve() {
		return false
	}

	return r.read()
}

// WaitReady calls Ready until it reports a fresh record or timeout passes.
// It is meant for tools outside of a paced loop.
func (r *Reader) WaitReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		if r.Ready() {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		time.Sleep(time.Millisecond)
	}
}

func (r *Reader) resolve() bool {
	if r.conn == nil {
		conn, err := presence.Dial(presence.Identity(r.name))
		if err != nil {
			return false
		}

		r.conn = conn
	}

	payload, ok, err := r.conn.TryRecv()
	if err != nil {
		r.dropConn()
		return false
	}

	if !ok {
		return false
	}

	rec, err := presence.DecodeRecord(payload)
	if err != nil {
		slog.Warn("bbos/ipc: bad presence record", "channel", r.name,
			"error", err)
		r.dropConn()

		return false
	}

	layout, err := schema.Compile(rec.DType)
	if err != nil {
		slog.Warn("bbos/ipc: bad schema", "channel", r.name, "error", err)
		r.dropConn()

		return false
	}

	seg, err := shm.Open(r.name, layout.Size())
	if err != nil {
		r.dropConn()
		return false
	}

	if r.trigger != nil {
		if rec.Period > 0 {
			r.scheduler.SetPeriod(rec.Period, r.trigger)
		}

		r.trigger.Reset()
	}

	r.owner = &rec
	r.layout = layout
	r.seg = seg
	r.data = layout.NewRecord()
	r.spare = layout.NewRecord()
	r.readable = true

	r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosResolve, Item: rec})

	return true
}

func (r *Reader) read() bool {
	if _, err := r.seg.ReadConsistent(r.spare.Bytes()); err != nil {
		return false
	}

	fresh := r.spare.Timestamp() != r.data.Timestamp()
	r.data, r.spare = r.spare, r.data

	if !fresh {
		return false
	}

	r.fresh++

	if r.tlog != nil {
		r.tlog.Arrive()
	}

	r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosFreshRead, Item: r.data})

	return true
}

func (r *Reader) disconnect() {
	owner := r.owner

	r.seg.Close()
	r.seg = nil
	r.readable = false
	r.dropConn()

	r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosDisconnect, Item: owner})
}

func (r *Reader) dropConn() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// Data returns the last snapshot. It is invalid until the first resolve.
func (r *Reader) Data() schema.Record {
	return r.data
}

// Layout returns the layout announced by the writer, nil before the first
// resolve.
func (r *Reader) Layout() *schema.Layout {
	return r.layout
}

// Readable reports whether the writer is resolved and mapped.
func (r *Reader) Readable() bool {
	return r.readable
}

// Owner returns the presence record of the writer, nil before the first
// resolve.
func (r *Reader) Owner() *presence.Record {
	return r.owner
}

// Fresh returns how many fresh snapshots were taken.
func (r *Reader) Fresh() uint64 {
	return r.fresh
}

// Telemetry returns the telemetry log, nil when disabled.
func (r *Reader) Telemetry() *telemetry.Log {
	return r.tlog
}

// Close releases the reader.
func (r *Reader) Close() error {
	if r.trigger != nil {
		r.scheduler.Remove(r.trigger)
		r.trigger = nil
	}

	if r.seg != nil {
		r.seg.Close()
		r.seg = nil
	}

	r.readable = false
	r.dropConn()

	if r.tlog != nil {
		return r.tlog.Close()
	}

	return nil
}
