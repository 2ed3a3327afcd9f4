// Package telemetry measures how regularly a consumer receives fresh records.
//
// A Log keeps a rolling window of inter-arrival intervals. At every full
// window it computes the statistics and republishes them through presence
// under the telemetry identity of the (channel, consumer) pair, so tools can
// list them without touching the consumer.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sarchlab/bbos/idgen"
	"github.com/sarchlab/bbos/presence"
)

// DefaultWindow is the number of intervals per statistics window.
const DefaultWindow = 100

// Stats summarizes one window of inter-arrival intervals.
type Stats struct {
	Channel  string  `json:"channel"`
	Consumer string  `json:"consumer"`
	MeanMs   float64 `json:"mean_ms"`
	StdMs    float64 `json:"std_ms"`
	MaxMs    float64 `json:"max_ms"`
	Samples  uint64  `json:"samples"`
	Window   int     `json:"window"`
	Updated  int64   `json:"updated"`
}

// DecodeStats parses a telemetry payload.
func DecodeStats(payload []byte) (Stats, error) {
	var s Stats
	if err := json.Unmarshal(payload, &s); err != nil {
		return Stats{}, fmt.Errorf("decoding telemetry: %w", err)
	}

	return s, nil
}

// Sink receives the statistics of every full window.
type Sink interface {
	Record(stats Stats)
}

// Clock is the time source of a log.
type Clock interface {
	Now() time.Time
}

// Builder creates telemetry logs.
type Builder struct {
	window   int
	clock    Clock
	sink     Sink
	presence bool
}

// MakeBuilder returns a builder with the default window, the wall clock and
// presence on.
func MakeBuilder() Builder {
	return Builder{window: DefaultWindow, presence: true}
}

// WithWindow sets the number of intervals per window.
func (b Builder) WithWindow(n int) Builder {
	b.window = n
	return b
}

// WithClock sets the time source.
func (b Builder) WithClock(c Clock) Builder {
	b.clock = c
	return b
}

// WithSink adds a receiver for window statistics.
func (b Builder) WithSink(s Sink) Builder {
	b.sink = s
	return b
}

// WithoutPresence keeps the statistics local.
func (b Builder) WithoutPresence() Builder {
	b.presence = false
	return b
}

// Build creates the log of consumer reading channel. An empty consumer gets
// a process-unique name.
func (b Builder) Build(channel, consumer string) *Log {
	if b.window <= 0 {
		panic(fmt.Sprintf("telemetry: window must be positive, got %d", b.window))
	}

	if b.clock == nil {
		b.clock = clock.New()
	}

	if consumer == "" {
		consumer = idgen.ConsumerID()
	}

	l := &Log{
		channel:   presence.Normalize(channel),
		consumer:  consumer,
		clock:     b.clock,
		sink:      b.sink,
		intervals: make([]float64, b.window),
	}
	l.stats = Stats{Channel: l.channel, Consumer: consumer, Window: b.window}

	if b.presence {
		l.announce()
	}

	return l
}

// Log tracks the arrivals of one consumer.
type Log struct {
	channel  string
	consumer string
	clock    Clock
	sink     Sink
	server   *presence.Server

	intervals []float64
	next      int
	samples   uint64
	anchored  bool
	last      time.Time
	stats     Stats
}

func (l *Log) announce() {
	identity := presence.TelemetryIdentity(l.channel, l.consumer)

	payload, err := json.Marshal(l.stats)
	if err == nil {
		l.server, err = presence.Announce(identity, payload)
	}

	if err != nil {
		slog.Warn("bbos/telemetry: running without presence",
			"identity", identity, "error", err)
	}
}

// Consumer returns the consumer name.
func (l *Log) Consumer() string {
	return l.consumer
}

// Channel returns the normalized channel name.
func (l *Log) Channel() string {
	return l.channel
}

// Identity returns the telemetry identity of the log.
func (l *Log) Identity() string {
	return presence.TelemetryIdentity(l.channel, l.consumer)
}

// Announced reports whether the log is reachable through presence.
func (l *Log) Announced() bool {
	return l.server != nil
}

// Stats returns the statistics of the last full window.
func (l *Log) Stats() Stats {
	return l.stats
}

// Arrive records a fresh record. The first arrival only sets the anchor.
func (l *Log) Arrive() {
	now := l.clock.Now()

	if l.anchored {
		l.intervals[l.next] = float64(now.Sub(l.last)) / float64(time.Millisecond)
		l.next = (l.next + 1) % len(l.intervals)
		l.samples++

		if l.next == 0 {
			l.publish(now)
		}
	}

	l.anchored = true
	l.last = now

	if l.server != nil {
		if err := l.server.Update(); err != nil {
			slog.Debug("bbos/telemetry: presence round failed", "error", err)
		}
	}
}

func (l *Log) publish(now time.Time) {
	var sum, peak float64
	for _, v := range l.intervals {
		sum += v
		peak = max(peak, v)
	}

	n := float64(len(l.intervals))
	mean := sum / n

	var sq float64
	for _, v := range l.intervals {
		sq += (v - mean) * (v - mean)
	}

	l.stats.MeanMs = mean
	l.stats.StdMs = math.Sqrt(sq / n)
	l.stats.MaxMs = peak
	l.stats.Samples = l.samples
	l.stats.Updated = now.UnixNano()

	if l.server != nil {
		if payload, err := json.Marshal(l.stats); err == nil {
			l.server.SetPayload(payload)
		}
	}

	if l.sink != nil {
		l.sink.Record(l.stats)
	}
}

// Close withdraws the telemetry identity.
func (l *Log) Close() error {
	if l.server == nil {
		return nil
	}

	err := l.server.Close()
	l.server = nil

	return err
}
