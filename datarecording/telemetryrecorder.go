package datarecording

import "github.com/sarchlab/bbos/telemetry"

// TelemetryTable is the table telemetry windows are recorded into.
const TelemetryTable = "telemetry"

// TelemetryEntry is one completed telemetry window.
type TelemetryEntry struct {
	Channel  string
	Consumer string
	MeanMs   float64
	StdMs    float64
	MaxMs    float64
	Samples  int64
	Window   int
	Updated  int64
}

// TelemetryRecorder is a telemetry sink that records every window.
type TelemetryRecorder struct {
	recorder DataRecorder
}

// NewTelemetryRecorder creates the telemetry table and returns the sink.
func NewTelemetryRecorder(recorder DataRecorder) *TelemetryRecorder {
	recorder.CreateTable(TelemetryTable, TelemetryEntry{})

	return &TelemetryRecorder{recorder: recorder}
}

// Record stores a window.
func (r *TelemetryRecorder) Record(stats telemetry.Stats) {
	r.recorder.InsertData(TelemetryTable, TelemetryEntry{
		Channel:  stats.Channel,
		Consumer: stats.Consumer,
		MeanMs:   stats.MeanMs,
		StdMs:    stats.StdMs,
		MaxMs:    stats.MaxMs,
		Samples:  int64(stats.Samples),
		Window:   stats.Window,
		Updated:  stats.Updated,
	})
}
