package datarecording

import (
	"encoding/json"
	"log/slog"

	"github.com/sarchlab/bbos/hooking"
	"github.com/sarchlab/bbos/ipc"
	"github.com/sarchlab/bbos/schema"
)

// SampleTable is the table channel samples are recorded into.
const SampleTable = "samples"

// SampleEntry is one recorded record. The fields of the record are stored as
// a JSON object.
type SampleEntry struct {
	Channel   string
	Timestamp int64
	Payload   string
}

type named interface {
	Name() string
}

// ChannelRecorder is a reader hook that records every fresh snapshot.
type ChannelRecorder struct {
	recorder DataRecorder
	count    uint64
}

// NewChannelRecorder creates the samples table and returns the hook.
func NewChannelRecorder(recorder DataRecorder) *ChannelRecorder {
	recorder.CreateTable(SampleTable, SampleEntry{})

	return &ChannelRecorder{recorder: recorder}
}

// Func records the snapshot of a fresh read. Other positions are ignored.
func (r *ChannelRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != ipc.HookPosFreshRead {
		return
	}

	rec, ok := ctx.Item.(schema.Record)
	if !ok {
		return
	}

	channel := ""
	if d, ok := ctx.Domain.(named); ok {
		channel = d.Name()
	}

	payload, err := json.Marshal(rec.Map())
	if err != nil {
		slog.Warn("bbos/datarecording: cannot encode sample",
			"channel", channel, "error", err)
		return
	}

	r.recorder.InsertData(SampleTable, SampleEntry{
		Channel:   channel,
		Timestamp: rec.Timestamp(),
		Payload:   string(payload),
	})
	r.count++
}

// Count returns the number of recorded samples.
func (r *ChannelRecorder) Count() uint64 {
	return r.count
}
