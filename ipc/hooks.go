package ipc

import "github.com/sarchlab/bbos/hooking"

var (
	// HookPosPublish fires after a writer published a record. The item is
	// the published schema.Record.
	HookPosPublish = &hooking.HookPos{Name: "Publish"}

	// HookPosFreshRead fires when a reader took a fresh snapshot. The item
	// is the snapshot.
	HookPosFreshRead = &hooking.HookPos{Name: "FreshRead"}

	// HookPosResolve fires when a reader found its writer. The item is the
	// writer's presence.Record.
	HookPosResolve = &hooking.HookPos{Name: "Resolve"}

	// HookPosDisconnect fires when a reader lost its writer.
	HookPosDisconnect = &hooking.HookPos{Name: "Disconnect"}
)
