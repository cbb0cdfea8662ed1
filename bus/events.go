package bus

import (
	"github.com/mudler/go-pluggable"
)

const (
	// EventCloneStart is emitted when a clone operation enters its first
	// stage, before anything destructive happens to the target.
	EventCloneStart pluggable.EventType = "engine.clone.start"
	// EventCloneStage is emitted on every stage transition of the clone
	// state machine.
	EventCloneStage pluggable.EventType = "engine.clone.stage"
	// EventCloneDone is emitted when a clone reaches Done.
	EventCloneDone pluggable.EventType = "engine.clone.done"
	// EventCloneFailed is emitted when a clone reaches Failed.
	EventCloneFailed pluggable.EventType = "engine.clone.failed"

	EventEraseStart  pluggable.EventType = "engine.erase.start"
	EventEraseDone   pluggable.EventType = "engine.erase.done"
	EventEraseFailed pluggable.EventType = "engine.erase.failed"

	EventVerifyStart  pluggable.EventType = "engine.verify.start"
	EventVerifyDone   pluggable.EventType = "engine.verify.done"
	EventVerifyFailed pluggable.EventType = "engine.verify.failed"
)

var AllEvents = []pluggable.EventType{
	EventCloneStart,
	EventCloneStage,
	EventCloneDone,
	EventCloneFailed,
	EventEraseStart,
	EventEraseDone,
	EventEraseFailed,
	EventVerifyStart,
	EventVerifyDone,
	EventVerifyFailed,
}

// OperationPayload describes one clone/erase/verify invocation to the
// subscribed UI layer. ID is unique per invocation so the menu can
// correlate stage events with the operation it started.
type OperationPayload struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
	Mode   string `json:"mode,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Error  string `json:"error,omitempty"`
}
