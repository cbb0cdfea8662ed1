// Package clone sequences partition-table replication, per-partition
// imaging and optional verification into a single clone operation.
package clone

import (
	"github.com/gofrs/uuid"
	"github.com/mudler/go-pluggable"

	"github.com/piclone-io/piclone-sdk/bus"
	"github.com/piclone-io/piclone-sdk/devices"
	"github.com/piclone-io/piclone-sdk/parttable"
	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
	"github.com/piclone-io/piclone-sdk/verify"
)

// Stage names the states of the clone state machine.
type Stage string

const (
	StageIdle           Stage = "Idle"
	StageTableCopy      Stage = "TableCopy"
	StagePartitionClone Stage = "PartitionClone"
	StageVerify         Stage = "Verify"
	StageDone           Stage = "Done"
	StageFailed         Stage = "Failed"
)

// Operation is one clone invocation. No stage is ever retried: a failure
// is terminal and reported upward with enough context for the UI to
// display and log. A fresh Operation is needed per attempt.
type Operation struct {
	ID     string
	runner runner.Executor
	events *bus.Bus
	stage  Stage
}

func NewOperation(r runner.Executor, events *bus.Bus) *Operation {
	id, _ := uuid.NewV4()
	return &Operation{
		ID:     id.String(),
		runner: r,
		events: events,
		stage:  StageIdle,
	}
}

// Stage returns the state the operation is currently in.
func (o *Operation) Stage() Stage {
	return o.stage
}

func (o *Operation) enter(stage Stage, source, target *types.Device, mode types.CloneMode) {
	o.stage = stage
	o.publish(bus.EventCloneStage, source, target, mode, "")
}

func (o *Operation) publish(event pluggable.EventType, source, target *types.Device, mode types.CloneMode, errText string) {
	if o.events == nil {
		return
	}
	payload := bus.OperationPayload{
		ID:    o.ID,
		Mode:  string(mode),
		Stage: string(o.stage),
		Error: errText,
	}
	if source != nil {
		payload.Source = source.Node()
	}
	if target != nil {
		payload.Target = target.Node()
	}
	o.events.PublishOperation(event, payload)
}

func (o *Operation) fail(source, target *types.Device, mode types.CloneMode, err error) error {
	o.stage = StageFailed
	o.publish(bus.EventCloneFailed, source, target, mode, err.Error())
	return err
}

// Run executes one clone of source onto target. The requested mode is
// normalized on entry; smart and verify replicate the partition table and
// image per partition, exact raw-copies the whole device, verify
// additionally digests both sides afterwards.
func (o *Operation) Run(source, target *types.Device, mode string) error {
	normalized := types.NormalizeCloneMode(mode)
	log := o.runner.Sink().Log
	log.Logger.Info().
		Str("operation", o.ID).
		Str("source", source.Node()).
		Str("target", target.Node()).
		Str("mode", string(normalized)).
		Msg("Starting clone")
	o.publish(bus.EventCloneStart, source, target, normalized, "")

	if normalized == types.CloneExact {
		devices.UnmountAll(o.runner, target)
		o.enter(StagePartitionClone, source, target, normalized)
		if err := RawCopy(o.runner, source.Node(), target.Node(), source.SizeBytes, "CLONING"); err != nil {
			o.runner.Sink().Show("FAILED", types.TruncateForDisplay(err.Error()))
			log.Logger.Error().Err(err).Str("operation", o.ID).Msg("Clone failed")
			return o.fail(source, target, normalized, err)
		}
		o.stage = StageDone
		o.publish(bus.EventCloneDone, source, target, normalized, "")
		return nil
	}

	devices.UnmountAll(o.runner, target)

	o.enter(StageTableCopy, source, target, normalized)
	o.runner.Sink().Show("CLONING", "Copy table")
	if err := parttable.Copy(o.runner, source.Node(), target.Node()); err != nil {
		o.runner.Sink().Show("FAILED", "Partition tbl")
		log.Logger.Error().Err(err).Str("operation", o.ID).Msg("Partition table copy failed")
		return o.fail(source, target, normalized, err)
	}

	o.enter(StagePartitionClone, source, target, normalized)
	if err := PerPartition(o.runner, source, target); err != nil {
		o.runner.Sink().Show("FAILED", types.TruncateForDisplay(err.Error()))
		log.Logger.Error().Err(err).Str("operation", o.ID).
			Str("source", source.Node()).Str("target", target.Node()).Msg("Smart clone failed")
		return o.fail(source, target, normalized, err)
	}
	o.runner.Sink().Show("CLONING", "Complete")
	log.Logger.Info().Str("operation", o.ID).
		Str("source", source.Node()).Str("target", target.Node()).Msg("Smart clone completed")

	if normalized == types.CloneVerify {
		o.enter(StageVerify, source, target, normalized)
		if err := verify.Clone(o.runner, source, target); err != nil {
			return o.fail(source, target, normalized, err)
		}
	}

	o.stage = StageDone
	o.publish(bus.EventCloneDone, source, target, normalized, "")
	return nil
}

// Device is the convenience entrypoint the UI layer calls: it builds a
// one-shot Operation and runs it.
func Device(r runner.Executor, events *bus.Bus, source, target *types.Device, mode string) error {
	return NewOperation(r, events).Run(source, target, mode)
}
