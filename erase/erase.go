// Package erase implements the destructive wipe strategies. Modes are
// never downgraded into each other: a missing tool fails the selected mode
// outright.
package erase

import (
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/mudler/go-pluggable"

	"github.com/piclone-io/piclone-sdk/bus"
	"github.com/piclone-io/piclone-sdk/constants"
	"github.com/piclone-io/piclone-sdk/devices"
	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
)

// DefaultQuickWindowMiB bounds how much of the device a quick erase
// zero-fills at the head and tail. 32 MiB covers the common locations of
// partition tables and filesystem superblocks while keeping erase time
// flat on large media.
const DefaultQuickWindowMiB = int64(32)

// Eraser wipes whole devices. QuickWindowMiB is configurable because some
// filesystems keep backup superblocks further in.
type Eraser struct {
	Runner         runner.Executor
	Events         *bus.Bus
	QuickWindowMiB int64

	opID string
}

func New(r runner.Executor, events *bus.Bus) *Eraser {
	return &Eraser{
		Runner:         r,
		Events:         events,
		QuickWindowMiB: DefaultQuickWindowMiB,
	}
}

// Device erases the target according to mode, unmounting it first. An
// unknown mode or a missing tool for the selected mode is a hard failure.
func (e *Eraser) Device(target *types.Device, mode string) error {
	r := e.Runner
	normalized, err := types.NormalizeEraseMode(mode)
	if err != nil {
		r.Sink().Show("ERROR", "unknown mode")
		log := r.Sink().Log
		log.Logger.Error().Err(err).Msg("Erase failed")
		return err
	}

	id, _ := uuid.NewV4()
	e.opID = id.String()
	log := r.Sink().Log
	log.Logger.Info().
		Str("operation", e.opID).
		Str("target", target.Node()).
		Str("mode", string(normalized)).
		Msg("Starting erase")

	devices.UnmountAll(r, target)
	node := target.Node()
	deviceLabel := types.FormatDeviceLabel(target)
	modeLabel := strings.ToUpper(string(normalized))
	e.publish(bus.EventEraseStart, target, normalized, "")

	err = e.run(target, normalized, node, deviceLabel, modeLabel)
	if err != nil {
		e.publish(bus.EventEraseFailed, target, normalized, err.Error())
		return err
	}
	e.publish(bus.EventEraseDone, target, normalized, "")
	return nil
}

func (e *Eraser) run(target *types.Device, mode types.EraseMode, node, deviceLabel, modeLabel string) error {
	r := e.Runner
	switch mode {
	case types.EraseSecure:
		argv, err := r.Command("shred", "-v", "-n", "1", "-z", node)
		if err != nil {
			r.Sink().Show("ERROR", "no shred tool")
			log := r.Sink().Log
			log.Logger.Error().Err(err).Msg("Erase failed: shred not available")
			return err
		}
		return r.RunStreamed(argv, runner.StreamOptions{
			TotalBytes:  target.SizeBytes,
			Title:       "ERASING",
			DeviceLabel: deviceLabel,
			ModeLabel:   modeLabel,
		})

	case types.EraseDiscard:
		argv, err := r.Command("blkdiscard", node)
		if err != nil {
			r.Sink().Show("ERROR", "no discard")
			log := r.Sink().Log
			log.Logger.Error().Err(err).Msg("Erase failed: blkdiscard not available")
			return err
		}
		return r.RunStreamed(argv, runner.StreamOptions{
			Title:       "ERASING",
			DeviceLabel: deviceLabel,
			ModeLabel:   modeLabel,
		})

	case types.EraseZero:
		argv, err := r.Command("dd", "if=/dev/zero", "of="+node, "bs=4M", "status=progress", "conv=fsync")
		if err != nil {
			r.Sink().Show("ERROR", "no dd tool")
			log := r.Sink().Log
			log.Logger.Error().Err(err).Msg("Erase failed: dd not available")
			return err
		}
		return r.RunStreamed(argv, runner.StreamOptions{
			TotalBytes:  target.SizeBytes,
			Title:       "ERASING",
			DeviceLabel: deviceLabel,
			ModeLabel:   modeLabel,
		})

	case types.EraseQuick:
		return e.quick(target, node, deviceLabel, modeLabel)
	}
	return &types.UnknownModeError{Mode: string(mode)}
}

// quick clears filesystem signatures, then zero-fills a bounded window at
// the head of the device and, when the device is larger than the window,
// an equal-sized window at the tail. MiB arithmetic rounds down for
// devices with a sub-MiB remainder.
func (e *Eraser) quick(target *types.Device, node, deviceLabel, modeLabel string) error {
	r := e.Runner
	wipefsArgv, err := r.Command("wipefs", "-a", node)
	if err != nil {
		r.Sink().Show("ERROR", "no wipefs")
		log := r.Sink().Log
		log.Logger.Error().Err(err).Msg("Erase failed: wipefs not available")
		return err
	}
	if _, err := r.LookPath("dd"); err != nil {
		r.Sink().Show("ERROR", "no dd tool")
		log := r.Sink().Log
		log.Logger.Error().Err(err).Msg("Erase failed: dd not available")
		return err
	}

	if err := r.RunStreamed(wipefsArgv, runner.StreamOptions{
		Title:       "ERASING",
		DeviceLabel: deviceLabel,
		ModeLabel:   modeLabel,
	}); err != nil {
		return err
	}

	sizeMiB := target.SizeBytes / constants.MiB
	windowMiB := e.QuickWindowMiB
	if windowMiB <= 0 {
		windowMiB = DefaultQuickWindowMiB
	}
	if sizeMiB > 0 && sizeMiB < windowMiB {
		windowMiB = sizeMiB
	}

	if err := e.zeroWindow(node, windowMiB, 0, deviceLabel, modeLabel); err != nil {
		return err
	}
	if sizeMiB > windowMiB {
		return e.zeroWindow(node, windowMiB, sizeMiB-windowMiB, deviceLabel, modeLabel)
	}
	return nil
}

func (e *Eraser) zeroWindow(node string, countMiB, seekMiB int64, deviceLabel, modeLabel string) error {
	r := e.Runner
	args := []string{"if=/dev/zero", "of=" + node, "bs=1M", fmt.Sprintf("count=%d", countMiB)}
	if seekMiB > 0 {
		args = append(args, fmt.Sprintf("seek=%d", seekMiB))
	}
	args = append(args, "status=progress", "conv=fsync")
	argv, err := r.Command("dd", args...)
	if err != nil {
		return err
	}
	return r.RunStreamed(argv, runner.StreamOptions{
		TotalBytes:  countMiB * constants.MiB,
		Title:       "ERASING",
		DeviceLabel: deviceLabel,
		ModeLabel:   modeLabel,
	})
}

func (e *Eraser) publish(event pluggable.EventType, target *types.Device, mode types.EraseMode, errText string) {
	if e.Events == nil {
		return
	}
	e.Events.PublishOperation(event, bus.OperationPayload{
		ID:     e.opID,
		Target: target.Node(),
		Mode:   string(mode),
		Error:  errText,
	})
}
