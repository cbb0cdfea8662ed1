// Package devices enumerates block devices and answers the tree
// predicates the rest of the engine is built on. Snapshots come from
// lsblk and are never cached across operations.
package devices

import (
	"time"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-multierror"

	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
)

var lsblkColumns = "NAME,TYPE,SIZE,MODEL,VENDOR,TRAN,RM,MOUNTPOINT,FSTYPE,LABEL"

// List returns a fresh snapshot of the block device tree. Enumeration
// fails soft: right after a plug event lsblk can race udev, so the call is
// retried a few times, and if it still fails the error goes to the sink
// and an empty list is returned. "No devices" is a displayable state, not
// a fatal one.
func List(r runner.Executor) []*types.Device {
	var devs []*types.Device
	err := retry.Do(
		func() error {
			argv, err := r.Command("lsblk", "-J", "-b", "-o", lsblkColumns)
			if err != nil {
				return err
			}
			out, err := r.RunChecked(argv)
			if err != nil {
				return err
			}
			devs, err = types.ParseDeviceTree([]byte(out))
			return err
		}, retry.Delay(time.Second), retry.Attempts(3),
	)
	if err != nil {
		log := r.Sink().Log
		log.Logger.Error().Err(err).Msg("lsblk failed")
		r.Sink().Show("LSBLK ERROR", types.TruncateForDisplay(err.Error()))
		return []*types.Device{}
	}
	return devs
}

// ByName finds a toplevel device in a fresh snapshot. Returns nil when the
// name is empty or gone.
func ByName(r runner.Executor, name string) *types.Device {
	if name == "" {
		return nil
	}
	for _, dev := range List(r) {
		if dev.Name == name {
			return dev
		}
	}
	return nil
}

// IsRootDevice reports whether the disk hosts the running system. Such
// disks are never candidates for destructive operations.
func IsRootDevice(d *types.Device) bool {
	if d == nil || d.Kind != types.KindDisk {
		return false
	}
	return d.HasRootMountpoint()
}

// ListRemovableDisks returns the disks that qualify as clone/erase
// candidates: non-root disks on USB transport or flagged removable.
func ListRemovableDisks(r runner.Executor) []*types.Device {
	var disks []*types.Device
	for _, dev := range List(r) {
		if dev.Kind != types.KindDisk {
			continue
		}
		if IsRootDevice(dev) {
			continue
		}
		if dev.Transport == "usb" || bool(dev.Removable) {
			disks = append(disks, dev)
		}
	}
	return disks
}

// Node resolves a device or bare name to its /dev path.
func Node(name string) string {
	if name == "" {
		return ""
	}
	if len(name) >= 5 && name[:5] == "/dev/" {
		return name
	}
	return "/dev/" + name
}

// UnmountAll unmounts the device's own mountpoint and every descendant's,
// each independently and best-effort. An already-unmounted or never
// mounted target must not abort the caller, so failures are only
// aggregated into the log.
func UnmountAll(r runner.Executor, d *types.Device) {
	if d == nil {
		return
	}
	var errs *multierror.Error
	for _, mountpoint := range collectMountpoints(d, nil) {
		argv, err := r.Command("umount", mountpoint)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if _, err := r.RunChecked(argv); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs.ErrorOrNil() != nil {
		log := r.Sink().Log
		log.Logger.Debug().Err(errs).Str("device", d.Name).Msg("Best-effort unmount finished with errors")
	}
}

func collectMountpoints(d *types.Device, acc []string) []string {
	if d.Mountpoint != "" {
		acc = append(acc, d.Mountpoint)
	}
	for _, child := range d.Children {
		acc = collectMountpoints(child, acc)
	}
	return acc
}
