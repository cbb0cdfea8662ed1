package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Device kinds as reported by lsblk TYPE.
const (
	KindDisk = "disk"
	KindPart = "part"
)

// RootMountpoints are the mountpoints that mark a disk as hosting the
// running system. Such disks are protected from destructive operations.
var RootMountpoints = []string{"/", "/boot", "/boot/firmware"}

// Device is one node of the lsblk device tree. Snapshots are immutable
// value objects, re-fetched on demand; identity across snapshots is by Name
// only.
type Device struct {
	Name       string    `json:"name"`
	Kind       string    `json:"type"`
	SizeBytes  int64     `json:"size"`
	Fstype     string    `json:"fstype,omitempty"`
	Mountpoint string    `json:"mountpoint,omitempty"`
	Model      string    `json:"model,omitempty"`
	Vendor     string    `json:"vendor,omitempty"`
	Transport  string    `json:"tran,omitempty"`
	Label      string    `json:"label,omitempty"`
	Removable  FlexBool  `json:"rm"`
	Children   []*Device `json:"children,omitempty"`
}

// FlexBool accepts the different encodings lsblk used for RM over the
// years: true/false, 0/1 and "0"/"1".
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*b = true
	case "false", "0", "null", "":
		*b = false
	default:
		return fmt.Errorf("cannot parse %q as bool", string(data))
	}
	return nil
}

// Node returns the /dev path for the device.
func (d *Device) Node() string {
	if strings.HasPrefix(d.Name, "/dev/") {
		return d.Name
	}
	return "/dev/" + d.Name
}

// Partitions returns the direct children of kind "part", in disk order.
func (d *Device) Partitions() []*Device {
	var parts []*Device
	for _, child := range d.Children {
		if child.Kind == KindPart {
			parts = append(parts, child)
		}
	}
	return parts
}

// HasRootMountpoint walks the subtree looking for a system mountpoint.
func (d *Device) HasRootMountpoint() bool {
	for _, mp := range RootMountpoints {
		if d.Mountpoint == mp {
			return true
		}
	}
	for _, child := range d.Children {
		if child.HasRootMountpoint() {
			return true
		}
	}
	return false
}

// lsblkOutput matches the toplevel JSON object emitted by lsblk -J.
type lsblkOutput struct {
	BlockDevices []*Device `json:"blockdevices"`
}

// ParseDeviceTree decodes lsblk -J -b output into a device tree.
func ParseDeviceTree(data []byte) ([]*Device, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing lsblk output: %w", err)
	}
	return out.BlockDevices, nil
}

// HumanSize renders a byte count the way the appliance screen wants it,
// e.g. 1.5GB. Sizes below 1KB render as plain bytes.
func HumanSize(sizeBytes int64) string {
	size := float64(sizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f%s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1fPB", size)
}

var trailingZeroRe = regexp.MustCompile(`\.0([A-Z])`)

// FormatDeviceLabel builds the short "name size" label shown on screen.
// A trailing ".0" in the size is dropped to save columns.
func FormatDeviceLabel(d *Device) string {
	if d == nil {
		return ""
	}
	sizeLabel := trailingZeroRe.ReplaceAllString(HumanSize(d.SizeBytes), "$1")
	return strings.TrimSpace(fmt.Sprintf("%s %s", d.Name, sizeLabel))
}
