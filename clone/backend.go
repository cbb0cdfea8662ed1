package clone

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/piclone-io/piclone-sdk/devices"
	"github.com/piclone-io/piclone-sdk/parttable"
	"github.com/piclone-io/piclone-sdk/progress"
	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
)

// backendTools maps a lowercased filesystem type to the partclone variant
// that can image it. Anything unmapped falls back to a raw block copy.
var backendTools = map[string]string{
	"ext2":  "partclone.ext2",
	"ext3":  "partclone.ext3",
	"ext4":  "partclone.ext4",
	"vfat":  "partclone.fat",
	"fat16": "partclone.fat",
	"fat32": "partclone.fat",
	"ntfs":  "partclone.ntfs",
	"exfat": "partclone.exfat",
	"xfs":   "partclone.xfs",
	"btrfs": "partclone.btrfs",
}

// WriteTarget is the sink a partition image streams into, normally the
// target partition's raw device file.
type WriteTarget interface {
	io.Writer
	Sync() error
	Close() error
}

// OpenTarget opens a block device node for imaging. A package variable so
// tests can intercept writes instead of touching /dev.
var OpenTarget = func(node string) (WriteTarget, error) {
	return os.OpenFile(node, os.O_WRONLY|os.O_EXCL, 0)
}

// RawCopy block-copies srcNode onto dstNode with dd, streaming progress.
// The totalBytes hint enables percent and ETA display when known.
func RawCopy(r runner.Executor, srcNode, dstNode string, totalBytes int64, title string) error {
	argv, err := r.Command("dd", "if="+srcNode, "of="+dstNode, "bs=4M", "status=progress", "conv=fsync")
	if err != nil {
		return err
	}
	return r.RunStreamed(argv, runner.StreamOptions{
		TotalBytes: totalBytes,
		Title:      title,
	})
}

// PerPartition clones source onto target one partition at a time, picking
// the most specific imaging backend per filesystem. When either device
// cannot be resolved to a live tree node, or the source has no partitions,
// the whole device is raw-copied instead. A partition whose filesystem has
// no backend, or whose backend binary is missing, is raw-copied
// individually rather than failing the operation.
func PerPartition(r runner.Executor, source, target *types.Device) error {
	srcDev := devices.ByName(r, source.Name)
	dstDev := devices.ByName(r, target.Name)
	if srcDev == nil || dstDev == nil {
		return RawCopy(r, source.Node(), target.Node(), source.SizeBytes, "CLONING")
	}

	sourceParts := srcDev.Partitions()
	if len(sourceParts) == 0 {
		return RawCopy(r, srcDev.Node(), dstDev.Node(), srcDev.SizeBytes, "CLONING")
	}

	targetParts := dstDev.Partitions()
	total := len(sourceParts)
	for i, part := range sourceParts {
		dstPart, err := parttable.ResolveTarget(part, i+1, targetParts)
		if err != nil {
			return err
		}
		if err := clonePartition(r, part, dstPart, i+1, total); err != nil {
			return err
		}
	}
	return nil
}

func clonePartition(r runner.Executor, src, dst *types.Device, index, total int) error {
	tool := backendTools[strings.ToLower(src.Fstype)]
	var argv []string
	if tool != "" {
		var err error
		argv, err = r.Command(tool, "-s", src.Node(), "-o", "-", "-f")
		if err != nil {
			log := r.Sink().Log
			log.Logger.Debug().Str("tool", tool).Str("fstype", src.Fstype).Msg("Backend unavailable, falling back to raw copy")
			argv = nil
		}
	}
	if argv == nil {
		return RawCopy(r, src.Node(), dst.Node(), src.SizeBytes, fmt.Sprintf("DD %d/%d", index, total))
	}

	r.Sink().Show(fmt.Sprintf("PART %d/%d", index, total), tool)

	// The backend streams its image to stdout; feed it straight into the
	// target partition's raw device file so multi-gigabyte images never
	// stage on disk.
	dstHandle, err := OpenTarget(dst.Node())
	if err != nil {
		return fmt.Errorf("opening %s for writing: %w", dst.Node(), err)
	}

	streamErr := r.RunStreamed(argv, runner.StreamOptions{
		TotalBytes: src.SizeBytes,
		Title:      fmt.Sprintf("PART %d/%d", index, total),
		Stdout:     dstHandle,
		Parser:     progress.PartcloneParser{},
	})
	if err := dstHandle.Sync(); err != nil && streamErr == nil {
		streamErr = fmt.Errorf("syncing %s: %w", dst.Node(), err)
	}
	if err := dstHandle.Close(); err != nil && streamErr == nil {
		streamErr = fmt.Errorf("closing %s: %w", dst.Node(), err)
	}
	return streamErr
}
