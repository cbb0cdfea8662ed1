package types

import (
	"fmt"
	"strings"
)

// DisplayWidth is how many characters of an error fit on the appliance
// screen. The full message always goes to the log.
const DisplayWidth = 20

// TruncateForDisplay shortens a message to DisplayWidth characters.
func TruncateForDisplay(msg string) string {
	if len(msg) <= DisplayWidth {
		return msg
	}
	return msg[:DisplayWidth]
}

// ToolNotFoundError means a required external binary is missing from PATH.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Tool)
}

// CommandFailedError carries the command line and a short diagnostic from
// an external tool that exited non-zero.
type CommandFailedError struct {
	Command string
	Output  string
}

func (e *CommandFailedError) Error() string {
	msg := strings.TrimSpace(e.Output)
	if msg == "" {
		msg = "Command failed"
	}
	return fmt.Sprintf("command failed (%s): %s", e.Command, msg)
}

// UnsupportedTableLabelError means the source partition table format has
// no matching replication tool.
type UnsupportedTableLabelError struct {
	Label string
}

func (e *UnsupportedTableLabelError) Error() string {
	if e.Label == "" {
		return "unable to detect partition table label"
	}
	return fmt.Sprintf("unsupported partition table label: %s", e.Label)
}

// UnmappablePartitionError means no target partition could be resolved for
// a source partition, neither by ordinal nor by position.
type UnmappablePartitionError struct {
	Partition string
}

func (e *UnmappablePartitionError) Error() string {
	return fmt.Sprintf("unable to map %s to target partition", e.Partition)
}

// DigestMismatchError reports differing content between a source and
// target region.
type DigestMismatchError struct {
	Source string
	Target string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch: %s -> %s", e.Source, e.Target)
}

// UnknownModeError reports an unrecognized erase mode.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown mode %q", e.Mode)
}
