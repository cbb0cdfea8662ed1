package types

import "strings"

// CloneMode selects the overall clone strategy.
type CloneMode string

const (
	// CloneSmart replicates the partition table and images each partition
	// with the most specific available backend.
	CloneSmart CloneMode = "smart"
	// CloneExact performs a raw whole-device copy.
	CloneExact CloneMode = "exact"
	// CloneVerify behaves like CloneSmart and then digests both sides.
	CloneVerify CloneMode = "verify"
)

// NormalizeCloneMode maps user input onto a CloneMode. "raw" is an alias
// for exact; anything unrecognized (including empty) means smart.
func NormalizeCloneMode(mode string) CloneMode {
	switch strings.ToLower(mode) {
	case "raw", "exact":
		return CloneExact
	case "verify":
		return CloneVerify
	default:
		return CloneSmart
	}
}

// EraseMode selects a destructive-wipe strategy.
type EraseMode string

const (
	EraseQuick   EraseMode = "quick"
	EraseZero    EraseMode = "zero"
	EraseDiscard EraseMode = "discard"
	EraseSecure  EraseMode = "secure"
)

// NormalizeEraseMode maps user input onto an EraseMode. Unlike clone modes
// there is no safe default for a destructive wipe, so unknown input is an
// UnknownModeError.
func NormalizeEraseMode(mode string) (EraseMode, error) {
	switch strings.ToLower(mode) {
	case "quick":
		return EraseQuick, nil
	case "zero":
		return EraseZero, nil
	case "discard":
		return EraseDiscard, nil
	case "secure":
		return EraseSecure, nil
	default:
		return "", &UnknownModeError{Mode: mode}
	}
}

// TableLabel is a partition table format as reported by sfdisk --dump.
type TableLabel string

const (
	TableGPT TableLabel = "gpt"
	TableDOS TableLabel = "dos"
)

// NormalizeTableLabel folds the MBR synonyms onto dos. Unsupported labels
// are a hard failure; partition-table semantics are backend specific and
// there is no generic fallback.
func NormalizeTableLabel(label string) (TableLabel, error) {
	switch strings.ToLower(label) {
	case "gpt":
		return TableGPT, nil
	case "dos", "mbr", "msdos":
		return TableDOS, nil
	default:
		return "", &UnsupportedTableLabelError{Label: label}
	}
}
