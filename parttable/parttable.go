// Package parttable replicates partition tables between disks and aligns
// source partitions to target partitions.
package parttable

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
)

// Copy dumps the source partition table, detects its label and reproduces
// it on the target with the matching privileged tool. GPT replication
// randomizes GUIDs so source and target can later be connected at the same
// time without collisions. Unsupported or undetectable labels are hard
// failures; table semantics are backend specific and there is no generic
// fallback.
func Copy(r runner.Executor, srcNode, dstNode string) error {
	dumpArgv, err := r.Command("sfdisk", "--dump", srcNode)
	if err != nil {
		return err
	}
	dump, err := r.RunChecked(dumpArgv)
	if err != nil {
		return err
	}

	label := ""
	for _, line := range strings.Split(dump, "\n") {
		if strings.HasPrefix(line, "label:") {
			label = strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			break
		}
	}
	if label == "" {
		return &types.UnsupportedTableLabelError{}
	}
	normalized, err := types.NormalizeTableLabel(label)
	if err != nil {
		return err
	}

	switch normalized {
	case types.TableGPT:
		argv, err := r.Command("sgdisk", "--replicate="+dstNode, "--randomize-guids", srcNode)
		if err != nil {
			return err
		}
		if _, err := r.RunChecked(argv); err != nil {
			return err
		}
		log := r.Sink().Log
		log.Logger.Info().Str("source", srcNode).Str("target", dstNode).Msg("GPT partition table replicated")
	case types.TableDOS:
		argv, err := r.Command("sfdisk", dstNode)
		if err != nil {
			return err
		}
		if _, err := r.RunChecked(argv, runner.WithInput(dump)); err != nil {
			return err
		}
		log := r.Sink().Log
		log.Logger.Info().Str("source", srcNode).Str("target", dstNode).Msg("MBR partition table cloned")
	}
	return nil
}

var ordinalRe = regexp.MustCompile(`(?:p)?(\d+)$`)

// Ordinal parses the trailing partition number from a device name,
// stripping the optional "p" infix: "sda1" -> 1, "nvme0n1p3" -> 3.
// Whole-disk names like "sda" have no ordinal.
func Ordinal(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	m := ordinalRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// byOrdinal indexes target partitions by their parsed ordinal. The first
// partition wins when two names parse to the same number.
func byOrdinal(parts []*types.Device) map[int]*types.Device {
	indexed := make(map[int]*types.Device)
	for _, part := range parts {
		n, ok := Ordinal(part.Name)
		if !ok {
			continue
		}
		if _, taken := indexed[n]; !taken {
			indexed[n] = part
		}
	}
	return indexed
}

// ResolveTarget picks the target partition for the index-th (1-based)
// source partition: first by matching the source's ordinal against the
// targets' parsed ordinals, then by position within the target list.
// Partial allocation is never guessed beyond that.
func ResolveTarget(src *types.Device, index int, targets []*types.Device) (*types.Device, error) {
	if n, ok := Ordinal(src.Name); ok {
		if target, found := byOrdinal(targets)[n]; found {
			return target, nil
		}
	}
	if index-1 < len(targets) {
		return targets[index-1], nil
	}
	return nil, &types.UnmappablePartitionError{Partition: src.Node()}
}

// Mapping pairs one source partition with its resolved target.
type Mapping struct {
	Source *types.Device
	Target *types.Device
}

// MapPartitions resolves every source partition in disk order, stopping at
// the first one that cannot be mapped.
func MapPartitions(sourceParts, targetParts []*types.Device) ([]Mapping, error) {
	mappings := make([]Mapping, 0, len(sourceParts))
	for i, src := range sourceParts {
		target, err := ResolveTarget(src, i+1, targetParts)
		if err != nil {
			return mappings, err
		}
		mappings = append(mappings, Mapping{Source: src, Target: target})
	}
	return mappings, nil
}
