// Package verify computes streaming content digests of device regions and
// compares source against target after a clone.
package verify

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/piclone-io/piclone-sdk/devices"
	"github.com/piclone-io/piclone-sdk/parttable"
	"github.com/piclone-io/piclone-sdk/progress"
	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
)

// Digest is the digest routine the comparison paths go through.
// A package variable so tests can substitute canned checksums without
// spawning dd.
var Digest = ComputeDigest

// ComputeDigest streams a block device region through sha256sum and
// returns the hex digest. The region is bounded by totalBytes when given,
// else runs to EOF. The reader is dd so its stderr drives the same
// progress monitoring a streamed command gets.
//
// dd and sha256sum are two concurrently running processes joined by a
// pipe we own; our references to both pipe ends must be closed right
// after the children start, otherwise sha256sum never sees EOF.
func ComputeDigest(r runner.Executor, node string, totalBytes int64, title string) (string, error) {
	ddArgs := []string{"if=" + node, "bs=4M", "status=progress"}
	if totalBytes > 0 {
		ddArgs = append(ddArgs, fmt.Sprintf("count=%d", totalBytes), "iflag=count_bytes")
	}
	ddArgv, err := r.Command("dd", ddArgs...)
	if err != nil {
		return "", err
	}
	shaArgv, err := r.Command("sha256sum")
	if err != nil {
		return "", err
	}

	log := r.Sink().Log
	log.Logger.Debug().Str("device", node).Msg("Computing sha256")
	r.Sink().Show(title, "Starting...")

	ddCmd := exec.Command(ddArgv[0], ddArgv[1:]...)
	shaCmd := exec.Command(shaArgv[0], shaArgv[1:]...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("creating digest pipe: %w", err)
	}
	ddCmd.Stdout = pw
	shaCmd.Stdin = pr
	ddStderr, err := ddCmd.StderrPipe()
	if err != nil {
		pr.Close()
		pw.Close()
		return "", fmt.Errorf("attaching dd stderr pipe: %w", err)
	}
	var shaOut, shaErr bytes.Buffer
	shaCmd.Stdout = &shaOut
	shaCmd.Stderr = &shaErr

	if err := ddCmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return "", fmt.Errorf("starting dd: %w", err)
	}
	if err := shaCmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		_ = ddCmd.Wait()
		return "", fmt.Errorf("starting sha256sum: %w", err)
	}
	// Both children hold their own duplicates now. Drop ours, or
	// sha256sum never sees EOF when dd exits.
	pw.Close()
	pr.Close()

	monitor := progress.NewMonitor(r.Sink(), progress.DDParser{}, title, "", "", totalBytes)
	lines := make(chan string)
	go runner.ReadLines(ddStderr, lines)

	ticker := time.NewTicker(progress.RefreshInterval)
	defer ticker.Stop()

	var lastLine string
	for lines != nil {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if strings.TrimSpace(line) != "" {
				lastLine = strings.TrimSpace(line)
			}
			monitor.Observe(line, time.Now())
		case <-ticker.C:
			monitor.Tick(time.Now())
		}
	}

	ddErr := ddCmd.Wait()
	hashErr := shaCmd.Wait()
	if ddErr != nil {
		failure := &types.CommandFailedError{Command: strings.Join(ddArgv, " "), Output: lastLine}
		log := r.Sink().Log
		log.Logger.Error().Err(failure).Str("device", node).Msg("dd failed during digest")
		return "", failure
	}
	if hashErr != nil {
		failure := &types.CommandFailedError{Command: strings.Join(shaArgv, " "), Output: strings.TrimSpace(shaErr.String())}
		log := r.Sink().Log
		log.Logger.Error().Err(failure).Str("device", node).Msg("sha256sum failed")
		return "", failure
	}

	checksum := ""
	if fields := strings.Fields(shaOut.String()); len(fields) > 0 {
		checksum = fields[0]
	}
	r.Sink().Show(title, "Complete")
	log.Logger.Debug().Str("device", node).Str("sha256", checksum).Msg("Digest computed")
	return checksum, nil
}

// Clone compares the content of a cloned target against its source. When
// either side cannot be resolved to a live device node, or the source has
// no partitions, it falls back to whole-device digest comparison;
// otherwise it walks the same partition mapping the clone path used,
// short-circuiting at the first unmapped partition or mismatch.
func Clone(r runner.Executor, source, target *types.Device) error {
	srcDev := devices.ByName(r, source.Name)
	if srcDev == nil {
		srcDev = source
	}
	dstDev := devices.ByName(r, target.Name)
	if dstDev == nil {
		dstDev = target
	}

	sourceParts := srcDev.Partitions()
	if len(sourceParts) == 0 {
		return wholeDevice(r, srcDev.Node(), dstDev.Node(), srcDev.SizeBytes)
	}

	targetParts := dstDev.Partitions()
	total := len(sourceParts)
	for i, part := range sourceParts {
		dstPart, err := parttable.ResolveTarget(part, i+1, targetParts)
		if err != nil {
			r.Sink().Show("VERIFY", "No target part")
			log := r.Sink().Log
			log.Logger.Error().Err(err).Str("partition", part.Node()).Msg("Verify failed: unmappable partition")
			return err
		}
		srcHash, err := Digest(r, part.Node(), part.SizeBytes, fmt.Sprintf("V %d/%d SRC", i+1, total))
		if err != nil {
			r.Sink().Show("VERIFY", "Error")
			return err
		}
		dstHash, err := Digest(r, dstPart.Node(), part.SizeBytes, fmt.Sprintf("V %d/%d DST", i+1, total))
		if err != nil {
			r.Sink().Show("VERIFY", "Error")
			return err
		}
		if srcHash != dstHash {
			mismatch := &types.DigestMismatchError{Source: part.Node(), Target: dstPart.Node()}
			r.Sink().Show("VERIFY", "Mismatch")
			log := r.Sink().Log
			log.Logger.Error().Err(mismatch).Msg("Verify mismatch")
			return mismatch
		}
	}
	r.Sink().Show("VERIFY", "Complete")
	log := r.Sink().Log
	log.Logger.Info().Str("source", srcDev.Node()).Str("target", dstDev.Node()).Msg("Verify complete: all partitions match")
	return nil
}

func wholeDevice(r runner.Executor, srcNode, dstNode string, totalBytes int64) error {
	srcHash, err := Digest(r, srcNode, totalBytes, "VERIFY SRC")
	if err != nil {
		r.Sink().Show("VERIFY", "Error")
		return err
	}
	dstHash, err := Digest(r, dstNode, totalBytes, "VERIFY DST")
	if err != nil {
		r.Sink().Show("VERIFY", "Error")
		return err
	}
	if srcHash != dstHash {
		mismatch := &types.DigestMismatchError{Source: srcNode, Target: dstNode}
		r.Sink().Show("VERIFY", "Mismatch")
		log := r.Sink().Log
		log.Logger.Error().Err(mismatch).Msg("Verify mismatch")
		return mismatch
	}
	r.Sink().Show("VERIFY", "Complete")
	log := r.Sink().Log
	log.Logger.Info().Str("source", srcNode).Str("target", dstNode).Msg("Verify complete: checksums match")
	return nil
}
