// Package runner executes the external tools the engine delegates to,
// either to completion (checked) or as a streamed, monitored subprocess.
package runner

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/piclone-io/piclone-sdk/progress"
	"github.com/piclone-io/piclone-sdk/types"
)

// Executor is the execution seam every engine component works against.
// The real implementation shells out; tests substitute a recorder.
type Executor interface {
	Sink() types.Sink
	// LookPath resolves a tool before we try to spawn it, so a missing
	// binary surfaces as a named error instead of an opaque exec failure.
	LookPath(tool string) (string, error)
	// Command resolves a tool into the argv to run it with, honoring
	// config overrides.
	Command(tool string, args ...string) ([]string, error)
	// RunChecked runs a command to completion and returns its stdout.
	RunChecked(argv []string, opts ...CheckedOption) (string, error)
	// RunStreamed runs a command asynchronously, feeding stderr into a
	// progress monitor.
	RunStreamed(argv []string, opts StreamOptions) error
}

// Runner is the Executor that actually spawns processes. Every invocation
// and outcome is reported through the injected sink. Overrides lets the
// appliance config replace the argv prefix used for a given tool (e.g.
// wrap dd in ionice).
type Runner struct {
	sink      types.Sink
	Overrides map[string][]string
}

func New(sink types.Sink) *Runner {
	return &Runner{sink: sink}
}

func (r *Runner) Sink() types.Sink {
	return r.sink
}

func (r *Runner) LookPath(tool string) (string, error) {
	if override, ok := r.Overrides[tool]; ok && len(override) > 0 {
		return override[0], nil
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", &types.ToolNotFoundError{Tool: tool}
	}
	return path, nil
}

func (r *Runner) Command(tool string, args ...string) ([]string, error) {
	if override, ok := r.Overrides[tool]; ok && len(override) > 0 {
		return append(append([]string{}, override...), args...), nil
	}
	path, err := r.LookPath(tool)
	if err != nil {
		return nil, err
	}
	return append([]string{path}, args...), nil
}

// CheckedConfig carries the per-invocation options of RunChecked.
type CheckedConfig struct {
	// Input is fed to the command's stdin. Used to pipe an sfdisk dump
	// back into sfdisk.
	Input string
}

type CheckedOption func(*CheckedConfig)

func WithInput(text string) CheckedOption {
	return func(c *CheckedConfig) {
		c.Input = text
	}
}

// ApplyCheckedOptions folds the options into a config. Exposed so fake
// executors in tests can interpret the same options the real one does.
func ApplyCheckedOptions(opts []CheckedOption) CheckedConfig {
	var cfg CheckedConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RunChecked runs a command to completion and returns its stdout. A
// non-zero exit becomes a CommandFailedError carrying the first non-empty
// line of stderr, else stdout.
func (r *Runner) RunChecked(argv []string, opts ...CheckedOption) (string, error) {
	cfg := ApplyCheckedOptions(opts)
	cmdline := strings.Join(argv, " ")
	r.sink.Log.Logger.Debug().Str("command", cmdline).Msg("Running command")

	cmd := exec.Command(argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if cfg.Input != "" {
		cmd.Stdin = strings.NewReader(cfg.Input)
	}

	err := cmd.Run()
	if stdout.Len() > 0 {
		r.sink.Log.Logger.Debug().Str("stdout", strings.TrimSpace(stdout.String())).Msg("Command output")
	}
	if stderr.Len() > 0 {
		r.sink.Log.Logger.Debug().Str("stderr", strings.TrimSpace(stderr.String())).Msg("Command output")
	}
	if err != nil {
		diag := firstNonEmptyLine(stderr.String())
		if diag == "" {
			diag = firstNonEmptyLine(stdout.String())
		}
		failure := &types.CommandFailedError{Command: cmdline, Output: diag}
		r.sink.Log.Logger.Error().Str("command", cmdline).Err(failure).Msg("Command failed")
		return stdout.String(), failure
	}
	r.sink.Log.Logger.Debug().Str("command", cmdline).Msg("Command completed")
	return stdout.String(), nil
}

// StreamOptions configures a streamed, monitored subprocess.
type StreamOptions struct {
	// Title is the first display line ("CLONING", "ERASING", ...).
	Title string
	// DeviceLabel and ModeLabel are extra context lines for the screen.
	DeviceLabel string
	ModeLabel   string
	// TotalBytes, when known, enables percent and ETA computation.
	TotalBytes int64
	// Stdout, when set, receives the child's stdout. Imaging backends
	// stream their image there (the target partition's device file).
	Stdout io.Writer
	// Parser interprets stderr lines. Defaults to the dd parser.
	Parser progress.Parser
}

// RunStreamed runs a command asynchronously, feeding its stderr line by
// line into a progress monitor while redrawing on an idle cadence. On a
// non-zero exit the last non-empty stderr line becomes the diagnostic.
func (r *Runner) RunStreamed(argv []string, opts StreamOptions) error {
	cmdline := strings.Join(argv, " ")
	title := opts.Title
	if title == "" {
		title = "WORKING"
	}
	r.sink.Show(title, "Starting...")
	r.sink.Log.Logger.Debug().Str("command", cmdline).Msg("Starting command")

	cmd := exec.Command(argv[0], argv[1:]...)
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attaching stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", argv[0], err)
	}

	monitor := progress.NewMonitor(r.sink, opts.Parser, title, opts.DeviceLabel, opts.ModeLabel, opts.TotalBytes)
	lines := make(chan string)
	go ReadLines(stderr, lines)

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

	if err := cmd.Wait(); err != nil {
		failure := &types.CommandFailedError{Command: cmdline, Output: lastLine}
		r.sink.Show("FAILED", types.TruncateForDisplay(failure.Output))
		r.sink.Log.Logger.Error().Str("command", cmdline).Err(failure).Msg("Command failed")
		return failure
	}
	r.sink.Show(title, "Complete")
	r.sink.Log.Logger.Debug().Str("command", cmdline).Msg("Command completed")
	return nil
}

// ReadLines splits the stream on both \n and \r so dd's carriage-return
// progress updates arrive as individual lines, then closes the channel on
// EOF.
func ReadLines(rd io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(rd)
	scanner.Split(scanCRLF)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
