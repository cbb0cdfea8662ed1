// Package mocks provides a recording Executor for tests that must not
// spawn real processes or touch real block devices.
package mocks

import (
	"strings"

	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
)

// RecordingDisplay keeps every display frame so tests can assert on what
// an operation put on screen.
type RecordingDisplay struct {
	Frames [][]string
}

func (d *RecordingDisplay) Display(lines ...string) {
	d.Frames = append(d.Frames, append([]string{}, lines...))
}

// Saw reports whether any recorded frame contained the given line.
func (d *RecordingDisplay) Saw(line string) bool {
	for _, frame := range d.Frames {
		for _, l := range frame {
			if l == line {
				return true
			}
		}
	}
	return false
}

// Call is one recorded RunChecked invocation.
type Call struct {
	Argv  []string
	Input string
}

// StreamCall is one recorded RunStreamed invocation.
type StreamCall struct {
	Argv []string
	Opts runner.StreamOptions
}

// FakeExecutor satisfies runner.Executor without spawning anything.
// Canned results are looked up first by the full joined command line,
// then by the bare tool name.
type FakeExecutor struct {
	sink    types.Sink
	Display *RecordingDisplay

	// Outputs holds canned stdout per command line or tool.
	Outputs map[string]string
	// Failures makes matching commands fail with the given diagnostic.
	Failures map[string]string
	// Missing makes LookPath and Command fail with ToolNotFoundError.
	Missing map[string]bool

	Checked  []Call
	Streamed []StreamCall
}

func NewFakeExecutor() *FakeExecutor {
	display := &RecordingDisplay{}
	return &FakeExecutor{
		sink:     types.Sink{Log: types.NewNullLogger(), Display: display},
		Display:  display,
		Outputs:  map[string]string{},
		Failures: map[string]string{},
		Missing:  map[string]bool{},
	}
}

func (f *FakeExecutor) Sink() types.Sink { return f.sink }

func (f *FakeExecutor) LookPath(tool string) (string, error) {
	if f.Missing[tool] {
		return "", &types.ToolNotFoundError{Tool: tool}
	}
	return "/usr/sbin/" + tool, nil
}

func (f *FakeExecutor) Command(tool string, args ...string) ([]string, error) {
	if f.Missing[tool] {
		return nil, &types.ToolNotFoundError{Tool: tool}
	}
	return append([]string{tool}, args...), nil
}

func (f *FakeExecutor) RunChecked(argv []string, opts ...runner.CheckedOption) (string, error) {
	cfg := runner.ApplyCheckedOptions(opts)
	f.Checked = append(f.Checked, Call{Argv: append([]string{}, argv...), Input: cfg.Input})
	if diag, ok := f.lookup(f.Failures, argv); ok {
		return "", &types.CommandFailedError{Command: strings.Join(argv, " "), Output: diag}
	}
	out, _ := f.lookup(f.Outputs, argv)
	return out, nil
}

func (f *FakeExecutor) RunStreamed(argv []string, opts runner.StreamOptions) error {
	f.Streamed = append(f.Streamed, StreamCall{Argv: append([]string{}, argv...), Opts: opts})
	if diag, ok := f.lookup(f.Failures, argv); ok {
		return &types.CommandFailedError{Command: strings.Join(argv, " "), Output: diag}
	}
	return nil
}

// CheckedLines returns every RunChecked command line, joined.
func (f *FakeExecutor) CheckedLines() []string {
	lines := make([]string, 0, len(f.Checked))
	for _, c := range f.Checked {
		lines = append(lines, strings.Join(c.Argv, " "))
	}
	return lines
}

// StreamedLines returns every RunStreamed command line, joined.
func (f *FakeExecutor) StreamedLines() []string {
	lines := make([]string, 0, len(f.Streamed))
	for _, c := range f.Streamed {
		lines = append(lines, strings.Join(c.Argv, " "))
	}
	return lines
}

func (f *FakeExecutor) lookup(m map[string]string, argv []string) (string, bool) {
	if v, ok := m[strings.Join(argv, " ")]; ok {
		return v, true
	}
	v, ok := m[argv[0]]
	return v, ok
}
