// Package progress turns the unstructured stderr of streaming copy tools
// into the byte/percent/rate/ETA view shown on the appliance screen.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/piclone-io/piclone-sdk/types"
)

// RefreshInterval is the idle redraw cadence. A streamed command that goes
// quiet still gets its spinner advanced this often so the screen never
// looks frozen.
const RefreshInterval = time.Second

var spinnerFrames = []string{"|", "/", "-", "\\"}

// State is the sticky display model. Fields keep their last observed value
// across refresh cycles; a sample that lacks a rate or ETA never blanks a
// previously known one.
type State struct {
	BytesCopied int64
	HasBytes    bool
	TotalBytes  int64
	Percent     float64
	HasPercent  bool
	Rate        float64
	HasRate     bool
	Eta         string
	HasEta      bool
}

// Monitor consumes parsed samples and renders display lines through the
// sink. It is driven by the runner's streaming loop: Observe on each
// stderr line, Tick on the idle cadence.
type Monitor struct {
	sink        types.Sink
	parser      Parser
	title       string
	deviceLabel string
	modeLabel   string

	state        State
	lastBytes    int64
	lastBytesAt  time.Time
	haveLast     bool
	spinnerIndex int
	lastRedraw   time.Time
}

func NewMonitor(sink types.Sink, parser Parser, title, deviceLabel, modeLabel string, totalBytes int64) *Monitor {
	if parser == nil {
		parser = DDParser{}
	}
	m := &Monitor{
		sink:        sink,
		parser:      parser,
		title:       title,
		deviceLabel: deviceLabel,
		modeLabel:   modeLabel,
	}
	m.state.TotalBytes = totalBytes
	if totalBytes > 0 {
		m.state.HasBytes = true
	}
	return m
}

// State returns a copy of the current display model.
func (m *Monitor) State() State {
	return m.state
}

// Observe folds one stderr line into the display model and redraws.
func (m *Monitor) Observe(line string, now time.Time) {
	m.sink.Log.Logger.Debug().Str("line", strings.TrimSpace(line)).Msg("stderr")
	sample := m.parser.Parse(line)
	if sample.HasBytes {
		m.state.BytesCopied = sample.Bytes
		m.state.HasBytes = true
		switch {
		case sample.HasRate:
			m.state.Rate = sample.Rate
			m.state.HasRate = true
		case m.haveLast:
			// Derive a rate from the byte delta, guarding against
			// counter resets.
			delta := sample.Bytes - m.lastBytes
			elapsed := now.Sub(m.lastBytesAt).Seconds()
			if delta >= 0 && elapsed > 0 {
				m.state.Rate = float64(delta) / elapsed
				m.state.HasRate = true
			}
		}
		if m.state.HasRate && m.state.Rate > 0 && m.state.TotalBytes > 0 && sample.Bytes <= m.state.TotalBytes {
			etaSeconds := int64(float64(m.state.TotalBytes-sample.Bytes) / m.state.Rate)
			if eta, ok := FormatEta(etaSeconds); ok {
				m.state.Eta = eta
				m.state.HasEta = true
			}
		}
		m.lastBytes = sample.Bytes
		m.lastBytesAt = now
		m.haveLast = true
	}
	if sample.HasPercent {
		m.state.Percent = sample.Percent
		m.state.HasPercent = true
	}
	m.redraw(now)
}

// Tick advances the spinner when the refresh cadence has elapsed without
// new data.
func (m *Monitor) Tick(now time.Time) {
	if now.Sub(m.lastRedraw) < RefreshInterval {
		return
	}
	m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
	m.redraw(now)
}

func (m *Monitor) redraw(now time.Time) {
	m.sink.Show(m.Render()...)
	m.lastRedraw = now
}

// Render composes the screen lines for the current state, capped at the
// six rows the display has.
func (m *Monitor) Render() []string {
	var lines []string
	if m.title != "" {
		lines = append(lines, fmt.Sprintf("%s %s", m.title, spinnerFrames[m.spinnerIndex]))
	}
	if m.deviceLabel != "" {
		lines = append(lines, m.deviceLabel)
	}
	if m.modeLabel != "" {
		lines = append(lines, "Mode "+m.modeLabel)
	}
	switch {
	case m.state.HasBytes:
		written := fmt.Sprintf("Wrote %s", types.HumanSize(m.state.BytesCopied))
		if m.state.TotalBytes > 0 {
			written = fmt.Sprintf("%s %.1f%%", written, float64(m.state.BytesCopied)/float64(m.state.TotalBytes)*100)
		} else if m.state.HasPercent {
			written = fmt.Sprintf("%s %.1f%%", written, m.state.Percent)
		}
		lines = append(lines, written)
	case m.state.HasPercent:
		lines = append(lines, fmt.Sprintf("%.1f%%", m.state.Percent))
	default:
		lines = append(lines, "Working...")
	}
	if m.state.HasRate {
		rateLine := fmt.Sprintf("%s/s", types.HumanSize(int64(m.state.Rate)))
		if m.state.HasEta {
			rateLine = fmt.Sprintf("%s ETA %s", rateLine, m.state.Eta)
		}
		lines = append(lines, rateLine)
	}
	if len(lines) > 6 {
		lines = lines[:6]
	}
	return lines
}

// FormatEta renders a duration in seconds as H:MM:SS, or MM:SS below one
// hour. Negative durations have no sensible rendering and report !ok.
func FormatEta(seconds int64) (string, bool) {
	if seconds < 0 {
		return "", false
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs), true
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs), true
}
