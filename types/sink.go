package types

// Displayer renders a handful of short lines on the appliance screen. The
// menu/display layer provides the real implementation; the engine only
// ever calls through this interface. Implementations must be safe to call
// from a streamed command's monitoring loop.
type Displayer interface {
	Display(lines ...string)
}

// DisplayFunc adapts a function to the Displayer interface.
type DisplayFunc func(lines ...string)

func (f DisplayFunc) Display(lines ...string) { f(lines...) }

// NullDisplay discards everything. Useful in tests and headless runs.
var NullDisplay = DisplayFunc(func(...string) {})

// Sink bundles the two caller-supplied side channels every engine
// component needs: the structured log and the constrained screen.
type Sink struct {
	Log     PicloneLogger
	Display Displayer
}

// NewNullSink returns a sink that swallows both channels.
func NewNullSink() Sink {
	return Sink{Log: NewNullLogger(), Display: NullDisplay}
}

// Show forwards to the display when one is set.
func (s Sink) Show(lines ...string) {
	if s.Display != nil {
		s.Display.Display(lines...)
	}
}
