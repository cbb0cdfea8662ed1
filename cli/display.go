package cli

import (
	"strings"

	"github.com/pterm/pterm"

	"github.com/piclone-io/piclone-sdk/types"
)

// terminalDisplay renders the appliance screen lines into a fixed terminal
// area so progress updates redraw in place instead of scrolling.
type terminalDisplay struct {
	area *pterm.AreaPrinter
}

// NewTerminalDisplay returns a Displayer for interactive terminal use.
// It falls back to plain printing when the area printer cannot start.
func NewTerminalDisplay() types.Displayer {
	area, err := pterm.DefaultArea.Start()
	if err != nil {
		return types.DisplayFunc(func(lines ...string) {
			pterm.Println(strings.Join(lines, " | "))
		})
	}
	return &terminalDisplay{area: area}
}

func (t *terminalDisplay) Display(lines ...string) {
	t.area.Update(strings.Join(lines, "\n"))
}
