// Package cli exposes the engine operations as commands for the appliance
// shell and for development on a workstation.
package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/piclone-io/piclone-sdk/bus"
	"github.com/piclone-io/piclone-sdk/clone"
	"github.com/piclone-io/piclone-sdk/config"
	"github.com/piclone-io/piclone-sdk/devices"
	"github.com/piclone-io/piclone-sdk/erase"
	"github.com/piclone-io/piclone-sdk/gpt"
	"github.com/piclone-io/piclone-sdk/query"
	"github.com/piclone-io/piclone-sdk/runner"
	"github.com/piclone-io/piclone-sdk/types"
	"github.com/piclone-io/piclone-sdk/verify"
)

var (
	configFlag *cli.StringFlag = &cli.StringFlag{
		Name:  "config",
		Value: "",
		Usage: "path to the appliance config file",
	}

	cloneModeFlag *cli.StringFlag = &cli.StringFlag{
		Name:  "mode",
		Value: "",
		Usage: "clone mode (smart, exact, verify; raw is an alias for exact)",
	}

	eraseModeFlag *cli.StringFlag = &cli.StringFlag{
		Name:  "mode",
		Value: "",
		Usage: "erase mode (quick, zero, discard, secure)",
	}
)

// GlobalFlags are the app-level flags main wires in.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{configFlag}
}

type engine struct {
	cfg    *config.Config
	runner *runner.Runner
	events *bus.Bus
}

func newEngine(cCtx *cli.Context) (*engine, error) {
	cfg, err := config.Load(cCtx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	overrides, err := cfg.RunnerOverrides()
	if err != nil {
		return nil, err
	}
	log := types.NewPicloneLogger("piclone", cfg.LogLevel, true)
	sink := types.Sink{Log: log, Display: NewTerminalDisplay()}

	events := bus.NewBus()
	events.Initialize(bus.WithLogger(log))

	r := runner.New(sink)
	r.Overrides = overrides
	return &engine{cfg: cfg, runner: r, events: events}, nil
}

// disk resolves a device name, refusing disks that host the running
// system. Destructive targets must never be the root device.
func (e *engine) disk(name string, destructive bool) (*types.Device, error) {
	dev := devices.ByName(e.runner, name)
	if dev == nil {
		return nil, fmt.Errorf("device %s not found", name)
	}
	if destructive && devices.IsRootDevice(dev) {
		return nil, fmt.Errorf("refusing to operate on root device %s", name)
	}
	return dev, nil
}

func CliCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "list",
			Usage: "lists removable disks eligible for cloning or erasing",
			Action: func(cCtx *cli.Context) error {
				e, err := newEngine(cCtx)
				if err != nil {
					return err
				}
				data := pterm.TableData{{"NAME", "SIZE", "MODEL", "TRANSPORT"}}
				for _, d := range devices.ListRemovableDisks(e.runner) {
					data = append(data, []string{d.Name, types.HumanSize(d.SizeBytes), d.Model, d.Transport})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			},
		},
		{
			Name:      "clone",
			Usage:     "clones one disk onto another",
			ArgsUsage: "<source> <target>",
			Flags:     []cli.Flag{cloneModeFlag},
			Action: func(cCtx *cli.Context) error {
				if cCtx.NArg() != 2 {
					return fmt.Errorf("clone needs a source and a target device")
				}
				e, err := newEngine(cCtx)
				if err != nil {
					return err
				}
				source, err := e.disk(cCtx.Args().Get(0), false)
				if err != nil {
					return err
				}
				target, err := e.disk(cCtx.Args().Get(1), true)
				if err != nil {
					return err
				}
				mode := cCtx.String(cloneModeFlag.Name)
				if mode == "" {
					mode = e.cfg.DefaultCloneMode
				}
				return clone.Device(e.runner, e.events, source, target, mode)
			},
		},
		{
			Name:      "erase",
			Usage:     "destructively wipes a disk",
			ArgsUsage: "<target>",
			Flags:     []cli.Flag{eraseModeFlag},
			Action: func(cCtx *cli.Context) error {
				if cCtx.NArg() != 1 {
					return fmt.Errorf("erase needs a target device")
				}
				e, err := newEngine(cCtx)
				if err != nil {
					return err
				}
				target, err := e.disk(cCtx.Args().Get(0), true)
				if err != nil {
					return err
				}
				mode := cCtx.String(eraseModeFlag.Name)
				if mode == "" {
					mode = e.cfg.DefaultEraseMode
				}
				eraser := erase.New(e.runner, e.events)
				if e.cfg.QuickWipeMiB > 0 {
					eraser.QuickWindowMiB = e.cfg.QuickWipeMiB
				}
				return eraser.Device(target, mode)
			},
		},
		{
			Name:      "verify",
			Usage:     "compares source and target content digests",
			ArgsUsage: "<source> <target>",
			Action: func(cCtx *cli.Context) error {
				if cCtx.NArg() != 2 {
					return fmt.Errorf("verify needs a source and a target device")
				}
				e, err := newEngine(cCtx)
				if err != nil {
					return err
				}
				source, err := e.disk(cCtx.Args().Get(0), false)
				if err != nil {
					return err
				}
				target, err := e.disk(cCtx.Args().Get(1), false)
				if err != nil {
					return err
				}
				payload := bus.OperationPayload{Source: source.Node(), Target: target.Node()}
				e.events.PublishOperation(bus.EventVerifyStart, payload)
				if err := verify.Clone(e.runner, source, target); err != nil {
					payload.Error = err.Error()
					e.events.PublishOperation(bus.EventVerifyFailed, payload)
					return err
				}
				e.events.PublishOperation(bus.EventVerifyDone, payload)
				return nil
			},
		},
		{
			Name:      "query",
			Usage:     "evaluates a jq expression against the device snapshot",
			ArgsUsage: "<expression>",
			Action: func(cCtx *cli.Context) error {
				if cCtx.NArg() != 1 {
					return fmt.Errorf("query needs a jq expression")
				}
				e, err := newEngine(cCtx)
				if err != nil {
					return err
				}
				result, err := query.Devices(devices.List(e.runner), cCtx.Args().Get(0))
				if err != nil {
					return err
				}
				fmt.Println(result)
				return nil
			},
		},
		{
			Name:      "info",
			Usage:     "prints the GPT partition entries of a device",
			ArgsUsage: "<device>",
			Action: func(cCtx *cli.Context) error {
				if cCtx.NArg() != 1 {
					return fmt.Errorf("info needs a device")
				}
				parts, err := gpt.ReadPartitions(devices.Node(cCtx.Args().Get(0)))
				if err != nil {
					return err
				}
				data := pterm.TableData{{"NUMBER", "NAME", "FIRST LBA", "LAST LBA", "SECTORS"}}
				for _, p := range parts {
					data = append(data, []string{
						fmt.Sprint(p.Number), p.Name,
						fmt.Sprint(p.FirstLBA), fmt.Sprint(p.LastLBA), fmt.Sprint(p.NumSectors),
					})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			},
		},
	}
}
