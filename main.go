package main

import (
	"fmt"
	"os"

	urfave "github.com/urfave/cli/v2"

	"github.com/piclone-io/piclone-sdk/cli"
)

func main() {
	app := &urfave.App{
		Name:     "piclone",
		Usage:    "disk cloning, erasing and verification engine",
		Flags:    cli.GlobalFlags(),
		Commands: cli.CliCommands(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
