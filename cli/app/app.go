package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/somnia-names/somns/cli/admin"
	"github.com/somnia-names/somns/cli/name"
	"github.com/somnia-names/somns/cli/server"
	"github.com/somnia-names/somns/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "SomNS\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a SomNS instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "somns"
	ctl.Version = config.Version
	ctl.Usage = "Somnia name registry node and tools"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, name.NewCommands()...)
	ctl.Commands = append(ctl.Commands, admin.NewCommands()...)
	return ctl
}
