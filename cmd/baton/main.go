// Command baton runs the agent orchestrator.
//
// Usage:
//
//	baton run "summarize the open TODOs in this repo"
//	baton chat --config baton.yaml
//	baton serve --config baton.yaml --watch
//	baton validate baton.yaml
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/batonlabs/baton"
	"github.com/batonlabs/baton/pkg/config"
)

// errInterrupted marks a run that was stopped by the user. main turns
// it into exit code 130, the shell convention for SIGINT.
var errInterrupted = errors.New("interrupted")

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Execute a single request and print the result."`
	Chat     ChatCmd     `cmd:"" help:"Start an interactive session."`
	Serve    ServeCmd    `cmd:"" help:"Start the inspection HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the configuration JSON Schema."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to config file." type:"path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(baton.GetVersion())
	return nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("baton"),
		kong.Description("baton - autonomous agent orchestrator"),
		kong.UsageOnError(),
	)

	err := kctx.Run(&cli)
	if errors.Is(err, errInterrupted) {
		os.Exit(130)
	}
	kctx.FatalIfErrorf(err)
}
