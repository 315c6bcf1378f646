package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"

	"github.com/tie/launcher/config"
)

type InitCommand struct {
	OutputPath string
	Force      bool
}

func (*InitCommand) Name() string     { return "init" }
func (*InitCommand) Synopsis() string { return "write a default configuration" }
func (*InitCommand) Usage() string {
	return `Usage: launcher init [-o launcher.hcl] [-f] <distribution url>

	Writes a configuration with default settings for a distribution.

Flags:
`
}

func (cmd *InitCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&cmd.OutputPath, "o", config.DefaultFile, "output configuration path")
	fs.BoolVar(&cmd.Force, "f", false, "overwrite an existing file")
}

func (cmd *InitCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	cfg := config.Default(fs.Arg(0))
	if err := cfg.Validate(); err != nil {
		log.Printf("%+v", err)
		return subcommands.ExitUsageError
	}
	if !cmd.Force {
		if _, err := os.Stat(cmd.OutputPath); err == nil {
			log.Printf("%q already exists", cmd.OutputPath)
			return subcommands.ExitFailure
		}
	}
	if err := writeFile(cmd.OutputPath, config.Encode(cfg)); err != nil {
		log.Printf("write %q: %+v", cmd.OutputPath, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
