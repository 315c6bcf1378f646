package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"
)

type CleanCommand struct {
	configFlag
}

func (*CleanCommand) Name() string     { return "clean" }
func (*CleanCommand) Synopsis() string { return "remove cached files" }
func (*CleanCommand) Usage() string {
	return `Usage: launcher clean [-config launcher.hcl]

	Removes downloaded mod loader installers.

Flags:
`
}

func (cmd *CleanCommand) SetFlags(fs *flag.FlagSet) {
	cmd.configFlag.SetFlags(fs)
}

func (cmd *CleanCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg, ok := cmd.load()
	if !ok {
		return subcommands.ExitFailure
	}
	if err := os.RemoveAll(cfg.CacheDir); err != nil {
		log.Printf("clean %q: %+v", cfg.CacheDir, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
