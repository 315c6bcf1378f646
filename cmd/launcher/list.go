package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
)

type ListCommand struct {
	configFlag
}

func (*ListCommand) Name() string     { return "list" }
func (*ListCommand) Synopsis() string { return "list instances of the distribution" }
func (*ListCommand) Usage() string {
	return `Usage: launcher list [-config launcher.hcl]

	Lists the instances published by the configured distribution.

Flags:
`
}

func (cmd *ListCommand) SetFlags(fs *flag.FlagSet) {
	cmd.configFlag.SetFlags(fs)
}

func (cmd *ListCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg, ok := cmd.load()
	if !ok {
		return subcommands.ExitFailure
	}
	e, err := newEnv(cfg)
	if err != nil {
		log.Printf("setup: %+v", err)
		return subcommands.ExitFailure
	}
	l, err := e.launcher()
	if err != nil {
		log.Printf("setup: %+v", err)
		return subcommands.ExitFailure
	}
	d, err := l.Distribution(ctx)
	if err != nil {
		log.Printf("load distribution: %+v", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tMINECRAFT\n")
	for _, s := range d.Instances {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, s.MinecraftVersion)
	}
	if err := w.Flush(); err != nil {
		log.Printf("write: %+v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
