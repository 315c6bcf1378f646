package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"

	"github.com/go-git/go-billy/v5/osfs"
)

type AssetsCommand struct {
	configFlag
	Dir string
}

func (*AssetsCommand) Name() string     { return "assets" }
func (*AssetsCommand) Synopsis() string { return "install a minecraft version" }
func (*AssetsCommand) Usage() string {
	return `Usage: launcher assets [-config launcher.hcl] -dir <game dir> <minecraft version>

	Installs the client, libraries and assets of a Minecraft version
	without any instance files.

Flags:
`
}

func (cmd *AssetsCommand) SetFlags(fs *flag.FlagSet) {
	cmd.configFlag.SetFlags(fs)
	fs.StringVar(&cmd.Dir, "dir", ".", "game directory")
}

func (cmd *AssetsCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	mcVersion := fs.Arg(0)

	cfg, ok := cmd.load()
	if !ok {
		return subcommands.ExitFailure
	}
	e, err := newEnv(cfg)
	if err != nil {
		log.Printf("setup: %+v", err)
		return subcommands.ExitFailure
	}
	defer e.writeMetrics()

	l, err := e.launcher()
	if err != nil {
		log.Printf("setup: %+v", err)
		return subcommands.ExitFailure
	}
	if err := os.MkdirAll(cmd.Dir, 0755); err != nil {
		log.Printf("mkdir %q: %+v", cmd.Dir, err)
		return subcommands.ExitFailure
	}
	res := l.Resolver(osfs.New(cmd.Dir))

	v, err := res.EnsureClient(ctx, mcVersion)
	if err != nil {
		e.logger.Error("install client", "version", mcVersion, "error", err)
		return subcommands.ExitFailure
	}
	if err := res.EnsureLibraries(ctx, v, nil); err != nil {
		e.logger.Error("install libraries", "version", mcVersion, "error", err)
		return subcommands.ExitFailure
	}
	if v.AssetIndex != nil {
		if _, err := res.EnsureAssets(ctx, mcVersion); err != nil {
			e.logger.Error("install assets", "version", mcVersion, "error", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
