package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/subcommands"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/tie/launcher/loader"
	"github.com/tie/launcher/models"
)

type LoaderCommand struct {
	configFlag
	Dir string
}

func (*LoaderCommand) Name() string     { return "loader" }
func (*LoaderCommand) Synopsis() string { return "install a mod loader" }
func (*LoaderCommand) Usage() string {
	return `Usage: launcher loader [-config launcher.hcl] -dir <game dir> <minecraft version> <fabric|forge|neoforge> <loader version>

	Installs a mod loader on top of an installed Minecraft version and
	prints the resulting version id.

Flags:
`
}

func (cmd *LoaderCommand) SetFlags(fs *flag.FlagSet) {
	cmd.configFlag.SetFlags(fs)
	fs.StringVar(&cmd.Dir, "dir", ".", "game directory")
}

func (cmd *LoaderCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 3 {
		return subcommands.ExitUsageError
	}
	mcVersion, typ, version := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	cfg, ok := cmd.load()
	if !ok {
		return subcommands.ExitFailure
	}
	e, err := newEnv(cfg)
	if err != nil {
		log.Printf("setup: %+v", err)
		return subcommands.ExitFailure
	}
	if err := os.MkdirAll(cfg.CacheDir, 0700); err != nil {
		log.Printf("make cache: %+v", err)
		return subcommands.ExitFailure
	}

	public := e.fetcher.WithFiles(nil)
	public.Token = ""
	inst, err := loader.For(typ, loader.Options{
		Fetcher: public,
		Cache:   osfs.New(cfg.CacheDir),
		Java:    cfg.JavaPath,
		Logger:  e.logger,
	})
	if errors.Is(err, models.ErrUnknownModLoader) {
		log.Printf("%+v", err)
		return subcommands.ExitUsageError
	}
	if err != nil {
		log.Printf("%+v", err)
		return subcommands.ExitFailure
	}

	id, err := inst.Install(ctx, osfs.New(cmd.Dir), mcVersion, version)
	if err != nil {
		e.logger.Error("install mod loader", "type", typ, "version", version, "error", err)
		return subcommands.ExitFailure
	}
	fmt.Println(id)
	return subcommands.ExitSuccess
}
