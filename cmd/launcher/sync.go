package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/google/subcommands"

	"github.com/tie/launcher/models"
)

type SyncCommand struct {
	configFlag
	Prune  bool
	Verify bool
}

func (*SyncCommand) Name() string     { return "sync" }
func (*SyncCommand) Synopsis() string { return "prepare an instance for launch" }
func (*SyncCommand) Usage() string {
	return `Usage: launcher sync [-config launcher.hcl] [-prune] [-verify] <instance>

	Installs the client, mod loader, libraries and assets of an instance
	and downloads every file listed in its manifest.

Flags:
`
}

func (cmd *SyncCommand) SetFlags(fs *flag.FlagSet) {
	cmd.configFlag.SetFlags(fs)
	fs.BoolVar(&cmd.Prune, "prune", false, "remove files dropped from the manifest")
	fs.BoolVar(&cmd.Verify, "verify", false, "hash files already present")
}

func (cmd *SyncCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if fs.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	id := fs.Arg(0)

	cfg, ok := cmd.load()
	if !ok {
		return subcommands.ExitFailure
	}
	cfg.Prune = cfg.Prune || cmd.Prune
	cfg.VerifyExisting = cfg.VerifyExisting || cmd.Verify

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
	res, err := l.Prepare(ctx, id)
	if errors.Is(err, models.ErrInstanceNotFound) {
		e.logger.Error("unknown instance", "instance", id)
		return subcommands.ExitUsageError
	}
	if err != nil {
		e.logger.Error("sync failed", "instance", id, "error", err)
		return subcommands.ExitFailure
	}
	for _, s := range res.Sync.Skipped {
		e.logger.Warn("optional file missing", "path", s.Path, "error", s.Err)
	}
	e.logger.Info("ready",
		"instance", id,
		"version", res.VersionID,
		"dir", cfg.InstanceDir(id))
	return subcommands.ExitSuccess
}
