package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/google/subcommands"
)

const programName = "launcher"

func init() {
	log.SetFlags(0)
}

func main() {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.Bool("h", false, "alias for help")
	fs.Bool("help", false, "print usage")

	cdr := subcommands.NewCommander(fs, programName)
	cdr.Register(&ListCommand{}, "")
	cdr.Register(&SyncCommand{}, "")
	cdr.Register(&AssetsCommand{}, "")
	cdr.Register(&LoaderCommand{}, "")
	cdr.Register(&InitCommand{}, "")
	cdr.Register(&FormatCommand{}, "")
	cdr.Register(&CleanCommand{}, "")
	cdr.Register(cdr.HelpCommand(), "help")
	cdr.Register(cdr.FlagsCommand(), "help")
	cdr.Register(cdr.CommandsCommand(), "help")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := cdr.Execute(ctx)
	stop()
	switch status {
	case subcommands.ExitFailure:
		os.Exit(1)
	case subcommands.ExitUsageError:
		os.Exit(2)
	}
}
