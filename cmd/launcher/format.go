package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/diff"

	"github.com/google/subcommands"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/tie/launcher/config"
)

type FormatCommand struct {
	DisableCheck bool
	Overwrite    bool
	ContextSize  int
}

func (*FormatCommand) Name() string     { return "fmt" }
func (*FormatCommand) Synopsis() string { return "format configuration files" }
func (*FormatCommand) Usage() string {
	return `Usage: launcher fmt [-c int] [-w] [-nocheck] [config paths]

	Formats HCL configuration files using standard syntax. It can either
	write files in-place or generate unified diff with specified context size.

Flags:
`
}

func (cmd *FormatCommand) SetFlags(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.DisableCheck, "nocheck", false, "disable diagnostics")
	fs.BoolVar(&cmd.Overwrite, "w", false, "write result to (source) file instead of stdout")
	fs.IntVar(&cmd.ContextSize, "c", 3, "output n lines of diff context")
}

func (cmd *FormatCommand) Execute(ctx context.Context, fs *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	var color bool
	var parser *hclparse.Parser
	var diagWr hcl.DiagnosticWriter
	if !cmd.DisableCheck {
		parser = hclparse.NewParser()
		diagWr, color = newDiagWr(parser)
	} else {
		_, color = fdinfo(int(os.Stdout.Fd()))
	}

	paths := fs.Args()
	if len(paths) <= 0 {
		paths = []string{config.DefaultFile}
	} else {
		sort.Strings(paths)
	}

	seen := make(map[string]bool, len(paths))
	for _, fpath := range paths {
		if seen[fpath] {
			continue
		}
		seen[fpath] = true
		src, err := os.ReadFile(fpath)
		if err != nil {
			log.Printf("read config %q: %+v", fpath, err)
			return subcommands.ExitFailure
		}

		if !cmd.DisableCheck {
			diags := config.DecodeHCL(parser, src, fpath, &config.Config{})
			if err := diagWr.WriteDiagnostics(diags); err != nil {
				log.Printf("write diags: %+v", err)
				return subcommands.ExitFailure
			}
			if diags.HasErrors() {
				return subcommands.ExitFailure
			}
		}

		outSrc := hclwrite.Format(src)
		if bytes.Equal(src, outSrc) {
			continue
		}
		if cmd.Overwrite {
			if err := writeFile(fpath, outSrc); err != nil {
				log.Printf("write file %q: %+v", fpath, err)
				return subcommands.ExitFailure
			}
			continue
		}

		slashed := filepath.ToSlash(fpath)
		opts := []diff.WriteOpt{diff.Names("a/"+slashed, "b/"+slashed)}
		if color {
			opts = append(opts, diff.TerminalColor())
		}
		pair := diff.Bytes(splitLines(src), splitLines(outSrc))
		edit := diff.Myers(ctx, pair)
		if cmd.ContextSize >= 0 {
			edit = edit.WithContextSize(cmd.ContextSize)
		}
		if _, err := edit.WriteUnified(os.Stdout, pair, opts...); err != nil {
			log.Printf("write diff: %+v", err)
			return subcommands.ExitFailure
		}
	}

	return subcommands.ExitSuccess
}

func splitLines(b []byte) [][]byte {
	return bytes.Split(b, []byte("\n"))
}
