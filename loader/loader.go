// Package loader installs mod loaders into a game directory.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/models"
	"github.com/tie/launcher/platform"
)

// Mod loader types as they appear in instance manifests.
const (
	TypeFabric   = "fabric"
	TypeForge    = "forge"
	TypeNeoForge = "neoforge"
)

// Installer installs a loader version on top of an installed Minecraft
// version and returns the resulting version id. Installing a version that
// is already present does nothing.
type Installer interface {
	Install(ctx context.Context, fs billy.Filesystem, mcVersion, loaderVersion string) (string, error)
}

type Options struct {
	Fetcher *fetcher.Fetcher

	// Cache holds downloaded installer jars.
	Cache billy.Filesystem

	// Java runs installer jars. Defaults to "java".
	Java   string
	Runner Runner
	Logger *slog.Logger
}

// For returns the installer for a loader type.
func For(typ string, opts Options) (Installer, error) {
	if opts.Fetcher == nil {
		opts.Fetcher = &fetcher.Fetcher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch typ {
	case TypeFabric:
		return &Fabric{Fetcher: opts.Fetcher, Logger: opts.Logger}, nil
	case TypeForge:
		return newJar(Forge, opts), nil
	case TypeNeoForge:
		return newJar(NeoForge, opts), nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownModLoader, typ)
}

func installed(fs billy.Basic, id string) (bool, error) {
	_, err := fs.Stat(platform.VersionPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// writeFile replaces name with data through a temporary sibling.
func writeFile(fs billy.Filesystem, name string, data []byte, logger *slog.Logger) error {
	if err := fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return err
	}
	tmp := name + fetcher.TempSuffix
	if err := util.WriteFile(fs, tmp, data, 0644); err != nil {
		return err
	}
	if err := fs.Rename(tmp, name); err != nil {
		if rerr := fs.Remove(tmp); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			logger.Warn("remove", "path", tmp, "error", rerr)
		}
		return err
	}
	return nil
}
