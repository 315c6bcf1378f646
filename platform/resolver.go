package platform

import (
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/pool"
	"github.com/tie/launcher/progress"
)

// Default Mojang endpoints.
const (
	VersionManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	ResourcesURL       = "https://resources.download.minecraft.net"
	LibrariesURL       = "https://libraries.minecraft.net"
)

// Per-request timeouts of the asset passes.
const (
	AssetTimeout        = 2 * time.Hour
	CountedAssetTimeout = 60 * time.Second
)

// Resolver installs the platform files of a game directory.
type Resolver struct {
	files   billy.Filesystem
	fetcher *fetcher.Fetcher
	urls    URLs
	os      string

	libraries pool.Parallelism
	assets    pool.Parallelism

	progress progress.Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type URLs struct {
	VersionManifest string
	Resources       string
	Libraries       string
}

// Config holds resolver dependencies
type Config struct {
	// Files is rooted at the game directory holding versions, libraries
	// and assets.
	Files   billy.Filesystem
	Fetcher *fetcher.Fetcher

	// URLs defaults to the Mojang endpoints.
	URLs URLs

	// OS overrides CurrentOS for rule evaluation.
	OS string

	Libraries pool.Parallelism
	Assets    pool.Parallelism

	Progress progress.Sink
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// NewResolver creates a new platform resolver
func NewResolver(cfg Config) *Resolver {
	if cfg.URLs.VersionManifest == "" {
		cfg.URLs.VersionManifest = VersionManifestURL
	}
	if cfg.URLs.Resources == "" {
		cfg.URLs.Resources = ResourcesURL
	}
	if cfg.URLs.Libraries == "" {
		cfg.URLs.Libraries = LibrariesURL
	}
	if cfg.OS == "" {
		cfg.OS = CurrentOS()
	}
	if cfg.Libraries == (pool.Parallelism{}) {
		cfg.Libraries = pool.Files
	}
	if cfg.Assets == (pool.Parallelism{}) {
		cfg.Assets = pool.Assets
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	dl := cfg.Fetcher
	if dl == nil {
		dl = &fetcher.Fetcher{}
	}
	dl = dl.WithFiles(cfg.Files)
	if dl.Metrics == nil {
		dl.Metrics = cfg.Metrics
	}
	return &Resolver{
		files:     cfg.Files,
		fetcher:   dl,
		urls:      cfg.URLs,
		os:        cfg.OS,
		libraries: cfg.Libraries,
		assets:    cfg.Assets,
		progress:  progress.Or(cfg.Progress),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// phase returns a fetcher labelled for phase, with timeout overriding the
// configured per-request timeout when positive.
func (r *Resolver) phase(phase string, timeout time.Duration) *fetcher.Fetcher {
	dl := r.fetcher.WithFiles(r.files)
	dl.Phase = phase
	if timeout > 0 {
		dl.Timeout = timeout
	}
	return dl
}
