// Package launcher prepares Minecraft instances for launch. It loads the
// distribution, installs the client and mod loader and then reconciles the
// instance files and the platform files concurrently.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/errgroup"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/instance"
	"github.com/tie/launcher/layout"
	"github.com/tie/launcher/loader"
	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/models"
	"github.com/tie/launcher/pack"
	"github.com/tie/launcher/platform"
	"github.com/tie/launcher/pool"
	"github.com/tie/launcher/progress"
)

// Launcher prepares instances of one distribution.
type Launcher struct {
	distributionURL string
	manifests       *pack.Loader
	fetcher         *fetcher.Fetcher
	public          *fetcher.Fetcher
	open            func(dir string) billy.Filesystem
	instancesDir    string
	installer       func(typ string) (loader.Installer, error)
	urls            platform.URLs

	files  pool.Parallelism
	assets pool.Parallelism

	prune          bool
	verifyExisting bool

	progress progress.Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Config holds launcher dependencies
type Config struct {
	DistributionURL string
	InstancesDir    string

	// Fetcher carries the distribution credentials. Requests to Mojang and
	// loader services use a copy without the token.
	Fetcher *fetcher.Fetcher

	// Manifests defaults to a loader without cache.
	Manifests *pack.Loader

	// Open returns the filesystem rooted at an instance directory.
	// Defaults to osfs.
	Open func(dir string) billy.Filesystem

	// Installer defaults to loader.For with LoaderOptions.
	Installer     func(typ string) (loader.Installer, error)
	LoaderOptions loader.Options

	PlatformURLs platform.URLs

	Files  pool.Parallelism
	Assets pool.Parallelism

	Prune          bool
	VerifyExisting bool

	Progress progress.Sink
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Result describes a prepared instance.
type Result struct {
	Manifest *models.InstanceManifest

	// VersionID is the version to launch, the loader version when the
	// instance has a mod loader.
	VersionID  string
	AssetIndex string

	Sync   *instance.Report
	Pruned []string
}

// New creates a new launcher
func New(cfg Config) *Launcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = &fetcher.Fetcher{}
	}
	if cfg.Fetcher.Logger == nil {
		cfg.Fetcher = cfg.Fetcher.WithFiles(cfg.Fetcher.Files)
		cfg.Fetcher.Logger = cfg.Logger
	}
	public := cfg.Fetcher.WithFiles(nil)
	public.Token = ""

	if cfg.Manifests == nil {
		cfg.Manifests = pack.NewLoader(pack.Config{Fetcher: cfg.Fetcher, Logger: cfg.Logger})
	}
	if cfg.Open == nil {
		cfg.Open = func(dir string) billy.Filesystem { return osfs.New(dir) }
	}
	if cfg.Installer == nil {
		opts := cfg.LoaderOptions
		if opts.Fetcher == nil {
			opts.Fetcher = public
		}
		if opts.Logger == nil {
			opts.Logger = cfg.Logger
		}
		cfg.Installer = func(typ string) (loader.Installer, error) {
			return loader.For(typ, opts)
		}
	}
	if cfg.Files == (pool.Parallelism{}) {
		cfg.Files = pool.Files
	}
	if cfg.Assets == (pool.Parallelism{}) {
		cfg.Assets = pool.Assets
	}
	return &Launcher{
		distributionURL: cfg.DistributionURL,
		manifests:       cfg.Manifests,
		fetcher:         cfg.Fetcher,
		public:          public,
		open:            cfg.Open,
		instancesDir:    cfg.InstancesDir,
		installer:       cfg.Installer,
		urls:            cfg.PlatformURLs,
		files:           cfg.Files,
		assets:          cfg.Assets,
		prune:           cfg.Prune,
		verifyExisting:  cfg.VerifyExisting,
		progress:        progress.Or(cfg.Progress),
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
	}
}

// Distribution loads the distribution manifest.
func (l *Launcher) Distribution(ctx context.Context) (*models.DistributionManifest, error) {
	return l.manifests.Distribution(ctx, l.distributionURL)
}

// InstanceFS returns the filesystem of instance id.
func (l *Launcher) InstanceFS(id string) (billy.Filesystem, error) {
	clean, err := layout.Clean(id)
	if err != nil || strings.Contains(clean, "/") {
		return nil, fmt.Errorf("%w: instance id %q", models.ErrUnsafePath, id)
	}
	return l.open(filepath.Join(l.instancesDir, clean)), nil
}

// Resolver returns the platform resolver for fs.
func (l *Launcher) Resolver(fs billy.Filesystem) *platform.Resolver {
	return platform.NewResolver(platform.Config{
		Files:     fs,
		Fetcher:   l.public,
		URLs:      l.urls,
		Libraries: l.files,
		Assets:    l.assets,
		Progress:  l.progress,
		Logger:    l.logger,
		Metrics:   l.metrics,
	})
}

// Prepare brings instance id up to date. The client and mod loader are
// installed first; the instance files and the libraries and assets are then
// reconciled concurrently. The first failure cancels the other pass.
func (l *Launcher) Prepare(ctx context.Context, id string) (*Result, error) {
	start := time.Now()
	dist, err := l.Distribution(ctx)
	if err != nil {
		return nil, err
	}
	m, err := l.manifests.Instance(ctx, dist, id)
	if err != nil {
		return nil, err
	}
	fs, err := l.InstanceFS(id)
	if err != nil {
		return nil, err
	}
	logger := l.logger.With("instance", id)
	mcVersion := m.Instance.MinecraftVersion

	res := l.Resolver(fs)
	vanilla, err := res.EnsureClient(ctx, mcVersion)
	if err != nil {
		return nil, fmt.Errorf("install minecraft %s: %w", mcVersion, err)
	}

	result := &Result{Manifest: m, VersionID: vanilla.ID}
	var modded *platform.VersionDescriptor
	if ml := m.Instance.ModLoader; ml != nil {
		inst, err := l.installer(ml.Type)
		if err != nil {
			return nil, err
		}
		loaderStart := time.Now()
		vid, err := inst.Install(ctx, fs, mcVersion, ml.Version)
		if err != nil {
			return nil, fmt.Errorf("install %s %s: %w", ml.Type, ml.Version, err)
		}
		l.metrics.ObservePass(metrics.PhaseLoader, time.Since(loaderStart))
		if modded, err = platform.ReadVersion(fs, vid); err != nil {
			return nil, err
		}
		result.VersionID = vid
	}

	engine := instance.NewEngine(instance.Config{
		Files:          fs,
		Fetcher:        l.fetcher,
		Parallelism:    l.files,
		VerifyExisting: l.verifyExisting,
		Progress:       l.progress,
		Logger:         l.logger,
		Metrics:        l.metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var prev *instance.History
		if l.prune {
			var err error
			if prev, err = engine.LoadHistory(); err != nil {
				return err
			}
		}
		report, err := engine.Sync(gctx, m, dist.BaseURL)
		if err != nil {
			return err
		}
		result.Sync = report
		if l.prune {
			if result.Pruned, err = engine.Prune(prev, report.History); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		// Libraries and assets advance one counter against a combined total.
		total, err := res.CountMissingLibraries(vanilla, modded)
		if err != nil {
			return err
		}
		if vanilla.AssetIndex != nil {
			missing, err := res.CountMissingAssets(gctx, mcVersion)
			if err != nil {
				return err
			}
			total += missing
		}
		var counter atomic.Int64
		if err := res.EnsureLibrariesCounted(gctx, vanilla, modded, &counter, total); err != nil {
			return err
		}
		if vanilla.AssetIndex == nil {
			return nil
		}
		idx, err := res.EnsureAssetsCounted(gctx, mcVersion, &counter, total)
		if err != nil {
			return err
		}
		result.AssetIndex = idx
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("instance prepared",
		"version", result.VersionID,
		"asset_index", result.AssetIndex,
		"fetched", len(result.Sync.Fetched),
		"pruned", len(result.Pruned),
		"duration", time.Since(start))
	return result, nil
}
