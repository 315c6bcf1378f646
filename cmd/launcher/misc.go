package main

import (
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tie/launcher"
	"github.com/tie/launcher/cache"
	"github.com/tie/launcher/config"
	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/loader"
	"github.com/tie/launcher/logger"
	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/pack"
	"github.com/tie/launcher/pool"
	"github.com/tie/launcher/progress"
)

// configFlag is embedded by commands that read the configuration.
type configFlag struct {
	ConfigPath string
}

func (c *configFlag) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", config.DefaultFile, "configuration file")
}

func (c *configFlag) load() (*config.Config, bool) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		log.Printf("load config %q: %+v", c.ConfigPath, err)
		return nil, false
	}
	return cfg, true
}

// env is the runtime assembled from a configuration.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	fetcher  *fetcher.Fetcher
}

func newEnv(cfg *config.Config) (*env, error) {
	_, color := fdinfo(int(os.Stderr.Fd()))
	lg := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format, color)

	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	dl := &fetcher.Fetcher{
		Client:    fetcher.NewClient(cfg.ClientOptions()),
		Token:     token,
		Timeout:   cfg.RequestTimeout(),
		Retry:     cfg.RetryPolicy(),
		Resolvers: map[string]fetcher.Resolver{"optifine": &fetcher.OptiFine{}},
		Logger:    lg,
		Metrics:   m,
	}
	return &env{cfg: cfg, logger: lg, registry: reg, metrics: m, fetcher: dl}, nil
}

func (e *env) launcher() (*launcher.Launcher, error) {
	manifests, err := cache.New[string, []byte](cache.Config{})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.cfg.CacheDir, 0700); err != nil {
		return nil, err
	}
	return launcher.New(launcher.Config{
		DistributionURL: e.cfg.DistributionURL,
		InstancesDir:    e.cfg.InstancesDir,
		Fetcher:         e.fetcher,
		Manifests: pack.NewLoader(pack.Config{
			Fetcher: e.fetcher,
			Cache:   manifests,
			Logger:  e.logger,
		}),
		LoaderOptions: loader.Options{
			Cache:  osfs.New(e.cfg.CacheDir),
			Java:   e.cfg.JavaPath,
			Logger: e.logger,
		},
		Files:          e.cfg.PoolFor(config.PassFiles, pool.Files),
		Assets:         e.cfg.PoolFor(config.PassAssets, pool.Assets),
		Prune:          e.cfg.Prune,
		VerifyExisting: e.cfg.VerifyExisting,
		Progress:       progress.Log{Logger: e.logger},
		Logger:         e.logger,
		Metrics:        e.metrics,
	}), nil
}

// writeMetrics writes the collected metrics when a metrics file is set.
func (e *env) writeMetrics() {
	if e.cfg.MetricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(e.cfg.MetricsFile, e.registry); err != nil {
		e.logger.Warn("write metrics", "path", e.cfg.MetricsFile, "error", err)
	}
}

// writeFile replaces the file at p through a temporary sibling.
func writeFile(p string, data []byte) error {
	dir, name := filepath.Split(p)
	if dir == "" {
		dir = "."
	}
	fs := osfs.New(dir)
	tmp := name + ".tmp"
	if err := util.WriteFile(fs, tmp, data, 0644); err != nil {
		return err
	}
	if err := fs.Rename(tmp, name); err != nil {
		if rerr := fs.Remove(tmp); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			log.Printf("remove %q: %+v", filepath.Join(dir, tmp), rerr)
		}
		return err
	}
	return nil
}

func newDiagWr(p *hclparse.Parser) (diagWr hcl.DiagnosticWriter, color bool) {
	files := p.Files()
	stderr := os.Stderr
	fd := int(stderr.Fd())
	istty, color := fdinfo(fd)
	if !istty {
		diagWr := hcl.NewDiagnosticTextWriter(stderr, files, 80, color)
		return diagWr, color
	}
	width := uint(80)
	if w, _, err := terminal.GetSize(fd); err != nil {
		log.Printf("get term size: %+v", err)
	} else if w > 0 {
		width = uint(w)
	}
	return hcl.NewDiagnosticTextWriter(stderr, files, width, color), color
}

func fdinfo(fd int) (istty, color bool) {
	istty = terminal.IsTerminal(fd)
	color = istty
	// See https://no-color.org
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color = false
	}
	return
}
