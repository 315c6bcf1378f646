package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/layout"
	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/models"
	"github.com/tie/launcher/pool"
	"github.com/tie/launcher/progress"
	"github.com/tie/launcher/verify"
)

// Engine converges an instance directory to an instance manifest.
type Engine struct {
	files          billy.Filesystem
	fetcher        *fetcher.Fetcher
	parallelism    pool.Parallelism
	verifyExisting bool
	progress       progress.Sink
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
	history        *historyStore
}

// Config holds engine dependencies
type Config struct {
	// Files is rooted at the instance directory.
	Files   billy.Filesystem
	Fetcher *fetcher.Fetcher

	Parallelism pool.Parallelism

	// VerifyExisting hashes files already present and fetches them again
	// on mismatch. Without it presence alone counts as valid.
	VerifyExisting bool

	Progress progress.Sink
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Clock    func() time.Time
}

// NewEngine creates a new sync engine
func NewEngine(cfg Config) *Engine {
	if cfg.Parallelism == (pool.Parallelism{}) {
		cfg.Parallelism = pool.Files
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	dl := cfg.Fetcher
	if dl == nil {
		dl = &fetcher.Fetcher{}
	}
	dl = dl.WithFiles(cfg.Files)
	dl.Phase = metrics.PhaseFiles
	if dl.Metrics == nil {
		dl.Metrics = cfg.Metrics
	}
	return &Engine{
		files:          cfg.Files,
		fetcher:        dl,
		parallelism:    cfg.Parallelism,
		verifyExisting: cfg.VerifyExisting,
		progress:       progress.Or(cfg.Progress),
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		now:            cfg.Clock,
		history:        &historyStore{files: cfg.Files, logger: cfg.Logger},
	}
}

// Report describes the outcome of a successful sync.
type Report struct {
	RunID string

	// Fetched and Present hold instance-relative paths.
	Fetched []string
	Present []string

	// Skipped lists optional files that could not be fetched.
	Skipped []Skipped

	History *History
}

type Skipped struct {
	Name string
	Path string
	Err  error
}

type plan struct {
	assets  []models.InstanceAsset
	fetch   []models.InstanceAsset
	present []models.InstanceAsset
}

// LoadHistory returns the history of the last successful sync, or an empty
// history on first run.
func (e *Engine) LoadHistory() (*History, error) {
	return e.history.load()
}

// Sync fetches every file of m missing from the instance directory and
// records the resulting file set. A required file that cannot be fetched
// fails the sync; optional ones are reported as skipped.
func (e *Engine) Sync(ctx context.Context, m *models.InstanceManifest, baseURL string) (*Report, error) {
	start := e.now()
	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID, "instance", m.Instance.ID)

	p, err := e.buildPlan(m, baseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync plan: %w", err)
	}

	logger.Info("sync plan",
		"files", len(p.assets),
		"fetch", len(p.fetch),
		"present", len(p.present))

	total := int64(len(p.assets))
	var done atomic.Int64
	done.Store(int64(len(p.present)))
	e.progress.Report(progress.NewEvent(metrics.PhaseFiles, done.Load(), total, "", progress.StatusStarted))

	report := &Report{RunID: runID}
	for _, a := range p.present {
		report.Present = append(report.Present, a.Path)
	}

	var mu sync.Mutex
	skipped := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism.Size(len(p.fetch)))
	for _, a := range p.fetch {
		a := a
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := e.fetcher.FetchWithRetry(gctx, a.URL, a.Path, verify.Sums(a.SHA256, a.MD5)...)
			n := done.Add(1)
			if err != nil {
				if a.Required {
					return fmt.Errorf("%w: %s (%s): %w", models.ErrRequiredFileMissing, a.Name, a.Path, err)
				}
				logger.Warn("skipping optional file",
					"name", a.Name,
					"path", a.Path,
					"error", err)
				mu.Lock()
				skipped[a.Path] = true
				report.Skipped = append(report.Skipped, Skipped{Name: a.Name, Path: a.Path, Err: err})
				mu.Unlock()
				e.progress.Report(progress.NewEvent(metrics.PhaseFiles, n, total, a.Name, progress.StatusSkipped))
				return nil
			}
			logger.Debug("fetched file", "name", a.Name, "path", a.Path)
			mu.Lock()
			report.Fetched = append(report.Fetched, a.Path)
			mu.Unlock()
			e.progress.Report(progress.NewEvent(metrics.PhaseFiles, n, total, a.Name, progress.StatusDownloading))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("sync failed", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]models.InstanceAsset, 0, len(p.assets))
	for _, a := range p.assets {
		if !skipped[a.Path] {
			kept = append(kept, a)
		}
	}
	h := buildHistory(kept, e.now())
	if err := e.history.save(h); err != nil {
		return nil, fmt.Errorf("failed to save manifest history: %w", err)
	}
	report.History = h

	sort.Strings(report.Fetched)
	sort.Strings(report.Present)
	sort.Slice(report.Skipped, func(i, j int) bool {
		return report.Skipped[i].Path < report.Skipped[j].Path
	})

	e.progress.Report(progress.NewEvent(metrics.PhaseFiles, total, total, "", progress.StatusCompleted))
	e.metrics.ObservePass(metrics.PhaseFiles, e.now().Sub(start))
	logger.Info("sync completed",
		"fetched", len(report.Fetched),
		"skipped", len(report.Skipped),
		"duration", e.now().Sub(start))
	return report, nil
}

// buildPlan resolves every entry and splits the result by local presence.
func (e *Engine) buildPlan(m *models.InstanceManifest, baseURL string, logger *slog.Logger) (*plan, error) {
	p := &plan{}
	seen := make(map[string]string)
	for _, c := range models.Categories {
		for _, entry := range m.Files.Entries(c) {
			a, err := layout.Resolve(c, entry, m.Instance.ID, baseURL)
			if err != nil {
				return nil, err
			}
			if prev, ok := seen[a.Path]; ok {
				logger.Warn("duplicate destination, keeping first entry",
					"path", a.Path,
					"kept", prev,
					"dropped", a.Name)
				continue
			}
			seen[a.Path] = a.Name
			p.assets = append(p.assets, a)

			ok, err := e.isPresent(a, logger)
			if err != nil {
				return nil, err
			}
			if ok {
				p.present = append(p.present, a)
			} else {
				p.fetch = append(p.fetch, a)
			}
		}
	}
	return p, nil
}

func (e *Engine) isPresent(a models.InstanceAsset, logger *slog.Logger) (bool, error) {
	_, err := e.files.Stat(a.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", a.Path, err)
	}
	if !e.verifyExisting {
		return true, nil
	}
	err = verify.File(e.files, a.Path, verify.Sums(a.SHA256, a.MD5)...)
	if err == nil {
		return true, nil
	}
	logger.Info("local file failed verification, fetching again",
		"path", a.Path,
		"error", err)
	return false, nil
}

func buildHistory(assets []models.InstanceAsset, now time.Time) *History {
	h := &History{LastUpdated: now.UTC()}
	for _, a := range assets {
		name, ok := layout.HistoryName(a)
		if !ok {
			h.Files.Other = append(h.Files.Other, a.Path)
			continue
		}
		switch a.Category {
		case models.CategoryMods:
			h.Files.Mods = append(h.Files.Mods, name)
		case models.CategoryResourcePacks:
			h.Files.ResourcePacks = append(h.Files.ResourcePacks, name)
		case models.CategoryShaderPacks:
			h.Files.ShaderPacks = append(h.Files.ShaderPacks, name)
		case models.CategoryConfigs:
			if layout.IsRootFile(a.Path) {
				h.Files.RootFiles = append(h.Files.RootFiles, path.Base(a.Path))
			} else {
				h.Files.Configs = append(h.Files.Configs, name)
			}
		}
	}
	h.normalize()
	return h
}
