// Package pack loads distribution and instance manifests.
package pack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tie/launcher/cache"
	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/layout"
	"github.com/tie/launcher/models"
)

// MaxManifestSize bounds manifest response bodies.
const MaxManifestSize = 16 << 20

// Loader fetches and validates manifests. Raw documents are cached per URL.
type Loader struct {
	fetcher  *fetcher.Fetcher
	cache    *cache.TTL[string, []byte]
	validate *validator.Validate
	logger   *slog.Logger
}

// Config holds loader dependencies
type Config struct {
	Fetcher *fetcher.Fetcher

	// Cache is optional.
	Cache  *cache.TTL[string, []byte]
	Logger *slog.Logger
}

// NewLoader creates a new manifest loader
func NewLoader(cfg Config) *Loader {
	if cfg.Fetcher == nil {
		cfg.Fetcher = &fetcher.Fetcher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loader{
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		validate: validator.New(),
		logger:   cfg.Logger,
	}
}

// Distribution loads the distribution manifest at rawurl.
func (l *Loader) Distribution(ctx context.Context, rawurl string) (*models.DistributionManifest, error) {
	var d models.DistributionManifest
	if err := l.load(ctx, rawurl, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Instance loads the manifest of instance id listed in dist.
func (l *Loader) Instance(ctx context.Context, dist *models.DistributionManifest, id string) (*models.InstanceManifest, error) {
	s, ok := dist.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInstanceNotFound, id)
	}
	var m models.InstanceManifest
	if err := l.load(ctx, ManifestURL(dist.BaseURL, s), &m); err != nil {
		return nil, err
	}
	if m.Instance.ID != id {
		l.logger.Warn("instance manifest id differs from distribution",
			"listed", id,
			"manifest", m.Instance.ID)
	}
	return &m, nil
}

// ManifestURL returns the location of the instance manifest described by s.
func ManifestURL(baseURL string, s models.InstanceSummary) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case s.ManifestURL == "":
		return fmt.Sprintf("%s/instances/%s/manifest.json", base, s.ID)
	case layout.IsAbsolute(s.ManifestURL):
		return s.ManifestURL
	}
	return base + "/" + strings.TrimLeft(s.ManifestURL, "/")
}

func (l *Loader) load(ctx context.Context, rawurl string, v any) error {
	data, err := l.get(ctx, rawurl)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrInvalidManifest, rawurl, err)
	}
	if err := l.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrInvalidManifest, rawurl, err)
	}
	if l.cache != nil {
		l.cache.Put(rawurl, data)
	}
	return nil
}

func (l *Loader) get(ctx context.Context, rawurl string) ([]byte, error) {
	if l.cache != nil {
		if data, at, ok := l.cache.Get(rawurl); ok {
			l.logger.Debug("manifest cache hit", "url", rawurl, "cached_at", at)
			return data, nil
		}
	}
	data, err := l.fetcher.GetWithRetry(ctx, rawurl, MaxManifestSize)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest %s: %w", rawurl, err)
	}
	return data, nil
}
