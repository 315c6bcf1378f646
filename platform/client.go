package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/models"
	"github.com/tie/launcher/verify"
)

// VersionManifest is the Mojang version list.
type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []VersionRef `json:"versions"`
}

type VersionRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
}

const maxVersionManifestSize = 16 << 20

// EnsureClient installs the descriptor and client jar of mcVersion and
// returns the descriptor. Files already present are kept.
func (r *Resolver) EnsureClient(ctx context.Context, mcVersion string) (*VersionDescriptor, error) {
	start := time.Now()
	dl := r.phase(metrics.PhaseClient, 0)

	v, err := ReadVersion(r.files, mcVersion)
	if errors.Is(err, models.ErrVersionNotInstalled) {
		ref, err := r.lookupVersion(ctx, mcVersion)
		if err != nil {
			return nil, err
		}
		var sums []verify.Sum
		if ref.SHA1 != "" {
			sums = append(sums, verify.Sum{Algorithm: verify.SHA1, Expected: ref.SHA1})
		}
		if err := dl.FetchWithRetry(ctx, ref.URL, VersionPath(mcVersion), sums...); err != nil {
			return nil, fmt.Errorf("version %s: %w", mcVersion, err)
		}
		v, err = ReadVersion(r.files, mcVersion)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	c := v.Downloads.Client
	if c == nil || c.URL == "" {
		return v, nil
	}
	jar := ClientPath(mcVersion)
	if _, err := r.files.Stat(jar); err == nil {
		return v, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	var sums []verify.Sum
	if c.SHA1 != "" {
		sums = append(sums, verify.Sum{Algorithm: verify.SHA1, Expected: c.SHA1})
	}
	r.logger.Info("downloading client", "version", mcVersion, "size", c.Size)
	if err := dl.FetchWithRetry(ctx, c.URL, jar, sums...); err != nil {
		return nil, fmt.Errorf("client %s: %w", mcVersion, err)
	}
	r.metrics.ObservePass(metrics.PhaseClient, time.Since(start))
	return v, nil
}

func (r *Resolver) lookupVersion(ctx context.Context, id string) (VersionRef, error) {
	data, err := r.fetcher.GetWithRetry(ctx, r.urls.VersionManifest, maxVersionManifestSize)
	if err != nil {
		return VersionRef{}, fmt.Errorf("version manifest: %w", err)
	}
	var m VersionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return VersionRef{}, fmt.Errorf("parse version manifest: %w", err)
	}
	for _, v := range m.Versions {
		if v.ID == id {
			return v, nil
		}
	}
	return VersionRef{}, fmt.Errorf("%w: %s", models.ErrVersionNotFound, id)
}
