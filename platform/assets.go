package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/progress"
	"github.com/tie/launcher/verify"
)

// AssetIndex lists the objects of an asset index by virtual name.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// IndexPath returns the location of asset index id.
func IndexPath(id string) string {
	return path.Join("assets", "indexes", id+".json")
}

// ObjectPath returns the content-addressed location of an asset object.
func ObjectPath(hash string) string {
	return path.Join("assets", "objects", hash[:2], hash)
}

// Unique returns the distinct objects of the index ordered by hash.
func (idx *AssetIndex) Unique() []AssetObject {
	seen := make(map[string]bool, len(idx.Objects))
	objs := make([]AssetObject, 0, len(idx.Objects))
	for _, o := range idx.Objects {
		if seen[o.Hash] {
			continue
		}
		seen[o.Hash] = true
		objs = append(objs, o)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Hash < objs[j].Hash })
	return objs
}

// EnsureAssets installs the asset index and every missing object of the
// installed version mcVersion and returns the asset index id.
func (r *Resolver) EnsureAssets(ctx context.Context, mcVersion string) (string, error) {
	var counter atomic.Int64
	return r.ensureAssets(ctx, mcVersion, &counter, 0, AssetTimeout)
}

// EnsureAssetsCounted is EnsureAssets reporting against a counter and total
// shared with other passes. Requests use a shorter timeout.
func (r *Resolver) EnsureAssetsCounted(ctx context.Context, mcVersion string, counter *atomic.Int64, total int64) (string, error) {
	return r.ensureAssets(ctx, mcVersion, counter, total, CountedAssetTimeout)
}

func (r *Resolver) ensureAssets(ctx context.Context, mcVersion string, counter *atomic.Int64, total int64, timeout time.Duration) (string, error) {
	start := time.Now()
	v, err := ReadVersion(r.files, mcVersion)
	if err != nil {
		return "", err
	}
	if v.AssetIndex == nil {
		return "", fmt.Errorf("version %s has no asset index", mcVersion)
	}
	ref := v.AssetIndex
	dl := r.phase(metrics.PhaseAssets, timeout)

	idx, err := r.assetIndex(ctx, dl, ref)
	if err != nil {
		return "", err
	}

	objs := idx.Unique()
	var missing []AssetObject
	for _, o := range objs {
		if len(o.Hash) < 2 {
			return "", fmt.Errorf("asset index %s: invalid object hash %q", ref.ID, o.Hash)
		}
		_, err := r.files.Stat(ObjectPath(o.Hash))
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		missing = append(missing, o)
	}
	if total <= 0 {
		total = int64(len(missing))
	}

	r.logger.Info("assets",
		"index", ref.ID,
		"objects", len(objs),
		"missing", len(missing))
	r.progress.Report(progress.NewEvent(metrics.PhaseAssets, counter.Load(), total, "", progress.StatusStarted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.assets.Size(len(missing)))
	for _, o := range missing {
		o := o
		g.Go(func() error {
			u := fmt.Sprintf("%s/%s/%s", r.urls.Resources, o.Hash[:2], o.Hash)
			err := dl.FetchWithRetry(gctx, u, ObjectPath(o.Hash), verify.Sum{Algorithm: verify.SHA1, Expected: o.Hash})
			if err != nil {
				return fmt.Errorf("asset %s: %w", o.Hash, err)
			}
			n := counter.Add(1)
			r.progress.Report(progress.NewEvent(metrics.PhaseAssets, n, total, o.Hash, progress.StatusDownloading))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	r.progress.Report(progress.NewEvent(metrics.PhaseAssets, counter.Load(), total, "", progress.StatusCompleted))
	r.metrics.ObservePass(metrics.PhaseAssets, time.Since(start))
	return ref.ID, nil
}

// CountMissingAssets returns how many objects of the installed version
// mcVersion are absent. The asset index is fetched when needed.
func (r *Resolver) CountMissingAssets(ctx context.Context, mcVersion string) (int64, error) {
	v, err := ReadVersion(r.files, mcVersion)
	if err != nil {
		return 0, err
	}
	if v.AssetIndex == nil {
		return 0, nil
	}
	idx, err := r.assetIndex(ctx, r.phase(metrics.PhaseAssets, CountedAssetTimeout), v.AssetIndex)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, o := range idx.Unique() {
		if len(o.Hash) < 2 {
			continue
		}
		if _, err := r.files.Stat(ObjectPath(o.Hash)); err != nil {
			n++
		}
	}
	return n, nil
}

// assetIndex reads the local index, fetching it first when absent.
func (r *Resolver) assetIndex(ctx context.Context, dl *fetcher.Fetcher, ref *AssetIndexRef) (*AssetIndex, error) {
	p := IndexPath(ref.ID)
	if _, err := r.files.Stat(p); errors.Is(err, os.ErrNotExist) {
		var sums []verify.Sum
		if ref.SHA1 != "" {
			sums = append(sums, verify.Sum{Algorithm: verify.SHA1, Expected: ref.SHA1})
		}
		if err := dl.FetchWithRetry(ctx, ref.URL, p, sums...); err != nil {
			return nil, fmt.Errorf("asset index %s: %w", ref.ID, err)
		}
	} else if err != nil {
		return nil, err
	}

	f, err := r.files.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	var idx AssetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	return &idx, nil
}
