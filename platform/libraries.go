package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tie/launcher/metrics"
	"github.com/tie/launcher/progress"
	"github.com/tie/launcher/verify"
)

// MavenPath converts group:artifact:version[:classifier][@ext] coordinates
// into a repository relative path.
func MavenPath(coords string) (string, error) {
	ext := "jar"
	if i := strings.LastIndexByte(coords, '@'); i >= 0 {
		coords, ext = coords[:i], coords[i+1:]
	}
	parts := strings.Split(coords, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return "", fmt.Errorf("invalid maven coordinates %q", coords)
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("invalid maven coordinates %q", coords)
		}
	}
	group, artifact, version := parts[0], parts[1], parts[2]
	file := artifact + "-" + version
	if len(parts) == 4 {
		file += "-" + parts[3]
	}
	return path.Join(strings.ReplaceAll(group, ".", "/"), artifact, version, file+"."+ext), nil
}

// libraryKey identifies a library independent of its version.
func libraryKey(name string) string {
	name, _, _ = strings.Cut(name, "@")
	parts := strings.Split(name, ":")
	if len(parts) < 3 {
		return name
	}
	key := parts[0] + ":" + parts[1]
	if len(parts) > 3 {
		key += ":" + parts[3]
	}
	return key
}

// MergeLibraries overlays loader libraries on vanilla ones. A loader library
// replaces the vanilla library with the same group, artifact and classifier
// in place; the remaining loader libraries are appended in order.
func MergeLibraries(vanilla, loader []Library) []Library {
	merged := make([]Library, 0, len(vanilla)+len(loader))
	index := make(map[string]int, len(vanilla))
	for _, l := range vanilla {
		k := libraryKey(l.Name)
		if i, ok := index[k]; ok {
			merged[i] = l
			continue
		}
		index[k] = len(merged)
		merged = append(merged, l)
	}
	for _, l := range loader {
		k := libraryKey(l.Name)
		if i, ok := index[k]; ok {
			merged[i] = l
			continue
		}
		index[k] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

type download struct {
	path string
	url  string
	sha1 string
}

// libraryDownload returns where lib lives and where to fetch it from. Libraries
// without a known URL are produced by installers and yield ok false.
func (r *Resolver) libraryDownload(lib Library) (d download, ok bool, err error) {
	if a := libArtifact(lib); a != nil && a.URL != "" {
		p := a.Path
		if p == "" {
			if p, err = MavenPath(lib.Name); err != nil {
				return d, false, err
			}
		}
		return download{path: p, url: a.URL, sha1: a.SHA1}, true, nil
	}
	p, err := MavenPath(lib.Name)
	if err != nil {
		return d, false, err
	}
	base := lib.URL
	if base == "" {
		if libArtifact(lib) != nil {
			return d, false, nil
		}
		base = r.urls.Libraries
	}
	return download{
		path: p,
		url:  strings.TrimRight(base, "/") + "/" + p,
		sha1: lib.SHA1,
	}, true, nil
}

func libArtifact(lib Library) *Artifact {
	if lib.Downloads == nil {
		return nil
	}
	return lib.Downloads.Artifact
}

// EnsureLibraries fetches the merged library set of vanilla and loader that
// applies to the current OS into libraries/. loader may be nil.
func (r *Resolver) EnsureLibraries(ctx context.Context, vanilla, loader *VersionDescriptor) error {
	var counter atomic.Int64
	return r.ensureLibraries(ctx, vanilla, loader, &counter, 0)
}

// EnsureLibrariesCounted is EnsureLibraries reporting against a counter and
// total shared with other passes.
func (r *Resolver) EnsureLibrariesCounted(ctx context.Context, vanilla, loader *VersionDescriptor, counter *atomic.Int64, total int64) error {
	return r.ensureLibraries(ctx, vanilla, loader, counter, total)
}

// CountMissingLibraries returns how many libraries EnsureLibraries would
// fetch.
func (r *Resolver) CountMissingLibraries(vanilla, loader *VersionDescriptor) (int64, error) {
	missing, _, err := r.missingLibraries(vanilla, loader)
	return int64(len(missing)), err
}

// missingLibraries returns the downloads of absent libraries and the number
// of distinct libraries that apply.
func (r *Resolver) missingLibraries(vanilla, loader *VersionDescriptor) ([]download, int, error) {
	var extra []Library
	if loader != nil {
		extra = loader.Libraries
	}
	libs := MergeLibraries(vanilla.Libraries, extra)

	seen := make(map[string]bool)
	var missing []download
	for _, lib := range libs {
		if !Allowed(lib.Rules, r.os) {
			continue
		}
		d, ok, err := r.libraryDownload(lib)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			r.logger.Debug("library has no download", "name", lib.Name)
			continue
		}
		d.path = path.Join("libraries", d.path)
		if seen[d.path] {
			continue
		}
		seen[d.path] = true
		_, err = r.files.Stat(d.path)
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("stat %q: %w", d.path, err)
		}
		missing = append(missing, d)
	}
	return missing, len(seen), nil
}

func (r *Resolver) ensureLibraries(ctx context.Context, vanilla, loader *VersionDescriptor, counter *atomic.Int64, total int64) error {
	start := time.Now()
	missing, applicable, err := r.missingLibraries(vanilla, loader)
	if err != nil {
		return err
	}
	if total <= 0 {
		total = int64(len(missing))
	}

	r.logger.Info("libraries",
		"version", vanilla.ID,
		"total", applicable,
		"missing", len(missing))
	r.progress.Report(progress.NewEvent(metrics.PhaseLibraries, counter.Load(), total, "", progress.StatusStarted))

	dl := r.phase(metrics.PhaseLibraries, 0)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.libraries.Size(len(missing)))
	for _, d := range missing {
		d := d
		g.Go(func() error {
			var sums []verify.Sum
			if d.sha1 != "" {
				sums = append(sums, verify.Sum{Algorithm: verify.SHA1, Expected: d.sha1})
			}
			if err := dl.FetchWithRetry(gctx, d.url, d.path, sums...); err != nil {
				return fmt.Errorf("library %s: %w", d.path, err)
			}
			n := counter.Add(1)
			r.progress.Report(progress.NewEvent(metrics.PhaseLibraries, n, total, path.Base(d.path), progress.StatusDownloading))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.progress.Report(progress.NewEvent(metrics.PhaseLibraries, counter.Load(), total, "", progress.StatusCompleted))
	r.metrics.ObservePass(metrics.PhaseLibraries, time.Since(start))
	return nil
}
