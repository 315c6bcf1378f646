// Package layout maps manifest file entries to their location inside an
// instance directory and to a fully qualified download URL.
package layout

import (
	"fmt"
	"path"
	"strings"

	"github.com/tie/launcher/models"
)

// rootFiles are per-instance singletons that vanilla Minecraft expects at
// the instance root, whatever config folder the manifest put them in.
var rootFiles = []string{
	"options.txt",
	"servers.dat",
}

// indirectSchemes are URL schemes resolved by the fetcher at download time.
var indirectSchemes = []string{
	"optifine:",
}

// Resolve returns the fetch-ready projection of e. It has no side effects
// and always yields the same asset for the same input.
func Resolve(c models.Category, e models.FileEntry, instanceID, baseURL string) (models.InstanceAsset, error) {
	var local string
	var err error
	if e.Target != "" {
		local, err = Clean(e.Target)
	} else {
		local, err = LocalPath(c, e)
	}
	if err != nil {
		return models.InstanceAsset{}, fmt.Errorf("resolve %q: %w", e.Name, err)
	}
	return models.InstanceAsset{
		Category: c,
		Name:     e.Name,
		Path:     local,
		URL:      URL(e.URL, instanceID, baseURL),
		SHA256:   e.SHA256,
		MD5:      e.MD5,
		Size:     e.Size,
		Required: e.IsRequired(),
	}, nil
}

// URL qualifies a manifest URL against the distribution base URL.
func URL(rawurl, instanceID, baseURL string) string {
	if IsAbsolute(rawurl) {
		return rawurl
	}
	rel := trimVirtual(rawurl)
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf("%s/instances/%s/%s", base, instanceID, rel)
}

// IsAbsolute reports whether rawurl needs no joining against a base URL.
func IsAbsolute(rawurl string) bool {
	if strings.HasPrefix(rawurl, "http://") || strings.HasPrefix(rawurl, "https://") {
		return true
	}
	for _, s := range indirectSchemes {
		if strings.HasPrefix(rawurl, s) {
			return true
		}
	}
	return false
}

// LocalPath derives the on-disk path of e relative to the instance
// directory, ignoring any target override.
func LocalPath(c models.Category, e models.FileEntry) (string, error) {
	p := e.Path
	if p == "" {
		p = path.Join(c.Dir(), e.Name)
	}
	p = trimVirtual(p)
	if strings.HasPrefix(p, "config/") {
		base := path.Base(p)
		for _, name := range rootFiles {
			if strings.EqualFold(base, name) {
				return Clean(base)
			}
		}
	}
	return Clean(collapseConfig(p))
}

// IsRootFile reports whether the resolved path p was placed at the root.
func IsRootFile(p string) bool {
	return !strings.Contains(p, "/")
}

// HistoryName is the name recorded for a in the manifest history.
// Configs keep their relative path, everything else its path inside the
// category directory. ok is false when a was placed outside that directory.
func HistoryName(a models.InstanceAsset) (name string, ok bool) {
	if a.Category == models.CategoryConfigs {
		return collapseConfig(a.Path), true
	}
	return strings.CutPrefix(a.Path, a.Category.Dir()+"/")
}

func trimVirtual(p string) string {
	p = strings.TrimLeft(p, "/")
	return strings.TrimPrefix(p, "files/")
}

// collapseConfig undoes the doubled config folder some archives produce.
func collapseConfig(p string) string {
	for strings.HasPrefix(p, "config/config/") {
		p = strings.TrimPrefix(p, "config/")
	}
	return p
}

// Clean normalizes a slash separated instance-relative path and rejects
// paths that would leave the instance directory.
func Clean(p string) (string, error) {
	p = strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/")
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", models.ErrUnsafePath
	}
	return p, nil
}
