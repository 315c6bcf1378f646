package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-git/go-billy/v5"

	"github.com/tie/launcher/fetcher"
	"github.com/tie/launcher/platform"
)

const FabricMetaURL = "https://meta.fabricmc.net"

const maxProfileSize = 4 << 20

// Fabric installs the launcher profile served by the Fabric meta service.
type Fabric struct {
	Fetcher *fetcher.Fetcher
	MetaURL string
	Logger  *slog.Logger
}

// VersionID returns the id Fabric profiles are published under.
func (f *Fabric) VersionID(mcVersion, loaderVersion string) string {
	return fmt.Sprintf("fabric-loader-%s-%s", loaderVersion, mcVersion)
}

func (f *Fabric) Install(ctx context.Context, fs billy.Filesystem, mcVersion, loaderVersion string) (string, error) {
	id := f.VersionID(mcVersion, loaderVersion)
	ok, err := installed(fs, id)
	if err != nil || ok {
		return id, err
	}

	base := f.MetaURL
	if base == "" {
		base = FabricMetaURL
	}
	u := fmt.Sprintf("%s/v2/versions/loader/%s/%s/profile/json",
		base, url.PathEscape(mcVersion), url.PathEscape(loaderVersion))
	data, err := f.Fetcher.GetWithRetry(ctx, u, maxProfileSize)
	if err != nil {
		return "", fmt.Errorf("fabric profile: %w", err)
	}

	var v platform.VersionDescriptor
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("parse fabric profile: %w", err)
	}
	if v.ID != "" {
		id = v.ID
	}
	if err := writeFile(fs, platform.VersionPath(id), data, f.logger()); err != nil {
		return "", fmt.Errorf("write fabric profile: %w", err)
	}
	f.logger().Info("installed mod loader",
		"type", TypeFabric,
		"version", id)
	return id, nil
}

func (f *Fabric) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
