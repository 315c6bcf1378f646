// Package platform reconciles the Mojang side of an installation: the client
// jar and version descriptor, shared libraries and content-addressed assets.
package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"

	"github.com/tie/launcher/models"
)

// VersionDescriptor is the version JSON written by the vanilla launcher and
// by mod-loader installers.
type VersionDescriptor struct {
	ID           string         `json:"id"`
	InheritsFrom string         `json:"inheritsFrom,omitempty"`
	Type         string         `json:"type,omitempty"`
	MainClass    string         `json:"mainClass,omitempty"`
	Downloads    Downloads      `json:"downloads,omitempty"`
	Libraries    []Library      `json:"libraries,omitempty"`
	AssetIndex   *AssetIndexRef `json:"assetIndex,omitempty"`
	Assets       string         `json:"assets,omitempty"`
}

type Downloads struct {
	Client *Artifact `json:"client,omitempty"`
}

type Artifact struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

type AssetIndexRef struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
}

// Library is a Maven artifact on the game classpath. Vanilla entries carry
// explicit downloads, loader entries often only a name and repository URL.
type Library struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	SHA1      string            `json:"sha1,omitempty"`
	Size      int64             `json:"size,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Rules     []Rule            `json:"rules,omitempty"`
}

type LibraryDownloads struct {
	Artifact *Artifact `json:"artifact,omitempty"`
}

type Rule struct {
	Action string  `json:"action"`
	OS     *OSRule `json:"os,omitempty"`
}

type OSRule struct {
	Name string `json:"name,omitempty"`
}

// VersionPath returns the descriptor location of version id.
func VersionPath(id string) string {
	return path.Join("versions", id, id+".json")
}

// ClientPath returns the client jar location of version id.
func ClientPath(id string) string {
	return path.Join("versions", id, id+".jar")
}

// ReadVersion decodes the locally installed descriptor of version id.
func ReadVersion(fs billy.Basic, id string) (*VersionDescriptor, error) {
	p := VersionPath(id)
	f, err := fs.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrVersionNotInstalled, id)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	var v VersionDescriptor
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	return &v, nil
}
