package instance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// HistoryFile is stored at the instance root.
const HistoryFile = ".manifest_history.json"

// History records which files the last successful sync left in place, so
// that a later pass can prune files dropped from the manifest.
type History struct {
	LastUpdated time.Time    `json:"last_updated"`
	Files       HistoryFiles `json:"files"`
}

type HistoryFiles struct {
	Mods          []string `json:"mods"`
	Configs       []string `json:"configs"`
	ResourcePacks []string `json:"resourcepacks"`
	ShaderPacks   []string `json:"shaderpacks"`
	RootFiles     []string `json:"root_files"`

	// Other holds instance-relative paths of files placed outside their
	// category directory.
	Other []string `json:"other,omitempty"`
}

// NewHistory returns an empty history with non-nil lists.
func NewHistory() *History {
	h := &History{}
	h.normalize()
	return h
}

func (h *History) normalize() {
	for _, l := range []*[]string{
		&h.Files.Mods,
		&h.Files.Configs,
		&h.Files.ResourcePacks,
		&h.Files.ShaderPacks,
		&h.Files.RootFiles,
		&h.Files.Other,
	} {
		if *l == nil {
			*l = []string{}
		}
		sort.Strings(*l)
	}
}

// Paths returns the instance-relative path of every recorded file.
func (h *History) Paths() []string {
	var paths []string
	add := func(dir string, names []string) {
		for _, name := range names {
			if dir != "" {
				name = dir + "/" + name
			}
			paths = append(paths, name)
		}
	}
	add("mods", h.Files.Mods)
	add("resourcepacks", h.Files.ResourcePacks)
	add("shaderpacks", h.Files.ShaderPacks)
	add("", h.Files.Configs)
	add("", h.Files.RootFiles)
	add("", h.Files.Other)
	return paths
}

type historyStore struct {
	mu     sync.Mutex
	files  billy.Filesystem
	logger *slog.Logger
}

func (s *historyStore) load() (*History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.files.Open(HistoryFile)
	if errors.Is(err, os.ErrNotExist) {
		return NewHistory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", HistoryFile, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", HistoryFile, err)
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse %s: %w", HistoryFile, err)
	}
	h.normalize()
	return &h, nil
}

// save replaces the history file through a temporary sibling.
func (s *historyStore) save(h *History) error {
	h.normalize()
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := HistoryFile + ".tmp"
	if err := util.WriteFile(s.files, tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.files.Rename(tmp, HistoryFile); err != nil {
		if rerr := s.files.Remove(tmp); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			s.logger.Warn("remove", "path", tmp, "error", rerr)
		}
		return fmt.Errorf("rename %s: %w", HistoryFile, err)
	}
	return nil
}
