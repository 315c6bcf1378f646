package instance

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/tie/launcher/layout"
)

// Prune removes files recorded in prev that next no longer lists. Entries
// that would leave the instance directory are ignored. It returns the
// removed paths in sorted order.
func (e *Engine) Prune(prev, next *History) ([]string, error) {
	if prev == nil {
		return nil, nil
	}
	keep := make(map[string]bool)
	if next != nil {
		for _, p := range next.Paths() {
			if p, err := layout.Clean(p); err == nil {
				keep[p] = true
			}
		}
	}

	var removed []string
	for _, raw := range prev.Paths() {
		p, err := layout.Clean(raw)
		if err != nil {
			e.logger.Warn("ignoring unsafe history entry", "path", raw)
			continue
		}
		if keep[p] || p == HistoryFile {
			continue
		}
		err = e.files.Remove(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("prune %q: %w", p, err)
		}
		e.logger.Info("pruned file", "path", p)
		removed = append(removed, p)
	}
	sort.Strings(removed)
	return removed, nil
}
