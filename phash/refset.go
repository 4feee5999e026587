package phash

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Ref is one labeled reference hash, usually derived from a known phishing
// avatar image.
type Ref struct {
	Label string
	Hash  uint64
}

// RefSet is an ordered collection of reference hashes. Append-only while
// loading, read-only afterward; safe for concurrent lookups without locking.
// Always constructed and injected explicitly, never process-global, so tests
// can run against synthetic sets.
type RefSet struct {
	refs []Ref
}

func NewRefSet() *RefSet {
	return &RefSet{}
}

func (rs *RefSet) Add(label string, hash uint64) {
	rs.refs = append(rs.refs, Ref{Label: label, Hash: hash})
}

func (rs *RefSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.refs)
}

// MinDistance returns the minimum Hamming distance between h and every
// reference, with the label of the best match. Short-circuits on an exact
// match. An empty set returns Size+1, which no sane threshold reaches.
func (rs *RefSet) MinDistance(h uint64) (int, string) {
	best := Size + 1
	bestLabel := ""
	for _, r := range rs.refs {
		d := Distance(h, r.Hash)
		if d < best {
			best = d
			bestLabel = r.Label
			if best == 0 {
				break
			}
		}
	}
	return best, bestLabel
}

// LoadDir reads every supported image file in dir into a reference set. Files
// that fail to read or decode are skipped with a warning; a missing directory
// yields an empty set. The file name becomes the reference label.
func LoadDir(dir string, logger *slog.Logger) (*RefSet, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rs := NewRefSet()

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("reference image directory unavailable", "dir", dir, "err", err)
		return rs, nil
	}

	for _, entry := range entries {
		if entry.IsDir() || !supportedRefExt(entry.Name()) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Warn("failed to read reference image", "path", p, "err", err)
			continue
		}
		h, err := HashBytes(data)
		if err != nil {
			logger.Warn("failed to hash reference image", "path", p, "err", err)
			continue
		}
		rs.Add(entry.Name(), h)
	}
	logger.Info("loaded avatar reference hashes", "dir", dir, "count", rs.Len())
	return rs, nil
}

func supportedRefExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return true
	}
	return false
}
