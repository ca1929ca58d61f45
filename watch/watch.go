// Package watch tracks page change over time: each check fingerprints the
// page with simhash and compares against the stored snapshot from the
// previous check.
package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/simhash"
	"github.com/webpeel/webpeel/urlkey"
)

// DefaultThreshold is the Hamming distance above which a page counts as
// changed.
const DefaultThreshold = 3

// snapshot is the persisted state of one watched URL.
type snapshot struct {
	URL         string    `json:"url"`
	Fingerprint string    `json:"fingerprint"` // hex
	CheckedAt   time.Time `json:"checkedAt"`
}

// Store persists watch snapshots as JSON files, one per watched URL.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a Store rooted at dir, creating it as needed. An empty
// dir selects ~/.webpeel/snapshots.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("watch: resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".webpeel", "snapshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("watch: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Check compares the page's current fingerprint against the stored
// snapshot and records the new state. The first check of a URL reports
// FirstCheck with Changed=false. threshold <= 0 selects the default.
func (s *Store) Check(rawURL string, fp uint64, threshold int) (*models.WatchResponse, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	resp := &models.WatchResponse{
		URL:         rawURL,
		Fingerprint: simhash.Hex(fp),
		CheckedAt:   now.Format(time.RFC3339),
	}

	prev, err := s.load(rawURL)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		resp.FirstCheck = true
	} else {
		var prevFP uint64
		if _, err := fmt.Sscanf(prev.Fingerprint, "%016x", &prevFP); err != nil {
			return nil, fmt.Errorf("watch: corrupt snapshot for %s: %w", rawURL, err)
		}
		resp.Distance = simhash.Distance(prevFP, fp)
		resp.Changed = resp.Distance > threshold
	}

	if err := s.save(&snapshot{URL: rawURL, Fingerprint: resp.Fingerprint, CheckedAt: now}); err != nil {
		return nil, err
	}
	return resp, nil
}

// Last returns the stored state of a watched URL without re-checking, or
// nil when the URL has never been checked.
func (s *Store) Last(rawURL string) (*models.WatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.load(rawURL)
	if err != nil || prev == nil {
		return nil, err
	}
	return &models.WatchResponse{
		URL:         prev.URL,
		Fingerprint: prev.Fingerprint,
		CheckedAt:   prev.CheckedAt.UTC().Format(time.RFC3339),
	}, nil
}

// Forget drops the snapshot for a URL. Forgetting an unwatched URL is not
// an error.
func (s *Store) Forget(rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(rawURL))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("watch: forget: %w", err)
	}
	return nil
}

func (s *Store) load(rawURL string) (*snapshot, error) {
	buf, err := os.ReadFile(s.path(rawURL))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watch: read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(buf, &snap); err != nil {
		return nil, fmt.Errorf("watch: parse snapshot: %w", err)
	}
	return &snap, nil
}

// save writes atomically: temp file then rename.
func (s *Store) save(snap *snapshot) error {
	buf, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("watch: marshal snapshot: %w", err)
	}
	final := s.path(snap.URL)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("watch: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("watch: rename snapshot: %w", err)
	}
	return nil
}

// path keys snapshot files by the sha256 of the normalized URL.
func (s *Store) path(rawURL string) string {
	sum := sha256.Sum256([]byte(urlkey.Normalize(rawURL)))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".json")
}
