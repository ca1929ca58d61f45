// Package checkpoint persists crawl progress so interrupted crawls can
// resume. Checkpoints are JSON files keyed by a deterministic job id, so
// rerunning the same crawl finds its own prior state.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/urlkey"
)

// PageStat records the outcome of one crawled page.
type PageStat struct {
	StatusCode    int       `json:"statusCode"`
	Method        string    `json:"method"`
	ContentLength int       `json:"contentLength"`
	FetchedAt     time.Time `json:"fetchedAt"`
}

// QueueItem is one URL waiting in the crawl frontier.
type QueueItem struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// Checkpoint is the resumable state of one crawl.
type Checkpoint struct {
	JobID          string               `json:"jobId"`
	StartURL       string               `json:"startUrl"`
	Completed      map[string]PageStat  `json:"completed"`
	Pending        []QueueItem          `json:"pending"`
	Discovered     []string             `json:"discovered"` // found, not yet queued or fetched; insertion order
	Options        *models.CrawlRequest `json:"options,omitempty"`
	MaxPages       int                  `json:"maxPages"`
	StartedAt      time.Time            `json:"startedAt"`
	LastCheckpoint time.Time            `json:"lastCheckpoint"`
}

// GenerateJobID derives a deterministic 16-hex-char id from the start URL
// and the crawl options. The URL is normalized first so trivially different
// spellings of the same crawl share a checkpoint.
func GenerateJobID(startURL string, req *models.CrawlRequest) string {
	h := sha256.New()
	h.Write([]byte(urlkey.Normalize(startURL)))
	h.Write([]byte{0})
	h.Write(canonicalOptions(req))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// canonicalOptions renders the crawl parameters that change what a crawl
// visits into a stable byte form.
func canonicalOptions(req *models.CrawlRequest) []byte {
	if req == nil {
		return nil
	}
	excludes := append([]string(nil), req.ExcludePatterns...)
	sort.Strings(excludes)
	buf, _ := json.Marshal(map[string]interface{}{
		"maxDepth": req.MaxDepth,
		"maxPages": req.MaxPages,
		"scope":    req.Scope,
		"excludes": excludes,
	})
	return buf
}

// Store reads and writes checkpoint files in one directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it as needed. An empty
// dir selects ~/.webpeel/checkpoints.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("checkpoint: resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".webpeel", "checkpoints")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the checkpoint atomically (temp file then rename).
func (s *Store) Save(c *Checkpoint) error {
	c.LastCheckpoint = time.Now()

	buf, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	final := s.path(c.JobID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// Load reads a checkpoint by job id. A missing checkpoint returns
// (nil, nil).
func (s *Store) Load(jobID string) (*Checkpoint, error) {
	buf, err := os.ReadFile(s.path(jobID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal(buf, &c); err != nil {
		return nil, fmt.Errorf("checkpoint: parse %s: %w", jobID, err)
	}
	if c.Completed == nil {
		c.Completed = make(map[string]PageStat)
	}
	return &c, nil
}

// Delete removes a checkpoint. Deleting a missing checkpoint is not an
// error.
func (s *Store) Delete(jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// List returns the job ids of all stored checkpoints.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}
