// Package jobs tracks asynchronous work: crawl, batch, and extract jobs,
// their progress, and their expiry.
package jobs

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webpeel/webpeel/models"
)

// Expiry windows. A job lives at most createdExpiry from creation; reaching
// a terminal state shortens that to terminalExpiry from the transition.
const (
	createdExpiry  = 25 * time.Hour
	terminalExpiry = 24 * time.Hour
)

// sweepInterval is how often the background sweeper prunes expired jobs.
const sweepInterval = time.Hour

// Queue is an in-memory job registry safe for concurrent use. Jobs returned
// by Get and List are copies; mutations go through Update.
type Queue struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	log  *slog.Logger
	stop chan struct{}
	once sync.Once
}

// NewQueue creates a Queue and starts its hourly expiry sweeper.
func NewQueue(log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{
		jobs: make(map[string]*models.Job),
		log:  log,
		stop: make(chan struct{}),
	}
	go q.sweep()
	return q
}

// Create registers a new queued job and returns its copy.
func (q *Queue) Create(jobType string, total int, webhook *models.WebhookConfig) *models.Job {
	now := time.Now()
	job := &models.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    models.JobQueued,
		Total:     total,
		Webhook:   webhook,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(createdExpiry),
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	q.log.Info("job created", "jobId", job.ID, "type", jobType, "total", total)
	return copyJob(job)
}

// Get returns a copy of the job, or nil when unknown or expired.
func (q *Queue) Get(id string) *models.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.jobs[id]
	if !ok || time.Now().After(job.ExpiresAt) {
		return nil
	}
	return copyJob(job)
}

// Update applies a patch to the job. Terminal jobs absorb all further
// updates. Returns the updated copy, or nil when the job is unknown.
func (q *Queue) Update(id string, patch models.JobPatch) *models.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil
	}
	if job.Terminal() {
		return copyJob(job)
	}

	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.Total != nil {
		job.Total = *patch.Total
	}
	if patch.Completed != nil {
		job.Completed = *patch.Completed
	}
	if patch.CreditsUsed != nil {
		job.CreditsUsed = *patch.CreditsUsed
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	if patch.Data != nil {
		job.Data = patch.Data
	}
	if len(patch.AppendData) > 0 {
		job.Data = append(job.Data, patch.AppendData...)
	}

	job.Progress = progress(job.Completed, job.Total)
	job.UpdatedAt = time.Now()
	if job.Terminal() {
		job.ExpiresAt = job.UpdatedAt.Add(terminalExpiry)
		if job.Status == models.JobCompleted {
			job.Progress = 100
		}
	}
	return copyJob(job)
}

// Cancel moves a non-terminal job to cancelled. Returns false when the job
// is unknown or already terminal.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Terminal() {
		return false
	}
	job.Status = models.JobCancelled
	job.UpdatedAt = time.Now()
	job.ExpiresAt = job.UpdatedAt.Add(terminalExpiry)
	q.log.Info("job cancelled", "jobId", id)
	return true
}

// ListFilter narrows a List call. Zero values match everything.
type ListFilter struct {
	// Type keeps only jobs of one type: crawl, batch, or extract.
	Type string

	// Status keeps only jobs in one state: queued, processing, completed,
	// failed, or cancelled.
	Status string

	// Limit caps the number of returned jobs; <= 0 means no cap.
	Limit int
}

// List returns copies of the live jobs matching the filter, newest first.
func (q *Queue) List(f ListFilter) []*models.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	now := time.Now()
	out := make([]*models.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if now.After(job.ExpiresAt) {
			continue
		}
		if f.Type != "" && job.Type != f.Type {
			continue
		}
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		out = append(out, copyJob(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Len returns the number of tracked jobs, expired included until the next
// sweep.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.jobs)
}

// CleanExpired removes expired jobs and reports how many were dropped.
func (q *Queue) CleanExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, job := range q.jobs {
		if now.After(job.ExpiresAt) {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed
}

// Destroy stops the sweeper and drops all jobs.
func (q *Queue) Destroy() {
	q.once.Do(func() { close(q.stop) })
	q.mu.Lock()
	q.jobs = make(map[string]*models.Job)
	q.mu.Unlock()
}

func (q *Queue) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := q.CleanExpired(); n > 0 {
				q.log.Info("expired jobs removed", "count", n)
			}
		case <-q.stop:
			return
		}
	}
}

// progress maps completed/total onto 0..100.
func progress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(completed) / float64(total)))
	if p > 100 {
		p = 100
	}
	return p
}

// copyJob returns a shallow copy with its own Data slice so callers cannot
// mutate queue state.
func copyJob(j *models.Job) *models.Job {
	cp := *j
	if j.Data != nil {
		cp.Data = make([]*models.PeelResponse, len(j.Data))
		copy(cp.Data, j.Data)
	}
	return &cp
}
