// Package crawler runs the asynchronous multi-page operations: BFS crawls
// with checkpointed resume, URL batches, and site mapping.
package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/webpeel/webpeel/checkpoint"
	"github.com/webpeel/webpeel/engine"
	"github.com/webpeel/webpeel/jobs"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/urlkey"
	"github.com/webpeel/webpeel/webhook"
)

// checkpointEvery is how many completed pages pass between checkpoint
// saves, in addition to the save at each BFS level boundary.
const checkpointEvery = 10

// Crawler executes crawl and batch jobs against the escalation engine.
type Crawler struct {
	engine      *engine.Engine
	jobs        *jobs.Queue
	checkpoints *checkpoint.Store
	log         *slog.Logger
	concurrency int
	domainRPS   rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Crawler. concurrency <= 0 selects 5; domainRPS <= 0
// selects 2 requests per second per domain.
func New(eng *engine.Engine, q *jobs.Queue, cps *checkpoint.Store, log *slog.Logger, concurrency int, domainRPS float64) *Crawler {
	if log == nil {
		log = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	if domainRPS <= 0 {
		domainRPS = 2
	}
	return &Crawler{
		engine:      eng,
		jobs:        q,
		checkpoints: cps,
		log:         log,
		concurrency: concurrency,
		domainRPS:   rate.Limit(domainRPS),
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Run executes one crawl job to completion. It is meant to run in its own
// goroutine; progress lands in the job queue and, when configured, at the
// webhook.
func (c *Crawler) Run(ctx context.Context, jobID string, req *models.CrawlRequest) {
	req.Defaults()

	base, err := url.Parse(req.URL)
	if err != nil || base.Host == "" {
		c.fail(jobID, req.Webhook, "invalid start URL")
		return
	}

	cp, visited, queue := c.prepare(jobID, req)

	c.jobs.Update(jobID, models.JobPatch{Status: ptr(models.JobProcessing)})
	c.notify(jobID, req.Webhook, models.EventStarted, nil)

	var (
		mu        sync.Mutex
		completed = len(cp.Completed)
		sinceSave = 0
	)

	sem := make(chan struct{}, c.concurrency)

	for len(queue) > 0 && completed < req.MaxPages {
		if c.stopped(ctx, jobID) {
			c.saveCheckpoint(cp, queue)
			return
		}

		level := queue
		queue = nil

		var wg sync.WaitGroup
		var next []checkpoint.QueueItem

		for _, item := range level {
			mu.Lock()
			if completed >= req.MaxPages {
				mu.Unlock()
				break
			}
			completed++
			mu.Unlock()

			wg.Add(1)
			go func(it checkpoint.QueueItem) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				resp := c.fetchPage(ctx, it.URL, req)

				mu.Lock()
				cp.Completed[urlkey.Normalize(it.URL)] = checkpoint.PageStat{
					StatusCode:    resp.StatusCode,
					Method:        resp.Method,
					ContentLength: len(resp.Content),
					FetchedAt:     time.Now().UTC(),
				}
				done := len(cp.Completed)
				sinceSave++
				needSave := sinceSave >= checkpointEvery
				if needSave {
					sinceSave = 0
				}
				mu.Unlock()

				c.jobs.Update(jobID, models.JobPatch{
					Completed:  &done,
					AppendData: []*models.PeelResponse{resp},
				})
				if req.Webhook.Subscribed(models.EventPage) {
					c.notify(jobID, req.Webhook, models.EventPage, resp)
				}
				if needSave {
					mu.Lock()
					c.saveCheckpoint(cp, nil)
					mu.Unlock()
				}

				if it.Depth >= req.MaxDepth || !resp.Success {
					return
				}
				for _, link := range resp.Links {
					if Excluded(link, req.ExcludePatterns) || !InScope(link, base, req.Scope) {
						continue
					}
					key := urlkey.Normalize(link)
					mu.Lock()
					if _, dup := visited[key]; dup {
						mu.Unlock()
						continue
					}
					visited[key] = struct{}{}
					cp.Discovered = append(cp.Discovered, link)
					next = append(next, checkpoint.QueueItem{URL: link, Depth: it.Depth + 1})
					mu.Unlock()
				}
			}(item)
		}

		wg.Wait()
		queue = append(queue, next...)
		c.saveCheckpoint(cp, queue)
	}

	job := c.jobs.Update(jobID, models.JobPatch{
		Status: ptr(models.JobCompleted),
		Total:  &completed,
	})
	if c.checkpoints != nil {
		// A finished crawl has nothing to resume.
		if err := c.checkpoints.Delete(cp.JobID); err != nil {
			c.log.Warn("checkpoint cleanup failed", "jobId", jobID, "error", err)
		}
	}
	c.notify(jobID, req.Webhook, models.EventCompleted, job)
	c.log.Info("crawl finished", "jobId", jobID, "pages", completed)
}

// prepare builds the starting frontier, resuming from a checkpoint when
// requested and one exists.
func (c *Crawler) prepare(jobID string, req *models.CrawlRequest) (*checkpoint.Checkpoint, map[string]struct{}, []checkpoint.QueueItem) {
	cpID := checkpoint.GenerateJobID(req.URL, req)

	if req.Resume && c.checkpoints != nil {
		if cp, err := c.checkpoints.Load(cpID); err == nil && cp != nil {
			visited := make(map[string]struct{}, len(cp.Completed)+len(cp.Pending))
			for k := range cp.Completed {
				visited[k] = struct{}{}
			}
			for _, it := range cp.Pending {
				visited[urlkey.Normalize(it.URL)] = struct{}{}
			}
			c.log.Info("resuming crawl from checkpoint",
				"jobId", jobID, "checkpoint", cpID,
				"completed", len(cp.Completed), "pending", len(cp.Pending))
			return cp, visited, cp.Pending
		}
	}

	cp := &checkpoint.Checkpoint{
		JobID:     cpID,
		StartURL:  req.URL,
		Completed: make(map[string]checkpoint.PageStat),
		Options:   req,
		MaxPages:  req.MaxPages,
		StartedAt: time.Now().UTC(),
	}
	visited := map[string]struct{}{urlkey.Normalize(req.URL): {}}
	queue := []checkpoint.QueueItem{{URL: req.URL, Depth: 0}}
	return cp, visited, queue
}

// fetchPage fetches one page with per-domain politeness applied.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string, req *models.CrawlRequest) *models.PeelResponse {
	if u, err := url.Parse(pageURL); err == nil {
		if err := c.limiter(u.Hostname()).Wait(ctx); err != nil {
			return engine.ErrorResponse(pageURL, err)
		}
	}

	opts := engine.OptionsFrom(&req.Options)
	res, cacheStatus, err := c.engine.Peel(ctx, pageURL, opts)
	if err != nil {
		return engine.ErrorResponse(pageURL, err)
	}
	return engine.BuildResponse(pageURL, res, cacheStatus, true)
}

// limiter returns the politeness limiter for one domain.
func (c *Crawler) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.domainRPS, 1)
		c.limiters[host] = l
	}
	return l
}

// stopped reports whether the crawl should halt: context cancelled or the
// job moved to a terminal state (e.g. cancelled through the API).
func (c *Crawler) stopped(ctx context.Context, jobID string) bool {
	if ctx.Err() != nil {
		return true
	}
	job := c.jobs.Get(jobID)
	return job == nil || job.Terminal()
}

// saveCheckpoint persists the crawl state. The three URL sets stay pairwise
// disjoint: a URL lives in the furthest stage it has reached, so completed
// URLs leave Pending and queued or completed URLs leave Discovered.
func (c *Crawler) saveCheckpoint(cp *checkpoint.Checkpoint, pending []checkpoint.QueueItem) {
	if c.checkpoints == nil {
		return
	}
	if pending != nil {
		cp.Pending = pending
	}

	queued := make(map[string]struct{}, len(cp.Pending))
	keptPending := make([]checkpoint.QueueItem, 0, len(cp.Pending))
	for _, it := range cp.Pending {
		key := urlkey.Normalize(it.URL)
		if _, done := cp.Completed[key]; done {
			continue
		}
		keptPending = append(keptPending, it)
		queued[key] = struct{}{}
	}
	cp.Pending = keptPending

	keptDiscovered := make([]string, 0, len(cp.Discovered))
	for _, u := range cp.Discovered {
		key := urlkey.Normalize(u)
		if _, done := cp.Completed[key]; done {
			continue
		}
		if _, inQueue := queued[key]; inQueue {
			continue
		}
		keptDiscovered = append(keptDiscovered, u)
	}
	cp.Discovered = keptDiscovered

	if err := c.checkpoints.Save(cp); err != nil {
		c.log.Warn("checkpoint save failed", "checkpoint", cp.JobID, "error", err)
	}
}

func (c *Crawler) fail(jobID string, wh *models.WebhookConfig, msg string) {
	job := c.jobs.Update(jobID, models.JobPatch{
		Status: ptr(models.JobFailed),
		Error:  &msg,
	})
	c.notify(jobID, wh, models.EventFailed, job)
}

func (c *Crawler) notify(jobID string, wh *models.WebhookConfig, event string, data interface{}) {
	if !wh.Subscribed(event) {
		return
	}
	webhook.DeliverAsync(wh.URL, wh.Secret, &webhook.Event{
		JobID:     jobID,
		Event:     event,
		Timestamp: time.Now().Unix(),
		Metadata:  wh.Metadata,
		Data:      data,
	})
}

func ptr[T any](v T) *T { return &v }
