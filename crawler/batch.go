package crawler

import (
	"context"
	"sync"

	"github.com/webpeel/webpeel/models"
)

// RunBatch fetches every URL of a batch job with bounded fan-out. Results
// keep the order of the request; per-URL failures become failed entries
// instead of failing the job.
func (c *Crawler) RunBatch(ctx context.Context, jobID string, req *models.BatchRequest) {
	req.Options.Defaults()

	c.jobs.Update(jobID, models.JobPatch{Status: ptr(models.JobProcessing)})
	c.notify(jobID, req.Webhook, models.EventStarted, nil)

	results := make([]*models.PeelResponse, len(req.URLs))
	sem := make(chan struct{}, c.concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i, pageURL := range req.URLs {
		if c.stopped(ctx, jobID) {
			break
		}
		wg.Add(1)
		go func(i int, pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			batchReq := models.CrawlRequest{Options: req.Options}
			resp := c.fetchPage(ctx, pageURL, &batchReq)
			results[i] = resp

			mu.Lock()
			done++
			n := done
			mu.Unlock()

			c.jobs.Update(jobID, models.JobPatch{Completed: &n})
			if req.Webhook.Subscribed(models.EventPage) {
				c.notify(jobID, req.Webhook, models.EventPage, resp)
			}
		}(i, pageURL)
	}
	wg.Wait()

	// Entries skipped by cancellation surface as failed.
	for i, r := range results {
		if r == nil {
			results[i] = &models.PeelResponse{
				Success: false,
				URL:     req.URLs[i],
				Error:   &models.ErrorEnvelope{Error: models.KindTimeout, Message: "job stopped before this URL was fetched"},
			}
		}
	}

	job := c.jobs.Update(jobID, models.JobPatch{
		Status: ptr(models.JobCompleted),
		Data:   results,
	})
	c.notify(jobID, req.Webhook, models.EventCompleted, job)
	c.log.Info("batch finished", "jobId", jobID, "urls", len(req.URLs))
}
