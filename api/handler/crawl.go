package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/crawler"
	"github.com/webpeel/webpeel/jobs"
	"github.com/webpeel/webpeel/models"
)

// PostCrawl returns a handler for POST /v1/crawl. The crawl runs in the
// background; the response carries the job id to poll.
func PostCrawl(cr *crawler.Crawler, q *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		req.Defaults()

		job := q.Create(models.JobTypeCrawl, req.MaxPages, req.Webhook)

		// The job outlives the HTTP request, so it gets its own context.
		go func() {
			middleware.JobStarted()
			defer middleware.JobFinished()
			cr.Run(context.Background(), job.ID, &req)
		}()

		c.JSON(http.StatusAccepted, models.JobAcceptedResponse{
			ID:     job.ID,
			Type:   job.Type,
			Status: job.Status,
			Total:  job.Total,
		})
	}
}

// GetCrawl returns a handler for GET /v1/crawl/:jobId.
func GetCrawl(q *jobs.Queue) gin.HandlerFunc {
	return jobStatus(q, models.JobTypeCrawl, "crawl job not found")
}

// CancelCrawl returns a handler for DELETE /v1/crawl/:jobId. Cancelling a
// finished job is a conflict, not an error that changes anything.
func CancelCrawl(q *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("jobId")
		job := q.Get(id)
		if job == nil || job.Type != models.JobTypeCrawl {
			respondNotFound(c, "crawl job not found")
			return
		}
		if !q.Cancel(id) {
			c.JSON(http.StatusConflict, models.ErrorEnvelope{
				Error:   models.KindInvalidRequest,
				Message: "job already reached a terminal state",
			})
			return
		}
		c.JSON(http.StatusOK, models.JobAcceptedResponse{
			ID:     id,
			Type:   job.Type,
			Status: models.JobCancelled,
		})
	}
}

// jobStatus builds a GET handler for one job type.
func jobStatus(q *jobs.Queue, jobType, missingMsg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		job := q.Get(c.Param("jobId"))
		if job == nil || job.Type != jobType {
			respondNotFound(c, missingMsg)
			return
		}
		c.JSON(http.StatusOK, models.JobStatusResponse{
			ID:          job.ID,
			Type:        job.Type,
			Status:      job.Status,
			Progress:    job.Progress,
			Completed:   job.Completed,
			Total:       job.Total,
			CreditsUsed: job.CreditsUsed,
			Data:        job.Data,
			Error:       job.Error,
		})
	}
}
