package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/crawler"
	"github.com/webpeel/webpeel/jobs"
	"github.com/webpeel/webpeel/models"
)

// PostBatch returns a handler for POST /v1/batch. All URLs are fetched
// concurrently in the background; results keep request order.
func PostBatch(cr *crawler.Crawler, q *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		req.Options.Defaults()

		job := q.Create(models.JobTypeBatch, len(req.URLs), req.Webhook)

		go func() {
			middleware.JobStarted()
			defer middleware.JobFinished()
			cr.RunBatch(context.Background(), job.ID, &req)
		}()

		c.JSON(http.StatusAccepted, models.JobAcceptedResponse{
			ID:     job.ID,
			Type:   job.Type,
			Status: job.Status,
			Total:  job.Total,
		})
	}
}

// GetBatch returns a handler for GET /v1/batch/:jobId.
func GetBatch(q *jobs.Queue) gin.HandlerFunc {
	return jobStatus(q, models.JobTypeBatch, "batch job not found")
}

// listJobsMax caps the jobs overview page.
const listJobsMax = 100

// ListJobs returns a handler for GET /v1/jobs, newest first. Optional query
// parameters narrow the listing: type, status, and limit.
func ListJobs(q *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := jobs.ListFilter{
			Type:   c.Query("type"),
			Status: c.Query("status"),
			Limit:  listJobsMax,
		}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > listJobsMax {
				respondError(c, models.NewPeelError(models.KindInvalidRequest,
					fmt.Sprintf("limit must be an integer between 1 and %d", listJobsMax), nil))
				return
			}
			filter.Limit = n
		}

		all := q.List(filter)
		out := make([]models.JobStatusResponse, 0, len(all))
		for _, job := range all {
			out = append(out, models.JobStatusResponse{
				ID:        job.ID,
				Type:      job.Type,
				Status:    job.Status,
				Progress:  job.Progress,
				Completed: job.Completed,
				Total:     job.Total,
			})
		}
		c.JSON(http.StatusOK, gin.H{"jobs": out, "total": len(out)})
	}
}
