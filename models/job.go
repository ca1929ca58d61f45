package models

import "time"

// Job types.
const (
	JobTypeCrawl   = "crawl"
	JobTypeBatch   = "batch"
	JobTypeExtract = "extract"
)

// Job statuses. Completed, failed, and cancelled are terminal (absorbing).
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

// Webhook event names.
const (
	EventStarted   = "started"
	EventPage      = "page"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// WebhookConfig describes where and how job events are delivered.
type WebhookConfig struct {
	URL      string            `json:"url" binding:"required,url"`
	Events   []string          `json:"events,omitempty" binding:"omitempty,dive,oneof=started page completed failed"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Secret   string            `json:"secret,omitempty"`
}

// Subscribed reports whether the config wants the given event.
// An empty event list subscribes to everything.
func (w *WebhookConfig) Subscribed(event string) bool {
	if w == nil || w.URL == "" {
		return false
	}
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Job tracks one async operation through its lifecycle.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Total       int             `json:"total"`
	Completed   int             `json:"completed"`
	CreditsUsed int             `json:"credits_used"`
	Data        []*PeelResponse `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	Webhook     *WebhookConfig  `json:"webhook,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Terminal reports whether the job status is absorbing.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// JobPatch carries partial updates applied through the queue. Nil fields
// are left untouched.
type JobPatch struct {
	Status      *string
	Total       *int
	Completed   *int
	CreditsUsed *int
	Error       *string
	Data        []*PeelResponse
	AppendData  []*PeelResponse
}
