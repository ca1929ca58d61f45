package jobs

import (
	"log/slog"
	"testing"
	"time"

	"github.com/webpeel/webpeel/models"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q := NewQueue(slog.New(slog.DiscardHandler))
	t.Cleanup(q.Destroy)
	return q
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateAndGet(t *testing.T) {
	q := newTestQueue(t)

	job := q.Create(models.JobTypeCrawl, 10, nil)
	if job.ID == "" {
		t.Fatal("job ID must be set")
	}
	if job.Status != models.JobQueued {
		t.Errorf("Status = %q, want queued", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}

	got := q.Get(job.ID)
	if got == nil {
		t.Fatal("Get returned nil for a live job")
	}
	if got.ID != job.ID {
		t.Errorf("ID = %q, want %q", got.ID, job.ID)
	}

	if q.Get("no-such-job") != nil {
		t.Error("Get should return nil for unknown ids")
	}
}

func TestProgressRecompute(t *testing.T) {
	q := newTestQueue(t)
	job := q.Create(models.JobTypeBatch, 3, nil)

	got := q.Update(job.ID, models.JobPatch{
		Status:    strPtr(models.JobProcessing),
		Completed: intPtr(1),
	})
	if got.Progress != 33 {
		t.Errorf("Progress = %d, want 33", got.Progress)
	}

	got = q.Update(job.ID, models.JobPatch{Completed: intPtr(2)})
	if got.Progress != 67 {
		t.Errorf("Progress = %d, want 67", got.Progress)
	}

	got = q.Update(job.ID, models.JobPatch{
		Status:    strPtr(models.JobCompleted),
		Completed: intPtr(3),
	})
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want 100", got.Progress)
	}
}

func TestTerminalAbsorbsUpdates(t *testing.T) {
	q := newTestQueue(t)
	job := q.Create(models.JobTypeCrawl, 5, nil)

	q.Update(job.ID, models.JobPatch{Status: strPtr(models.JobFailed), Error: strPtr("boom")})

	got := q.Update(job.ID, models.JobPatch{
		Status:    strPtr(models.JobProcessing),
		Completed: intPtr(4),
	})
	if got.Status != models.JobFailed {
		t.Errorf("Status = %q, terminal jobs must not change", got.Status)
	}
	if got.Completed != 0 {
		t.Errorf("Completed = %d, want 0 (update absorbed)", got.Completed)
	}
}

func TestCancel(t *testing.T) {
	q := newTestQueue(t)
	job := q.Create(models.JobTypeCrawl, 5, nil)

	if !q.Cancel(job.ID) {
		t.Fatal("Cancel should succeed on a queued job")
	}
	if got := q.Get(job.ID); got.Status != models.JobCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}

	if q.Cancel(job.ID) {
		t.Error("Cancel must return false on a terminal job")
	}
	if q.Cancel("no-such-job") {
		t.Error("Cancel must return false on unknown ids")
	}
}

func TestListNewestFirst(t *testing.T) {
	q := newTestQueue(t)

	first := q.Create(models.JobTypeCrawl, 1, nil)
	time.Sleep(5 * time.Millisecond)
	second := q.Create(models.JobTypeBatch, 1, nil)

	list := q.List(ListFilter{})
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Error("List should order newest first")
	}
}

func TestListFilters(t *testing.T) {
	q := newTestQueue(t)

	crawl := q.Create(models.JobTypeCrawl, 1, nil)
	batch := q.Create(models.JobTypeBatch, 1, nil)
	q.Create(models.JobTypeBatch, 1, nil)
	q.Update(batch.ID, models.JobPatch{Status: strPtr(models.JobCompleted)})

	if got := q.List(ListFilter{Type: models.JobTypeCrawl}); len(got) != 1 || got[0].ID != crawl.ID {
		t.Errorf("type filter returned %d jobs", len(got))
	}
	if got := q.List(ListFilter{Status: models.JobCompleted}); len(got) != 1 || got[0].ID != batch.ID {
		t.Errorf("status filter returned %d jobs", len(got))
	}
	if got := q.List(ListFilter{Type: models.JobTypeBatch, Status: models.JobQueued}); len(got) != 1 {
		t.Errorf("combined filter returned %d jobs", len(got))
	}
	if got := q.List(ListFilter{Limit: 2}); len(got) != 2 {
		t.Errorf("limit 2 returned %d jobs", len(got))
	}
	if got := q.List(ListFilter{Type: "extract"}); len(got) != 0 {
		t.Errorf("unmatched type returned %d jobs", len(got))
	}
}

func TestExpiredJobsDisappear(t *testing.T) {
	q := newTestQueue(t)
	job := q.Create(models.JobTypeCrawl, 1, nil)

	// Force the expiry into the past.
	q.mu.Lock()
	q.jobs[job.ID].ExpiresAt = time.Now().Add(-time.Minute)
	q.mu.Unlock()

	if q.Get(job.ID) != nil {
		t.Error("expired jobs must not be served")
	}
	if len(q.List(ListFilter{})) != 0 {
		t.Error("expired jobs must not be listed")
	}
	if n := q.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0 after cleanup", q.Len())
	}
}

func TestCopiesAreIsolated(t *testing.T) {
	q := newTestQueue(t)
	job := q.Create(models.JobTypeBatch, 2, nil)

	q.Update(job.ID, models.JobPatch{AppendData: []*models.PeelResponse{{URL: "https://a.example/"}}})

	got := q.Get(job.ID)
	got.Data[0] = &models.PeelResponse{URL: "https://mutated.example/"}
	got.Status = models.JobFailed

	again := q.Get(job.ID)
	if again.Data[0].URL != "https://a.example/" {
		t.Error("caller mutation leaked into queue state")
	}
	if again.Status != models.JobQueued {
		t.Errorf("Status = %q, want queued", again.Status)
	}
}

func TestAppendData(t *testing.T) {
	q := newTestQueue(t)
	job := q.Create(models.JobTypeCrawl, 2, nil)

	q.Update(job.ID, models.JobPatch{AppendData: []*models.PeelResponse{{URL: "https://a.example/"}}})
	q.Update(job.ID, models.JobPatch{AppendData: []*models.PeelResponse{{URL: "https://b.example/"}}})

	got := q.Get(job.ID)
	if len(got.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(got.Data))
	}
	if got.Data[1].URL != "https://b.example/" {
		t.Errorf("Data[1].URL = %q", got.Data[1].URL)
	}
}
