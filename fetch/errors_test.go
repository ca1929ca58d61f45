package fetch

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/webpeel/webpeel/models"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"403 with captcha marker", 403, "<html>please solve this CAPTCHA</html>", models.KindBlocked},
		{"403 with cf challenge", 403, `<div class="cf-chl-widget"></div>`, models.KindBlocked},
		{"503 behind cloudflare", 503, "Checking your browser... Cloudflare Ray ID", models.KindBlocked},
		{"bare 403", 403, "forbidden", models.KindBlocked},
		{"bare 429", 429, "slow down", models.KindBlocked},
		{"plain 500", 500, "internal error", models.KindNetwork},
		{"plain 404", 404, "not found", models.KindNetwork},
		{"503 without cloudflare", 503, "maintenance", models.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, []byte(tt.body), "text/html")
			if got := models.KindOf(err); got != tt.want {
				t.Errorf("classifyStatus(%d) kind = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestLooksBlocked(t *testing.T) {
	if !looksBlocked(200, []byte("  \n\t"), "text/html; charset=utf-8") {
		t.Error("whitespace-only HTML body at 200 should look blocked")
	}
	if looksBlocked(200, []byte("<html>content</html>"), "text/html") {
		t.Error("non-empty body should not look blocked")
	}
	if looksBlocked(200, nil, "application/json") {
		t.Error("empty JSON body should not look blocked")
	}
	if looksBlocked(404, nil, "text/html") {
		t.Error("4xx responses are classified elsewhere")
	}
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, models.KindTimeout},
		{"canceled", context.Canceled, models.KindTimeout},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, models.KindNetwork},
		{"tls handshake", errors.New("remote error: tls: handshake failure"), models.KindNetwork},
		{"refused", errors.New("connect: connection refused"), models.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.KindOf(classifyErr(tt.err, "request failed"))
			if got != tt.want {
				t.Errorf("classifyErr(%v) kind = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	network := models.NewPeelError(models.KindNetwork, "HTTP 500 from target", nil)
	if !retryable(network) {
		t.Error("plain network errors should be retryable")
	}

	tlsErr := models.NewPeelError(models.KindNetwork, "TLS/SSL handshake failed", nil)
	if retryable(tlsErr) {
		t.Error("TLS failures should escalate, not retry")
	}

	blocked := models.NewPeelError(models.KindBlocked, "HTTP 403 from target", nil)
	if retryable(blocked) {
		t.Error("blocked should escalate, not retry")
	}

	timeout := models.NewPeelError(models.KindTimeout, "deadline", nil)
	if retryable(timeout) {
		t.Error("timeouts should not retry within the same strategy")
	}
}

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	res, err := WithRetry(context.Background(), 3, func() (*Result, error) {
		calls++
		if calls < 2 {
			return nil, models.NewPeelError(models.KindNetwork, "HTTP 502 from target", nil)
		}
		return &Result{StatusCode: 200}, nil
	})
	if err != nil {
		t.Fatalf("WithRetry error: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", res.StatusCode)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWithRetryDoesNotRetryBlocked(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), 3, func() (*Result, error) {
		calls++
		return nil, models.NewPeelError(models.KindBlocked, "HTTP 403 from target", nil)
	})
	if !models.IsKind(err, models.KindBlocked) {
		t.Errorf("kind = %s, want blocked", models.KindOf(err))
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (blocked must not retry)", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := WithRetry(context.Background(), 3, func() (*Result, error) {
		calls++
		return nil, models.NewPeelError(models.KindNetwork, "HTTP 500 from target", nil)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Two backoffs: 500ms + 1s.
	if elapsed := time.Since(start); elapsed < 1400*time.Millisecond {
		t.Errorf("elapsed = %v, expected backoff delays between attempts", elapsed)
	}
}
