package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/webpeel/webpeel/models"
)

// Block-page markers checked against 403 bodies.
var challengeMarkers = []string{
	"captcha",
	"cf-chl",
	"challenge-platform",
	"just a moment",
	"attention required",
	"access denied",
	"are you a robot",
	"enable cookies",
}

// classifyStatus turns a 4xx/5xx response into a typed error. Responses
// carrying bot-block indicators classify as blocked; everything else is a
// network-kind failure so the retry helper may have another go.
func classifyStatus(status int, body []byte, contentType string) error {
	lower := strings.ToLower(string(body))

	switch {
	case status == 403 && containsAny(lower, challengeMarkers):
		return models.NewPeelError(models.KindBlocked, "HTTP 403 with challenge page", nil)
	case status == 503 && strings.Contains(lower, "cloudflare"):
		return models.NewPeelError(models.KindBlocked, "HTTP 503 behind cloudflare", nil)
	case status == 403 || status == 429:
		return models.NewPeelError(models.KindBlocked, fmt.Sprintf("HTTP %d from target", status), nil)
	default:
		return models.NewPeelError(models.KindNetwork, fmt.Sprintf("HTTP %d from target", status), nil)
	}
}

// looksBlocked catches the block pattern that hides behind a 200: an empty
// body served with an HTML content type.
func looksBlocked(status int, body []byte, contentType string) bool {
	return len(strings.TrimSpace(string(body))) == 0 &&
		strings.Contains(strings.ToLower(contentType), "text/html") &&
		status < 400
}

// classifyErr wraps a transport error into a typed error.
func classifyErr(err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPeelError(models.KindTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewPeelError(models.KindTimeout, "request canceled", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.NewPeelError(models.KindNetwork, "DNS resolution failed: "+dnsErr.Name, err)
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "tls") || strings.Contains(lower, "ssl") ||
		strings.Contains(lower, "certificate") || strings.Contains(lower, "handshake") {
		return models.NewPeelError(models.KindNetwork, "TLS/SSL handshake failed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.NewPeelError(models.KindTimeout, msg, err)
	}

	return models.NewPeelError(models.KindNetwork, msg, err)
}

// containsAny reports whether s contains at least one of the markers.
func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// retryable reports whether the escalation contract permits another attempt
// within the same strategy: network failures only, never blocked or timeout.
func retryable(err error) bool {
	if models.IsKind(err, models.KindNetwork) {
		// TLS failures escalate to the browser instead of retrying.
		var pe *models.PeelError
		if errors.As(err, &pe) && strings.HasPrefix(pe.Message, "TLS/SSL") {
			return false
		}
		return true
	}
	return false
}

// WithRetry runs fn up to attempts times with exponential backoff, retrying
// only on retryable failures.
func WithRetry(ctx context.Context, attempts int, fn func() (*Result, error)) (*Result, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	backoff := 500 * time.Millisecond

	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, classifyErr(ctx.Err(), "retry interrupted")
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}
