package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/webpeel/webpeel/models"
)

// EdgeWorkerFetcher proxies the request through a Cloudflare Worker so it
// egresses from an edge IP. It is the last rung of the escalation chain and
// only participates when a worker URL is configured.
type EdgeWorkerFetcher struct {
	client    *http.Client
	workerURL string
	token     string
}

// edgeWorkerRequest is the JSON envelope sent to the worker.
type edgeWorkerRequest struct {
	URL       string            `json:"url"`
	UserAgent string            `json:"userAgent,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	TimeoutMs int               `json:"timeoutMs,omitempty"`
}

// edgeWorkerResponse is the JSON envelope the worker returns.
type edgeWorkerResponse struct {
	Status   int               `json:"status"`
	Body     string            `json:"body"`
	FinalURL string            `json:"finalUrl"`
	Headers  map[string]string `json:"headers"`
	TimingMs int               `json:"timing"`
	Edge     string            `json:"edge"`
	Error    string            `json:"error,omitempty"`
}

// NewEdgeWorkerFetcher creates the fetcher. workerURL may be empty, in which
// case Available reports false and Fetch refuses to run.
func NewEdgeWorkerFetcher(workerURL, token string) *EdgeWorkerFetcher {
	return &EdgeWorkerFetcher{
		client:    &http.Client{Timeout: 45 * time.Second},
		workerURL: workerURL,
		token:     token,
	}
}

func (f *EdgeWorkerFetcher) Name() string { return MethodEdgeWorker }

// Available reports whether a worker endpoint is configured.
func (f *EdgeWorkerFetcher) Available() bool { return f.workerURL != "" }

// Fetch relays the request to the worker and unwraps its envelope.
func (f *EdgeWorkerFetcher) Fetch(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	if !f.Available() {
		return nil, models.NewPeelError(models.KindNotImplemented, "no edge worker configured", nil)
	}

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout())
	defer cancel()

	payload := edgeWorkerRequest{URL: rawURL}
	if opts != nil {
		payload.UserAgent = opts.UserAgent
		payload.Headers = opts.Headers
		payload.TimeoutMs = opts.TimeoutMs
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, models.NewPeelError(models.KindInternal, "marshal edge worker request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.workerURL, bytes.NewReader(buf))
	if err != nil {
		return nil, models.NewPeelError(models.KindInternal, "build edge worker request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyErr(err, "edge worker request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classifyErr(err, "read edge worker response failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.NewPeelError(models.KindNetwork,
			fmt.Sprintf("edge worker returned HTTP %d", resp.StatusCode), nil)
	}

	var envelope edgeWorkerResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, models.NewPeelError(models.KindNetwork, "edge worker returned malformed envelope", err)
	}
	if envelope.Error != "" {
		return nil, models.NewPeelError(models.KindNetwork, "edge worker: "+envelope.Error, nil)
	}

	body := []byte(envelope.Body)
	contentType := envelope.Headers["content-type"]
	if envelope.Status >= 400 {
		return nil, classifyStatus(envelope.Status, body, contentType)
	}

	headers := make(http.Header, len(envelope.Headers))
	for k, v := range envelope.Headers {
		headers.Set(k, v)
	}

	finalURL := envelope.FinalURL
	if finalURL == "" {
		finalURL = rawURL
	}

	return &Result{
		FinalURL:    finalURL,
		StatusCode:  envelope.Status,
		Body:        body,
		ContentType: detectContentType(contentType, body),
		Headers:     headers,
		Duration:    time.Since(start),
		Method:      MethodEdgeWorker,
	}, nil
}
