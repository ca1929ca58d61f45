// Package sse implements the server-sent-events framing used on streaming
// endpoints: JSON payloads in "data:" lines with a "[DONE]" terminator.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// done is the stream terminator payload.
const done = "[DONE]"

// Event is the generic payload shape streamed to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WriteEvent writes one JSON-encoded event frame: "data: <json>\n\n".
// If w is an http.Flusher the frame is flushed immediately.
func WriteEvent(w io.Writer, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	return WriteRaw(w, buf)
}

// WriteRaw writes an already-encoded payload as one frame.
func WriteRaw(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// WriteDone terminates the stream with "data: [DONE]\n\n".
func WriteDone(w io.Writer) error {
	return WriteRaw(w, []byte(done))
}

// Decoder reads data frames from an SSE stream. Comment lines (leading ':')
// and blank lines are skipped; the "[DONE]" frame ends the stream.
type Decoder struct {
	scanner *bufio.Scanner
	ended   bool
}

// NewDecoder wraps r for frame-by-frame reading.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 10<<20)
	return &Decoder{scanner: sc}
}

// Next returns the payload of the next data frame. It returns io.EOF once
// the "[DONE]" terminator or the end of the stream is reached.
func (d *Decoder) Next() ([]byte, error) {
	if d.ended {
		return nil, io.EOF
	}
	for d.scanner.Scan() {
		line := d.scanner.Text()
		switch {
		case line == "", strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == done {
				d.ended = true
				return nil, io.EOF
			}
			return []byte(payload), nil
		default:
			// Other SSE fields (event:, id:, retry:) are ignored.
			continue
		}
	}
	d.ended = true
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Proxy copies SSE frames from src to dst until the terminator, then
// re-emits the terminator. The payloads pass through untouched.
func Proxy(dst io.Writer, src io.Reader) error {
	dec := NewDecoder(src)
	for {
		payload, err := dec.Next()
		if err == io.EOF {
			return WriteDone(dst)
		}
		if err != nil {
			return err
		}
		if err := WriteRaw(dst, payload); err != nil {
			return err
		}
	}
}

// SetHeaders applies the response headers a streaming endpoint needs.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
