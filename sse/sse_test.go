package sse

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestWriteEventFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvent(&buf, Event{Type: "status", Data: "processing"}); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "data: ") {
		t.Errorf("frame missing data prefix: %q", got)
	}
	if !strings.HasSuffix(got, "\n\n") {
		t.Errorf("frame missing blank-line terminator: %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	type event struct {
		Seq  int    `json:"seq"`
		Text string `json:"text"`
	}

	var buf bytes.Buffer
	events := []event{{1, "starting"}, {2, "fetching page"}, {3, "finished"}}
	for _, ev := range events {
		if err := WriteEvent(&buf, ev); err != nil {
			t.Fatal(err)
		}
	}
	if err := WriteDone(&buf); err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder(&buf)
	for i, want := range events {
		payload, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		var got event
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("frame %d unmarshal: %v", i, err)
		}
		if got != want {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("after [DONE]: err = %v, want io.EOF", err)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("reads after end must keep returning io.EOF, got %v", err)
	}
}

func TestDecoderSkipsCommentsAndBlankLines(t *testing.T) {
	stream := ": keep-alive\n" +
		"\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		": another comment\n" +
		"event: progress\n" +
		"data: {\"a\":2}\n" +
		"\n" +
		"data: [DONE]\n\n"

	dec := NewDecoder(strings.NewReader(stream))

	first, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != `{"a":1}` {
		t.Errorf("first = %q", first)
	}

	second, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != `{"a":2}` {
		t.Errorf("second = %q", second)
	}

	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestDecoderEOFWithoutDone(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: {\"a\":1}\n\n"))
	if _, err := dec.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("truncated stream should end with io.EOF, got %v", err)
	}
}

func TestProxyPassesFramesThrough(t *testing.T) {
	var upstream bytes.Buffer
	WriteEvent(&upstream, map[string]int{"n": 1})
	WriteEvent(&upstream, map[string]int{"n": 2})
	WriteDone(&upstream)

	var downstream bytes.Buffer
	if err := Proxy(&downstream, &upstream); err != nil {
		t.Fatal(err)
	}

	// Snapshot the raw bytes first; the decoder below consumes the buffer.
	out := downstream.String()

	dec := NewDecoder(&downstream)
	count := 0
	for {
		_, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		count++
	}
	if count != 2 {
		t.Errorf("proxied frames = %d, want 2", count)
	}
	if !strings.Contains(out, "data: [DONE]") {
		t.Error("proxy must re-emit the terminator")
	}
}
