package stream

import (
	"io"
	"strings"
	"testing"
)

func readAll(t *testing.T, input string) []*Event {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var events []*Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, ev)
	}
}

func TestReaderDataOnly(t *testing.T) {
	events := readAll(t, "data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n")
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if string(events[0].Data) != `{"a":1}` {
		t.Errorf("event 0 = %q", events[0].Data)
	}
	if string(events[2].Data) != "[DONE]" {
		t.Errorf("event 2 = %q", events[2].Data)
	}
}

func TestReaderNamedEvents(t *testing.T) {
	input := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\"}\n\n"
	events := readAll(t, input)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Name != "message_start" {
		t.Errorf("event 0 name = %q", events[0].Name)
	}
	if events[1].Name != "content_block_delta" {
		t.Errorf("event 1 name = %q", events[1].Name)
	}
}

func TestReaderSkipsCommentsAndIDs(t *testing.T) {
	input := ": keepalive\nid: 42\nretry: 1000\ndata: real\n\n"
	events := readAll(t, input)
	if len(events) != 1 || string(events[0].Data) != "real" {
		t.Fatalf("events = %+v", events)
	}
}

func TestReaderMultiLineData(t *testing.T) {
	events := readAll(t, "data: line1\ndata: line2\n\n")
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if string(events[0].Data) != "line1\nline2" {
		t.Errorf("data = %q", events[0].Data)
	}
}

func TestReaderNoTrailingSeparator(t *testing.T) {
	events := readAll(t, "data: tail")
	if len(events) != 1 || string(events[0].Data) != "tail" {
		t.Fatalf("events = %+v", events)
	}
}

func TestReaderEmptyBlocksSkipped(t *testing.T) {
	events := readAll(t, "\n\nevent: orphan\n\ndata: x\n\n")
	if len(events) != 1 || string(events[0].Data) != "x" {
		t.Fatalf("events = %+v", events)
	}
	// The orphan event name must not leak onto the next block.
	if events[0].Name != "" {
		t.Errorf("name leaked: %q", events[0].Name)
	}
}
