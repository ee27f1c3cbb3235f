package stream

import (
	"bufio"
	"bytes"
	"io"
)

// maxEventSize bounds one SSE event. Provider chunks are small; a
// multi-megabyte line means a broken upstream.
const maxEventSize = 10 * 1024 * 1024

// Event is one parsed Server-Sent Event.
type Event struct {
	// Name is the "event:" field, empty for data-only protocols.
	Name string

	// Data is the "data:" payload. Multi-line data is joined with
	// newlines per the SSE spec.
	Data []byte
}

// Reader parses SSE events from an upstream response body. Lines that
// are neither "event:" nor "data:" (comments, retry hints, id fields)
// are skipped.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps an upstream body.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF when the upstream is done.
// Blank-line separated blocks with no data field are skipped.
func (r *Reader) Next() (*Event, error) {
	var name string
	var data [][]byte
	for r.scanner.Scan() {
		line := r.scanner.Bytes()

		if len(bytes.TrimSpace(line)) == 0 {
			if len(data) > 0 {
				return &Event{Name: name, Data: bytes.Join(data, []byte("\n"))}, nil
			}
			// Separator with nothing buffered: keep scanning.
			name = ""
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			d := line[len("data:"):]
			if len(d) > 0 && d[0] == ' ' {
				d = d[1:]
			}
			data = append(data, append([]byte(nil), d...))
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		// Upstream closed without a trailing blank line.
		return &Event{Name: name, Data: bytes.Join(data, []byte("\n"))}, nil
	}
	return nil, io.EOF
}
