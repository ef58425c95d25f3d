// Package streamclient consumes the chat endpoint's event stream. It is
// the Go counterpart of the site's chat widget: it decodes SSE records
// incrementally and classifies failures into renderable messages.
package streamclient

import (
	"bytes"
	"strings"
)

// Event is one decoded SSE record. Name is empty for plain data records.
type Event struct {
	Name string
	Data string
}

// Scanner splits an SSE byte stream into records. Reads may end anywhere,
// including inside a "data: " prefix or a multi-byte character; a trailing
// partial record is held back and completed by the next Feed call, so no
// bytes are lost or duplicated across read boundaries.
type Scanner struct {
	buf []byte
}

var recordSep = []byte("\n\n")

// Feed consumes the next chunk of bytes and returns the records completed
// by it. A chunk completing no record returns an empty slice.
func (s *Scanner) Feed(p []byte) []Event {
	s.buf = append(s.buf, p...)

	var events []Event
	for {
		i := bytes.Index(s.buf, recordSep)
		if i < 0 {
			return events
		}
		record := string(s.buf[:i])
		s.buf = s.buf[i+len(recordSep):]

		if ev, ok := parseRecord(record); ok {
			events = append(events, ev)
		}
	}
}

// Pending reports whether held-back bytes remain from a record that was
// never terminated. At end of stream this means the server died
// mid-record; the bytes are not a complete event and are never emitted.
func (s *Scanner) Pending() bool {
	return len(bytes.TrimSpace(s.buf)) > 0
}

// parseRecord decodes one record. Lines prefixed "data:" contribute to
// the payload, joined with newlines; an "event:" line names the record.
// Records with no data line (comments, keep-alives) are skipped.
func parseRecord(record string) (Event, bool) {
	var ev Event
	var data []string

	for _, line := range strings.Split(record, "\n") {
		switch {
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
	}

	if data == nil {
		return Event{}, false
	}
	ev.Data = strings.Join(data, "\n")
	return ev, true
}
