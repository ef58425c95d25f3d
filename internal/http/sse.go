package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// sseWriter frames the answer stream as Server-Sent Events. Headers are
// written when the writer is created, so it must only be constructed
// once the pipeline has produced its first fragment.
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteFragment sends one generated text fragment as a single event
// record. Each line of a multi-line fragment gets its own "data: "
// prefix per the SSE format; the consumer rejoins them with a newline.
func (s *sseWriter) WriteFragment(fragment string) error {
	for _, line := range strings.Split(fragment, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write data line: %w", err)
		}
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteError signals an abrupt termination of an already-started stream.
// Headers are committed by now, so a JSON response is no longer possible.
func (s *sseWriter) WriteError(code, message string) error {
	payload, err := json.Marshal(map[string]string{"code": code, "message": message})
	if err != nil {
		return fmt.Errorf("marshal error payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", payload); err != nil {
		return fmt.Errorf("write error event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
