package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/manuelagm/portfolio-assistant/internal/assistant"
	applog "github.com/manuelagm/portfolio-assistant/internal/log"
)

type fakeEmbedder struct {
	vector []float32
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

type fakeRetriever struct {
	snippets []assistant.KnowledgeSnippet
	err      error
	calls    int
	got      assistant.RetrievalQuery
}

func (f *fakeRetriever) SearchSimilar(_ context.Context, q assistant.RetrievalQuery) ([]assistant.KnowledgeSnippet, error) {
	f.calls++
	f.got = q
	return f.snippets, f.err
}

type fakeStreamer struct {
	fragments []string
	err       error
	calls     int
}

func (f *fakeStreamer) StreamAnswer(context.Context, []assistant.Message) iter.Seq2[string, error] {
	f.calls++
	return func(yield func(string, error) bool) {
		for _, fr := range f.fragments {
			if !yield(fr, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func newTestHandler(r assistant.Retriever, e assistant.Embedder, s assistant.CompletionStreamer, validate func() error) *Handler {
	svc := assistant.NewService(r, e, s, applog.NewNop(), assistant.Options{})
	return NewHandler(svc, applog.NewNop(), 0, validate)
}

func postChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	h.Chat(w, r)
	return w
}

const questionBody = `{"messages":[{"id":"1","role":"user","content":"What is Manuela's experience?"}]}`

func TestChat_EndToEndStream(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.42, 0.7}}
	retriever := &fakeRetriever{snippets: []assistant.KnowledgeSnippet{
		{Content: "My name is Manuela. I am a Full Stack Developer with 5 years of experience.", Similarity: 0.82},
	}}
	streamer := &fakeStreamer{fragments: []string{"Manuela ", "is a Full Stack Developer ", "with 5 years of experience."}}
	h := newTestHandler(retriever, embedder, streamer, nil)

	w := postChat(t, h, questionBody)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", w.Code, w.Body.String())
	}

	wantBody := "data: Manuela \n\ndata: is a Full Stack Developer \n\ndata: with 5 years of experience.\n\n"
	if got := w.Body.String(); got != wantBody {
		t.Errorf("body = %q, want %q", got, wantBody)
	}

	headers := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}
	for k, want := range headers {
		if got := w.Header().Get(k); got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}

	if len(retriever.got.Embedding) != 2 || retriever.got.Embedding[0] != 0.42 {
		t.Errorf("retriever did not receive the question embedding: %+v", retriever.got)
	}
}

func TestChat_ConfigurationErrorShortCircuits(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	retriever := &fakeRetriever{}
	streamer := &fakeStreamer{fragments: []string{"should never run"}}
	h := newTestHandler(retriever, embedder, streamer, func() error {
		return fmt.Errorf("missing GEMINI_API_KEY or GOOGLE_API_KEY")
	})

	w := postChat(t, h, questionBody)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body is not JSON: %v\n%s", err, w.Body.String())
	}
	if payload["error"] == "" {
		t.Errorf("expected an error field, got %v", payload)
	}

	if embedder.calls != 0 || retriever.calls != 0 || streamer.calls != 0 {
		t.Errorf("upstream calls made despite configuration error: embed=%d retrieve=%d stream=%d",
			embedder.calls, retriever.calls, streamer.calls)
	}
}

func TestChat_QuotaMapsToServiceUnavailable(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	retriever := &fakeRetriever{}
	streamer := &fakeStreamer{err: fmt.Errorf("%w: simulated billing limit", assistant.ErrUpstreamQuota)}
	h := newTestHandler(retriever, embedder, streamer, nil)

	w := postChat(t, h, questionBody)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503\nbody: %s", w.Code, w.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if !strings.Contains(payload["error"], "temporarily unavailable") {
		t.Errorf("error = %q, want the temporarily-unavailable phrasing", payload["error"])
	}
}

func TestChat_GenericUpstreamFailureIsInternalError(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	retriever := &fakeRetriever{err: fmt.Errorf("%w: store down", assistant.ErrUpstreamUnavailable)}
	h := newTestHandler(retriever, embedder, &fakeStreamer{}, nil)

	w := postChat(t, h, questionBody)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil || payload["error"] == "" {
		t.Errorf("expected JSON error body, got %s", w.Body.String())
	}
}

func TestChat_InvalidBody(t *testing.T) {
	h := newTestHandler(&fakeRetriever{}, &fakeEmbedder{vector: []float32{1}}, &fakeStreamer{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"messages":`},
		{"no user message", `{"messages":[{"id":"1","role":"assistant","content":"hi"}]}`},
		{"empty conversation", `{"messages":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postChat(t, h, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400\nbody: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestChat_MidStreamFailureDegradesOpenStream(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	streamer := &fakeStreamer{
		fragments: []string{"Manuela "},
		err:       fmt.Errorf("%w: connection reset", assistant.ErrUpstreamUnavailable),
	}
	h := newTestHandler(&fakeRetriever{}, embedder, streamer, nil)

	w := postChat(t, h, questionBody)

	// Headers were committed before the failure: still a 200 stream.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "data: Manuela \n\n") {
		t.Errorf("delivered fragments missing from body: %q", body)
	}
	if !strings.Contains(body, "event: error\n") {
		t.Errorf("expected an error event terminating the stream, got %q", body)
	}
}

func TestChat_EmptyCompletionClosesCleanStream(t *testing.T) {
	h := newTestHandler(&fakeRetriever{}, &fakeEmbedder{vector: []float32{1}}, &fakeStreamer{}, nil)

	w := postChat(t, h, questionBody)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty stream body, got %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestChat_ClientCancellationStopsConsumption(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1}}
	streamer := &fakeStreamer{fragments: []string{"never", "delivered"}}
	h := newTestHandler(&fakeRetriever{}, embedder, streamer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(questionBody)).WithContext(ctx)
	h.Chat(w, r)

	if strings.Contains(w.Body.String(), "never") {
		t.Errorf("fragments written after cancellation: %q", w.Body.String())
	}
}

func TestRouter(t *testing.T) {
	h := newTestHandler(&fakeRetriever{}, &fakeEmbedder{vector: []float32{1}}, &fakeStreamer{}, nil)
	router := NewRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("GET /health = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/chat = %d, want 405", w.Code)
	}
}

func TestErrorCode(t *testing.T) {
	if got := errorCode(fmt.Errorf("%w: x", assistant.ErrUpstreamQuota)); got != "quota_exceeded" {
		t.Errorf("errorCode(quota) = %q", got)
	}
	if got := errorCode(errors.New("plain")); got != "upstream_error" {
		t.Errorf("errorCode(plain) = %q", got)
	}
}
