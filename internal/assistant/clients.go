package assistant

import (
	"context"
	"iter"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompletionStreamer produces the generated answer as a lazy, finite,
// non-restartable sequence of text fragments. Fragment boundaries are
// provider-determined and may split mid-word. A non-nil error ends the
// sequence.
type CompletionStreamer interface {
	StreamAnswer(ctx context.Context, messages []Message) iter.Seq2[string, error]
}
