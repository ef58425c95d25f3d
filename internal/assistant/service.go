package assistant

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
)

// Options tunes the retrieval stage. Unset values take the design
// defaults: threshold 0.5, limit 3.
type Options struct {
	// SimilarityThreshold is a pointer so an explicit 0 (accept every
	// snippet) is distinguishable from unset.
	SimilarityThreshold *float64
	MatchLimit          int
}

const (
	defaultThreshold = 0.5
	defaultLimit     = 3
)

// Service orchestrates one chat request as a strictly sequential
// pipeline: embed the last user turn, retrieve similar snippets,
// assemble the grounded prompt, stream the completion. No state is
// shared between requests.
type Service struct {
	retriever Retriever
	embedder  Embedder
	streamer  CompletionStreamer
	logger    *slog.Logger

	threshold float64
	limit     int
}

func NewService(retriever Retriever, embedder Embedder, streamer CompletionStreamer, logger *slog.Logger, opts Options) *Service {
	threshold := defaultThreshold
	if opts.SimilarityThreshold != nil {
		threshold = *opts.SimilarityThreshold
	}
	limit := opts.MatchLimit
	if limit == 0 {
		limit = defaultLimit
	}

	return &Service{
		retriever: retriever,
		embedder:  embedder,
		streamer:  streamer,
		logger:    logger,
		threshold: threshold,
		limit:     limit,
	}
}

// Chat runs the pipeline for one conversation and returns the answer as
// a fragment stream. Failures before streaming starts are returned as
// the error; failures mid-stream are delivered through the sequence.
//
// A retrieval failure aborts the request rather than degrading to an
// ungrounded completion: without the knowledge base the assistant knows
// nothing about the site owner.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (iter.Seq2[string, error], error) {
	question, ok := lastUserContent(req.Messages)
	if !ok {
		return nil, fmt.Errorf("%w: conversation has no user message", ErrInvalidRequest)
	}

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	snippets, err := s.retriever.SearchSimilar(ctx, RetrievalQuery{
		Embedding: embedding,
		Threshold: s.threshold,
		Limit:     s.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve snippets: %w", err)
	}

	s.logger.Debug("retrieved snippets",
		"count", len(snippets),
		"threshold", s.threshold,
		"limit", s.limit)

	prompt := BuildPrompt(snippets, req.Messages)

	return s.streamer.StreamAnswer(ctx, prompt), nil
}

func lastUserContent(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == RoleUser && strings.TrimSpace(m.Content) != "" {
			return m.Content, true
		}
	}
	return "", false
}
