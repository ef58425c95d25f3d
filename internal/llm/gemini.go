// Package llm wraps the Gemini API for embeddings and streamed chat
// completions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/manuelagm/portfolio-assistant/internal/assistant"
)

// Config identifies the models and the vector width tied to the
// embedding model.
type Config struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	EmbeddingDim   int
}

type GeminiClient struct {
	client *genai.Client
	cfg    Config
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing Gemini API key", assistant.ErrConfiguration)
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: c, cfg: cfg}, nil
}

// Embed returns the embedding vector for text. Newlines are collapsed to
// spaces before submission. Single attempt; the caller decides whether
// to surface or retry.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := collapseWhitespace(text)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty text for embedding", assistant.ErrInvalidRequest)
	}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		g.cfg.EmbeddingModel,
		genai.Text(clean),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.cfg.EmbeddingDim)),
		},
	)
	if err != nil {
		return nil, classifyErr(err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", assistant.ErrUpstreamProtocol)
	}

	values := resp.Embeddings[0].Values
	if len(values) != g.cfg.EmbeddingDim {
		return nil, fmt.Errorf("%w: embedding size %d does not match configured width %d",
			assistant.ErrConfiguration, len(values), g.cfg.EmbeddingDim)
	}

	return values, nil
}

// StreamAnswer invokes the chat model in streaming mode and yields text
// fragments as they arrive. The sequence ends when the provider signals
// completion; a non-nil error aborts it.
func (g *GeminiClient) StreamAnswer(ctx context.Context, messages []assistant.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents, sysInstruction := toContents(messages)
		if len(contents) == 0 {
			yield("", fmt.Errorf("%w: no user or assistant messages", assistant.ErrInvalidRequest))
			return
		}

		cfg := &genai.GenerateContentConfig{SystemInstruction: sysInstruction}

		// Some model versions report cumulative text per event instead
		// of deltas; emit only the unseen suffix either way.
		var seen string
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.cfg.ChatModel, contents, cfg) {
			if err != nil {
				yield("", classifyErr(err))
				return
			}
			if resp == nil {
				yield("", fmt.Errorf("%w: nil stream response", assistant.ErrUpstreamProtocol))
				return
			}

			text := resp.Text()
			if text == "" {
				continue
			}

			delta := text
			if strings.HasPrefix(text, seen) {
				delta = text[len(seen):]
				seen = text
			} else {
				seen += delta
			}
			if delta == "" {
				continue
			}

			if !yield(delta, nil) {
				return
			}
		}
	}
}

func toContents(messages []assistant.Message) ([]*genai.Content, *genai.Content) {
	contents := make([]*genai.Content, 0, len(messages))
	var systemParts []string

	for _, m := range messages {
		switch m.Role {
		case assistant.RoleSystem:
			if c := strings.TrimSpace(m.Content); c != "" {
				systemParts = append(systemParts, c)
			}
		case assistant.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	var sysInstruction *genai.Content
	if len(systemParts) > 0 {
		sysInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}
	return contents, sysInstruction
}

// classifyErr maps a provider failure onto the assistant error kinds.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", assistant.ErrUpstreamQuota, apiErr.Message)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		return fmt.Errorf("%w: %v", assistant.ErrUpstreamQuota, err)
	}

	return fmt.Errorf("%w: %v", assistant.ErrUpstreamUnavailable, err)
}

func collapseWhitespace(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			if !space {
				b.WriteRune(' ')
				space = true
			}
		} else {
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

var _ assistant.Embedder = (*GeminiClient)(nil)
var _ assistant.CompletionStreamer = (*GeminiClient)(nil)
