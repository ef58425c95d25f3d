// Command seed populates the knowledge base. By default it embeds and
// inserts the built-in facts about the site owner; with --from-files it
// also imports local .md/.txt/.html/.pdf documents. Seeding is
// append-only; re-running inserts new rows.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	pdf "github.com/dslipak/pdf"
	"golang.org/x/net/html"

	"github.com/manuelagm/portfolio-assistant/internal/assistant"
	"github.com/manuelagm/portfolio-assistant/internal/config"
	"github.com/manuelagm/portfolio-assistant/internal/db"
	"github.com/manuelagm/portfolio-assistant/internal/llm"
	applog "github.com/manuelagm/portfolio-assistant/internal/log"
)

// ownerFacts is the fixed knowledge base for the chat assistant.
var ownerFacts = []string{
	"My name is Manuela. I am a Full Stack Developer with 5 years of experience.",
	"I specialize in building web applications with TypeScript, React and Node.js, with Go and PostgreSQL on the backend.",
	"I currently work remotely for a product company, and before that I led the front-end team at a fintech startup.",
	"I hold a degree in Computer Science and speak English, Spanish and Portuguese.",
	"My favorite projects involve real-time user interfaces, developer tooling and applied machine learning.",
	"You can reach me through the contact form on this site or via the LinkedIn profile linked in the footer.",
}

func main() {
	fromFiles := flag.Bool("from-files", false, "also import local files (.md/.txt/.html/.pdf)")
	pathFlag := flag.String("path", "", "base directory for local files")
	skipFacts := flag.Bool("skip-facts", false, "do not insert the built-in facts")
	flag.Parse()

	cfg := config.Load()
	logger := applog.New(applog.Config{JSON: cfg.LogJSON})

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *fromFiles && *pathFlag == "" {
		logger.Error("--path is required with --from-files")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	retriever := assistant.NewPgRetriever(pool, cfg.EmbeddingDim)
	if err := retriever.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	gemini, err := llm.NewGeminiClient(ctx, llm.Config{
		APIKey:         cfg.GeminiAPIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ChatModel,
		EmbeddingDim:   cfg.EmbeddingDim,
	})
	if err != nil {
		logger.Error("failed to init Gemini client", "error", err)
		os.Exit(1)
	}

	if !*skipFacts {
		for _, fact := range ownerFacts {
			if err := embedAndStore(ctx, retriever, gemini, logger, fact); err != nil {
				logger.Error("failed to seed fact", "error", err)
				os.Exit(1)
			}
		}
		logger.Info("built-in facts seeded", "count", len(ownerFacts))
	}

	if *fromFiles {
		if err := importFromFiles(ctx, retriever, gemini, logger, *pathFlag); err != nil {
			logger.Error("failed to import files", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("seeding complete")
}

func embedAndStore(ctx context.Context, retriever *assistant.PgRetriever, gemini *llm.GeminiClient, logger *slog.Logger, content string) error {
	vec, err := gemini.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	id, err := retriever.Insert(ctx, content, vec)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	logger.Info("snippet stored", "id", id, "len", len(content))
	return nil
}

func importFromFiles(ctx context.Context, retriever *assistant.PgRetriever, gemini *llm.GeminiClient, logger *slog.Logger, rootPath string) error {
	logger.Info("importing local documents", "path", rootPath)

	return filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTextFile(path) {
			return nil
		}

		lpath := strings.ToLower(path)
		var content string

		switch {
		case strings.HasSuffix(lpath, ".pdf"):
			content, err = extractTextFromPDF(path)
			if err != nil {
				return fmt.Errorf("read pdf %s: %w", path, err)
			}

		case strings.HasSuffix(lpath, ".html") || strings.HasSuffix(lpath, ".htm"):
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			content = extractMainText(string(data))

		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			content = string(data)
		}

		content = sanitizeUTF8(strings.TrimSpace(content))
		if content == "" {
			return nil
		}

		for _, chunk := range splitIntoChunks(content, maxChunkLen) {
			if err := embedAndStore(ctx, retriever, gemini, logger, chunk); err != nil {
				return fmt.Errorf("store chunk of %s: %w", path, err)
			}
		}
		return nil
	})
}

const maxChunkLen = 2000

func isTextFile(path string) bool {
	l := strings.ToLower(path)
	return strings.HasSuffix(l, ".md") ||
		strings.HasSuffix(l, ".txt") ||
		strings.HasSuffix(l, ".html") ||
		strings.HasSuffix(l, ".htm") ||
		strings.HasSuffix(l, ".pdf")
}

// extractMainText pulls the visible text out of an HTML document,
// skipping script and style content.
func extractMainText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node, bool)

	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				skip = true
			}
		}

		if n.Type == html.TextNode && !skip {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	var filtered []string
	for _, l := range strings.Split(b.String(), "\n") {
		l = strings.TrimSpace(l)
		if len(l) > 1 {
			filtered = append(filtered, l)
		}
	}
	return strings.Join(filtered, "\n")
}

func extractTextFromPDF(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	buf := bytes.NewBuffer(nil)
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}

	return sanitizeUTF8(strings.TrimSpace(buf.String())), nil
}

func splitIntoChunks(content string, maxLen int) []string {
	content = sanitizeUTF8(strings.TrimSpace(content))
	if content == "" {
		return nil
	}
	if len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunk := sanitizeUTF8(strings.TrimSpace(buf.String()))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for len(line) > maxLen {
			part := line[:maxLen]
			line = line[maxLen:]

			if buf.Len() > 0 {
				flush()
			}
			buf.WriteString(part)
			flush()
		}

		if buf.Len()+len(line)+1 > maxLen {
			flush()
		}

		buf.WriteString(line)
		buf.WriteRune('\n')
	}

	flush()
	return chunks
}

// sanitizeUTF8 drops invalid bytes so Postgres does not reject the text.
func sanitizeUTF8(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		b.WriteRune(r)
		s = s[size:]
	}
	return b.String()
}
