package assistant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Retriever returns the stored snippets most similar to a query vector.
// Similarity is 1 - cosineDistance(query, candidate); only snippets above
// the threshold are returned, ordered by descending similarity. An empty
// result is not an error.
type Retriever interface {
	SearchSimilar(ctx context.Context, q RetrievalQuery) ([]KnowledgeSnippet, error)
}

// PgRetriever implements Retriever over a pgvector-indexed Postgres table.
type PgRetriever struct {
	db  *pgxpool.Pool
	dim int
}

func NewPgRetriever(db *pgxpool.Pool, dim int) *PgRetriever {
	return &PgRetriever{db: db, dim: dim}
}

func (r *PgRetriever) SearchSimilar(ctx context.Context, q RetrievalQuery) ([]KnowledgeSnippet, error) {
	vec := pgvector.NewVector(q.Embedding)

	rows, err := r.db.Query(ctx, `
		SELECT id, content, 1 - (embedding <=> $1) AS similarity
		FROM knowledge_snippet
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`, vec, q.Threshold, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity query: %v", ErrUpstreamUnavailable, err)
	}
	defer rows.Close()

	var snippets []KnowledgeSnippet
	for rows.Next() {
		var s KnowledgeSnippet
		if err := rows.Scan(&s.ID, &s.Content, &s.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scan snippet: %v", ErrUpstreamUnavailable, err)
		}
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: similarity query: %v", ErrUpstreamUnavailable, err)
	}

	return snippets, nil
}

// Insert stores a snippet with its embedding. Only the seeder writes;
// the chat pipeline treats the table as read-only.
func (r *PgRetriever) Insert(ctx context.Context, content string, embedding []float32) (int64, error) {
	if len(embedding) != r.dim {
		return 0, fmt.Errorf("%w: embedding size %d does not match store width %d",
			ErrConfiguration, len(embedding), r.dim)
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO knowledge_snippet (content, embedding)
		VALUES ($1, $2)
		RETURNING id
	`, content, pgvector.NewVector(embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert snippet: %v", ErrUpstreamUnavailable, err)
	}
	return id, nil
}

// EnsureSchema creates the extension, table and cosine index if missing.
func (r *PgRetriever) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_snippet (
			id bigserial PRIMARY KEY,
			content text NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, r.dim),
		`CREATE INDEX IF NOT EXISTS knowledge_snippet_embedding_idx
			ON knowledge_snippet USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", ErrUpstreamUnavailable, err)
		}
	}
	return nil
}
