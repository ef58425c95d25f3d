package assistant

import (
	"context"
	"math"
	"sort"
	"sync"
)

type storedSnippet struct {
	id        int64
	content   string
	embedding []float32
}

// MemoryRetriever is an in-memory Retriever with the same threshold and
// limit semantics as the Postgres one. It backs the unit tests and local
// runs without a database.
type MemoryRetriever struct {
	mu       sync.RWMutex
	snippets []storedSnippet
	nextID   int64
}

func NewMemoryRetriever() *MemoryRetriever {
	return &MemoryRetriever{nextID: 1}
}

// Add stores a snippet. Insertion order is preserved, which is the tie
// break order on equal similarity.
func (m *MemoryRetriever) Add(content string, embedding []float32) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.snippets = append(m.snippets, storedSnippet{id: id, content: content, embedding: embedding})
	return id
}

func (m *MemoryRetriever) SearchSimilar(_ context.Context, q RetrievalQuery) ([]KnowledgeSnippet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []KnowledgeSnippet
	for _, s := range m.snippets {
		sim := cosineSimilarity(q.Embedding, s.embedding)
		if sim > q.Threshold {
			results = append(results, KnowledgeSnippet{ID: s.id, Content: s.content, Similarity: sim})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
