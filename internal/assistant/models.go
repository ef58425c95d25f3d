package assistant

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of the conversation. The conversation lives in the
// client; the server never persists it.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload of POST /api/chat.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// KnowledgeSnippet is one stored unit of knowledge-base text, returned
// by the retriever with its similarity to the query in [0,1].
type KnowledgeSnippet struct {
	ID         int64   `json:"id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// RetrievalQuery is built per request and discarded after use.
type RetrievalQuery struct {
	Embedding []float32
	Threshold float64
	Limit     int
}
