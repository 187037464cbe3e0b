package schema

// Document is a unit of retrievable reference text.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult pairs a document with its retrieval relevance score.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// ChatRole values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a model conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
