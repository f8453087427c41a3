package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SourceReference is a retrieved passage backing part of an assistant answer.
// Score is passed through as returned; it is expected in [0,1] but never clamped.
type SourceReference struct {
	ChunkText  string  `json:"chunk_text"`
	Source     string  `json:"source"`
	Section    *string `json:"section"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

// Message is one entry of the conversation history. It is never mutated after
// construction.
type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Sources   []SourceReference `json:"sources,omitempty"`
	ModelUsed string            `json:"model_used,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Clone returns a deep copy so callers cannot alias the controller's history.
func (m Message) Clone() Message {
	if m.Sources != nil {
		sources := make([]SourceReference, len(m.Sources))
		for i, s := range m.Sources {
			if s.Section != nil {
				section := *s.Section
				s.Section = &section
			}
			sources[i] = s
		}
		m.Sources = sources
	}
	return m
}

// AskRequest is the body of POST /api/chat. An empty Model is omitted so the
// backend picks its own default.
type AskRequest struct {
	Question    string  `json:"question"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"top_k"`
}

type AskResponse struct {
	Answer    string            `json:"answer"`
	Sources   []SourceReference `json:"sources"`
	ModelUsed string            `json:"model_used"`
}
