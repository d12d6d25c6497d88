// Package attachment persists user-supplied media records and extracts a
// textual representation from their raw bytes.
package attachment

import "time"

// Kind classifies an attachment.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// Attachment is the persisted record of one user-supplied binary. Summary is
// filled in after the backend analyzes the content.
type Attachment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	FileName  string    `json:"file_name"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Extraction is the normalized result of decoding an attachment payload.
type Extraction struct {
	Kind           Kind
	TextualContent string
	Metadata       map[string]any
}
