// Package prompt assembles the ordered, role-tagged turns handed to the
// generative backend.
package prompt

import (
	"strings"

	"github.com/bayy420-999/wulang-ai/internal/conversation"
)

// Segment is one part of a turn's content. Exactly two variants exist:
// TextSegment and ImageSegment.
type Segment interface {
	segment()
}

// TextSegment carries plain text.
type TextSegment struct {
	Text string
}

func (TextSegment) segment() {}

// ImageSegment carries raw image bytes for multimodal turns.
type ImageSegment struct {
	Data []byte
	Mime string
}

func (ImageSegment) segment() {}

// Turn is one role-tagged unit of backend input.
type Turn struct {
	Role     conversation.Role
	Segments []Segment
}

// NewTextTurn builds a single-segment text turn.
func NewTextTurn(role conversation.Role, text string) Turn {
	return Turn{Role: role, Segments: []Segment{TextSegment{Text: text}}}
}

// Text joins the turn's text segments. Image segments contribute nothing.
func (t Turn) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if ts, ok := seg.(TextSegment); ok && strings.TrimSpace(ts.Text) != "" {
			parts = append(parts, ts.Text)
		}
	}
	return strings.Join(parts, "\n")
}
