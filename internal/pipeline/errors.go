package pipeline

import (
	"errors"

	"github.com/bayy420-999/wulang-ai/internal/attachment"
	"github.com/bayy420-999/wulang-ai/internal/genai"
)

// ErrValidation indicates the inbound message failed shape validation.
var ErrValidation = errors.New("invalid input")

// Kind classifies a failed turn for the structured result and logs. It never
// reaches the end user; they only see a fixed reply.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnsupportedMedia Kind = "unsupported_media"
	KindExtraction       Kind = "extraction"
	KindStorage          Kind = "storage"
	KindBackend          Kind = "backend"
)

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, attachment.ErrUnsupportedMedia), errors.Is(err, attachment.ErrTooLarge):
		return KindUnsupportedMedia
	case errors.Is(err, attachment.ErrExtraction):
		return KindExtraction
	case errors.Is(err, genai.ErrBackend):
		return KindBackend
	default:
		return KindStorage
	}
}
