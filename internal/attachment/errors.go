package attachment

import "errors"

var (
	// ErrNotFound indicates the requested attachment does not exist.
	ErrNotFound = errors.New("attachment not found")
	// ErrUnsupportedMedia indicates the payload is neither a PDF nor an image.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrTooLarge indicates the payload exceeds the configured size ceiling.
	ErrTooLarge = errors.New("attachment too large")
	// ErrExtraction indicates the payload could not be decoded.
	ErrExtraction = errors.New("attachment extraction failed")
)
