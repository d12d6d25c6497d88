package attachment

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestExtractImage(t *testing.T) {
	t.Parallel()

	data := pngBytes(t, 32, 16)
	got, err := Extract(data, "photo.png", "image/png", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != KindImage {
		t.Fatalf("kind = %q, want %q", got.Kind, KindImage)
	}
	if got.Metadata["width"] != 32 || got.Metadata["height"] != 16 {
		t.Fatalf("unexpected dimensions metadata: %v", got.Metadata)
	}
	if got.TextualContent == "" {
		t.Fatal("expected a textual description")
	}
}

func TestExtractRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     []byte
		declared string
		maxBytes int64
		wantErr  error
	}{
		{
			name:     "plain text is unsupported",
			data:     []byte("just some words"),
			declared: "text/plain",
			wantErr:  ErrUnsupportedMedia,
		},
		{
			name:     "declared mime does not override sniffed content",
			data:     []byte("%!PS-Adobe postscript-ish"),
			declared: "image/png",
			wantErr:  ErrUnsupportedMedia,
		},
		{
			name:     "oversize rejected before decoding",
			data:     make([]byte, 64),
			declared: "application/pdf",
			maxBytes: 16,
			wantErr:  ErrTooLarge,
		},
		{
			name:    "empty payload",
			data:    nil,
			wantErr: ErrExtraction,
		},
		{
			name:    "malformed pdf fails extraction",
			data:    []byte("%PDF-1.4\n___not a real xref___"),
			wantErr: ErrExtraction,
		},
		{
			name:    "truncated image fails extraction",
			data:    []byte("\x89PNG\r\n\x1a\n___garbage"),
			wantErr: ErrExtraction,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Extract(tt.data, "f", tt.declared, tt.maxBytes)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractHonorsDeclaredMimeForUnknownBytes(t *testing.T) {
	t.Parallel()

	// Bytes the sniffer cannot classify fall back to the declared type,
	// which still must be pdf or image to pass routing.
	data := []byte{0x00, 0x01, 0x02, 0x03}
	_, err := Extract(data, "f.bin", "application/zip", 0)
	if !errors.Is(err, ErrUnsupportedMedia) {
		t.Fatalf("err = %v, want ErrUnsupportedMedia", err)
	}
}
