package attachment

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// NoTextPlaceholder substitutes for a PDF with no extractable text.
const NoTextPlaceholder = "no text content found"

// Extract decodes a raw payload into its normalized textual representation.
// The declared mime type is a hint; the payload bytes decide the routing.
// The size ceiling is checked before any decoding happens.
func Extract(data []byte, fileName, declaredMime string, maxBytes int64) (Extraction, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Extraction{}, fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, len(data), maxBytes)
	}
	if len(data) == 0 {
		return Extraction{}, fmt.Errorf("%w: empty payload", ErrExtraction)
	}

	mime := sniffMime(data, declaredMime)
	switch {
	case mime == "application/pdf":
		return extractPDF(data, fileName)
	case strings.HasPrefix(mime, "image/"):
		return extractImage(data, mime)
	default:
		return Extraction{}, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mime)
	}
}

func sniffMime(data []byte, declared string) string {
	detected := mimetype.Detect(data)
	mime := strings.ToLower(strings.TrimSpace(detected.String()))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	// Sniffing bottoms out at octet-stream for content it does not know;
	// the sender's declared type is the better hint then.
	if mime == "" || mime == "application/octet-stream" {
		declared = strings.ToLower(strings.TrimSpace(declared))
		if i := strings.Index(declared, ";"); i >= 0 {
			declared = strings.TrimSpace(declared[:i])
		}
		if declared != "" {
			return declared
		}
	}
	return mime
}

func extractPDF(data []byte, fileName string) (result Extraction, err error) {
	// The parser panics on malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			result = Extraction{}
			err = fmt.Errorf("%w: parse pdf: %v", ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: parse pdf: %v", ErrExtraction, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: read pdf text: %v", ErrExtraction, err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return Extraction{}, fmt.Errorf("%w: read pdf text: %v", ErrExtraction, err)
	}
	// The placeholder is only for a PDF that genuinely has no text.
	text := strings.TrimSpace(sb.String())
	if text == "" {
		text = NoTextPlaceholder
	}

	meta := map[string]any{
		"page_count": reader.NumPage(),
		"file_name":  fileName,
	}
	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		if title := strings.TrimSpace(info.Key("Title").Text()); title != "" {
			meta["title"] = title
		}
		if author := strings.TrimSpace(info.Key("Author").Text()); author != "" {
			meta["author"] = author
		}
	}

	return Extraction{
		Kind:           KindDocument,
		TextualContent: text,
		Metadata:       meta,
	}, nil
}

func extractImage(data []byte, mime string) (Extraction, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: decode image: %v", ErrExtraction, err)
	}

	// No captioning happens at this layer; visual understanding comes from
	// the backend's analysis of the raw bytes. This is a placeholder line.
	desc := fmt.Sprintf("%dx%d %s image, %s", cfg.Width, cfg.Height, strings.ToUpper(format), formatByteSize(int64(len(data))))

	return Extraction{
		Kind:           KindImage,
		TextualContent: desc,
		Metadata: map[string]any{
			"width":  cfg.Width,
			"height": cfg.Height,
			"format": format,
			"mime":   mime,
			"bytes":  len(data),
		},
	}, nil
}

func formatByteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
