// Package waformat renders rich markdown (or HTML) answers into the limited
// markup dialect WhatsApp understands: single-char bold/italic/strike, no
// headings, no links, one bullet glyph.
package waformat

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Fixed reply strings. Everything user-visible is localized here, never
// derived from internal errors.
const (
	AnalysisPrefix     = "🔍 **Hasil Analisis**\n\n"
	CannotAnalyze      = "Maaf, aku tidak bisa menganalisis media ini."
	ErrorPrefix        = "⚠️ "
	WelcomePrefix      = "👋 "
	GenericFailure     = "Maaf, terjadi kesalahan. Silakan coba lagi."
	MediaFailure       = "Maaf, aku tidak bisa memproses media kamu."
	ResetConfirmation  = "Percakapan sudah direset. Kita mulai dari awal ya!"
	ModerationRefusal  = "Maaf, aku tidak bisa menanggapi pesan itu."
	FollowUpTemplate   = "Ada yang ingin kamu tanyakan tentang %s ini?"
	AnalysisKindHeader = "**%s diterima!**"
)

var (
	htmlTagRe       = regexp.MustCompile(`(?s)<\s*/?\s*[a-zA-Z][^>]*>`)
	fencedCodeRe    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe    = regexp.MustCompile("`[^`\n]+`")
	headerRe        = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	boldRe          = regexp.MustCompile(`\*\*([^*\n]+)\*\*|__([^_\n]+)__`)
	italicStarRe    = regexp.MustCompile(`\*([^*\n]+)\*`)
	strikeRe        = regexp.MustCompile(`~~([^~\n]+)~~`)
	linkRe          = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	bulletRe        = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	numberedRe      = regexp.MustCompile(`(?m)^(\s*)\d+[.)]\s+`)
	horizontalRe    = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	quoteRe         = regexp.MustCompile(`(?m)^\s*>\s*`)
	blankCollapseRe = regexp.MustCompile(`\n(\s*\n)+`)
)

const codePlaceholder = "\x00CODE%d\x00"

// Render converts rich text to WhatsApp channel text. It is total: malformed
// input degrades to a best-effort stripped fallback, never an error.
func Render(richText string) string {
	text := richText
	if htmlTagRe.MatchString(text) {
		converted, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			text = htmlTagRe.ReplaceAllString(text, "")
		} else {
			text = converted
		}
	}

	// Code spans keep their exact content; park them before transforming.
	var snippets []string
	park := func(s string) string {
		snippets = append(snippets, s)
		return fmt.Sprintf(codePlaceholder, len(snippets)-1)
	}
	text = fencedCodeRe.ReplaceAllStringFunc(text, park)
	text = inlineCodeRe.ReplaceAllStringFunc(text, park)

	text = headerRe.ReplaceAllString(text, "")
	text = horizontalRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := strings.Trim(m, "*_")
		return "\x01" + inner + "\x01"
	})
	text = italicStarRe.ReplaceAllString(text, "_${1}_")
	text = strikeRe.ReplaceAllString(text, "~$1~")
	text = linkRe.ReplaceAllString(text, "$1")
	text = quoteRe.ReplaceAllString(text, "> ")
	text = bulletRe.ReplaceAllString(text, "${1}• ")
	text = numberedRe.ReplaceAllString(text, "${1}• ")
	text = strings.ReplaceAll(text, "\x01", "*")

	text = blankCollapseRe.ReplaceAllString(text, "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = strings.TrimSpace(text)

	for i, snippet := range snippets {
		text = strings.Replace(text, fmt.Sprintf(codePlaceholder, i), snippet, 1)
	}
	return text
}

// RenderAnalysis wraps a media-analysis body with its fixed prefix. An empty
// body yields the fixed cannot-analyze reply.
func RenderAnalysis(body string) string {
	if strings.TrimSpace(body) == "" {
		return CannotAnalyze
	}
	return Render(AnalysisPrefix + body)
}

// RenderError wraps an error notice body with its fixed prefix.
func RenderError(body string) string {
	return Render(ErrorPrefix + body)
}

// RenderWelcome wraps a welcome body with its fixed prefix.
func RenderWelcome(body string) string {
	return Render(WelcomePrefix + body)
}
