// Package genai is the HTTP client for the generative-language backend
// (Gemini-style REST surface): free-form generation, attachment analysis,
// and the moderation check.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bayy420-999/wulang-ai/internal/attachment"
	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/conversation"
	"github.com/bayy420-999/wulang-ai/internal/prompt"
)

// ErrBackend wraps every failure coming out of the backend.
var ErrBackend = errors.New("backend error")

// DefaultAnalysisInstruction is the unfocused analysis prompt used when an
// attachment arrives without a caption.
const DefaultAnalysisInstruction = "Berikan deskripsi yang lengkap dan menyeluruh tentang isi media ini."

const moderationInstruction = "Classify the following message. Reply with exactly one word: APPROPRIATE or INAPPROPRIATE.\n\nMessage:\n"

// AttachmentDescriptor carries what the backend needs to analyze a binary.
// Images travel as raw bytes; documents as their extracted text.
type AttachmentDescriptor struct {
	Kind           attachment.Kind
	FileName       string
	Mime           string
	Data           []byte
	TextualContent string
}

// ModerationResult is the verdict of a moderation check.
type ModerationResult struct {
	Appropriate bool
	Verdict     string
}

// Client talks to the generative backend.
type Client struct {
	baseURL          string
	apiKey           string
	model            string
	strictModeration bool
	httpClient       *http.Client
	logger           *slog.Logger
}

// NewClient creates a backend client from config.
func NewClient(log *slog.Logger, cfg config.GeminiConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = config.DefaultGeminiBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = config.DefaultGeminiModel
	}
	return &Client{
		baseURL:          baseURL,
		apiKey:           cfg.APIKey,
		model:            model,
		strictModeration: cfg.StrictModeration,
		httpClient:       &http.Client{Timeout: cfg.Timeout()},
		logger:           log.With(slog.String("service", "genai")),
	}
}

// --- wire types ---

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inline_data,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiRequest struct {
	SystemInstruction *apiContent  `json:"system_instruction,omitempty"`
	Contents          []apiContent `json:"contents"`
}

type apiResponse struct {
	Candidates []struct {
		Content apiContent `json:"content"`
	} `json:"candidates"`
}

// Generate sends the assembled turns and returns the generated text.
func (c *Client) Generate(ctx context.Context, turns []prompt.Turn) (string, error) {
	req := apiRequest{}
	for _, turn := range turns {
		if turn.Role == conversation.RoleSystem {
			req.SystemInstruction = &apiContent{Parts: []apiPart{{Text: turn.Text()}}}
			continue
		}
		content := apiContent{Role: wireRole(turn.Role)}
		for _, seg := range turn.Segments {
			switch s := seg.(type) {
			case prompt.TextSegment:
				if strings.TrimSpace(s.Text) != "" {
					content.Parts = append(content.Parts, apiPart{Text: s.Text})
				}
			case prompt.ImageSegment:
				content.Parts = append(content.Parts, apiPart{InlineData: &apiInlineData{
					MimeType: s.Mime,
					Data:     base64.StdEncoding.EncodeToString(s.Data),
				}})
			}
		}
		if len(content.Parts) == 0 {
			continue
		}
		req.Contents = append(req.Contents, content)
	}
	return c.post(ctx, req)
}

// AnalyzeAttachment asks the backend to describe or answer a question about
// an attachment. instruction is the caption when present, otherwise the
// fixed default analysis instruction.
func (c *Client) AnalyzeAttachment(ctx context.Context, desc AttachmentDescriptor, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultAnalysisInstruction
	}

	content := apiContent{Role: "user"}
	switch desc.Kind {
	case attachment.KindImage:
		content.Parts = append(content.Parts,
			apiPart{Text: instruction},
			apiPart{InlineData: &apiInlineData{
				MimeType: desc.Mime,
				Data:     base64.StdEncoding.EncodeToString(desc.Data),
			}},
		)
	default:
		content.Parts = append(content.Parts, apiPart{Text: fmt.Sprintf(
			"%s\n\nDokumen %q:\n%s", instruction, desc.FileName, desc.TextualContent,
		)})
	}

	return c.post(ctx, apiRequest{Contents: []apiContent{content}})
}

// Moderate classifies text. The default verdict matching is the legacy
// contains-"appropriate" check, which also matches "INAPPROPRIATE" and
// therefore approves nearly everything; strict mode requires an exact
// APPROPRIATE answer.
func (c *Client) Moderate(ctx context.Context, text string) (ModerationResult, error) {
	verdict, err := c.post(ctx, apiRequest{Contents: []apiContent{{
		Role:  "user",
		Parts: []apiPart{{Text: moderationInstruction + text}},
	}}})
	if err != nil {
		return ModerationResult{}, err
	}
	return ModerationResult{
		Appropriate: c.isAppropriate(verdict),
		Verdict:     verdict,
	}, nil
}

func (c *Client) isAppropriate(verdict string) bool {
	if c.strictModeration {
		return strings.EqualFold(strings.TrimSpace(verdict), "appropriate")
	}
	return strings.Contains(strings.ToLower(verdict), "appropriate")
}

func (c *Client) post(ctx context.Context, payload apiRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrBackend, err)
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrBackend, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrBackend, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("backend request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("body_prefix", truncate(string(respBody), 300)),
		)
		return "", fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrBackend, err)
	}
	text := extractText(parsed)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrBackend)
	}

	c.logger.Debug("backend call complete",
		slog.Duration("elapsed", time.Since(started)),
		slog.Int("response_bytes", len(respBody)),
	)
	return text, nil
}

func extractText(resp apiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func wireRole(role conversation.Role) string {
	if role == conversation.RoleAssistant {
		return "model"
	}
	return "user"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
