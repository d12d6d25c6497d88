package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayy420-999/wulang-ai/internal/attachment"
	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/conversation"
	"github.com/bayy420-999/wulang-ai/internal/prompt"
)

func newBackendStub(t *testing.T, reply string, capture *apiRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if capture != nil {
			require.NoError(t, json.Unmarshal(body, capture))
		}
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": reply}}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testClient(srv *httptest.Server, strict bool) *Client {
	return NewClient(nil, config.GeminiConfig{
		BaseURL:          srv.URL,
		APIKey:           "test-key",
		Model:            "test-model",
		StrictModeration: strict,
	})
}

func TestGenerateMapsRoles(t *testing.T) {
	var captured apiRequest
	srv := newBackendStub(t, "Hi there!", &captured)
	defer srv.Close()

	turns := []prompt.Turn{
		prompt.NewTextTurn(conversation.RoleSystem, "You are Wulang."),
		prompt.NewTextTurn(conversation.RoleUser, "Wulang, help me"),
		prompt.NewTextTurn(conversation.RoleAssistant, "Tentu!"),
	}
	out, err := testClient(srv, false).Generate(context.Background(), turns)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", out)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You are Wulang.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 2)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
}

func TestGenerateBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv, false).Generate(context.Background(), []prompt.Turn{
		prompt.NewTextTurn(conversation.RoleUser, "halo"),
	})
	require.ErrorIs(t, err, ErrBackend)
}

func TestAnalyzeAttachmentImageInline(t *testing.T) {
	var captured apiRequest
	srv := newBackendStub(t, "Sebuah foto kucing.", &captured)
	defer srv.Close()

	out, err := testClient(srv, false).AnalyzeAttachment(context.Background(), AttachmentDescriptor{
		Kind: attachment.KindImage,
		Mime: "image/png",
		Data: []byte{0x89, 0x50},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Sebuah foto kucing.", out)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, DefaultAnalysisInstruction, parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
}

func TestAnalyzeAttachmentDocumentText(t *testing.T) {
	var captured apiRequest
	srv := newBackendStub(t, "Ringkasan dokumen.", &captured)
	defer srv.Close()

	_, err := testClient(srv, false).AnalyzeAttachment(context.Background(), AttachmentDescriptor{
		Kind:           attachment.KindDocument,
		FileName:       "laporan.pdf",
		TextualContent: "Isi laporan tahunan.",
	}, "Apa kesimpulannya?")
	require.NoError(t, err)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 1)
	text := captured.Contents[0].Parts[0].Text
	assert.Contains(t, text, "Apa kesimpulannya?")
	assert.Contains(t, text, "laporan.pdf")
	assert.Contains(t, text, "Isi laporan tahunan.")
}

func TestModerateLegacyContainsCheck(t *testing.T) {
	// The default verdict matching approves both answers because
	// "INAPPROPRIATE" contains "appropriate".
	tests := []struct {
		verdict string
		want    bool
	}{
		{"APPROPRIATE", true},
		{"INAPPROPRIATE", true},
		{"The message is inappropriate.", true},
		{"REJECTED", false},
	}
	for _, tt := range tests {
		t.Run(tt.verdict, func(t *testing.T) {
			srv := newBackendStub(t, tt.verdict, nil)
			defer srv.Close()

			res, err := testClient(srv, false).Moderate(context.Background(), "halo")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Appropriate)
			assert.Equal(t, tt.verdict, res.Verdict)
		})
	}
}

func TestModerateStrictMode(t *testing.T) {
	tests := []struct {
		verdict string
		want    bool
	}{
		{"APPROPRIATE", true},
		{" appropriate \n", true},
		{"INAPPROPRIATE", false},
		{"The message is appropriate.", false},
	}
	for _, tt := range tests {
		t.Run(tt.verdict, func(t *testing.T) {
			srv := newBackendStub(t, tt.verdict, nil)
			defer srv.Close()

			res, err := testClient(srv, true).Moderate(context.Background(), "halo")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Appropriate)
		})
	}
}
