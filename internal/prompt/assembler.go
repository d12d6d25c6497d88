package prompt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bayy420-999/wulang-ai/internal/attachment"
	"github.com/bayy420-999/wulang-ai/internal/conversation"
	"github.com/bayy420-999/wulang-ai/internal/user"
)

// DefaultHistoryLimit bounds the trailing window when none is configured.
const DefaultHistoryLimit = 10

// CurrentAttachment is an attachment accompanying the current turn.
type CurrentAttachment struct {
	Kind     attachment.Kind
	FileName string
	Data     []byte
	Mime     string
}

// Assembler builds backend input from conversation state.
type Assembler struct {
	botName      string
	historyLimit int
	logger       *slog.Logger
}

// NewAssembler creates a context assembler.
func NewAssembler(log *slog.Logger, botName string, historyLimit int) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(botName) == "" {
		botName = "Wulang"
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Assembler{
		botName:      botName,
		historyLimit: historyLimit,
		logger:       log.With(slog.String("service", "prompt_assembler")),
	}
}

// Assemble produces the ordered turn list: one system turn, the trailing
// history, then the current user turn. History entries with no content are
// skipped; the window is hard-cut to the configured limit before assembly.
func (a *Assembler) Assemble(u user.User, history []conversation.Message, currentText string, attachments []CurrentAttachment) []Turn {
	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, NewTextTurn(conversation.RoleSystem, a.systemPrompt(u)))

	if len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}
	for _, msg := range history {
		content := historyContent(msg)
		if strings.TrimSpace(content) == "" {
			continue
		}
		role, err := conversation.ParseRole(msg.Role)
		if err != nil {
			// Legacy rows may carry labels from older deployments. Keep
			// them as user turns instead of dropping history.
			a.logger.Warn("coercing unknown history role",
				slog.String("message_id", msg.ID),
				slog.String("role", msg.Role),
			)
			role = conversation.RoleUser
		}
		turns = append(turns, NewTextTurn(role, content))
	}

	turns = append(turns, a.currentTurn(currentText, attachments))
	return turns
}

func (a *Assembler) currentTurn(text string, attachments []CurrentAttachment) Turn {
	var annotations []string
	segments := make([]Segment, 0, len(attachments)+1)
	for _, att := range attachments {
		if att.Kind == attachment.KindImage {
			segments = append(segments, ImageSegment{Data: att.Data, Mime: att.Mime})
			continue
		}
		annotations = append(annotations, fmt.Sprintf("%s: %s", strings.ToUpper(string(att.Kind)), att.FileName))
	}

	if len(annotations) > 0 {
		text = strings.TrimSpace(text + "\n" + strings.Join(annotations, "\n"))
	}
	textSegments := []Segment{TextSegment{Text: text}}
	return Turn{Role: conversation.RoleUser, Segments: append(textSegments, segments...)}
}

// historyContent rewrites an entry that references an analyzed attachment so
// its summary stays visible without re-sending the binary.
func historyContent(msg conversation.Message) string {
	if strings.TrimSpace(msg.AttachmentSummary) == "" {
		return msg.Content
	}
	kind := msg.AttachmentKind
	if kind == "" {
		kind = "media"
	}
	block := fmt.Sprintf("[Konteks media: %s]\n%s", kind, msg.AttachmentSummary)
	if strings.TrimSpace(msg.Content) == "" {
		return block
	}
	return block + "\n\n" + msg.Content
}

func (a *Assembler) systemPrompt(u user.User) string {
	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		name = "Kak"
	}
	return fmt.Sprintf(`Kamu adalah %s, asisten pribadi yang ramah di WhatsApp.

Lawan bicaramu:
- nama: %s
- nomor: %s

Panduan menjawab:
- Jawab dalam bahasa yang dipakai pengguna.
- Jawab singkat, jelas, dan ramah.
- Untuk pertanyaan kompleks, jelaskan langkah demi langkah.
- Kalau tidak yakin, katakan dengan jujur.`,
		a.botName,
		name,
		u.PhoneNumber,
	)
}
