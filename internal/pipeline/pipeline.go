// Package pipeline is the message-processing orchestrator: it validates an
// inbound message, routes between reset, media, and text handling, drives the
// stores and the generative backend, and maps every failure into a fixed
// user-safe reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bayy420-999/wulang-ai/internal/attachment"
	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/conversation"
	"github.com/bayy420-999/wulang-ai/internal/genai"
	"github.com/bayy420-999/wulang-ai/internal/pending"
	"github.com/bayy420-999/wulang-ai/internal/prompt"
	"github.com/bayy420-999/wulang-ai/internal/user"
	"github.com/bayy420-999/wulang-ai/internal/waformat"
)

// ResetCommand short-circuits the turn and wipes the sender's conversations.
const ResetCommand = "/reset"

// UserStore is the user persistence surface the pipeline depends on.
type UserStore interface {
	FindByPhone(ctx context.Context, phone string) (user.User, error)
	Create(ctx context.Context, phone, displayName string) (user.User, error)
	UpdateName(ctx context.Context, userID, displayName string) error
}

// ConversationStore is the conversation/message persistence surface.
type ConversationStore interface {
	FindActive(ctx context.Context, userID string) (conversation.Conversation, error)
	Create(ctx context.Context, userID string) (conversation.Conversation, error)
	Append(ctx context.Context, input conversation.AppendInput) (conversation.Message, error)
	ListTrailing(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// AttachmentStore is the attachment persistence surface.
type AttachmentStore interface {
	Create(ctx context.Context, userID string, kind attachment.Kind, fileName string) (attachment.Attachment, error)
	UpdateSummary(ctx context.Context, attachmentID, summary string) error
}

// Backend is the generative backend surface.
type Backend interface {
	Generate(ctx context.Context, turns []prompt.Turn) (string, error)
	AnalyzeAttachment(ctx context.Context, desc genai.AttachmentDescriptor, instruction string) (string, error)
	Moderate(ctx context.Context, text string) (genai.ModerationResult, error)
}

// Media is the decoded attachment payload of an inbound message.
type Media struct {
	Data         []byte
	FileName     string
	DeclaredMime string
	Caption      string
}

// Input is one decoded inbound message.
type Input struct {
	SenderAddress string `validate:"required"`
	Text          string `validate:"required_without=Attachment"`
	DisplayName   string
	Attachment    *Media
}

// Result is what the pipeline hands back to the transport. Reply is always
// safe to forward verbatim; Welcome, when set, is a separate greeting to send
// first (the sender was unknown until this turn).
type Result struct {
	Success        bool
	Reply          string
	Welcome        string
	ConversationID string
	AttachmentID   string
	Err            string
	ErrKind        Kind
}

// Pipeline orchestrates one inbound message to completion.
type Pipeline struct {
	users         UserStore
	conversations ConversationStore
	attachments   AttachmentStore
	pending       *pending.Cache
	backend       Backend
	assembler     *prompt.Assembler
	validate      *validator.Validate
	botName       string
	historyLimit  int
	maxMediaBytes int64
	logger        *slog.Logger
}

// New creates the pipeline.
func New(
	log *slog.Logger,
	users UserStore,
	conversations ConversationStore,
	attachments AttachmentStore,
	pendingCache *pending.Cache,
	backend Backend,
	assembler *prompt.Assembler,
	cfg config.ChatConfig,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = config.DefaultHistoryLimit
	}
	maxMediaBytes := cfg.MaxMediaBytes
	if maxMediaBytes <= 0 {
		maxMediaBytes = config.DefaultMaxMediaBytes
	}
	botName := strings.TrimSpace(cfg.BotName)
	if botName == "" {
		botName = "Wulang"
	}
	return &Pipeline{
		users:         users,
		conversations: conversations,
		attachments:   attachments,
		pending:       pendingCache,
		backend:       backend,
		assembler:     assembler,
		validate:      validator.New(),
		botName:       botName,
		historyLimit:  historyLimit,
		maxMediaBytes: maxMediaBytes,
		logger:        log.With(slog.String("service", "pipeline")),
	}
}

// Process runs one inbound message through the full sequence. It never
// returns an error: every failure is mapped onto a fixed localized reply with
// the cause retained only in the structured result.
func (p *Pipeline) Process(ctx context.Context, in Input) Result {
	if err := p.validate.Struct(in); err != nil {
		return p.failure(fmt.Errorf("%w: %v", ErrValidation, err))
	}

	if strings.EqualFold(strings.TrimSpace(in.Text), ResetCommand) && in.Attachment == nil {
		res, err := p.reset(ctx, in)
		if err != nil {
			return p.failure(err)
		}
		return res
	}

	res, err := p.run(ctx, in)
	if err != nil {
		return p.failure(err)
	}
	return res
}

// reset wipes the sender's conversations and pending attachment. A sender we
// have never seen gets the same confirmation; there is nothing to delete.
func (p *Pipeline) reset(ctx context.Context, in Input) (Result, error) {
	u, err := p.users.FindByPhone(ctx, in.SenderAddress)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return Result{}, fmt.Errorf("resolve user for reset: %w", err)
	}
	if err == nil {
		if err := p.conversations.DeleteByUser(ctx, u.ID); err != nil {
			return Result{}, fmt.Errorf("reset conversations: %w", err)
		}
	}
	p.pending.Remove(in.SenderAddress)
	p.logger.Info("conversation reset", slog.String("sender", in.SenderAddress))
	return Result{
		Success: true,
		Reply:   waformat.Render(waformat.ResetConfirmation),
	}, nil
}

// analysisOutcome carries what the media branch produced for the reply step.
type analysisOutcome struct {
	done         bool
	focused      bool
	kind         attachment.Kind
	text         string
	attachmentID string
}

func (p *Pipeline) run(ctx context.Context, in Input) (Result, error) {
	u, created, err := p.resolveUser(ctx, in)
	if err != nil {
		return Result{}, err
	}

	conv, err := p.resolveConversation(ctx, u.ID)
	if err != nil {
		return Result{}, err
	}

	var outcome analysisOutcome
	if in.Attachment != nil {
		outcome, err = p.handleMedia(ctx, in, u)
	} else {
		outcome, err = p.claimPending(ctx, in)
	}
	if err != nil {
		return Result{}, err
	}

	// Window first, then the append: the current turn is handed to the
	// assembler separately and must not resurface as history.
	history, err := p.conversations.ListTrailing(ctx, conv.ID, p.historyLimit)
	if err != nil {
		return Result{}, fmt.Errorf("fetch trailing history: %w", err)
	}

	if _, err := p.conversations.Append(ctx, conversation.AppendInput{
		ConversationID: conv.ID,
		Role:           conversation.RoleUser,
		Content:        in.Text,
		AttachmentID:   outcome.attachmentID,
	}); err != nil {
		return Result{}, fmt.Errorf("persist user message: %w", err)
	}

	var reply string
	switch {
	case outcome.done && outcome.focused:
		reply = waformat.RenderAnalysis(outcome.text)
	case outcome.done:
		reply = waformat.RenderAnalysis(p.composeUnfocused(outcome))
	default:
		reply, err = p.generateReply(ctx, u, history, in.Text)
		if err != nil {
			return Result{}, err
		}
	}

	if _, err := p.conversations.Append(ctx, conversation.AppendInput{
		ConversationID: conv.ID,
		Role:           conversation.RoleAssistant,
		Content:        reply,
	}); err != nil {
		return Result{}, fmt.Errorf("persist assistant message: %w", err)
	}

	res := Result{
		Success:        true,
		Reply:          reply,
		ConversationID: conv.ID,
		AttachmentID:   outcome.attachmentID,
	}
	if created {
		res.Welcome = waformat.RenderWelcome(fmt.Sprintf(
			"Halo! Aku %s. Kirim pesan, gambar, atau dokumen yang ingin kamu tanyakan ya.", p.botName))
	}
	return res, nil
}

func (p *Pipeline) resolveUser(ctx context.Context, in Input) (user.User, bool, error) {
	u, err := p.users.FindByPhone(ctx, in.SenderAddress)
	if errors.Is(err, user.ErrNotFound) {
		created, err := p.users.Create(ctx, in.SenderAddress, in.DisplayName)
		if err != nil {
			return user.User{}, false, fmt.Errorf("create user: %w", err)
		}
		return created, true, nil
	}
	if err != nil {
		return user.User{}, false, fmt.Errorf("find user: %w", err)
	}
	// Back-fill the name once; never overwrite a stored one.
	if u.DisplayName == "" && strings.TrimSpace(in.DisplayName) != "" {
		if err := p.users.UpdateName(ctx, u.ID, in.DisplayName); err != nil {
			return user.User{}, false, fmt.Errorf("backfill user name: %w", err)
		}
		u.DisplayName = in.DisplayName
	}
	return u, false, nil
}

func (p *Pipeline) resolveConversation(ctx context.Context, userID string) (conversation.Conversation, error) {
	conv, err := p.conversations.FindActive(ctx, userID)
	if errors.Is(err, conversation.ErrNoActive) {
		conv, err = p.conversations.Create(ctx, userID)
		if err != nil {
			return conversation.Conversation{}, fmt.Errorf("create conversation: %w", err)
		}
		return conv, nil
	}
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("find active conversation: %w", err)
	}
	return conv, nil
}

// handleMedia extracts, persists, and analyzes the attachment of this turn.
// Uncaptioned media is parked in the pending cache so the next text message
// can focus the analysis.
func (p *Pipeline) handleMedia(ctx context.Context, in Input, u user.User) (analysisOutcome, error) {
	media := in.Attachment
	ext, err := attachment.Extract(media.Data, media.FileName, media.DeclaredMime, p.maxMediaBytes)
	if err != nil {
		return analysisOutcome{}, fmt.Errorf("extract media: %w", err)
	}

	att, err := p.attachments.Create(ctx, u.ID, ext.Kind, media.FileName)
	if err != nil {
		return analysisOutcome{}, fmt.Errorf("persist attachment: %w", err)
	}

	caption := strings.TrimSpace(media.Caption)
	summary, err := p.backend.AnalyzeAttachment(ctx, genai.AttachmentDescriptor{
		Kind:           ext.Kind,
		FileName:       media.FileName,
		Mime:           media.DeclaredMime,
		Data:           media.Data,
		TextualContent: ext.TextualContent,
	}, caption)
	if err != nil {
		return analysisOutcome{}, fmt.Errorf("analyze attachment: %w", err)
	}
	if err := p.attachments.UpdateSummary(ctx, att.ID, summary); err != nil {
		return analysisOutcome{}, fmt.Errorf("store attachment summary: %w", err)
	}

	if caption == "" {
		p.pending.Put(in.SenderAddress, pending.Entry{
			Data:         media.Data,
			Kind:         ext.Kind,
			FileName:     media.FileName,
			Mime:         media.DeclaredMime,
			AttachmentID: att.ID,
		})
	}

	return analysisOutcome{
		done:         true,
		focused:      caption != "",
		kind:         ext.Kind,
		text:         summary,
		attachmentID: att.ID,
	}, nil
}

// claimPending treats a text-only message as the deferred caption of a parked
// attachment, if one exists. The entry is single-shot: it is removed whether
// the focused analysis succeeds or fails.
func (p *Pipeline) claimPending(ctx context.Context, in Input) (analysisOutcome, error) {
	entry, ok := p.pending.Get(in.SenderAddress)
	if !ok {
		return analysisOutcome{}, nil
	}
	p.pending.Remove(in.SenderAddress)

	ext, err := attachment.Extract(entry.Data, entry.FileName, entry.Mime, p.maxMediaBytes)
	if err != nil {
		return analysisOutcome{}, fmt.Errorf("extract pending media: %w", err)
	}
	summary, err := p.backend.AnalyzeAttachment(ctx, genai.AttachmentDescriptor{
		Kind:           entry.Kind,
		FileName:       entry.FileName,
		Mime:           entry.Mime,
		Data:           entry.Data,
		TextualContent: ext.TextualContent,
	}, in.Text)
	if err != nil {
		return analysisOutcome{}, fmt.Errorf("analyze pending attachment: %w", err)
	}
	if entry.AttachmentID != "" {
		if err := p.attachments.UpdateSummary(ctx, entry.AttachmentID, summary); err != nil {
			return analysisOutcome{}, fmt.Errorf("store pending attachment summary: %w", err)
		}
	}
	return analysisOutcome{
		done:         true,
		focused:      true,
		kind:         entry.Kind,
		text:         summary,
		attachmentID: entry.AttachmentID,
	}, nil
}

// generateReply runs the pure-text path: moderation, context assembly, then
// the backend call.
func (p *Pipeline) generateReply(ctx context.Context, u user.User, history []conversation.Message, text string) (string, error) {
	verdict, err := p.backend.Moderate(ctx, text)
	if err != nil {
		return "", fmt.Errorf("moderate message: %w", err)
	}
	if !verdict.Appropriate {
		p.logger.Info("message rejected by moderation", slog.String("verdict", verdict.Verdict))
		return waformat.Render(waformat.ModerationRefusal), nil
	}

	turns := p.assembler.Assemble(u, history, text, nil)
	answer, err := p.backend.Generate(ctx, turns)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return waformat.Render(answer), nil
}

func (p *Pipeline) composeUnfocused(outcome analysisOutcome) string {
	kind := kindDisplay(outcome.kind)
	header := fmt.Sprintf(waformat.AnalysisKindHeader, capitalize(kind))
	followUp := fmt.Sprintf(waformat.FollowUpTemplate, kind)
	return header + "\n\n" + outcome.text + "\n\n" + followUp
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func kindDisplay(kind attachment.Kind) string {
	switch kind {
	case attachment.KindImage:
		return "gambar"
	case attachment.KindDocument:
		return "dokumen"
	default:
		return string(kind)
	}
}

func (p *Pipeline) failure(err error) Result {
	kind := classify(err)
	p.logger.Error("turn failed",
		slog.String("kind", string(kind)),
		slog.Any("error", err),
	)
	reply := waformat.GenericFailure
	if kind == KindUnsupportedMedia || kind == KindExtraction {
		reply = waformat.MediaFailure
	}
	return Result{
		Success: false,
		Reply:   waformat.RenderError(reply),
		Err:     err.Error(),
		ErrKind: kind,
	}
}
