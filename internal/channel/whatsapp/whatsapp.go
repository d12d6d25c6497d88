// Package whatsapp connects the message pipeline to WhatsApp through
// whatsmeow: QR login, inbound decode (text, image, document), media
// download, and reply delivery.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	qrterminal "github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"

	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/pipeline"
)

const (
	downloadTimeout = 20 * time.Second
	sendTimeout     = 30 * time.Second
	turnTimeout     = 2 * time.Minute
)

// Adapter is the WhatsApp transport. It owns the whatsmeow client and the
// sqlite session store and forwards decoded messages to the pipeline.
type Adapter struct {
	cfg       config.WhatsAppConfig
	pipe      *pipeline.Pipeline
	client    *whatsmeow.Client
	container *sqlstore.Container
	cancel    context.CancelFunc
	handlerID uint32
	logger    *slog.Logger
}

// New opens the session store and builds the client. Connecting happens in
// Start.
func New(log *slog.Logger, cfg config.WhatsAppConfig, pipe *pipeline.Pipeline) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	storePath := strings.TrimSpace(cfg.StorePath)
	if storePath == "" {
		storePath = "whatsapp-store.db"
	}
	if dir := filepath.Dir(storePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session store dir: %w", err)
		}
	}

	storeDSN := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", filepath.ToSlash(storePath))
	container, err := sqlstore.New(context.Background(), "sqlite", storeDSN, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("get device: %w", err)
	}

	a := &Adapter{
		cfg:       cfg,
		pipe:      pipe,
		client:    whatsmeow.NewClient(device, waLog.Noop),
		container: container,
		logger:    log.With(slog.String("service", "whatsapp")),
	}
	a.handlerID = a.client.AddEventHandler(a.handleEvent)
	return a, nil
}

// Start connects the client, running the QR login flow when the device has
// no session yet.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.client.Store.ID == nil {
		qrChan, err := a.client.GetQRChannel(ctx)
		if err != nil {
			a.cancel()
			return fmt.Errorf("get qr channel: %w", err)
		}
		go a.consumeQR(ctx, qrChan)
	}

	if err := a.client.Connect(); err != nil {
		a.cancel()
		return fmt.Errorf("connect: %w", err)
	}

	go func() {
		<-ctx.Done()
		a.client.Disconnect()
	}()

	a.logger.Info("connected")
	return nil
}

// Stop disconnects and closes the session store.
func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.client != nil {
		if a.handlerID != 0 {
			a.client.RemoveEventHandler(a.handlerID)
			a.handlerID = 0
		}
		a.client.Disconnect()
	}
	if a.container != nil {
		if err := a.container.Close(); err != nil {
			return fmt.Errorf("close session store: %w", err)
		}
		a.container = nil
	}
	a.logger.Info("stopped")
	return nil
}

// Send delivers one text message to the address.
func (a *Adapter) Send(address, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	jid, err := parseJID(address)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", address, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if _, err := a.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (a *Adapter) consumeQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-qrChan:
			if !ok {
				return
			}
			switch evt.Event {
			case whatsmeow.QRChannelEventCode:
				a.logger.Info("scan the QR code below to login")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			default:
				if evt.Error != nil {
					a.logger.Error("login event",
						slog.String("event", evt.Event),
						slog.Any("error", evt.Error),
					)
				} else {
					a.logger.Info("login event", slog.String("event", evt.Event))
				}
			}
		}
	}
}

// handleEvent dispatches synchronously: the pipeline's resolve-or-create
// logic and the pending cache are not safe under concurrent turns for the
// same sender, so each message runs to completion before the next.
func (a *Adapter) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		a.handleMessage(e)
	}
}

func (a *Adapter) handleMessage(evt *events.Message) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	sender := evt.Info.Sender.ToNonAD()
	if !a.isAllowed(sender) {
		a.logger.Warn("rejected message", slog.String("sender", sender.String()))
		return
	}

	in, ok := a.decode(evt)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	res := a.pipe.Process(ctx, in)
	address := evt.Info.Chat.String()
	if res.Welcome != "" {
		if err := a.Send(address, res.Welcome); err != nil {
			a.logger.Error("send welcome failed", slog.Any("error", err))
		}
	}
	if err := a.Send(address, res.Reply); err != nil {
		a.logger.Error("send reply failed", slog.Any("error", err))
	}
}

// decode flattens a WhatsApp event into pipeline input. Returns false for
// message kinds the bot does not handle.
func (a *Adapter) decode(evt *events.Message) (pipeline.Input, bool) {
	msg := evt.Message
	in := pipeline.Input{
		SenderAddress: evt.Info.Sender.ToNonAD().User,
		DisplayName:   strings.TrimSpace(evt.Info.PushName),
	}

	text := strings.TrimSpace(msg.GetConversation())
	if text == "" && msg.GetExtendedTextMessage() != nil {
		text = strings.TrimSpace(msg.GetExtendedTextMessage().GetText())
	}
	in.Text = text

	if image := msg.GetImageMessage(); image != nil {
		data, err := a.download(image)
		if err != nil {
			a.logger.Error("download image failed", slog.Any("error", err))
			return pipeline.Input{}, false
		}
		caption := strings.TrimSpace(image.GetCaption())
		in.Text = caption
		in.Attachment = &pipeline.Media{
			Data:         data,
			FileName:     "image",
			DeclaredMime: mediaMime(image.GetMimetype(), data, "image/jpeg"),
			Caption:      caption,
		}
		return in, true
	}

	if doc := msg.GetDocumentMessage(); doc != nil {
		data, err := a.download(doc)
		if err != nil {
			a.logger.Error("download document failed", slog.Any("error", err))
			return pipeline.Input{}, false
		}
		caption := strings.TrimSpace(doc.GetCaption())
		fileName := strings.TrimSpace(doc.GetFileName())
		if fileName == "" {
			fileName = "document"
		}
		in.Text = caption
		in.Attachment = &pipeline.Media{
			Data:         data,
			FileName:     fileName,
			DeclaredMime: mediaMime(doc.GetMimetype(), data, "application/pdf"),
			Caption:      caption,
		}
		return in, true
	}

	if in.Text == "" {
		return pipeline.Input{}, false
	}
	return in, true
}

func (a *Adapter) download(msg whatsmeow.DownloadableMessage) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
	defer cancel()
	return a.client.Download(ctx, msg)
}

func (a *Adapter) isAllowed(sender types.JID) bool {
	if len(a.cfg.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range a.cfg.AllowFrom {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == sender.String() || strings.TrimPrefix(allowed, "+") == sender.User {
			return true
		}
	}
	return false
}

func mediaMime(declared string, data []byte, fallback string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		declared = http.DetectContentType(data)
	}
	if declared == "application/octet-stream" {
		declared = fallback
	}
	return declared
}

func parseJID(raw string) (types.JID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.EmptyJID, fmt.Errorf("empty jid")
	}
	if strings.Contains(raw, "@") {
		return types.ParseJID(raw)
	}
	user := strings.TrimPrefix(raw, "+")
	if isDigitsOnly(user) {
		return types.NewJID(user, types.DefaultUserServer), nil
	}
	return types.ParseJID(raw)
}

func isDigitsOnly(val string) bool {
	if val == "" {
		return false
	}
	for _, r := range val {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
