// Package telegram connects the bridge to the Telegram Bot API: long polling
// for inbound messages, replies, and file resolution for downloads.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/starford/tgvault/internal/models"
)

// Defaults for the public Bot API.
const (
	DefaultAPIEndpoint = tgbotapi.APIEndpoint
	DefaultFileServer  = "https://api.telegram.org/file"
	DefaultPollTimeout = 30
)

// Config holds bot connection settings.
type Config struct {
	Token       string
	APIEndpoint string // format string with two %s: token and method
	FileServer  string // base URL; downloads go to <FileServer>/bot<token>/<path>
	PollTimeout int    // seconds
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg models.IncomingMessage)

// Bot wraps a tgbotapi.BotAPI.
type Bot struct {
	api         *tgbotapi.BotAPI
	token       string
	fileServer  string
	pollTimeout int
	logger      *slog.Logger
}

// New connects to the Bot API (getMe) and returns a Bot.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})

	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = DefaultAPIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}

	fileServer := strings.TrimRight(cfg.FileServer, "/")
	if fileServer == "" {
		fileServer = DefaultFileServer
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	logger.Info("telegram: connected", slog.String("username", api.Self.UserName))

	return &Bot{
		api:         api,
		token:       cfg.Token,
		fileServer:  fileServer,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// Run long-polls for updates and calls handler for each message in its own
// goroutine until ctx is cancelled. In-flight handlers are not awaited.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("telegram: polling started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			// The poller closes the channel after its current long poll;
			// drain it without holding up shutdown.
			go func() {
				for range updates {
				}
			}()
			b.logger.Info("telegram: polling stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				b.logger.Info("telegram: updates channel closed")
				return nil
			}
			raw := update.Message
			if raw == nil {
				raw = update.ChannelPost
			}
			msg, ok := ToIncoming(raw)
			if !ok {
				continue
			}
			b.logger.Debug("telegram: inbound received",
				slog.Int64("chat_id", msg.ChatID),
				slog.String("chat", msg.ChatName),
				slog.Int("message_id", msg.ID))
			go b.dispatch(ctx, handler, msg)
		}
	}
}

// dispatch runs handler for one message. A panic is logged and contained so
// the poller keeps serving other chats.
func (b *Bot) dispatch(ctx context.Context, handler Handler, msg models.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("telegram: handler panic",
				slog.Int64("chat_id", msg.ChatID),
				slog.Int("message_id", msg.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	handler(ctx, msg)
}

// Reply sends text into chatID, threaded under replyTo when non-zero.
func (b *Bot) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyToMessageID = replyTo
	if _, err := b.api.Send(out); err != nil {
		return fmt.Errorf("telegram: send reply: %w", err)
	}
	return nil
}

// ResolveFile asks the Bot API for the file path of fileID and returns its
// download URL on the configured file server.
func (b *Bot) ResolveFile(ctx context.Context, fileID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("telegram: get file: %w", err)
	}
	if f.FilePath == "" {
		return "", fmt.Errorf("telegram: file %s has no path", fileID)
	}
	return FileURL(b.fileServer, b.token, f.FilePath), nil
}

// FileURL builds <base>/bot<token>/<path>.
func FileURL(base, token, filePath string) string {
	return strings.TrimRight(base, "/") + "/bot" + token + "/" + strings.TrimLeft(filePath, "/")
}

// ToIncoming converts a Bot API message into the bridge's message model.
// Messages with neither text nor supported media are rejected.
func ToIncoming(m *tgbotapi.Message) (models.IncomingMessage, bool) {
	if m == nil || m.Chat == nil {
		return models.IncomingMessage{}, false
	}
	msg := models.IncomingMessage{
		ID:       m.MessageID,
		ChatID:   m.Chat.ID,
		ChatName: chatName(m.Chat),
		Sender:   senderName(m),
		Date:     time.Unix(int64(m.Date), 0).UTC(),
	}

	switch {
	case len(m.Photo) > 0:
		photos := make([]models.MediaRef, 0, len(m.Photo))
		for _, p := range m.Photo {
			photos = append(photos, models.MediaRef{FileID: p.FileID})
		}
		msg.Content = models.PhotoContent{Caption: m.Caption, Photos: photos}
	case m.Document != nil:
		msg.Content = models.DocumentContent{
			Caption: m.Caption,
			Document: models.MediaRef{
				FileID:   m.Document.FileID,
				FileName: m.Document.FileName,
				MimeType: m.Document.MimeType,
			},
		}
	default:
		text := m.Text
		if strings.TrimSpace(text) == "" {
			text = m.Caption
		}
		if strings.TrimSpace(text) == "" {
			return models.IncomingMessage{}, false
		}
		msg.Content = models.TextContent{Text: text}
	}
	return msg, true
}

func chatName(c *tgbotapi.Chat) string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	if u := strings.TrimSpace(c.UserName); u != "" {
		return u
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func senderName(m *tgbotapi.Message) string {
	if m.From != nil {
		if u := strings.TrimSpace(m.From.UserName); u != "" {
			return u
		}
		if n := strings.TrimSpace(m.From.FirstName + " " + m.From.LastName); n != "" {
			return n
		}
	}
	if m.SenderChat != nil {
		if t := strings.TrimSpace(m.SenderChat.Title); t != "" {
			return t
		}
	}
	if strings.TrimSpace(m.AuthorSignature) != "" {
		return strings.TrimSpace(m.AuthorSignature)
	}
	return chatName(m.Chat)
}

type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
