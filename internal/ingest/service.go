// Package ingest turns one chat message into a stored note: filter, extract,
// fetch media, render, write, mirror and acknowledge.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/starford/tgvault/internal/apperr"
	"github.com/starford/tgvault/internal/extract"
	"github.com/starford/tgvault/internal/models"
	"github.com/starford/tgvault/internal/render"
	"github.com/starford/tgvault/internal/sse"
	"github.com/starford/tgvault/internal/storage"
)

// Reply texts sent back into the chat.
const (
	savedPrefix  = "Saved: "
	failedPrefix = "Failed to save note: "
)

// Replier answers in the chat a message came from.
type Replier interface {
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
}

// Fetcher downloads one attachment into the assets directory.
type Fetcher interface {
	Fetch(ctx context.Context, ref models.MediaRef, channel string) (models.LocalAsset, error)
}

// Sink is the local notes directory.
type Sink interface {
	Write(path string, content []byte) error
	Abs(rel string) (string, error)
}

// Mirror copies a stored note and its assets to remote storage.
type Mirror interface {
	Enabled() bool
	Mirror(ctx context.Context, notePath string, assetPaths []string)
}

// Indexer catalogues a freshly written note.
type Indexer interface {
	IndexFile(path string, data []byte) (bool, error)
}

// Publisher announces a freshly written note.
type Publisher interface {
	PublishIngested(data sse.IngestedData)
}

// Service is the per-message pipeline. Handle is safe for concurrent use.
type Service struct {
	replier   Replier
	fetcher   Fetcher
	sink      Sink
	mirror    Mirror
	indexer   Indexer
	publisher Publisher
	allowed   map[int64]struct{}
	now       func() time.Time
	logger    *slog.Logger

	// mirrorDone, when set, is called after each detached mirror run.
	mirrorDone func()
}

// Option configures a Service.
type Option func(*Service)

// WithAllowedChats restricts ingestion to the given chat ids. An empty list
// allows every chat.
func WithAllowedChats(ids []int64) Option {
	return func(s *Service) {
		if len(ids) == 0 {
			s.allowed = nil
			return
		}
		s.allowed = make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			s.allowed[id] = struct{}{}
		}
	}
}

// WithIndexer catalogues every stored note.
func WithIndexer(ix Indexer) Option {
	return func(s *Service) { s.indexer = ix }
}

// WithPublisher announces every stored note.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the clock used for note file names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. mirror may be nil.
func New(replier Replier, fetcher Fetcher, sink Sink, mirror Mirror, opts ...Option) *Service {
	s := &Service{
		replier: replier,
		fetcher: fetcher,
		sink:    sink,
		mirror:  mirror,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle runs the pipeline for msg and replies with the outcome. Messages
// from chats outside the allow-list are dropped without a reply. It never
// returns an error; failures are logged and reported to the chat.
func (s *Service) Handle(ctx context.Context, msg models.IncomingMessage) {
	logger := s.logger.With(
		slog.Int64("chat_id", msg.ChatID),
		slog.Int("message_id", msg.ID))

	if !s.Allowed(msg.ChatID) {
		logger.Debug("ingest: chat not in allow-list, dropped")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingest: panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			s.reply(ctx, logger, msg, failedPrefix+"internal error")
		}
	}()

	note, err := s.Ingest(ctx, msg)
	if err != nil {
		logger.Error("ingest: failed", slog.String("error", err.Error()))
		s.reply(ctx, logger, msg, failedPrefix+err.Error())
		return
	}

	logger.Info("ingest: note saved",
		slog.String("file", note.Name),
		slog.Int("assets", len(note.AssetPaths)))
	s.reply(ctx, logger, msg, savedPrefix+note.Name)
}

// Allowed reports whether chatID passes the allow-list.
func (s *Service) Allowed(chatID int64) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[chatID]
	return ok
}

// Ingest stores msg as a note and starts the remote mirror. Assets fetched
// before a failure stay on disk.
func (s *Service) Ingest(ctx context.Context, msg models.IncomingMessage) (*models.StoredNote, error) {
	switch msg.Content.(type) {
	case models.TextContent, models.PhotoContent, models.DocumentContent:
	default:
		return nil, fmt.Errorf("ingest: %w: %T", apperr.ErrUnsupportedMessage, msg.Content)
	}

	body := msg.Body()
	meta := extract.Extract(body)

	refs := msg.Attachments()
	assets := make([]models.LocalAsset, 0, len(refs))
	for _, ref := range refs {
		asset, err := s.fetcher.Fetch(ctx, ref, msg.ChatName)
		if err != nil {
			return nil, fmt.Errorf("ingest: fetch media: %w", err)
		}
		assets = append(assets, asset)
	}

	rels := make([]string, len(assets))
	abs := make([]string, len(assets))
	for i, a := range assets {
		rels[i] = a.RelPath
		abs[i] = a.Path
	}

	content := render.Render(models.NoteFields{
		Title:   meta.Title,
		Body:    body,
		Channel: msg.ChatName,
		Author:  msg.Sender,
		Date:    msg.Date,
		Assets:  rels,
		Tags:    meta.Tags,
		URLs:    meta.URLs,
	})

	name := storage.NoteName(s.now(), meta.Title)
	if err := s.sink.Write(name, []byte(content)); err != nil {
		return nil, fmt.Errorf("ingest: write note: %w", err)
	}
	notePath, err := s.sink.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve note path: %w", err)
	}

	note := &models.StoredNote{
		Name:       name,
		Path:       notePath,
		AssetPaths: abs,
		Content:    content,
	}

	s.catalogue(note, meta.Title, msg.ChatName)
	s.startMirror(ctx, note)
	return note, nil
}

func (s *Service) catalogue(note *models.StoredNote, title, channel string) {
	if s.indexer != nil {
		if _, err := s.indexer.IndexFile(note.Name, []byte(note.Content)); err != nil {
			s.logger.Warn("ingest: index failed",
				slog.String("file", note.Name),
				slog.String("error", err.Error()))
		}
	}
	if s.publisher != nil {
		s.publisher.PublishIngested(sse.IngestedData{
			Path:    note.Name,
			Title:   title,
			Channel: channel,
			Assets:  len(note.AssetPaths),
		})
	}
}

// startMirror hands the note to the mirror on its own goroutine. The upload
// outlives the message context.
func (s *Service) startMirror(ctx context.Context, note *models.StoredNote) {
	if s.mirror == nil || !s.mirror.Enabled() {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		if s.mirrorDone != nil {
			defer s.mirrorDone()
		}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("ingest: mirror panic",
					slog.String("file", note.Name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()
		s.mirror.Mirror(detached, note.Path, note.AssetPaths)
	}()
}

func (s *Service) reply(ctx context.Context, logger *slog.Logger, msg models.IncomingMessage, text string) {
	if s.replier == nil {
		return
	}
	if err := s.replier.Reply(ctx, msg.ChatID, msg.ID, text); err != nil {
		logger.Warn("ingest: reply failed", slog.String("error", err.Error()))
	}
}
