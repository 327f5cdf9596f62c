// Package mirror copies stored notes and their media into a remote Drive
// folder, one subfolder per UTC day. It is best-effort: every failure is
// logged and nothing is returned to the caller.
package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BucketLayout names the per-day folder.
const BucketLayout = "2006-01-02"

// Config selects the remote parent folder and credentials.
type Config struct {
	FolderID       string
	CredentialsB64 string
}

// Enabled reports whether both values are present.
func (c Config) Enabled() bool {
	return c.FolderID != "" && c.CredentialsB64 != ""
}

// Mirror uploads notes and assets. A Mirror without a client is disabled and
// all calls are no-ops.
type Mirror struct {
	client   Client
	parentID string
	logger   *slog.Logger
	now      func() time.Time

	// mu serialises lookup-or-create so one process creates at most one
	// bucket per day.
	mu      sync.Mutex
	buckets map[string]string
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithClock overrides the clock used to pick the day bucket.
func WithClock(now func() time.Time) Option {
	return func(m *Mirror) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) { m.logger = l }
}

// New builds a Mirror from cfg. Missing configuration or failed
// authorisation yields a disabled Mirror; the reason is logged.
func New(ctx context.Context, cfg Config, opts ...Option) *Mirror {
	m := newMirror(nil, cfg.FolderID, opts...)
	if !cfg.Enabled() {
		m.logger.Info("mirror: disabled, remote folder or credentials not configured")
		return m
	}
	client, err := Authorize(ctx, cfg.CredentialsB64)
	if err != nil {
		m.logger.Error("mirror: authorisation failed, mirror disabled", slog.String("error", err.Error()))
		return m
	}
	m.client = client
	m.logger.Info("mirror: ready", slog.String("folder_id", cfg.FolderID))
	return m
}

// NewWithClient builds an enabled Mirror around an existing client.
func NewWithClient(client Client, parentID string, opts ...Option) *Mirror {
	return newMirror(client, parentID, opts...)
}

// Disabled returns a Mirror that never does anything.
func Disabled() *Mirror {
	return newMirror(nil, "")
}

func newMirror(client Client, parentID string, opts ...Option) *Mirror {
	m := &Mirror{
		client:   client,
		parentID: parentID,
		logger:   slog.Default(),
		now:      time.Now,
		buckets:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether uploads will be attempted.
func (m *Mirror) Enabled() bool {
	return m != nil && m.client != nil
}

// Mirror uploads every asset and then the note into today's bucket.
// Each upload is independent; failures are logged and skipped.
func (m *Mirror) Mirror(ctx context.Context, notePath string, assetPaths []string) {
	if !m.Enabled() {
		return
	}
	bucket := m.now().UTC().Format(BucketLayout)
	folderID, err := m.bucketID(ctx, bucket)
	if err != nil {
		m.logger.Error("mirror: resolve day folder failed",
			slog.String("bucket", bucket),
			slog.String("error", err.Error()))
		return
	}

	for _, p := range assetPaths {
		if _, err := m.client.UploadFile(ctx, folderID, p, DetectMIME(p)); err != nil {
			m.logger.Warn("mirror: asset upload failed",
				slog.String("path", p),
				slog.String("error", err.Error()))
			m.forgetOnNotFound(bucket, err)
			continue
		}
		m.logger.Debug("mirror: asset uploaded", slog.String("path", p))
	}

	if _, err := m.client.UploadFile(ctx, folderID, notePath, NoteMimeType); err != nil {
		m.logger.Warn("mirror: note upload failed",
			slog.String("path", notePath),
			slog.String("error", err.Error()))
		m.forgetOnNotFound(bucket, err)
		return
	}
	m.logger.Info("mirror: note uploaded",
		slog.String("path", notePath),
		slog.String("bucket", bucket),
		slog.Int("assets", len(assetPaths)))
}

// bucketID returns the folder id for the named day, creating it if needed.
func (m *Mirror) bucketID(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.buckets[name]; ok {
		return id, nil
	}
	id, found, err := m.client.FindFolder(ctx, m.parentID, name)
	if err != nil {
		return "", err
	}
	if !found {
		id, err = m.client.CreateFolder(ctx, m.parentID, name)
		if err != nil {
			return "", err
		}
		m.logger.Info("mirror: day folder created", slog.String("bucket", name), slog.String("folder_id", id))
	}
	// Only today's bucket is worth remembering.
	clear(m.buckets)
	m.buckets[name] = id
	return id, nil
}

// forgetOnNotFound drops a cached bucket that was removed remotely, so the
// next message looks it up again.
func (m *Mirror) forgetOnNotFound(bucket string, err error) {
	if !IsNotFound(err) {
		return
	}
	m.mu.Lock()
	delete(m.buckets, bucket)
	m.mu.Unlock()
}
