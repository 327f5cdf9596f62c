// Package fetch downloads chat attachments into the assets directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/starford/tgvault/internal/models"
	"github.com/starford/tgvault/internal/naming"
	"github.com/starford/tgvault/internal/storage"
)

// DefaultTimeout bounds one download, including file resolution.
const DefaultTimeout = 30 * time.Second

// FileResolver turns a platform file id into a download URL.
type FileResolver interface {
	ResolveFile(ctx context.Context, fileID string) (string, error)
}

// Fetcher downloads attachments into a flat assets directory.
type Fetcher struct {
	resolver FileResolver
	dir      string
	client   *http.Client
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithClock overrides the clock used for file name timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher writing into dir (the absolute assets directory).
func New(resolver FileResolver, dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		resolver: resolver,
		dir:      dir,
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads ref into the assets directory and returns the local asset.
// The file name is <YYYYMMDD-HHMMSS>-<slug(channel)>-<name>, where name is the
// declared file name or the base of the server-side path.
func (f *Fetcher) Fetch(ctx context.Context, ref models.MediaRef, channel string) (models.LocalAsset, error) {
	started := f.now()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	fileURL, err := f.resolver.ResolveFile(ctx, ref.FileID)
	if err != nil {
		return models.LocalAsset{}, fmt.Errorf("fetch: resolve %s: %w", ref.FileID, err)
	}

	name := FileName(started, channel, ref.FileName, fileURL)
	dest := filepath.Join(f.dir, name)

	if err := f.download(ctx, fileURL, dest); err != nil {
		return models.LocalAsset{}, err
	}

	f.logger.Debug("fetch: asset saved",
		slog.String("file_id", ref.FileID),
		slog.String("path", dest))

	return models.LocalAsset{
		Path:    dest,
		RelPath: path.Join(storage.AssetsDir, name),
	}, nil
}

// FileName builds the asset file name for a fetch started at t.
func FileName(t time.Time, channel, declared, fileURL string) string {
	chanSlug := naming.Slug(channel, 0)
	if chanSlug == "" {
		chanSlug = "chat"
	}
	base := declared
	if base == "" {
		base = urlBase(fileURL)
	}
	return naming.Timestamp(t) + "-" + chanSlug + "-" + naming.SafeBase(base, "file")
}

func urlBase(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	return path.Base(u.Path)
}

func (f *Fetcher) download(ctx context.Context, fileURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("fetch: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: download: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetch: download status: %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("fetch: create %s: %w", dest, err)
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		// A truncated asset would be referenced by nothing; drop it.
		_ = os.Remove(dest)
		return fmt.Errorf("fetch: write %s: %w", dest, err)
	}
	return nil
}
