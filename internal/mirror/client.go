package mirror

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// FolderMimeType is the Drive MIME type of folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// Drive allows 10 requests/sec/user; stay below it.
const (
	driveRequestsPerSecond = 8.0
	driveBurst             = 10
)

// Client is the subset of remote storage operations the mirror needs.
type Client interface {
	// FindFolder looks up a folder named exactly name under parentID.
	FindFolder(ctx context.Context, parentID, name string) (id string, found bool, err error)
	// CreateFolder creates a folder named name under parentID.
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	// UploadFile uploads the local file into parentID with the given MIME type.
	UploadFile(ctx context.Context, parentID, localPath, mimeType string) (string, error)
}

type driveClient struct {
	svc     *drive.Service
	limiter *rate.Limiter
}

// Authorize exchanges a base64-encoded service account JSON key for a Drive
// client. The token is fetched once up front so bad credentials fail here.
func Authorize(ctx context.Context, credentialsB64 string) (Client, error) {
	raw, err := decodeCredentials(credentialsB64)
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("mirror: parse credentials: %w", err)
	}
	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, fmt.Errorf("mirror: obtain token: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("mirror: create drive service: %w", err)
	}
	return &driveClient{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(driveRequestsPerSecond), driveBurst),
	}, nil
}

func decodeCredentials(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("mirror: empty credentials")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("mirror: decode credentials: %w", err)
	}
	return raw, nil
}

func (c *driveClient) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", false, err
	}
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		quote(name), quote(parentID), FolderMimeType)
	list, err := c.svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(10).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, fmt.Errorf("mirror: list folders: %w", err)
	}
	for _, f := range list.Files {
		if f.Name == name {
			return f.Id, true, nil
		}
	}
	return "", false, nil
}

func (c *driveClient) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	created, err := c.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("mirror: create folder %s: %w", name, err)
	}
	return created.Id, nil
}

func (c *driveClient) UploadFile(ctx context.Context, parentID, localPath, mimeType string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("mirror: open %s: %w", localPath, err)
	}
	defer f.Close()

	created, err := c.svc.Files.Create(&drive.File{
		Name:     filepath.Base(localPath),
		MimeType: mimeType,
		Parents:  []string{parentID},
	}).Media(f, googleapi.ContentType(mimeType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("mirror: upload %s: %w", filepath.Base(localPath), err)
	}
	return created.Id, nil
}

// quote escapes a value for a Drive query string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// IsNotFound reports whether err is a Drive 404.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return false
}
