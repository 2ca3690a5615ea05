/*
Package storage uploads and manages user avatars in an S3-compatible bucket.

Objects are written under avatars/<user id>/ and served from a public base URL,
so an avatar URL stored on a profile can be mapped back to its object key.
*/
package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when the requested key does not exist in the bucket.
var ErrObjectNotFound = errors.New("storage: object not found")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	BucketName      string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// AvatarStorage defines the public interface for the avatar storage service.
type AvatarStorage interface {
	// PresignUpload generates a pre-signed URL for uploading an object directly from the browser.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// Upload streams body to key on behalf of the client.
	Upload(ctx context.Context, key string, mimeType string, body io.Reader) error

	// Delete removes the object specified by the given key.
	Delete(ctx context.Context, key string) error

	// GetObjectMetadata retrieves the object's metadata, or ErrObjectNotFound.
	GetObjectMetadata(ctx context.Context, key string) (map[string]string, error)

	// PublicURL returns the URL an object is served from.
	PublicURL(key string) string

	// KeyFromURL reports whether rawURL points into the bucket and returns its key.
	KeyFromURL(rawURL string) (string, bool)
}

// NewAvatarStorage is the factory function for AvatarStorage.
func NewAvatarStorage(ctx context.Context, cfg ServiceConfig) (AvatarStorage, error) {
	return newS3Client(ctx, cfg)
}

// PublicLocator maps object keys to public URLs below a base URL and back.
type PublicLocator struct {
	baseURL string
}

// NewPublicLocator returns a locator for baseURL. A trailing slash is ignored.
func NewPublicLocator(baseURL string) PublicLocator {
	return PublicLocator{baseURL: strings.TrimRight(baseURL, "/")}
}

func (l PublicLocator) PublicURL(key string) string {
	return l.baseURL + "/" + strings.TrimLeft(key, "/")
}

func (l PublicLocator) KeyFromURL(rawURL string) (string, bool) {
	if l.baseURL == "" {
		return "", false
	}

	rest, ok := strings.CutPrefix(rawURL, l.baseURL+"/")
	if !ok {
		return "", false
	}
	rest, _, _ = strings.Cut(rest, "?")

	key, err := url.PathUnescape(rest)
	if err != nil || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
