// Package blob stores submission images under a pending and a published prefix.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/locs-review/internal/model"
)

var (
	ErrSourceNotFound = errors.New("source blob not found")
	ErrDestExists     = errors.New("destination blob already exists")
	ErrNotFound       = errors.New("blob not found")
)

// Store is the blob collaborator used by the moderation workflows.
type Store interface {
	// MoveBlob relocates srcKey to dstKey. It returns ErrSourceNotFound when
	// srcKey is absent and ErrDestExists when dstKey is already taken.
	MoveBlob(ctx context.Context, srcKey, dstKey string) error
	// DeleteBlob returns ErrNotFound when key is absent.
	DeleteBlob(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// WritableStore is a Store that can also accept uploads and be closed.
type WritableStore interface {
	Store
	PutBlob(ctx context.Context, key string, data []byte, contentType string) error
	Close() error
}

var blobLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	blobLogger = l
}

// Layout derives blob keys from item ids.
type Layout struct {
	PendingPrefix   string
	PublishedPrefix string
	Extension       string
}

func DefaultLayout() Layout {
	return Layout{
		PendingPrefix:   "not_approved",
		PublishedPrefix: "image",
		Extension:       ".jpg",
	}
}

func (l Layout) PendingKey(id model.ItemID) string {
	return joinKey(l.PendingPrefix, string(id)+l.Extension)
}

func (l Layout) PublishedKey(id model.ItemID) string {
	return joinKey(l.PublishedPrefix, string(id)+l.Extension)
}

func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func publicURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	u, err := url.JoinPath(base, key)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + key
	}
	return u
}

type Config struct {
	Driver        string
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	BaseDir       string
	PublicBaseURL string
}

func Validate(c Config) error {
	switch strings.ToLower(c.Driver) {
	case "s3":
		if c.Bucket == "" {
			return errors.New("bucket required for s3 driver")
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return errors.New("access key and secret key required for s3 driver")
		}
	case "file":
		if c.BaseDir == "" {
			return errors.New("base_dir required for file driver")
		}
	case "mem":
	case "":
		return errors.New("storage driver not set")
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Driver)
	}
	return nil
}

// Open builds the store named by c.Driver: "s3", "file" or "mem".
func Open(ctx context.Context, c Config) (WritableStore, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}

	switch strings.ToLower(c.Driver) {
	case "s3":
		return NewS3Store(ctx, c)
	case "file":
		return OpenFileStore(c.BaseDir, c.PublicBaseURL)
	default:
		return NewMemoryStore(c.PublicBaseURL), nil
	}
}
