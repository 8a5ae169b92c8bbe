package blob

import (
	"context"
	"fmt"
	"os"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// BucketStore is a Store over a portable gocloud bucket.
type BucketStore struct {
	bucket        *blob.Bucket
	publicBaseURL string
}

func NewBucketStore(bucket *blob.Bucket, publicBaseURL string) *BucketStore {
	return &BucketStore{bucket: bucket, publicBaseURL: publicBaseURL}
}

func NewMemoryStore(publicBaseURL string) *BucketStore {
	return NewBucketStore(memblob.OpenBucket(nil), publicBaseURL)
}

func OpenFileStore(dir, publicBaseURL string) (*BucketStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure base_dir: %w", err)
	}
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open file bucket: %w", err)
	}
	return NewBucketStore(bucket, publicBaseURL), nil
}

func (s *BucketStore) MoveBlob(ctx context.Context, srcKey, dstKey string) error {
	exists, err := s.bucket.Exists(ctx, dstKey)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dstKey, err)
	}
	if exists {
		return fmt.Errorf("move to %s: %w", dstKey, ErrDestExists)
	}

	if err := s.bucket.Copy(ctx, dstKey, srcKey, nil); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("move %s: %w", srcKey, ErrSourceNotFound)
		}
		return fmt.Errorf("copy %s to %s: %w", srcKey, dstKey, err)
	}

	if err := s.bucket.Delete(ctx, srcKey); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("delete moved source %s: %w", srcKey, err)
	}

	blobLogger.Debug().Str("src", srcKey).Str("dst", dstKey).Msg("Blob moved")
	return nil
}

func (s *BucketStore) DeleteBlob(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return fmt.Errorf("delete %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *BucketStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.bucket.Exists(ctx, key)
}

func (s *BucketStore) PublicURL(key string) string {
	return publicURL(s.publicBaseURL, key)
}

func (s *BucketStore) PutBlob(ctx context.Context, key string, data []byte, contentType string) error {
	return s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType})
}

func (s *BucketStore) Close() error {
	return s.bucket.Close()
}
