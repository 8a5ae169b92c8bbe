package blob

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

func TestLayoutKeys(t *testing.T) {
	l := DefaultLayout()
	require.Equal(t, "not_approved/abc.jpg", l.PendingKey("abc"))
	require.Equal(t, "image/abc.jpg", l.PublishedKey("abc"))

	custom := Layout{PendingPrefix: "/queue/", PublishedPrefix: "", Extension: ".png"}
	require.Equal(t, "queue/abc.png", custom.PendingKey("abc"))
	require.Equal(t, "abc.png", custom.PublishedKey("abc"))
}

func TestPublicURL(t *testing.T) {
	require.Equal(t, "https://cdn.example.com/locs/image/a.jpg",
		publicURL("https://cdn.example.com/locs/", "image/a.jpg"))
	require.Equal(t, "/image/a.jpg", publicURL("", "image/a.jpg"))
}

func TestBucketStoreMoveBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("Moves source to destination", func(t *testing.T) {
		s := NewMemoryStore("")
		require.NoError(t, s.PutBlob(ctx, "not_approved/a.jpg", []byte("jpeg"), "image/jpeg"))

		require.NoError(t, s.MoveBlob(ctx, "not_approved/a.jpg", "image/a.jpg"))

		src, err := s.Exists(ctx, "not_approved/a.jpg")
		require.NoError(t, err)
		require.False(t, src, "source should be gone after move")

		dst, err := s.Exists(ctx, "image/a.jpg")
		require.NoError(t, err)
		require.True(t, dst, "destination should exist after move")
	})

	t.Run("Missing source", func(t *testing.T) {
		s := NewMemoryStore("")
		err := s.MoveBlob(ctx, "not_approved/missing.jpg", "image/missing.jpg")
		require.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("Destination taken", func(t *testing.T) {
		s := NewMemoryStore("")
		require.NoError(t, s.PutBlob(ctx, "not_approved/b.jpg", []byte("1"), "image/jpeg"))
		require.NoError(t, s.PutBlob(ctx, "image/b.jpg", []byte("1"), "image/jpeg"))

		err := s.MoveBlob(ctx, "not_approved/b.jpg", "image/b.jpg")
		require.ErrorIs(t, err, ErrDestExists)

		src, err := s.Exists(ctx, "not_approved/b.jpg")
		require.NoError(t, err)
		require.True(t, src, "source must survive a refused move")
	})
}

func TestBucketStoreDeleteBlob(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")
	require.NoError(t, s.PutBlob(ctx, "k", []byte("v"), "text/plain"))

	require.NoError(t, s.DeleteBlob(ctx, "k"))
	require.ErrorIs(t, s.DeleteBlob(ctx, "k"), ErrNotFound)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenFileStore(t.TempDir(), "http://localhost:12600/blobs")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutBlob(ctx, "not_approved/f.jpg", []byte("jpeg"), "image/jpeg"))
	require.NoError(t, s.MoveBlob(ctx, "not_approved/f.jpg", "image/f.jpg"))

	ok, err := s.Exists(ctx, "image/f.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "http://localhost:12600/blobs/image/f.jpg", s.PublicURL("image/f.jpg"))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"mem", Config{Driver: "mem"}, false},
		{"file without dir", Config{Driver: "file"}, true},
		{"file", Config{Driver: "file", BaseDir: "/tmp/x"}, false},
		{"s3 without bucket", Config{Driver: "s3", AccessKey: "a", SecretKey: "b"}, true},
		{"s3 without credentials", Config{Driver: "s3", Bucket: "locs"}, true},
		{"s3", Config{Driver: "S3", Bucket: "locs", AccessKey: "a", SecretKey: "b"}, false},
		{"empty", Config{}, true},
		{"unknown", Config{Driver: "ftp"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestOpenMem(t *testing.T) {
	s, err := Open(context.Background(), Config{Driver: "mem", PublicBaseURL: "https://x.test"})
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, "https://x.test/image/a.jpg", s.PublicURL("image/a.jpg"))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(fmt.Errorf("wrapped: %w", &types.NoSuchKey{})))
	require.True(t, isNotFound(&types.NotFound{}))
	require.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	require.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	require.False(t, isNotFound(errors.New("boom")))
}

func TestStoreImplementations(t *testing.T) {
	var _ WritableStore = (*BucketStore)(nil)
	var _ WritableStore = (*S3Store)(nil)
}
