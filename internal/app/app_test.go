package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/locs-review/internal/config"
	"github.com/debemdeboas/locs-review/internal/model"
)

func TestOpenAndApprove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "locs.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "blobs")

	a, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	item := model.PendingItem{ID: "abc", Coordinate: model.Coordinate{Lat: 1, Lng: 2}}
	require.NoError(t, a.Meta.InsertPending(ctx, item))
	require.NoError(t, a.Blobs.PutBlob(ctx, a.Layout.PendingKey(item.ID), []byte("jpeg"), "image/jpeg"))

	_, err = a.Workflow.Approve(ctx, item.ID, item.Coordinate)
	require.NoError(t, err)

	published, err := a.Meta.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, published, 1)

	ok, err := a.Blobs.Exists(ctx, "image/abc.jpg")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOpenRejectsBadStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	cfg.Storage.Driver = "ftp"

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
}
