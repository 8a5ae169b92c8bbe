// Package repository holds the metadata store for pending and published items.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/locs-review/internal/model"
)

var (
	ErrDuplicateRecord = errors.New("record already exists")
	ErrNotFound        = errors.New("record not found")
)

// MetadataStore is the durable table pair the moderation workflows operate on.
// Every call is visible to other readers as soon as it returns.
type MetadataStore interface {
	// InsertPublished returns ErrDuplicateRecord when id is already published.
	InsertPublished(ctx context.Context, id model.ItemID, coord model.Coordinate) error
	// DeletePending returns ErrNotFound when id is not pending.
	DeletePending(ctx context.Context, id model.ItemID) error
	ListPending(ctx context.Context) ([]model.PendingItem, error)
}

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

// NewPendingItem mints a fresh item id for an upload at coord.
func NewPendingItem(coord model.Coordinate) model.PendingItem {
	return model.PendingItem{
		ID:         model.ItemID(uuid.New().String()),
		Coordinate: coord,
	}
}
