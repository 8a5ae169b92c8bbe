package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/debemdeboas/locs-review/internal/db"
	"github.com/debemdeboas/locs-review/internal/model"
)

type DBMetadataStore struct { // implements MetadataStore
	db db.DB
}

func NewDBMetadataStore(db db.DB) *DBMetadataStore {
	return &DBMetadataStore{db: db}
}

func (r *DBMetadataStore) InsertPublished(ctx context.Context, id model.ItemID, coord model.Coordinate) error {
	res, err := r.db.Exec(ctx,
		`INSERT INTO `+db.PublishedTable+` (filename, lat, lng, created_at) VALUES (?, ?, ?, ?)`,
		string(id), coord.Lat, coord.Lng, time.Now().UTC(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("publish %s: %w", id, ErrDuplicateRecord)
		}
		return fmt.Errorf("error publishing item: %w", err)
	}

	repoLogger.Debug().Str("item_id", string(id)).Interface("result", res).Msg("Item published")
	return nil
}

func (r *DBMetadataStore) DeletePending(ctx context.Context, id model.ItemID) error {
	res, err := r.db.Exec(ctx, `DELETE FROM `+db.PendingTable+` WHERE filename = ?`, string(id))
	if err != nil {
		return fmt.Errorf("error deleting pending item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting pending item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("pending %s: %w", id, ErrNotFound)
	}

	repoLogger.Debug().Str("item_id", string(id)).Msg("Pending item deleted")
	return nil
}

func (r *DBMetadataStore) ListPending(ctx context.Context) ([]model.PendingItem, error) {
	rows, err := r.db.Query(ctx, `SELECT filename, lat, lng FROM `+db.PendingTable+` ORDER BY created_at, filename`)
	if err != nil {
		return nil, fmt.Errorf("error querying pending items: %w", err)
	}
	defer rows.Close()

	items := make([]model.PendingItem, 0)
	for rows.Next() {
		var item model.PendingItem
		if err := rows.Scan(&item.ID, &item.Lat, &item.Lng); err != nil {
			return nil, fmt.Errorf("error scanning pending item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *DBMetadataStore) GetPending(ctx context.Context, id model.ItemID) (*model.PendingItem, error) {
	var item model.PendingItem
	err := r.db.Get().QueryRowContext(ctx,
		`SELECT filename, lat, lng FROM `+db.PendingTable+` WHERE filename = ?`, string(id),
	).Scan(&item.ID, &item.Lat, &item.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading pending item: %w", err)
	}
	return &item, nil
}

// InsertPending queues a new submission. Uploads normally do this outside the service.
func (r *DBMetadataStore) InsertPending(ctx context.Context, item model.PendingItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO `+db.PendingTable+` (filename, lat, lng, created_at) VALUES (?, ?, ?, ?)`,
		string(item.ID), item.Lat, item.Lng, time.Now().UTC(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("queue %s: %w", item.ID, ErrDuplicateRecord)
		}
		return fmt.Errorf("error queueing item: %w", err)
	}
	return nil
}

func (r *DBMetadataStore) GetPublished(ctx context.Context, id model.ItemID) (*model.PublishedItem, error) {
	var item model.PublishedItem
	err := r.db.Get().QueryRowContext(ctx,
		`SELECT filename, lat, lng, created_at FROM `+db.PublishedTable+` WHERE filename = ?`, string(id),
	).Scan(&item.ID, &item.Lat, &item.Lng, &item.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("published %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading published item: %w", err)
	}
	return &item, nil
}

func (r *DBMetadataStore) ListPublished(ctx context.Context) ([]model.PublishedItem, error) {
	rows, err := r.db.Query(ctx, `SELECT filename, lat, lng, created_at FROM `+db.PublishedTable+` ORDER BY created_at, filename`)
	if err != nil {
		return nil, fmt.Errorf("error querying published items: %w", err)
	}
	defer rows.Close()

	items := make([]model.PublishedItem, 0)
	for rows.Next() {
		var item model.PublishedItem
		if err := rows.Scan(&item.ID, &item.Lat, &item.Lng, &item.PublishedAt); err != nil {
			return nil, fmt.Errorf("error scanning published item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
