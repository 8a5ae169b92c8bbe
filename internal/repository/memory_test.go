package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/debemdeboas/locs-review/internal/model"
)

func TestMemoryMetadataStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMetadataStore(
		model.PendingItem{ID: "x", Coordinate: model.Coordinate{Lat: 1, Lng: 1}},
		model.PendingItem{ID: "y", Coordinate: model.Coordinate{Lat: 2, Lng: 2}},
	)

	t.Run("ListPending returns a copy", func(t *testing.T) {
		items, err := store.ListPending(ctx)
		if err != nil {
			t.Fatalf("ListPending: %v", err)
		}
		items[0].ID = "mutated"

		again, _ := store.ListPending(ctx)
		if again[0].ID != "x" {
			t.Errorf("Expected store to be unaffected by caller mutation, got %q", again[0].ID)
		}
	})

	t.Run("Publish then duplicate", func(t *testing.T) {
		if err := store.InsertPublished(ctx, "x", model.Coordinate{Lat: 1, Lng: 1}); err != nil {
			t.Fatalf("InsertPublished: %v", err)
		}
		if err := store.InsertPublished(ctx, "x", model.Coordinate{}); !errors.Is(err, ErrDuplicateRecord) {
			t.Errorf("Expected ErrDuplicateRecord, got %v", err)
		}

		got, err := store.GetPublished(ctx, "x")
		if err != nil {
			t.Fatalf("GetPublished: %v", err)
		}
		if got.Lat != 1 {
			t.Errorf("Expected first write to win, got %+v", got)
		}
	})

	t.Run("DeletePending missing", func(t *testing.T) {
		if err := store.DeletePending(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeletePending keeps order", func(t *testing.T) {
		if err := store.InsertPending(ctx, model.PendingItem{ID: "z"}); err != nil {
			t.Fatalf("InsertPending: %v", err)
		}
		if err := store.DeletePending(ctx, "y"); err != nil {
			t.Fatalf("DeletePending: %v", err)
		}

		items, _ := store.ListPending(ctx)
		if len(items) != 2 || items[0].ID != "x" || items[1].ID != "z" {
			t.Errorf("Expected [x z], got %+v", items)
		}
	})
}
