// Package app opens the stores named by a Config and builds the workflow on
// top of them. The server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/locs-review/internal/blob"
	"github.com/debemdeboas/locs-review/internal/config"
	"github.com/debemdeboas/locs-review/internal/db"
	"github.com/debemdeboas/locs-review/internal/queue"
	"github.com/debemdeboas/locs-review/internal/repository"
	"github.com/debemdeboas/locs-review/internal/routes"
	"github.com/debemdeboas/locs-review/internal/workflow"
)

type App struct {
	Config   *config.Config
	DB       db.DB
	Meta     *repository.DBMetadataStore
	Blobs    blob.WritableStore
	Layout   blob.Layout
	Workflow *workflow.Workflow
}

// SetLogger hands l to every package that logs.
func SetLogger(l zerolog.Logger) {
	config.SetLogger(l)
	db.SetLogger(l)
	repository.SetLogger(l)
	blob.SetLogger(l)
	workflow.SetLogger(l)
	queue.SetLogger(l)
	routes.SetLogger(l)
}

func Open(ctx context.Context, cfg *config.Config, opts ...workflow.Option) (*App, error) {
	database := db.NewSQLite(cfg.Database.Path)
	if err := database.InitDB(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	blobs, err := blob.Open(ctx, cfg.Storage.Blob())
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	layout := cfg.Storage.Layout()
	meta := repository.NewDBMetadataStore(database)
	opts = append([]workflow.Option{workflow.WithLayout(layout)}, opts...)

	return &App{
		Config:   cfg,
		DB:       database,
		Meta:     meta,
		Blobs:    blobs,
		Layout:   layout,
		Workflow: workflow.New(meta, blobs, opts...),
	}, nil
}

func (a *App) Close() error {
	return errors.Join(a.Blobs.Close(), a.DB.Close())
}
