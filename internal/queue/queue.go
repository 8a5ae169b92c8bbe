// Package queue holds the reviewer's working set of pending items, the current
// selection and the position editor bound to it, and routes approve/reject
// intents through the workflow.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/locs-review/internal/blob"
	"github.com/debemdeboas/locs-review/internal/cache"
	"github.com/debemdeboas/locs-review/internal/editor"
	"github.com/debemdeboas/locs-review/internal/model"
	"github.com/debemdeboas/locs-review/internal/workflow"
)

var (
	ErrNotQueued   = errors.New("item not queued")
	ErrNoSelection = errors.New("no item selected")
)

var queueLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	queueLogger = l
}

// Source lists the pending items. repository.MetadataStore satisfies it.
type Source interface {
	ListPending(ctx context.Context) ([]model.PendingItem, error)
}

// Moderator runs the approve and reject workflows. *workflow.Workflow
// satisfies it.
type Moderator interface {
	Approve(ctx context.Context, id model.ItemID, coord model.Coordinate) (*workflow.Report, error)
	Reject(ctx context.Context, id model.ItemID) (*workflow.Report, error)
}

// URLResolver turns a blob key into a URL a reviewer can load.
type URLResolver interface {
	PublicURL(key string) string
}

// Gauge receives the queue length after every change.
type Gauge interface {
	SetPending(n int)
}

type EventKind string

const (
	EventLoaded   EventKind = "loaded"
	EventSelected EventKind = "selected"
	EventEdited   EventKind = "edited"
	EventRemoved  EventKind = "removed"
)

type Event struct {
	Kind EventKind    `json:"kind"`
	ID   model.ItemID `json:"id,omitempty"`
}

// Item is a pending item as shown to the reviewer.
type Item struct {
	model.PendingItem
	URL string `json:"url"`
}

type Option func(*Queue)

func WithLayout(l blob.Layout) Option {
	return func(q *Queue) {
		q.layout = l
	}
}

// WithNotifier registers fn to be called after every change. fn runs outside
// the queue lock.
func WithNotifier(fn func(Event)) Option {
	return func(q *Queue) {
		q.notify = fn
	}
}

func WithGauge(g Gauge) Option {
	return func(q *Queue) {
		q.gauge = g
	}
}

type Queue struct {
	source    Source
	moderator Moderator
	urls      URLResolver
	layout    blob.Layout
	notify    func(Event)
	gauge     Gauge

	mu       sync.Mutex
	items    []model.PendingItem
	selected model.ItemID
	editor   editor.PositionEditor
	urlCache *cache.Cache[model.ItemID, string]
}

func New(source Source, moderator Moderator, urls URLResolver, opts ...Option) *Queue {
	q := &Queue{
		source:    source,
		moderator: moderator,
		urls:      urls,
		layout:    blob.DefaultLayout(),
		urlCache:  cache.NewCache[model.ItemID, string](),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Load replaces the working set with the store's pending items and selects
// the first one. Unsaved edits are discarded.
func (q *Queue) Load(ctx context.Context) error {
	items, err := q.source.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending: %w", err)
	}

	urls := make(map[model.ItemID]string, len(items))
	if q.urls != nil {
		for _, item := range items {
			urls[item.ID] = q.urls.PublicURL(q.layout.PendingKey(item.ID))
		}
	}

	q.mu.Lock()
	q.items = items
	q.urlCache.SetTo(urls)
	q.selected = ""
	q.editor = editor.PositionEditor{}
	if len(items) > 0 {
		q.selectLocked(items[0])
	}
	n := len(q.items)
	q.mu.Unlock()

	queueLogger.Info().Int("pending", n).Msg("Queue loaded")
	q.emit(Event{Kind: EventLoaded})
	return nil
}

func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Item, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, Item{PendingItem: item, URL: q.urlLocked(item.ID)})
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Selected returns the selected item with the editor's display position.
func (q *Queue) Selected() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(q.selected)
	if i < 0 {
		return Item{}, false
	}
	item := q.items[i]
	item.Coordinate = q.editor.Position()
	return Item{PendingItem: item, URL: q.urlLocked(item.ID)}, true
}

// Select makes id the current item. Selecting the current item again keeps
// the editor as is; selecting another one discards any draft.
func (q *Queue) Select(id model.ItemID) error {
	q.mu.Lock()
	i := q.indexLocked(id)
	if i < 0 {
		q.mu.Unlock()
		return fmt.Errorf("select %s: %w", id, ErrNotQueued)
	}
	if q.selected == id {
		q.mu.Unlock()
		return nil
	}
	q.selectLocked(q.items[i])
	q.mu.Unlock()

	q.emit(Event{Kind: EventSelected, ID: id})
	return nil
}

// Editor returns a snapshot of the position editor of the selected item.
func (q *Queue) Editor() (editor.PositionEditor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.editor, q.selected != ""
}

func (q *Queue) EnterEdit() (editor.PositionEditor, error) {
	return q.edit(func(e editor.PositionEditor) editor.PositionEditor { return e.EnterEdit() })
}

// Pick moves the draft position. It is ignored unless editing.
func (q *Queue) Pick(c model.Coordinate) (editor.PositionEditor, error) {
	return q.edit(func(e editor.PositionEditor) editor.PositionEditor { return e.Pick(c) })
}

func (q *Queue) Cancel() (editor.PositionEditor, error) {
	return q.edit(func(e editor.PositionEditor) editor.PositionEditor { return e.Cancel() })
}

// Save commits the draft and records it on the queued copy of the item, so
// it survives switching selection. Nothing is written to the store.
func (q *Queue) Save() (editor.PositionEditor, error) {
	return q.edit(func(e editor.PositionEditor) editor.PositionEditor {
		next, committed := e.Save()
		if i := q.indexLocked(q.selected); i >= 0 {
			q.items[i].Coordinate = committed
		}
		return next
	})
}

func (q *Queue) edit(fn func(editor.PositionEditor) editor.PositionEditor) (editor.PositionEditor, error) {
	q.mu.Lock()
	if q.selected == "" {
		q.mu.Unlock()
		return editor.PositionEditor{}, ErrNoSelection
	}
	q.editor = fn(q.editor)
	e, id := q.editor, q.selected
	q.mu.Unlock()

	q.emit(Event{Kind: EventEdited, ID: id})
	return e, nil
}

func (q *Queue) ApproveSelected(ctx context.Context) (*workflow.Report, error) {
	id, err := q.selectedID()
	if err != nil {
		return nil, err
	}
	return q.Approve(ctx, id)
}

func (q *Queue) RejectSelected(ctx context.Context) (*workflow.Report, error) {
	id, err := q.selectedID()
	if err != nil {
		return nil, err
	}
	return q.Reject(ctx, id)
}

// Approve publishes id at its committed coordinate. A draft that was never
// saved is not used. The item leaves the queue only when the workflow
// completes.
func (q *Queue) Approve(ctx context.Context, id model.ItemID) (*workflow.Report, error) {
	q.mu.Lock()
	i := q.indexLocked(id)
	if i < 0 {
		q.mu.Unlock()
		return nil, fmt.Errorf("approve %s: %w", id, ErrNotQueued)
	}
	coord := q.items[i].Coordinate
	q.mu.Unlock()

	report, err := q.moderator.Approve(ctx, id, coord)
	if err != nil {
		queueLogger.Warn().Err(err).Str("item_id", string(id)).Msg("Approval did not complete; item stays queued")
		return report, err
	}
	q.remove(id)
	return report, nil
}

// Reject purges id. The item also leaves the queue when only the blob
// cleanup failed.
func (q *Queue) Reject(ctx context.Context, id model.ItemID) (*workflow.Report, error) {
	q.mu.Lock()
	known := q.indexLocked(id) >= 0
	q.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("reject %s: %w", id, ErrNotQueued)
	}

	report, err := q.moderator.Reject(ctx, id)
	if workflow.ItemRemoved(err) {
		q.remove(id)
	}
	if err != nil {
		queueLogger.Warn().Err(err).Str("item_id", string(id)).Bool("removed", workflow.ItemRemoved(err)).Msg("Rejection did not complete")
	}
	return report, err
}

func (q *Queue) selectedID() (model.ItemID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.selected == "" {
		return "", ErrNoSelection
	}
	return q.selected, nil
}

// remove drops id from the working set. The selection is cleared only when
// id was the selected item, so deciding on another item keeps the reviewer's place.
func (q *Queue) remove(id model.ItemID) {
	q.mu.Lock()
	if i := q.indexLocked(id); i >= 0 {
		q.items = append(q.items[:i], q.items[i+1:]...)
	}
	q.urlCache.Delete(id)
	if q.selected == id {
		q.selected = ""
		q.editor = editor.PositionEditor{}
	}
	q.mu.Unlock()

	q.emit(Event{Kind: EventRemoved, ID: id})
}

func (q *Queue) selectLocked(item model.PendingItem) {
	q.selected = item.ID
	q.editor = q.editor.Reset(item.Coordinate)
}

func (q *Queue) indexLocked(id model.ItemID) int {
	if id == "" {
		return -1
	}
	for i, item := range q.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) urlLocked(id model.ItemID) string {
	if q.urls == nil {
		return ""
	}
	return q.urlCache.GetOrCompute(id, func(id model.ItemID) string {
		return q.urls.PublicURL(q.layout.PendingKey(id))
	})
}

func (q *Queue) emit(ev Event) {
	if q.gauge != nil {
		q.gauge.SetPending(q.Len())
	}
	if q.notify != nil {
		q.notify(ev)
	}
}
