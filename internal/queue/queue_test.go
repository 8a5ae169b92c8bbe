package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/locs-review/internal/blob"
	"github.com/debemdeboas/locs-review/internal/editor"
	"github.com/debemdeboas/locs-review/internal/model"
	"github.com/debemdeboas/locs-review/internal/repository"
	"github.com/debemdeboas/locs-review/internal/workflow"
)

var (
	coordA = model.Coordinate{Lat: 1.3483, Lng: 103.6831}
	coordB = model.Coordinate{Lat: -8.65, Lng: 115.2167}
	coordC = model.Coordinate{Lat: 51.5072, Lng: -0.1276}
)

type harness struct {
	ctx    context.Context
	meta   *repository.MemoryMetadataStore
	blobs  *blob.BucketStore
	q      *Queue
	events []Event
	gauge  *fakeGauge
}

type fakeGauge struct{ n int }

func (g *fakeGauge) SetPending(n int) { g.n = n }

func newHarness(t *testing.T, moderator func(*workflow.Workflow) Moderator) *harness {
	t.Helper()
	ctx := context.Background()
	layout := blob.DefaultLayout()

	meta := repository.NewMemoryMetadataStore(
		model.PendingItem{ID: "a", Coordinate: coordA},
		model.PendingItem{ID: "b", Coordinate: coordB},
		model.PendingItem{ID: "c", Coordinate: coordC},
	)
	blobs := blob.NewMemoryStore("https://cdn.test")
	for _, id := range []model.ItemID{"a", "b", "c"} {
		require.NoError(t, blobs.PutBlob(ctx, layout.PendingKey(id), []byte("jpeg"), "image/jpeg"))
	}

	h := &harness{ctx: ctx, meta: meta, blobs: blobs, gauge: &fakeGauge{}}
	var m Moderator = workflow.New(meta, blobs, workflow.WithLayout(layout))
	if moderator != nil {
		m = moderator(m.(*workflow.Workflow))
	}
	h.q = New(meta, m, blobs,
		WithLayout(layout),
		WithGauge(h.gauge),
		WithNotifier(func(ev Event) { h.events = append(h.events, ev) }),
	)
	require.NoError(t, h.q.Load(ctx))
	return h
}

func ids(items []Item) []model.ItemID {
	out := make([]model.ItemID, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestLoadSelectsFirst(t *testing.T) {
	h := newHarness(t, nil)

	require.Equal(t, 3, h.q.Len())
	require.Equal(t, 3, h.gauge.n)
	require.Equal(t, []model.ItemID{"a", "b", "c"}, ids(h.q.Items()))

	sel, ok := h.q.Selected()
	require.True(t, ok)
	require.Equal(t, model.ItemID("a"), sel.ID)
	require.Equal(t, coordA, sel.Coordinate)
	require.Equal(t, "https://cdn.test/not_approved/a.jpg", sel.URL)

	e, ok := h.q.Editor()
	require.True(t, ok)
	require.Equal(t, editor.Viewing, e.State())
	require.Equal(t, []Event{{Kind: EventLoaded}}, h.events)
}

type countingURLs struct{ calls int }

func (c *countingURLs) PublicURL(key string) string {
	c.calls++
	return "https://cdn.test/" + key
}

func TestLoadResolvesURLsOnce(t *testing.T) {
	meta := repository.NewMemoryMetadataStore(
		model.PendingItem{ID: "a", Coordinate: coordA},
		model.PendingItem{ID: "b", Coordinate: coordB},
	)
	urls := &countingURLs{}
	q := New(meta, nil, urls)
	require.NoError(t, q.Load(context.Background()))
	require.Equal(t, 2, urls.calls)

	items := q.Items()
	_, _ = q.Selected()
	require.Equal(t, "https://cdn.test/not_approved/b.jpg", items[1].URL)
	require.Equal(t, 2, urls.calls, "loaded URLs are served from the cache")
}

func TestLoadEmpty(t *testing.T) {
	q := New(repository.NewMemoryMetadataStore(), nil, nil)
	require.NoError(t, q.Load(context.Background()))

	_, ok := q.Selected()
	require.False(t, ok)
	_, err := q.EnterEdit()
	require.ErrorIs(t, err, ErrNoSelection)
	_, err = q.ApproveSelected(context.Background())
	require.ErrorIs(t, err, ErrNoSelection)
	_, err = q.RejectSelected(context.Background())
	require.ErrorIs(t, err, ErrNoSelection)
}

func TestSelectUnknown(t *testing.T) {
	h := newHarness(t, nil)
	require.ErrorIs(t, h.q.Select("zzz"), ErrNotQueued)

	sel, _ := h.q.Selected()
	require.Equal(t, model.ItemID("a"), sel.ID)
}

func TestSelectionResetDiscardsDraft(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.q.EnterEdit()
	require.NoError(t, err)
	_, err = h.q.Pick(model.Coordinate{Lat: 10, Lng: 10})
	require.NoError(t, err)

	require.NoError(t, h.q.Select("b"))
	require.NoError(t, h.q.Select("a"))

	e, _ := h.q.Editor()
	require.Equal(t, editor.Viewing, e.State())
	require.Equal(t, coordA, e.Committed())
	require.Equal(t, coordA, e.Tentative())
}

func TestReselectKeepsDraft(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.q.EnterEdit()
	require.NoError(t, err)
	_, err = h.q.Pick(model.Coordinate{Lat: 10, Lng: 10})
	require.NoError(t, err)

	require.NoError(t, h.q.Select("a"))

	e, _ := h.q.Editor()
	require.True(t, e.Editing())
	require.Equal(t, model.Coordinate{Lat: 10, Lng: 10}, e.Tentative())
}

func TestSavedEditSurvivesReselect(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.q.EnterEdit()
	require.NoError(t, err)
	_, err = h.q.Pick(model.Coordinate{Lat: 1.23456789, Lng: 2.34567891})
	require.NoError(t, err)
	e, err := h.q.Save()
	require.NoError(t, err)
	saved := model.Coordinate{Lat: 1.234567, Lng: 2.345678}
	require.Equal(t, saved, e.Committed())

	require.NoError(t, h.q.Select("b"))
	require.NoError(t, h.q.Select("a"))

	sel, _ := h.q.Selected()
	require.Equal(t, saved, sel.Coordinate)

	stored, err := h.meta.GetPending(h.ctx, "a")
	require.NoError(t, err)
	require.Equal(t, coordA, stored.Coordinate, "saving must not write to the store")
}

func TestSelectedShowsDraftWhileEditing(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.q.EnterEdit()
	require.NoError(t, err)
	_, err = h.q.Pick(model.Coordinate{Lat: 4, Lng: 5})
	require.NoError(t, err)

	sel, _ := h.q.Selected()
	require.Equal(t, model.Coordinate{Lat: 4, Lng: 5}, sel.Coordinate)

	_, err = h.q.Cancel()
	require.NoError(t, err)
	sel, _ = h.q.Selected()
	require.Equal(t, coordA, sel.Coordinate)
}

func TestApproveSelectedUsesCommittedCoordinate(t *testing.T) {
	h := newHarness(t, nil)

	_, _ = h.q.EnterEdit()
	_, _ = h.q.Pick(model.Coordinate{Lat: 7, Lng: 8})
	_, _ = h.q.Save()
	_, _ = h.q.EnterEdit()
	_, _ = h.q.Pick(model.Coordinate{Lat: 50, Lng: 50}) // unsaved draft

	report, err := h.q.ApproveSelected(h.ctx)
	require.NoError(t, err)
	require.Equal(t, model.ItemID("a"), report.ID)

	published, err := h.meta.GetPublished(h.ctx, "a")
	require.NoError(t, err)
	require.Equal(t, model.Coordinate{Lat: 7, Lng: 8}, published.Coordinate)

	require.Equal(t, []model.ItemID{"b", "c"}, ids(h.q.Items()))
	_, ok := h.q.Selected()
	require.False(t, ok, "selection is cleared after a decision")
	require.Equal(t, 2, h.gauge.n)
	require.Equal(t, Event{Kind: EventRemoved, ID: "a"}, h.events[len(h.events)-1])
}

func TestApproveOtherKeepsSelection(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.q.Approve(h.ctx, "c")
	require.NoError(t, err)

	sel, ok := h.q.Selected()
	require.True(t, ok)
	require.Equal(t, model.ItemID("a"), sel.ID)
	require.Equal(t, []model.ItemID{"a", "b"}, ids(h.q.Items()))
}

func TestApproveNotQueued(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.q.Approve(h.ctx, "nope")
	require.ErrorIs(t, err, ErrNotQueued)
	_, err = h.q.Reject(h.ctx, "nope")
	require.ErrorIs(t, err, ErrNotQueued)
}

// failingModerator returns the configured error instead of delegating.
type failingModerator struct {
	next       Moderator
	approveErr error
	rejectErr  error
}

func (f *failingModerator) Approve(ctx context.Context, id model.ItemID, c model.Coordinate) (*workflow.Report, error) {
	if f.approveErr != nil {
		return &workflow.Report{Action: workflow.ActionApprove, ID: id}, f.approveErr
	}
	return f.next.Approve(ctx, id, c)
}

func (f *failingModerator) Reject(ctx context.Context, id model.ItemID) (*workflow.Report, error) {
	if f.rejectErr != nil {
		return &workflow.Report{Action: workflow.ActionReject, ID: id}, f.rejectErr
	}
	return f.next.Reject(ctx, id)
}

func TestApproveFailureKeepsItem(t *testing.T) {
	fail := &failingModerator{approveErr: &workflow.InconsistentStateError{ID: "a", Err: errors.New("bucket down")}}
	h := newHarness(t, func(w *workflow.Workflow) Moderator {
		fail.next = w
		return fail
	})

	_, err := h.q.ApproveSelected(h.ctx)
	require.ErrorIs(t, err, workflow.ErrInconsistentState)
	require.Equal(t, 3, h.q.Len())

	sel, ok := h.q.Selected()
	require.True(t, ok)
	require.Equal(t, model.ItemID("a"), sel.ID)

	fail.approveErr = nil
	_, err = h.q.ApproveSelected(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 2, h.q.Len())
}

func TestRejectCleanupIncompleteRemovesItem(t *testing.T) {
	fail := &failingModerator{rejectErr: &workflow.CleanupIncompleteError{ID: "a", Key: "not_approved/a.jpg", Err: errors.New("503")}}
	h := newHarness(t, func(w *workflow.Workflow) Moderator {
		fail.next = w
		return fail
	})

	_, err := h.q.RejectSelected(h.ctx)
	require.ErrorIs(t, err, workflow.ErrCleanupIncomplete)
	require.Equal(t, []model.ItemID{"b", "c"}, ids(h.q.Items()))
	_, ok := h.q.Selected()
	require.False(t, ok)
}

func TestRejectFailureKeepsItem(t *testing.T) {
	fail := &failingModerator{rejectErr: errors.New("db locked")}
	h := newHarness(t, func(w *workflow.Workflow) Moderator {
		fail.next = w
		return fail
	})

	_, err := h.q.Reject(h.ctx, "b")
	require.Error(t, err)
	require.Equal(t, 3, h.q.Len())
}

func TestRejectRemovesFromStores(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.q.Reject(h.ctx, "b")
	require.NoError(t, err)

	pending, err := h.meta.ListPending(h.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	ok, err := h.blobs.Exists(h.ctx, blob.DefaultLayout().PendingKey("b"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReloadPicksUpNewItems(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.meta.InsertPending(h.ctx, model.PendingItem{ID: "d", Coordinate: coordA}))

	require.NoError(t, h.q.Select("c"))
	require.NoError(t, h.q.Load(h.ctx))

	require.Equal(t, []model.ItemID{"a", "b", "c", "d"}, ids(h.q.Items()))
	sel, _ := h.q.Selected()
	require.Equal(t, model.ItemID("a"), sel.ID)
}
