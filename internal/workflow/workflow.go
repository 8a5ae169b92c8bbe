// Package workflow moves a pending item to its final state across the metadata
// store and the blob store.
//
// Neither store offers a transaction spanning both, so each action is an
// ordered sequence of steps. Every step detects when its effect is already
// durable and reports AlreadyApplied instead of failing, which makes a whole
// action safe to re-issue after any partial failure. There is no internal
// retry: a failed step ends the invocation and retrying is the caller's call.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/locs-review/internal/blob"
	"github.com/debemdeboas/locs-review/internal/model"
	"github.com/debemdeboas/locs-review/internal/repository"
)

var workflowLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	workflowLogger = l
}

// Recorder observes step outcomes and finished invocations.
type Recorder interface {
	StepDone(action Action, step Step, outcome Outcome)
	RunDone(action Action, err error, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) StepDone(Action, Step, Outcome) {}
func (nopRecorder) RunDone(Action, error, time.Duration) {}

type Option func(*Workflow)

func WithRecorder(r Recorder) Option {
	return func(w *Workflow) {
		if r != nil {
			w.recorder = r
		}
	}
}

func WithLayout(l blob.Layout) Option {
	return func(w *Workflow) {
		w.layout = l
	}
}

type Workflow struct {
	meta     repository.MetadataStore
	blobs    blob.Store
	layout   blob.Layout
	recorder Recorder
}

func New(meta repository.MetadataStore, blobs blob.Store, opts ...Option) *Workflow {
	w := &Workflow{
		meta:     meta,
		blobs:    blobs,
		layout:   blob.DefaultLayout(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) Layout() blob.Layout {
	return w.layout
}

// Approve publishes id at coord: insert the published record, relocate the
// blob, then delete the pending record. The pending record is only deleted
// once both earlier steps are confirmed.
//
// A relocation failure returns an *InconsistentStateError; the published
// record stays and the pending record is kept, so the item stays queued.
func (w *Workflow) Approve(ctx context.Context, id model.ItemID, coord model.Coordinate) (*Report, error) {
	start := time.Now()
	report := &Report{Action: ActionApprove, ID: id}

	err := w.approve(ctx, report, coord)
	w.finish(report, err, time.Since(start))
	return report, err
}

func (w *Workflow) approve(ctx context.Context, report *Report, coord model.Coordinate) error {
	id := report.ID
	if err := coord.Validate(); err != nil {
		return err
	}

	if err := w.step(report, StepPublish, w.publish(ctx, id, coord)); err != nil {
		return err
	}

	if err := w.step(report, StepRelocate, w.relocate(ctx, id)); err != nil {
		return &InconsistentStateError{ID: id, Err: err}
	}

	return w.step(report, StepUnqueue, w.unqueue(ctx, id))
}

// Reject deletes the pending record, then the pending blob. When only the
// blob delete fails the item is gone from the queue and a
// *CleanupIncompleteError is returned. The blob is not retried.
func (w *Workflow) Reject(ctx context.Context, id model.ItemID) (*Report, error) {
	start := time.Now()
	report := &Report{Action: ActionReject, ID: id}

	err := w.reject(ctx, report)
	w.finish(report, err, time.Since(start))
	return report, err
}

func (w *Workflow) reject(ctx context.Context, report *Report) error {
	id := report.ID

	if err := w.step(report, StepUnqueue, w.unqueue(ctx, id)); err != nil {
		return err
	}

	if err := w.step(report, StepPurge, w.purge(ctx, id)); err != nil {
		return &CleanupIncompleteError{ID: id, Key: w.layout.PendingKey(id), Err: err}
	}
	return nil
}

type stepResult struct {
	outcome Outcome
	err     error
}

func applied() stepResult { return stepResult{outcome: Applied} }
func alreadyApplied() stepResult { return stepResult{outcome: AlreadyApplied} }

func failed(store, op string, cause error) stepResult {
	return stepResult{outcome: Failed, err: &ResourceError{Store: store, Op: op, Cause: cause}}
}

// step records res on the report and turns a failure into a *StepError.
func (w *Workflow) step(report *Report, step Step, res stepResult) error {
	report.add(step, res.outcome, res.err)
	w.recorder.StepDone(report.Action, step, res.outcome)

	ev := workflowLogger.Debug()
	if res.outcome == Failed {
		ev = workflowLogger.Warn().Err(res.err)
	}
	ev.Str("action", string(report.Action)).
		Str("item_id", string(report.ID)).
		Str("step", string(step)).
		Str("outcome", res.outcome.String()).
		Msg("Workflow step")

	if res.outcome != Failed {
		return nil
	}
	return &StepError{Action: report.Action, Step: step, ID: report.ID, Err: res.err}
}

func (w *Workflow) publish(ctx context.Context, id model.ItemID, coord model.Coordinate) stepResult {
	err := w.meta.InsertPublished(ctx, id, coord)
	switch {
	case err == nil:
		return applied()
	case errors.Is(err, repository.ErrDuplicateRecord):
		return alreadyApplied()
	default:
		return failed("metadata", "insert published", err)
	}
}

func (w *Workflow) relocate(ctx context.Context, id model.ItemID) stepResult {
	src, dst := w.layout.PendingKey(id), w.layout.PublishedKey(id)

	err := w.blobs.MoveBlob(ctx, src, dst)
	switch {
	case err == nil:
		return applied()

	case errors.Is(err, blob.ErrSourceNotFound):
		exists, statErr := w.blobs.Exists(ctx, dst)
		if statErr != nil {
			return failed("blob", "stat published", statErr)
		}
		if !exists {
			return failed("blob", "move", err)
		}
		return alreadyApplied()

	case errors.Is(err, blob.ErrDestExists):
		// An earlier move copied the blob but never removed the source.
		if delErr := w.blobs.DeleteBlob(ctx, src); delErr != nil && !errors.Is(delErr, blob.ErrNotFound) {
			return failed("blob", "delete moved source", delErr)
		}
		return alreadyApplied()

	default:
		return failed("blob", "move", err)
	}
}

func (w *Workflow) unqueue(ctx context.Context, id model.ItemID) stepResult {
	err := w.meta.DeletePending(ctx, id)
	switch {
	case err == nil:
		return applied()
	case errors.Is(err, repository.ErrNotFound):
		return alreadyApplied()
	default:
		return failed("metadata", "delete pending", err)
	}
}

func (w *Workflow) purge(ctx context.Context, id model.ItemID) stepResult {
	err := w.blobs.DeleteBlob(ctx, w.layout.PendingKey(id))
	switch {
	case err == nil:
		return applied()
	case errors.Is(err, blob.ErrNotFound):
		return alreadyApplied()
	default:
		return failed("blob", "delete pending", err)
	}
}

func (w *Workflow) finish(report *Report, err error, elapsed time.Duration) {
	w.recorder.RunDone(report.Action, err, elapsed)

	ev := workflowLogger.Info()
	switch {
	case err == nil:
	case errors.Is(err, ErrCleanupIncomplete):
		ev = workflowLogger.Warn().Err(err)
	default:
		ev = workflowLogger.Error().Err(err)
	}
	ev.Str("action", string(report.Action)).
		Str("item_id", string(report.ID)).
		Bool("noop", report.NoOp()).
		Dur("elapsed", elapsed).
		Msg("Workflow finished")
}
