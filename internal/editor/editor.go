// Package editor holds the position editing state machine for the selected item.
//
// PositionEditor is a value type. Every transition returns a new editor and
// leaves the receiver untouched, so callers keep exactly one current value.
package editor

import "github.com/debemdeboas/locs-review/internal/model"

type State int

const (
	Viewing State = iota
	Editing
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	default:
		return "unknown"
	}
}

type PositionEditor struct {
	committed model.Coordinate
	tentative model.Coordinate
	state     State
}

// New starts in Viewing with both coordinates set to c.
func New(c model.Coordinate) PositionEditor {
	return PositionEditor{committed: c, tentative: c, state: Viewing}
}

// Reset discards any edit and starts over from c. Used on selection change.
func (e PositionEditor) Reset(c model.Coordinate) PositionEditor {
	return New(c)
}

func (e PositionEditor) EnterEdit() PositionEditor {
	if e.state == Editing {
		return e
	}
	e.state = Editing
	e.tentative = e.committed
	return e
}

// Pick replaces the tentative coordinate with c truncated to 6 decimals.
// Picks while Viewing are ignored.
func (e PositionEditor) Pick(c model.Coordinate) PositionEditor {
	if e.state != Editing {
		return e
	}
	e.tentative = c.Truncate()
	return e
}

// Save commits the tentative coordinate and returns to Viewing. The second
// result is the committed coordinate. Saving while Viewing changes nothing.
func (e PositionEditor) Save() (PositionEditor, model.Coordinate) {
	if e.state != Editing {
		return e, e.committed
	}
	e.committed = e.tentative
	e.state = Viewing
	return e, e.committed
}

func (e PositionEditor) Cancel() PositionEditor {
	e.tentative = e.committed
	e.state = Viewing
	return e
}

func (e PositionEditor) State() State { return e.state }

func (e PositionEditor) Editing() bool { return e.state == Editing }

func (e PositionEditor) Committed() model.Coordinate { return e.committed }

func (e PositionEditor) Tentative() model.Coordinate { return e.tentative }

// Position is the coordinate to show on the map.
func (e PositionEditor) Position() model.Coordinate {
	if e.state == Editing {
		return e.tentative
	}
	return e.committed
}
