package editing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/icrc/patientgrid/internal/domain/patientgrid"
)

var (
	ErrSaveInProgress = errors.New("a save is already in progress for this grid")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrFilterIndex    = errors.New("filter index out of range")
)

// State is one snapshot of the editing overlay. Snapshots always hold both
// fields so that undo and redo restore the complete state.
type State struct {
	ColumnHiddenStates map[string]bool           `json:"columnHiddenStates"`
	Filters            []patientgrid.LocalFilter `json:"filters"`
}

func (s State) clone() State {
	out := State{
		ColumnHiddenStates: make(map[string]bool, len(s.ColumnHiddenStates)),
		Filters:            make([]patientgrid.LocalFilter, len(s.Filters)),
	}
	copy(out.Filters, s.Filters)
	for k, v := range s.ColumnHiddenStates {
		out.ColumnHiddenStates[k] = v
	}
	return out
}

// BaselineFromGrid is the state of a grid as stored by the backend.
func BaselineFromGrid(grid *patientgrid.PatientGrid) State {
	o := patientgrid.BaselineOverlay(grid)
	return State{ColumnHiddenStates: o.ColumnHiddenStates, Filters: o.Filters}
}

// BaselineVersion fingerprints the editable parts of a grid. It changes
// whenever the stored hidden flags or filters change.
func BaselineVersion(grid *patientgrid.PatientGrid) string {
	data, _ := json.Marshal(BaselineFromGrid(grid))
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Session is the editing overlay of one user on one grid.
type Session struct {
	GridUUID        string       `json:"gridUuid"`
	BaselineVersion string       `json:"baselineVersion"`
	Original        State        `json:"original"`
	Stack           Stack[State] `json:"stack"`
}

// NewSession starts an editing session without edits.
func NewSession(grid *patientgrid.PatientGrid) *Session {
	return &Session{
		GridUUID:        grid.UUID,
		BaselineVersion: BaselineVersion(grid),
		Original:        BaselineFromGrid(grid),
	}
}

// Rebase rebuilds the original state when the grid changed since the
// session was started. Pending edits are kept. It reports whether the
// baseline changed.
func (s *Session) Rebase(grid *patientgrid.PatientGrid) bool {
	v := BaselineVersion(grid)
	if v == s.BaselineVersion {
		return false
	}
	s.BaselineVersion = v
	s.Original = BaselineFromGrid(grid)
	return true
}

// Effective is the state the user sees: the current snapshot where there is
// one, the original otherwise. A snapshot without filters means every filter
// was removed.
func (s *Session) Effective() State {
	cur, ok := s.Stack.Current()
	if !ok {
		return s.Original
	}
	return cur
}

func (s *Session) setHidden(column string, hidden bool) {
	eff := s.Effective()
	if eff.ColumnHiddenStates[column] == hidden {
		return
	}
	next := eff.clone()
	next.ColumnHiddenStates[column] = hidden
	s.Stack = s.Stack.Push(next)
}

func (s *Session) HideColumn(column string) { s.setHidden(column, true) }
func (s *Session) ShowColumn(column string) { s.setHidden(column, false) }

// AddFilter appends a filter that exists only locally until saved.
func (s *Session) AddFilter(f patientgrid.LocalFilter) {
	f.UUID = ""
	next := s.Effective().clone()
	next.Filters = append(next.Filters, f)
	s.Stack = s.Stack.Push(next)
}

// RemoveFilter removes the filter at index of the effective filter list.
func (s *Session) RemoveFilter(index int) error {
	eff := s.Effective()
	if index < 0 || index >= len(eff.Filters) {
		return fmt.Errorf("%w: %d", ErrFilterIndex, index)
	}
	next := eff.clone()
	next.Filters = append(next.Filters[:index:index], next.Filters[index+1:]...)
	s.Stack = s.Stack.Push(next)
	return nil
}

func (s *Session) Undo()    { s.Stack = s.Stack.Undo() }
func (s *Session) Redo()    { s.Stack = s.Stack.Redo() }
func (s *Session) Discard() { s.Stack = s.Stack.Clear() }

// Overlay returns the effective state in the form grid views consume.
func (s *Session) Overlay() patientgrid.Overlay {
	eff := s.Effective()
	return patientgrid.Overlay{ColumnHiddenStates: eff.ColumnHiddenStates, Filters: eff.Filters}
}

// Changes is what a save has to persist.
type Changes struct {
	// Hidden holds the new hidden flag of every column whose flag changed.
	Hidden map[string]bool
	// Added are the local filters to create.
	Added []patientgrid.LocalFilter
	// Removed are the persisted filters no longer present.
	Removed []patientgrid.LocalFilter
}

func (c Changes) Empty() bool {
	return len(c.Hidden) == 0 && len(c.Added) == 0 && len(c.Removed) == 0
}

func (c Changes) Count() int {
	return len(c.Hidden) + len(c.Added) + len(c.Removed)
}

// Diff computes the changes that turn original into effective.
func Diff(original, effective State) Changes {
	ch := Changes{Hidden: make(map[string]bool)}
	for name, hidden := range effective.ColumnHiddenStates {
		if original.ColumnHiddenStates[name] != hidden {
			ch.Hidden[name] = hidden
		}
	}
	for name, hidden := range original.ColumnHiddenStates {
		if _, ok := effective.ColumnHiddenStates[name]; !ok && hidden {
			ch.Hidden[name] = false
		}
	}

	kept := make(map[string]struct{}, len(effective.Filters))
	for _, f := range effective.Filters {
		if f.Persisted() {
			kept[f.UUID] = struct{}{}
		} else {
			ch.Added = append(ch.Added, f)
		}
	}
	for _, f := range original.Filters {
		if !f.Persisted() {
			continue
		}
		if _, ok := kept[f.UUID]; !ok {
			ch.Removed = append(ch.Removed, f)
		}
	}
	return ch
}
