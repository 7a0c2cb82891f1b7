package editing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/icrc/patientgrid/internal/domain/patientgrid"
	"github.com/icrc/patientgrid/internal/platform/sessionstore"
)

// Writer persists overlay changes on the backend.
type Writer interface {
	UpdateColumnHidden(ctx context.Context, gridID, columnUUID string, hidden bool) error
	CreateFilter(ctx context.Context, gridID string, filter patientgrid.PatientGridFilterPost) (*patientgrid.PatientGridFilter, error)
	DeleteFilter(ctx context.Context, gridID, filterUUID string) error
}

// Grids reads grid definitions and drops them from the cache once changed.
type Grids interface {
	Grid(ctx context.Context, gridID string) (*patientgrid.PatientGrid, error)
	InvalidateGrid(gridID string)
}

// Status is the overlay of a grid together with its history state.
type Status struct {
	patientgrid.Overlay
	CanUndo  bool `json:"canUndo"`
	CanRedo  bool `json:"canRedo"`
	IsSaving bool `json:"isSaving"`
	Pending  int  `json:"pending"`
}

// SaveResult reports what a save persisted.
type SaveResult struct {
	ColumnsUpdated int `json:"columnsUpdated"`
	FiltersAdded   int `json:"filtersAdded"`
	FiltersRemoved int `json:"filtersRemoved"`
}

type Service struct {
	grids  Grids
	writer Writer
	store  sessionstore.Store
	logger zerolog.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	saving map[string]bool
}

func NewService(grids Grids, writer Writer, store sessionstore.Store, logger zerolog.Logger) *Service {
	return &Service{
		grids:  grids,
		writer: writer,
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
		saving: make(map[string]bool),
	}
}

func sessionKey(userID, gridID string) string {
	return sessionstore.Key("editing", userID, gridID)
}

func (s *Service) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// IsSaving reports whether a save of the grid is in flight.
func (s *Service) IsSaving(gridID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving[gridID]
}

func (s *Service) beginSave(gridID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving[gridID] {
		return false
	}
	s.saving[gridID] = true
	return true
}

func (s *Service) endSave(gridID string) {
	s.mu.Lock()
	delete(s.saving, gridID)
	s.mu.Unlock()
}

// load returns the stored session rebased on grid, or a fresh one.
func (s *Service) load(ctx context.Context, userID string, grid *patientgrid.PatientGrid) (*Session, error) {
	var sess Session
	err := s.store.Load(ctx, sessionKey(userID, grid.UUID), &sess)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return NewSession(grid), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load editing session: %w", err)
	}
	if sess.Rebase(grid) {
		s.logger.Debug().Str("grid_uuid", grid.UUID).Msg("editing baseline changed")
	}
	return &sess, nil
}

func (s *Service) status(sess *Session) *Status {
	return &Status{
		Overlay:  sess.Overlay(),
		CanUndo:  sess.Stack.CanUndo(),
		CanRedo:  sess.Stack.CanRedo(),
		IsSaving: s.IsSaving(sess.GridUUID),
		Pending:  Diff(sess.Original, sess.Effective()).Count(),
	}
}

// Overlay returns the effective overlay of userID on grid.
func (s *Service) Overlay(ctx context.Context, userID string, grid *patientgrid.PatientGrid) (patientgrid.Overlay, error) {
	sess, err := s.load(ctx, userID, grid)
	if err != nil {
		return patientgrid.Overlay{}, err
	}
	return sess.Overlay(), nil
}

// State returns the editing status of userID on a grid.
func (s *Service) State(ctx context.Context, userID, gridID string) (*Status, error) {
	grid, err := s.grids.Grid(ctx, gridID)
	if err != nil {
		return nil, err
	}
	sess, err := s.load(ctx, userID, grid)
	if err != nil {
		return nil, err
	}
	return s.status(sess), nil
}

// edit applies fn to the session of userID on gridID and stores the result.
// Edits are refused while the grid is being saved.
func (s *Service) edit(ctx context.Context, userID, gridID string, fn func(*patientgrid.PatientGrid, *Session) error) (*Status, error) {
	if s.IsSaving(gridID) {
		return nil, ErrSaveInProgress
	}
	grid, err := s.grids.Grid(ctx, gridID)
	if err != nil {
		return nil, err
	}

	key := sessionKey(userID, gridID)
	unlock := s.lock(key)
	defer unlock()

	sess, err := s.load(ctx, userID, grid)
	if err != nil {
		return nil, err
	}
	if err := fn(grid, sess); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, key, sess); err != nil {
		return nil, fmt.Errorf("save editing session: %w", err)
	}
	return s.status(sess), nil
}

func requireColumn(grid *patientgrid.PatientGrid, name string) error {
	if _, ok := grid.ColumnByName(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return nil
}

func (s *Service) HideColumn(ctx context.Context, userID, gridID, column string) (*Status, error) {
	return s.edit(ctx, userID, gridID, func(grid *patientgrid.PatientGrid, sess *Session) error {
		if err := requireColumn(grid, column); err != nil {
			return err
		}
		sess.HideColumn(column)
		return nil
	})
}

func (s *Service) ShowColumn(ctx context.Context, userID, gridID, column string) (*Status, error) {
	return s.edit(ctx, userID, gridID, func(grid *patientgrid.PatientGrid, sess *Session) error {
		if err := requireColumn(grid, column); err != nil {
			return err
		}
		sess.ShowColumn(column)
		return nil
	})
}

func (s *Service) AddFilter(ctx context.Context, userID, gridID string, f patientgrid.LocalFilter) (*Status, error) {
	return s.edit(ctx, userID, gridID, func(grid *patientgrid.PatientGrid, sess *Session) error {
		if err := requireColumn(grid, f.ColumnName); err != nil {
			return err
		}
		sess.AddFilter(f)
		return nil
	})
}

func (s *Service) RemoveFilter(ctx context.Context, userID, gridID string, index int) (*Status, error) {
	return s.edit(ctx, userID, gridID, func(_ *patientgrid.PatientGrid, sess *Session) error {
		return sess.RemoveFilter(index)
	})
}

func (s *Service) Undo(ctx context.Context, userID, gridID string) (*Status, error) {
	return s.edit(ctx, userID, gridID, func(_ *patientgrid.PatientGrid, sess *Session) error {
		sess.Undo()
		return nil
	})
}

func (s *Service) Redo(ctx context.Context, userID, gridID string) (*Status, error) {
	return s.edit(ctx, userID, gridID, func(_ *patientgrid.PatientGrid, sess *Session) error {
		sess.Redo()
		return nil
	})
}

// Discard drops every pending edit.
func (s *Service) Discard(ctx context.Context, userID, gridID string) (*Status, error) {
	return s.edit(ctx, userID, gridID, func(_ *patientgrid.PatientGrid, sess *Session) error {
		sess.Discard()
		return nil
	})
}

// Clear forgets the session of userID on a grid.
func (s *Service) Clear(ctx context.Context, userID, gridID string) {
	if err := s.store.Delete(ctx, sessionKey(userID, gridID)); err != nil {
		s.logger.Warn().Err(err).Str("grid_uuid", gridID).Msg("failed to clear editing session")
	}
}

// Save persists the pending edits of userID on a grid: changed hidden
// flags, new filters and removed filters. On success the grid is dropped
// from the cache and the history is cleared. On failure the history is left
// as it was.
func (s *Service) Save(ctx context.Context, userID, gridID string) (*SaveResult, error) {
	if !s.beginSave(gridID) {
		return nil, ErrSaveInProgress
	}
	defer s.endSave(gridID)

	grid, err := s.grids.Grid(ctx, gridID)
	if err != nil {
		return nil, err
	}
	key := sessionKey(userID, gridID)
	unlock := s.lock(key)
	defer unlock()

	sess, err := s.load(ctx, userID, grid)
	if err != nil {
		return nil, err
	}
	changes := Diff(sess.Original, sess.Effective())
	if changes.Empty() {
		return &SaveResult{}, nil
	}

	res, err := s.persist(ctx, grid, changes)
	if res.ColumnsUpdated+res.FiltersAdded+res.FiltersRemoved > 0 {
		s.grids.InvalidateGrid(gridID)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("grid_uuid", gridID).Int("applied", res.ColumnsUpdated+res.FiltersAdded+res.FiltersRemoved).Msg("saving grid edits failed")
		return nil, err
	}

	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("grid_uuid", gridID).Msg("failed to clear saved editing session")
	}
	s.logger.Info().Str("grid_uuid", gridID).Int("columns", res.ColumnsUpdated).
		Int("filters_added", res.FiltersAdded).Int("filters_removed", res.FiltersRemoved).Msg("grid edits saved")
	return res, nil
}

func (s *Service) persist(ctx context.Context, grid *patientgrid.PatientGrid, ch Changes) (*SaveResult, error) {
	res := &SaveResult{}

	names := make([]string, 0, len(ch.Hidden))
	for name := range ch.Hidden {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		col, ok := grid.ColumnByName(name)
		if !ok {
			return res, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		if err := s.writer.UpdateColumnHidden(ctx, grid.UUID, col.UUID, ch.Hidden[name]); err != nil {
			return res, err
		}
		res.ColumnsUpdated++
	}

	for _, f := range ch.Added {
		col, ok := grid.ColumnByName(f.ColumnName)
		if !ok {
			return res, fmt.Errorf("%w: %s", ErrUnknownColumn, f.ColumnName)
		}
		post := patientgrid.PatientGridFilterPost{Name: f.Name, Operand: f.Operand, Column: col.UUID}
		if _, err := s.writer.CreateFilter(ctx, grid.UUID, post); err != nil {
			return res, err
		}
		res.FiltersAdded++
	}

	for _, f := range ch.Removed {
		if err := s.writer.DeleteFilter(ctx, grid.UUID, f.UUID); err != nil {
			return res, err
		}
		res.FiltersRemoved++
	}
	return res, nil
}
