package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/icrc/patientgrid/internal/config"
	"github.com/icrc/patientgrid/internal/domain/patientgrid"
	"github.com/icrc/patientgrid/internal/platform/sessionstore"
)

// Grids resolves selected forms and creates grids.
type Grids interface {
	Catalog(ctx context.Context, privileges, formUUIDs []string) (*patientgrid.Catalog, error)
	CreateGrid(ctx context.Context, post *patientgrid.PatientGridPost) (*patientgrid.PatientGrid, error)
}

// View is a draft together with its navigation state.
type View struct {
	*Draft
	CanGoNext bool     `json:"canGoNext"`
	CanGoBack bool     `json:"canGoBack"`
	CanSubmit bool     `json:"canSubmit"`
	Missing   []string `json:"missing"`
}

func newView(d *Draft) *View {
	missing := d.Missing()
	if missing == nil {
		missing = []string{}
	}
	return &View{
		Draft:     d,
		CanGoNext: d.CanGoNext(),
		CanGoBack: d.CanGoBack(),
		CanSubmit: d.CanSubmit(),
		Missing:   missing,
	}
}

// SubmitResult is the grid created from a draft.
type SubmitResult struct {
	Grid     *patientgrid.PatientGrid `json:"grid"`
	Warnings []string                 `json:"warnings,omitempty"`
}

type Service struct {
	grids  Grids
	store  sessionstore.Store
	cfg    *config.GridConfig
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(grids Grids, store sessionstore.Store, cfg *config.GridConfig, logger zerolog.Logger) *Service {
	if cfg == nil {
		cfg = config.DefaultGridConfig()
	}
	return &Service{
		grids:  grids,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func draftKey(userID, id string) string {
	return sessionstore.Key("wizard", userID, id)
}

func (s *Service) load(ctx context.Context, userID, id string) (*Draft, error) {
	var d Draft
	err := s.store.Load(ctx, draftKey(userID, id), &d)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if d.Filters == nil {
		d.Filters = map[FilterKind]*FilterSelection{}
	}
	return &d, nil
}

func (s *Service) save(ctx context.Context, userID string, d *Draft) error {
	d.UpdatedAt = s.now()
	if err := s.store.Save(ctx, draftKey(userID, d.ID), d); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// New starts a draft on the details page.
func (s *Service) New(ctx context.Context, userID string) (*View, error) {
	d := newDraft(s.newID(), s.now())
	if err := s.save(ctx, userID, d); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("draft_id", d.ID).Msg("wizard draft started")
	return newView(d), nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*View, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return newView(d), nil
}

// update loads a draft, applies fn and stores it when fn succeeds.
func (s *Service) update(ctx context.Context, userID, id string, fn func(*Draft) error) (*View, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	if err := s.save(ctx, userID, d); err != nil {
		return nil, err
	}
	return newView(d), nil
}

func (s *Service) Update(ctx context.Context, userID, id string, p Patch) (*View, error) {
	return s.update(ctx, userID, id, p.Apply)
}

func (s *Service) Next(ctx context.Context, userID, id string) (*View, error) {
	return s.update(ctx, userID, id, (*Draft).Next)
}

func (s *Service) Back(ctx context.Context, userID, id string) (*View, error) {
	return s.update(ctx, userID, id, (*Draft).Back)
}

// Delete abandons a draft.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, draftKey(userID, id))
}

// Submit creates the grid described by a draft and drops the draft. The
// draft is kept when creation fails.
func (s *Service) Submit(ctx context.Context, userID string, privileges []string, id string) (*SubmitResult, error) {
	d, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !d.CanSubmit() {
		return nil, fmt.Errorf("%w: %v required", ErrCannotSubmit, d.Missing())
	}

	catalog, err := s.grids.Catalog(ctx, privileges, d.Forms)
	if err != nil {
		return nil, err
	}
	post, err := BuildGridPost(d, catalog, s.cfg)
	if err != nil {
		return nil, err
	}
	grid, err := s.grids.CreateGrid(ctx, post)
	if err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, draftKey(userID, id)); err != nil {
		s.logger.Warn().Err(err).Str("draft_id", id).Msg("failed to delete submitted draft")
	}
	s.logger.Info().Str("draft_id", id).Str("grid_uuid", grid.UUID).Int("columns", len(post.Columns)).Msg("grid created from wizard")
	return &SubmitResult{Grid: grid, Warnings: catalog.Warnings}, nil
}
