package patientgrid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/icrc/patientgrid/internal/platform/fetchcache"
	"github.com/icrc/patientgrid/pkg/pagination"
)

// Cache kinds of the backend resources the service reads.
const (
	KindForms      = "forms"
	KindFormSchema = "formSchema"
	KindConcepts   = "concepts"
	KindGrids      = "grids"
	KindGrid       = "grid"
	KindReport     = "report"
	KindDownload   = "download"
	KindHistoric   = "historic"
)

// fetchConcurrency bounds the parallel schema and concept requests of one
// load.
const fetchConcurrency = 8

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

type Service struct {
	source    Source
	cache     *fetchcache.Cache
	overlays  OverlayProvider
	onDelete  []DeleteHook
	overrides map[string]string
	logger    zerolog.Logger
}

// NewService creates the grid service. Reports are only replaced by an
// explicit refresh or dropped by invalidation, never revalidated on read.
func NewService(source Source, cache *fetchcache.Cache, labelOverrides map[string]string, logger zerolog.Logger) *Service {
	cache.SetPolicy(KindReport, fetchcache.Policy{Revalidate: false})
	return &Service{
		source:    source,
		cache:     cache,
		overrides: labelOverrides,
		logger:    logger,
	}
}

// SetOverlayProvider makes views reflect each user's editing overlay.
func (s *Service) SetOverlayProvider(p OverlayProvider) {
	s.overlays = p
}

// OnDelete registers a hook run after a grid has been deleted.
func (s *Service) OnDelete(h DeleteHook) {
	s.onDelete = append(s.onDelete, h)
}

// warnings collects the non fatal problems of a load.
type warnings struct {
	mu   sync.Mutex
	list []string
}

func (w *warnings) add(format string, args ...interface{}) {
	w.mu.Lock()
	w.list = append(w.list, fmt.Sprintf(format, args...))
	w.mu.Unlock()
}

func (w *warnings) all() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.list...)
}

// fetch reads through the cache. Stale data served after a failed
// revalidation is accepted and recorded as a warning.
func fetch[T any](ctx context.Context, s *Service, w *warnings, key fetchcache.Key, fn func(context.Context) (T, error)) (T, error) {
	v, err := fetchcache.Get(ctx, s.cache, key, fn)
	if err != nil && fetchcache.IsStale(err) {
		w.add("%s may be out of date: %v", key.Kind, errors.Unwrap(err))
		return v, nil
	}
	return v, err
}

func (s *Service) forms(ctx context.Context, w *warnings) ([]Form, error) {
	return fetch(ctx, s, w, fetchcache.Key{Kind: KindForms, ID: "all"}, s.source.ListForms)
}

func (s *Service) grid(ctx context.Context, w *warnings, id string) (*PatientGrid, error) {
	return fetch(ctx, s, w, fetchcache.Key{Kind: KindGrid, ID: id}, func(ctx context.Context) (*PatientGrid, error) {
		return s.source.GetPatientGrid(ctx, id)
	})
}

func (s *Service) report(ctx context.Context, w *warnings, id string) (*Report, error) {
	return fetch(ctx, s, w, fetchcache.Key{Kind: KindReport, ID: id}, func(ctx context.Context) (*Report, error) {
		return s.source.GetReport(ctx, id)
	})
}

// schemas fetches the schema of every form concurrently. A form whose
// schema cannot be fetched is left out of the result.
func (s *Service) schemas(ctx context.Context, w *warnings, forms []Form) map[string]*FormSchema {
	var mu sync.Mutex
	out := make(map[string]*FormSchema, len(forms))

	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for _, f := range forms {
		f := f
		ref := f.SchemaReference()
		if ref == "" {
			continue
		}
		g.Go(func() error {
			schema, err := fetch(ctx, s, w, fetchcache.Key{Kind: KindFormSchema, ID: ref}, func(ctx context.Context) (*FormSchema, error) {
				return s.source.GetFormSchema(ctx, ref)
			})
			if err != nil {
				s.logger.Warn().Err(err).Str("form_uuid", f.UUID).Msg("form schema unavailable")
				w.add("form %q is not shown: its schema could not be loaded", f.DisplayName())
				return nil
			}
			mu.Lock()
			out[ref] = schema
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

// labels resolves the column labels of forms. Concepts are looked up in
// batches of ConceptBatchSize, one request per batch; a failed batch only
// leaves its questions with their schema labels.
func (s *Service) labels(ctx context.Context, w *warnings, forms []Form, schemas map[string]*FormSchema) map[string]string {
	var mu sync.Mutex
	var concepts []Concept

	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i, batch := range BatchConceptIDs(ConceptIDs(forms, schemas), ConceptBatchSize) {
		i, batch := i, batch
		g.Go(func() error {
			key := fetchcache.Key{Kind: KindConcepts, ID: strings.Join(batch, ",")}
			got, err := fetch(ctx, s, w, key, func(ctx context.Context) ([]Concept, error) {
				return s.source.GetConcepts(ctx, batch)
			})
			if err != nil {
				s.logger.Warn().Err(err).Int("batch", i).Int("size", len(batch)).Msg("concept lookup failed")
				return nil
			}
			mu.Lock()
			concepts = append(concepts, got...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return ResolveLabels(forms, schemas, HardcodedLabels(forms, s.overrides), IndexConcepts(concepts))
}

// GridData is everything needed to display a grid, gathered in one pass.
type GridData struct {
	Grid    *PatientGrid
	Report  *Report
	Forms   []Form
	Schemas map[string]*FormSchema
	Labels  map[string]string
	// Present is the column set the tree is built from.
	Present  map[string]struct{}
	Warnings []string
}

// LoadGridData fetches the grid, its report and the form list concurrently,
// then the schemas of the forms in the report, then the concept labels. The
// result is only assembled once every fetch has settled. A failure of the
// grid, report or form list fails the load; schema and concept failures
// degrade it.
func (s *Service) LoadGridData(ctx context.Context, gridID string) (*GridData, error) {
	w := &warnings{}
	var (
		grid   *PatientGrid
		report *Report
		forms  []Form
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		grid, err = s.grid(gctx, w, gridID)
		return err
	})
	g.Go(func() (err error) {
		report, err = s.report(gctx, w, gridID)
		return err
	})
	g.Go(func() (err error) {
		forms, err = s.forms(gctx, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load grid %s: %w", gridID, err)
	}

	present := presentColumns(grid, report)
	inReport := FormsInReport(forms, present)
	schemas := s.schemas(ctx, w, inReport)
	labels := s.labels(ctx, w, inReport, schemas)

	return &GridData{
		Grid:     grid,
		Report:   report,
		Forms:    inReport,
		Schemas:  schemas,
		Labels:   labels,
		Present:  present,
		Warnings: w.all(),
	}, nil
}

// presentColumns is the column set of the report, or the grid's own columns
// while the report has no rows to discover it from.
func presentColumns(grid *PatientGrid, report *Report) map[string]struct{} {
	present := report.ColumnNames()
	if len(present) > 0 {
		return present
	}
	for _, c := range grid.Columns {
		present[c.Name] = struct{}{}
	}
	return present
}

func (s *Service) overlay(ctx context.Context, userID string, grid *PatientGrid) (Overlay, error) {
	if s.overlays == nil || userID == "" {
		return BaselineOverlay(grid), nil
	}
	o, err := s.overlays.Overlay(ctx, userID, grid)
	if err != nil {
		return Overlay{}, fmt.Errorf("load editing overlay: %w", err)
	}
	return o, nil
}

// ViewQuery narrows the rows of a view.
type ViewQuery struct {
	Search     string
	SortColumn string
	Descending bool
	Page       pagination.Params
}

// View is a grid ready for display.
type View struct {
	Grid           Ref            `json:"grid"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Columns        []ColumnNode   `json:"columns"`
	Rows           []DisplayRow   `json:"rows"`
	Total          int            `json:"total"`
	HasMore        bool           `json:"hasMore"`
	Overlay        Overlay        `json:"overlay"`
	ReportMetadata ReportMetadata `json:"reportMetadata,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// View returns the column tree and the projected rows of a grid as seen by
// userID: local filters of the editing overlay applied, then search, sort
// and paging.
func (s *Service) View(ctx context.Context, userID, gridID string, q ViewQuery) (*View, error) {
	data, err := s.LoadGridData(ctx, gridID)
	if err != nil {
		return nil, err
	}
	overlay, err := s.overlay(ctx, userID, data.Grid)
	if err != nil {
		return nil, err
	}

	tree := BuildColumnTree(data.Forms, data.Schemas, data.Labels, data.Present)
	rows := ProjectRows(ApplyLocalFilters(data.Report.Report, overlay.Filters))
	rows = SearchRows(rows, q.Search, VisibleAccessors(tree, overlay.ColumnHiddenStates))
	SortRows(rows, q.SortColumn, q.Descending)

	if rows == nil {
		rows = []DisplayRow{}
	}
	return &View{
		Grid:           Ref{UUID: data.Grid.UUID, Display: data.Grid.Name},
		Name:           data.Grid.Name,
		Description:    data.Grid.Description,
		Columns:        tree,
		Rows:           pagination.Page(rows, q.Page),
		Total:          len(rows),
		HasMore:        q.Page.HasNext(len(rows)),
		Overlay:        overlay,
		ReportMetadata: data.Report.ReportMetadata,
		Warnings:       data.Warnings,
	}, nil
}

// VisibleAccessors returns the leaf column names of tree that are not
// hidden.
func VisibleAccessors(tree []ColumnNode, hidden map[string]bool) []string {
	var out []string
	for _, n := range tree {
		for _, name := range n.Accessors() {
			if !hidden[name] {
				out = append(out, name)
			}
		}
	}
	return out
}

// HistoricView lists the past encounters of a patient for one form.
type HistoricView struct {
	Form     Ref          `json:"form"`
	Columns  ColumnNode   `json:"columns"`
	Rows     []DisplayRow `json:"rows"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Historic returns the past encounters of patientUUID for formUUID within a
// grid.
func (s *Service) Historic(ctx context.Context, gridID, patientUUID, formUUID string) (*HistoricView, error) {
	w := &warnings{}
	forms, err := s.forms(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("historic encounters: %w", err)
	}
	form, ok := FormsByUUID(forms)[formUUID]
	if !ok {
		return nil, fmt.Errorf("form %s: %w", formUUID, ErrNotFound)
	}

	one := []Form{*form}
	schemas := s.schemas(ctx, w, one)
	schema := SchemaFor(form, schemas)
	if schema == nil {
		return nil, fmt.Errorf("schema of form %s: %w", formUUID, ErrNotFound)
	}
	labels := s.labels(ctx, w, one, schemas)

	key := fetchcache.Key{Kind: KindHistoric, ID: gridID, Params: patientUUID + "/" + form.EncounterType.UUID}
	encounters, err := fetch(ctx, s, w, key, func(ctx context.Context) ([]HistoricEncounter, error) {
		return s.source.HistoricEncounters(ctx, gridID, patientUUID, form.EncounterType.UUID)
	})
	if err != nil {
		return nil, fmt.Errorf("historic encounters of %s: %w", patientUUID, err)
	}

	rows := ProjectHistoricEncounters(form, MappableQuestions(form, schema), encounters)
	return &HistoricView{
		Form:     Ref{UUID: form.UUID, Display: form.DisplayName()},
		Columns:  HistoricColumnTree(form, schema, labels),
		Rows:     rows,
		Warnings: w.all(),
	}, nil
}

// DownloadMatrix is a grid download laid out as spreadsheet rows.
type DownloadMatrix struct {
	GridName string     `json:"gridName"`
	Rows     [][]string `json:"rows"`
	Warnings []string   `json:"warnings,omitempty"`
}

// Download lays out the download report of a grid. Columns hidden in the
// user's editing overlay are left out.
func (s *Service) Download(ctx context.Context, userID, gridID string) (*DownloadMatrix, error) {
	w := &warnings{}
	var (
		grid     *PatientGrid
		download *DownloadReport
		forms    []Form
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		grid, err = s.grid(gctx, w, gridID)
		return err
	})
	g.Go(func() (err error) {
		download, err = fetch(gctx, s, w, fetchcache.Key{Kind: KindDownload, ID: gridID}, func(ctx context.Context) (*DownloadReport, error) {
			return s.source.GetDownload(ctx, gridID)
		})
		return err
	})
	g.Go(func() (err error) {
		forms, err = s.forms(gctx, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("download grid %s: %w", gridID, err)
	}

	overlay, err := s.overlay(ctx, userID, grid)
	if err != nil {
		return nil, err
	}
	included := make([]string, 0, len(grid.Columns))
	names := make(map[string]struct{}, len(grid.Columns))
	for _, c := range grid.Columns {
		names[c.Name] = struct{}{}
		if !overlay.ColumnHiddenStates[c.Name] {
			included = append(included, c.Name)
		}
	}

	inGrid := FormsInReport(forms, names)
	schemas := s.schemas(ctx, w, inGrid)
	labels := s.labels(ctx, w, inGrid, schemas)

	matrix := BuildDownloadMatrix(DownloadInput{
		Rows:                 download.Report,
		Columns:              grid.Columns,
		Forms:                inGrid,
		Schemas:              schemas,
		IncludedColumns:      included,
		Labels:               labels,
		PatientDetailsHeader: labels[PatientDetailsGroupID],
	})
	return &DownloadMatrix{GridName: grid.Name, Rows: matrix, Warnings: w.all()}, nil
}

// Grid returns a grid definition.
func (s *Service) Grid(ctx context.Context, gridID string) (*PatientGrid, error) {
	grid, err := s.grid(ctx, &warnings{}, gridID)
	if err != nil {
		return nil, fmt.Errorf("get grid %s: %w", gridID, err)
	}
	return grid, nil
}

// ListGrids returns every grid.
func (s *Service) ListGrids(ctx context.Context) ([]PatientGrid, error) {
	w := &warnings{}
	grids, err := fetch(ctx, s, w, fetchcache.Key{Kind: KindGrids, ID: "all"}, s.source.ListPatientGrids)
	if err != nil {
		return nil, fmt.Errorf("list grids: %w", err)
	}
	for _, msg := range w.all() {
		s.logger.Warn().Msg(msg)
	}
	return grids, nil
}

// CreateGrid creates a grid from a creation request.
func (s *Service) CreateGrid(ctx context.Context, post *PatientGridPost) (*PatientGrid, error) {
	if strings.TrimSpace(post.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(post.Columns) == 0 {
		return nil, fmt.Errorf("%w: at least one column is required", ErrInvalidInput)
	}
	grid, err := s.source.CreatePatientGrid(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("create grid: %w", err)
	}
	s.cache.Invalidate(KindGrids, "all")
	s.cache.Set(fetchcache.Key{Kind: KindGrid, ID: grid.UUID}, grid)
	s.logger.Info().Str("grid_uuid", grid.UUID).Int("columns", len(post.Columns)).Msg("grid created")
	return grid, nil
}

// DeleteGrid deletes a grid, drops everything cached for it and runs the
// delete hooks for userID.
func (s *Service) DeleteGrid(ctx context.Context, userID, gridID string) error {
	if err := s.source.DeletePatientGrid(ctx, gridID); err != nil {
		return fmt.Errorf("delete grid %s: %w", gridID, err)
	}
	s.InvalidateGrid(gridID)
	s.cache.Invalidate(KindGrids, "all")
	for _, h := range s.onDelete {
		h(ctx, userID, gridID)
	}
	s.logger.Info().Str("grid_uuid", gridID).Msg("grid deleted")
	return nil
}

// RefreshReport has the backend recompute a grid's report and replaces the
// cached one with it.
func (s *Service) RefreshReport(ctx context.Context, gridID string) (*Report, error) {
	report, err := s.source.RefreshReport(ctx, gridID)
	if err != nil {
		return nil, fmt.Errorf("refresh report %s: %w", gridID, err)
	}
	s.cache.Set(fetchcache.Key{Kind: KindReport, ID: gridID}, report)
	s.cache.Invalidate(KindDownload, gridID)
	s.cache.Invalidate(KindHistoric, gridID)
	return report, nil
}

// InvalidateGrid drops the cached definition, report, download and
// historic encounters of a grid.
func (s *Service) InvalidateGrid(gridID string) {
	for _, kind := range []string{KindGrid, KindReport, KindDownload, KindHistoric} {
		s.cache.Invalidate(kind, gridID)
	}
}

// UsableForms returns the forms a user with privileges may build a grid
// from.
func (s *Service) UsableForms(ctx context.Context, privileges []string) ([]Form, error) {
	w := &warnings{}
	forms, err := s.forms(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return UsableForms(forms, privileges), nil
}

// Catalog is a set of forms with their schemas and column labels.
type Catalog struct {
	Forms    []Form
	Schemas  map[string]*FormSchema
	Labels   map[string]string
	Warnings []string
}

// Catalog returns the usable forms among formUUIDs, in the given order,
// with their schemas and labels.
func (s *Service) Catalog(ctx context.Context, privileges, formUUIDs []string) (*Catalog, error) {
	usable, err := s.UsableForms(ctx, privileges)
	if err != nil {
		return nil, err
	}
	byUUID := FormsByUUID(usable)
	selected := make([]Form, 0, len(formUUIDs))
	for _, id := range formUUIDs {
		f, ok := byUUID[id]
		if !ok {
			return nil, fmt.Errorf("%w: form %s is not available", ErrInvalidInput, id)
		}
		selected = append(selected, *f)
	}

	w := &warnings{}
	schemas := s.schemas(ctx, w, selected)
	labels := s.labels(ctx, w, selected, schemas)
	return &Catalog{Forms: selected, Schemas: schemas, Labels: labels, Warnings: w.all()}, nil
}
