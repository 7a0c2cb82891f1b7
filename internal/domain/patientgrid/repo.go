package patientgrid

import "context"

// Source is the backend that stores forms, concepts and grids and computes
// grid reports.
type Source interface {
	ListForms(ctx context.Context) ([]Form, error)
	GetFormSchema(ctx context.Context, ref string) (*FormSchema, error)
	GetConcepts(ctx context.Context, refs []string) ([]Concept, error)

	ListPatientGrids(ctx context.Context) ([]PatientGrid, error)
	GetPatientGrid(ctx context.Context, id string) (*PatientGrid, error)
	CreatePatientGrid(ctx context.Context, post *PatientGridPost) (*PatientGrid, error)
	DeletePatientGrid(ctx context.Context, id string) error

	GetReport(ctx context.Context, id string) (*Report, error)
	RefreshReport(ctx context.Context, id string) (*Report, error)
	GetDownload(ctx context.Context, id string) (*DownloadReport, error)
	HistoricEncounters(ctx context.Context, gridID, patientUUID, encounterTypeUUID string) ([]HistoricEncounter, error)
}

// Overlay is the effective editing state of a grid for one user: the hidden
// flag of each column and the filters, persisted or not.
type Overlay struct {
	ColumnHiddenStates map[string]bool `json:"columnHiddenStates"`
	Filters            []LocalFilter   `json:"filters"`
}

// OverlayProvider supplies the editing overlay a user has on a grid.
type OverlayProvider interface {
	Overlay(ctx context.Context, userID string, grid *PatientGrid) (Overlay, error)
}

// DeleteHook runs after userID deleted a grid.
type DeleteHook func(ctx context.Context, userID, gridID string)

// BaselineOverlay is the overlay of a grid without local edits.
func BaselineOverlay(grid *PatientGrid) Overlay {
	o := Overlay{ColumnHiddenStates: make(map[string]bool, len(grid.Columns))}
	for _, c := range grid.Columns {
		o.ColumnHiddenStates[c.Name] = c.Hidden
	}
	for _, f := range grid.Filters {
		o.Filters = append(o.Filters, LocalFilter{
			UUID:       f.UUID,
			Name:       f.Name,
			Operand:    f.Operand,
			ColumnName: f.Column.Display,
		})
	}
	return o
}
