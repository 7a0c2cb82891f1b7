package openmrs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/icrc/patientgrid/internal/domain/patientgrid"
)

const (
	formRepresentation    = "custom:(uuid,name,display,version,published,retired,encounterType:(uuid,display),resources:(uuid,name,dataType,valueReference))"
	conceptRepresentation = "custom:(uuid,display,mappings:(conceptReferenceTerm:(code,conceptSource:(name))))"
	gridRepresentation    = "full"
)

// ListForms returns every form definition.
func (c *Client) ListForms(ctx context.Context) ([]patientgrid.Form, error) {
	var out results[patientgrid.Form]
	q := url.Values{"v": {formRepresentation}}
	if err := c.do(ctx, http.MethodGet, "/form", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return out.Results, nil
}

// GetFormSchema returns the JSON schema stored under the given clob
// reference.
func (c *Client) GetFormSchema(ctx context.Context, ref string) (*patientgrid.FormSchema, error) {
	var schema patientgrid.FormSchema
	if err := c.do(ctx, http.MethodGet, "/clobdata/"+url.PathEscape(ref), nil, nil, &schema); err != nil {
		return nil, fmt.Errorf("get form schema %s: %w", ref, err)
	}
	return &schema, nil
}

type wireConcept struct {
	UUID     string `json:"uuid"`
	Display  string `json:"display"`
	Mappings []struct {
		ConceptReferenceTerm struct {
			Code          string `json:"code"`
			ConceptSource struct {
				Name string `json:"name"`
			} `json:"conceptSource"`
		} `json:"conceptReferenceTerm"`
	} `json:"mappings"`
}

// GetConcepts looks up concepts by uuid or "SOURCE:code" reference.
func (c *Client) GetConcepts(ctx context.Context, refs []string) ([]patientgrid.Concept, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	var out results[wireConcept]
	q := url.Values{
		"references": {strings.Join(refs, ",")},
		"v":          {conceptRepresentation},
	}
	if err := c.do(ctx, http.MethodGet, "/concept", q, nil, &out); err != nil {
		return nil, fmt.Errorf("get %d concepts: %w", len(refs), err)
	}
	concepts := make([]patientgrid.Concept, 0, len(out.Results))
	for _, w := range out.Results {
		concept := patientgrid.Concept{UUID: w.UUID, Display: w.Display}
		for _, m := range w.Mappings {
			concept.Mappings = append(concept.Mappings, patientgrid.ConceptMapping{
				Source: m.ConceptReferenceTerm.ConceptSource.Name,
				Code:   m.ConceptReferenceTerm.Code,
			})
		}
		concepts = append(concepts, concept)
	}
	return concepts, nil
}

// ListPatientGrids returns the grids visible to the backend user.
func (c *Client) ListPatientGrids(ctx context.Context) ([]patientgrid.PatientGrid, error) {
	var out results[patientgrid.PatientGrid]
	q := url.Values{"v": {gridRepresentation}}
	if err := c.do(ctx, http.MethodGet, "/patientgrid/patientgrid", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list patient grids: %w", err)
	}
	return out.Results, nil
}

// GetPatientGrid returns one grid with its columns and filters.
func (c *Client) GetPatientGrid(ctx context.Context, id string) (*patientgrid.PatientGrid, error) {
	var grid patientgrid.PatientGrid
	q := url.Values{"v": {gridRepresentation}}
	if err := c.do(ctx, http.MethodGet, gridPath(id), q, nil, &grid); err != nil {
		return nil, fmt.Errorf("get patient grid %s: %w", id, err)
	}
	return &grid, nil
}

// CreatePatientGrid creates a grid and returns it as stored.
func (c *Client) CreatePatientGrid(ctx context.Context, post *patientgrid.PatientGridPost) (*patientgrid.PatientGrid, error) {
	var grid patientgrid.PatientGrid
	if err := c.do(ctx, http.MethodPost, "/patientgrid/patientgrid", nil, post, &grid); err != nil {
		return nil, fmt.Errorf("create patient grid: %w", err)
	}
	return &grid, nil
}

// DeletePatientGrid purges a grid.
func (c *Client) DeletePatientGrid(ctx context.Context, id string) error {
	q := url.Values{"purge": {"true"}}
	if err := c.do(ctx, http.MethodDelete, gridPath(id), q, nil, nil); err != nil {
		return fmt.Errorf("delete patient grid %s: %w", id, err)
	}
	return nil
}

// GetReport returns the report of a grid as last computed by the backend.
func (c *Client) GetReport(ctx context.Context, id string) (*patientgrid.Report, error) {
	var report patientgrid.Report
	if err := c.do(ctx, http.MethodGet, "/patientgrid/"+url.PathEscape(id)+"/report", nil, nil, &report); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return &report, nil
}

// RefreshReport asks the backend to recompute the report of a grid.
func (c *Client) RefreshReport(ctx context.Context, id string) (*patientgrid.Report, error) {
	var report patientgrid.Report
	q := url.Values{"refresh": {"true"}}
	if err := c.do(ctx, http.MethodGet, "/patientgrid/"+url.PathEscape(id)+"/report", q, nil, &report); err != nil {
		return nil, fmt.Errorf("refresh report %s: %w", id, err)
	}
	return &report, nil
}

// GetDownload returns the download shaped report of a grid.
func (c *Client) GetDownload(ctx context.Context, id string) (*patientgrid.DownloadReport, error) {
	var report patientgrid.DownloadReport
	if err := c.do(ctx, http.MethodGet, "/patientgrid/"+url.PathEscape(id)+"/download", nil, nil, &report); err != nil {
		return nil, fmt.Errorf("get download %s: %w", id, err)
	}
	return &report, nil
}

// UpdateColumnHidden sets the hidden flag of a grid column.
func (c *Client) UpdateColumnHidden(ctx context.Context, gridID, columnUUID string, hidden bool) error {
	body := map[string]string{"hidden": strconv.FormatBool(hidden)}
	path := gridPath(gridID) + "/column/" + url.PathEscape(columnUUID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return fmt.Errorf("update column %s of grid %s: %w", columnUUID, gridID, err)
	}
	return nil
}

// CreateFilter adds a filter to a grid. filter.Column holds the column uuid.
func (c *Client) CreateFilter(ctx context.Context, gridID string, filter patientgrid.PatientGridFilterPost) (*patientgrid.PatientGridFilter, error) {
	var created patientgrid.PatientGridFilter
	if err := c.do(ctx, http.MethodPost, gridPath(gridID)+"/filter", nil, filter, &created); err != nil {
		return nil, fmt.Errorf("create filter on grid %s: %w", gridID, err)
	}
	return &created, nil
}

// DeleteFilter removes a filter from a grid.
func (c *Client) DeleteFilter(ctx context.Context, gridID, filterUUID string) error {
	path := gridPath(gridID) + "/filter/" + url.PathEscape(filterUUID)
	if err := c.do(ctx, http.MethodDelete, path, url.Values{"purge": {"true"}}, nil, nil); err != nil {
		return fmt.Errorf("delete filter %s of grid %s: %w", filterUUID, gridID, err)
	}
	return nil
}

// HistoricEncounters returns the past encounters of a patient for an
// encounter type, restricted to what the grid exposes.
func (c *Client) HistoricEncounters(ctx context.Context, gridID, patientUUID, encounterTypeUUID string) ([]patientgrid.HistoricEncounter, error) {
	var out results[patientgrid.HistoricEncounter]
	q := url.Values{
		"patient":       {patientUUID},
		"encounterType": {encounterTypeUUID},
	}
	path := "/patientgrid/" + url.PathEscape(gridID) + "/encounter"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, fmt.Errorf("historic encounters of %s: %w", patientUUID, err)
	}
	return out.Results, nil
}

func gridPath(id string) string {
	return "/patientgrid/patientgrid/" + url.PathEscape(id)
}
