package patientgrid

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SchemaResourceName is the name of the form resource that points at the
// form's JSON schema.
const SchemaResourceName = "JSON schema"

// Ref is an OpenMRS reference which may arrive either as a bare uuid string
// or as a {uuid, display} object.
type Ref struct {
	UUID    string `json:"uuid"`
	Display string `json:"display,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref{UUID: s}
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

// FormResource is a resource attached to a form.
type FormResource struct {
	UUID           string `json:"uuid"`
	Name           string `json:"name"`
	DataType       string `json:"dataType,omitempty"`
	ValueReference string `json:"valueReference"`
}

// Form is an OpenMRS form definition.
type Form struct {
	UUID          string         `json:"uuid"`
	Name          string         `json:"name"`
	Display       string         `json:"display,omitempty"`
	Version       string         `json:"version,omitempty"`
	Published     bool           `json:"published"`
	Retired       bool           `json:"retired"`
	EncounterType Ref            `json:"encounterType"`
	Resources     []FormResource `json:"resources,omitempty"`
	// EncounterTypePrivilege, when set, must be held by the user for the
	// form to be offered in the wizard.
	EncounterTypePrivilege string `json:"encounterTypePrivilege,omitempty"`
}

// SchemaReference returns the value reference of the form's JSON schema
// resource, or "" when the form has none.
func (f Form) SchemaReference() string {
	for _, r := range f.Resources {
		if r.Name == SchemaResourceName {
			return r.ValueReference
		}
	}
	return ""
}

// DisplayName prefers the display text and falls back to the name.
func (f Form) DisplayName() string {
	if f.Display != "" {
		return f.Display
	}
	return f.Name
}

// FormSchema is the page/section/question tree of a form.
type FormSchema struct {
	Name  string       `json:"name"`
	UUID  string       `json:"uuid,omitempty"`
	Pages []SchemaPage `json:"pages"`
}

type SchemaPage struct {
	Label    string          `json:"label"`
	Sections []SchemaSection `json:"sections"`
}

type SchemaSection struct {
	Label      string     `json:"label"`
	IsExpanded string     `json:"isExpanded,omitempty"`
	Questions  []Question `json:"questions"`
}

// Question is a form schema question. Composite questions (obsGroup, repeat)
// nest their children in Questions.
type Question struct {
	ID              string          `json:"id"`
	Label           string          `json:"label,omitempty"`
	Type            string          `json:"type"`
	Concept         string          `json:"concept,omitempty"`
	Questions       []Question      `json:"questions,omitempty"`
	QuestionOptions QuestionOptions `json:"questionOptions"`
}

type QuestionOptions struct {
	Rendering string         `json:"rendering,omitempty"`
	Concept   string         `json:"concept,omitempty"`
	Answers   []AnswerOption `json:"answers,omitempty"`
}

type AnswerOption struct {
	Concept string `json:"concept,omitempty"`
	Label   string `json:"label,omitempty"`
}

// Concept is a concept as returned by the bulk concept lookup.
type Concept struct {
	UUID     string           `json:"uuid"`
	Display  string           `json:"display"`
	Mappings []ConceptMapping `json:"mappings,omitempty"`
}

// ConceptMapping is a "SOURCE:code" style reference to a concept.
type ConceptMapping struct {
	Source string `json:"source"`
	Code   string `json:"code"`
}

// Reference renders the mapping the way form schemas reference concepts.
func (m ConceptMapping) Reference() string {
	return m.Source + ":" + m.Code
}

// PatientGridColumn is a persisted grid column.
type PatientGridColumn struct {
	UUID          string `json:"uuid"`
	Name          string `json:"name"`
	Display       string `json:"display,omitempty"`
	Datatype      string `json:"datatype,omitempty"`
	Hidden        bool   `json:"hidden"`
	EncounterType *Ref   `json:"encounterType,omitempty"`
	Concept       *Ref   `json:"concept,omitempty"`
}

// PatientGridFilter is a persisted grid filter. Column.Display carries the
// name of the filtered column.
type PatientGridFilter struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Display string `json:"display,omitempty"`
	Operand string `json:"operand"`
	Column  Ref    `json:"column"`
}

// PatientGrid is a saved grid definition.
type PatientGrid struct {
	UUID        string              `json:"uuid"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Shared      bool                `json:"shared"`
	Owner       *Ref                `json:"owner,omitempty"`
	Columns     []PatientGridColumn `json:"columns"`
	Filters     []PatientGridFilter `json:"filters"`
}

// ColumnByUUID returns the column with the given uuid.
func (g *PatientGrid) ColumnByUUID(uuid string) (PatientGridColumn, bool) {
	for _, c := range g.Columns {
		if c.UUID == uuid {
			return c, true
		}
	}
	return PatientGridColumn{}, false
}

// ColumnByName returns the column with the given name.
func (g *PatientGrid) ColumnByName(name string) (PatientGridColumn, bool) {
	for _, c := range g.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return PatientGridColumn{}, false
}

// ReportRow is one patient row of a report, keyed by column name.
type ReportRow map[string]Cell

// UUID returns the patient uuid of the row.
func (r ReportRow) UUID() string {
	c, ok := r["uuid"]
	if !ok {
		return ""
	}
	return c.String()
}

// ReportMetadata is passed through from the backend untouched.
type ReportMetadata map[string]json.RawMessage

// Report is the computed report of a grid.
type Report struct {
	PatientGrid    Ref            `json:"patientGrid"`
	Report         []ReportRow    `json:"report"`
	ReportMetadata ReportMetadata `json:"reportMetadata,omitempty"`
}

// ColumnNames returns the report's column set, discovered from its first row.
func (r *Report) ColumnNames() map[string]struct{} {
	present := make(map[string]struct{})
	if r == nil || len(r.Report) == 0 {
		return present
	}
	for k := range r.Report[0] {
		present[k] = struct{}{}
	}
	return present
}

// DownloadReport is the download-shaped report where encounter type keys
// hold one obs map per encounter.
type DownloadReport struct {
	PatientGrid Ref         `json:"patientGrid"`
	Report      []ReportRow `json:"report"`
}

// HistoricEncounter is one past encounter of a patient for a form.
type HistoricEncounter struct {
	UUID              string `json:"uuid"`
	EncounterDatetime string `json:"encounterDatetime"`
	Obs               []Obs  `json:"obs"`
}

// LocalFilter is a grid filter in the editing overlay. A filter without
// UUID has not been persisted yet.
type LocalFilter struct {
	UUID       string `json:"uuid,omitempty"`
	Name       string `json:"name" validate:"required"`
	Operand    string `json:"operand" validate:"required"`
	ColumnName string `json:"columnName" validate:"required"`
}

// Persisted reports whether the filter exists server side.
func (f LocalFilter) Persisted() bool {
	return strings.TrimSpace(f.UUID) != ""
}

// PatientGridColumnPost is a column descriptor of a grid creation request.
type PatientGridColumnPost struct {
	Name              string `json:"name"`
	Display           string `json:"display"`
	Type              string `json:"type"`
	Datatype          string `json:"datatype"`
	EncounterType     string `json:"encounterType,omitempty"`
	Concept           string `json:"concept,omitempty"`
	ConvertToAgeRange bool   `json:"convertToAgeRange,omitempty"`
	Hidden            bool   `json:"hidden"`
}

// PatientGridFilterPost is a filter of a grid creation request.
type PatientGridFilterPost struct {
	Name    string `json:"name"`
	Operand string `json:"operand"`
	Column  string `json:"column"`
}

// PatientGridPost is the grid creation request body.
type PatientGridPost struct {
	Name        string                  `json:"name" validate:"required,notblank"`
	Description string                  `json:"description"`
	Shared      bool                    `json:"shared"`
	Columns     []PatientGridColumnPost `json:"columns" validate:"required,min=1"`
	Filters     []PatientGridFilterPost `json:"filters"`
}
