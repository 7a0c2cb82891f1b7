package wizard

import (
	"fmt"

	"github.com/icrc/patientgrid/internal/config"
	"github.com/icrc/patientgrid/internal/domain/patientgrid"
)

// Column types and datatypes understood by the backend.
const (
	ColumnTypeColumn   = "column"
	ColumnTypeAge      = "agecolumn"
	ColumnTypeObs      = "obscolumn"
	DatatypeName       = "NAME"
	DatatypeGender     = "GENDER"
	DatatypeAgeAtEnc   = "AGE_AT_ENC"
	DatatypeDataFilter = "DATAFILTER"
	DatatypeEncDate    = "ENC_DATE"
	DatatypeEncAge     = "ENC_AGE"
	DatatypeObs        = "OBS"
	periodFilterName   = "period"
)

var filterColumns = map[FilterKind]string{
	FilterCountry:     patientgrid.PatientDetailsCountryColumn,
	FilterStructure:   patientgrid.PatientDetailsStructureColumn,
	FilterGender:      patientgrid.PatientDetailsGenderColumn,
	FilterAgeCategory: patientgrid.PatientDetailsAgeCategoryColumn,
}

// BuildGridPost turns a submittable draft into a grid creation request.
// catalog holds the selected forms in selection order, with their schemas
// and labels.
func BuildGridPost(d *Draft, catalog *patientgrid.Catalog, cfg *config.GridConfig) (*patientgrid.PatientGridPost, error) {
	if !d.CanSubmit() {
		return nil, ErrCannotSubmit
	}
	if len(catalog.Forms) == 0 {
		return nil, fmt.Errorf("%w: no usable form selected", ErrCannotSubmit)
	}

	ageRangeEncounterType := cfg.AgeRangeEncounterType
	if ageRangeEncounterType == "" {
		ageRangeEncounterType = catalog.Forms[0].EncounterType.UUID
	}

	post := &patientgrid.PatientGridPost{
		Name:        d.Name,
		Description: d.Description,
		Shared:      d.Shared,
		Columns:     patientDetailColumns(catalog.Labels, ageRangeEncounterType),
	}
	for i := range catalog.Forms {
		form := &catalog.Forms[i]
		post.Columns = append(post.Columns, formColumns(form, patientgrid.SchemaFor(form, catalog.Schemas), catalog.Labels, cfg)...)
	}

	for _, kind := range FilterKinds() {
		if !d.hasFilter(kind) {
			continue
		}
		sel := d.Filters[kind]
		post.Filters = append(post.Filters, patientgrid.PatientGridFilterPost{
			Name:    sel.Name,
			Operand: sel.Operand,
			Column:  filterColumns[kind],
		})
	}
	operand := d.Period.Operand()
	for _, form := range catalog.Forms {
		post.Filters = append(post.Filters, patientgrid.PatientGridFilterPost{
			Name:    periodFilterName,
			Operand: operand,
			Column:  patientgrid.FormDateColumnName(form.UUID),
		})
	}
	return post, nil
}

func patientDetailColumns(labels map[string]string, ageRangeEncounterType string) []patientgrid.PatientGridColumnPost {
	display := func(name string) string {
		return labelOr(labels, name, patientgrid.DefaultColumnLabels[name])
	}
	return []patientgrid.PatientGridColumnPost{
		{Name: patientgrid.PatientDetailsNameColumn, Display: display(patientgrid.PatientDetailsNameColumn), Type: ColumnTypeColumn, Datatype: DatatypeName},
		{Name: patientgrid.PatientDetailsGenderColumn, Display: display(patientgrid.PatientDetailsGenderColumn), Type: ColumnTypeColumn, Datatype: DatatypeGender},
		{
			Name:              patientgrid.PatientDetailsAgeCategoryColumn,
			Display:           display(patientgrid.PatientDetailsAgeCategoryColumn),
			Type:              ColumnTypeAge,
			Datatype:          DatatypeAgeAtEnc,
			EncounterType:     ageRangeEncounterType,
			ConvertToAgeRange: true,
		},
		{Name: patientgrid.PatientDetailsCountryColumn, Display: display(patientgrid.PatientDetailsCountryColumn), Type: ColumnTypeColumn, Datatype: DatatypeDataFilter},
		{Name: patientgrid.PatientDetailsStructureColumn, Display: display(patientgrid.PatientDetailsStructureColumn), Type: ColumnTypeColumn, Datatype: DatatypeDataFilter},
	}
}

func formColumns(form *patientgrid.Form, schema *patientgrid.FormSchema, labels map[string]string, cfg *config.GridConfig) []patientgrid.PatientGridColumnPost {
	dateName := patientgrid.FormDateColumnName(form.UUID)
	ageName := patientgrid.FormAgeColumnName(form.UUID)
	cols := []patientgrid.PatientGridColumnPost{
		{Name: dateName, Display: labelOr(labels, dateName, patientgrid.DefaultColumnLabels[patientgrid.FormDateLabelKey]), Type: ColumnTypeColumn, Datatype: DatatypeEncDate, EncounterType: form.EncounterType.UUID},
		{Name: ageName, Display: labelOr(labels, ageName, patientgrid.DefaultColumnLabels[patientgrid.FormAgeLabelKey]), Type: ColumnTypeColumn, Datatype: DatatypeEncAge, EncounterType: form.EncounterType.UUID},
	}
	for _, q := range patientgrid.MappableQuestions(form, schema) {
		name := q.ColumnName()
		fallback := q.Question.Label
		if fallback == "" {
			fallback = q.Question.ID
		}
		cols = append(cols, patientgrid.PatientGridColumnPost{
			Name:          name,
			Display:       labelOr(labels, name, fallback),
			Type:          ColumnTypeObs,
			Datatype:      DatatypeObs,
			EncounterType: form.EncounterType.UUID,
			Concept:       q.Question.QuestionOptions.Concept,
			Hidden:        cfg.IsHiddenByDefault(form.UUID, q.Question.ID),
		})
	}
	return cols
}

func labelOr(labels map[string]string, key, fallback string) string {
	if l := labels[key]; l != "" {
		return l
	}
	return fallback
}
