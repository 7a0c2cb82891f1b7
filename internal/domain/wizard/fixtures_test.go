package wizard

import (
	"time"

	"github.com/icrc/patientgrid/internal/domain/patientgrid"
)

var (
	periodFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	periodTo   = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
)

func testForm(uuid, encounterType string) patientgrid.Form {
	return patientgrid.Form{
		UUID:          uuid,
		Name:          "Form " + uuid,
		Published:     true,
		EncounterType: patientgrid.Ref{UUID: encounterType},
		Resources:     []patientgrid.FormResource{{Name: patientgrid.SchemaResourceName, ValueReference: "schema-" + uuid}},
	}
}

// testSchema has three mappable questions: weight, height and the nested
// systolic.
func testSchema() *patientgrid.FormSchema {
	return &patientgrid.FormSchema{
		Name: "Vitals",
		Pages: []patientgrid.SchemaPage{{
			Label: "Page 1",
			Sections: []patientgrid.SchemaSection{{
				Label: "Vitals",
				Questions: []patientgrid.Question{
					{ID: "weight", Label: "Weight (kg)", Type: "obs", QuestionOptions: patientgrid.QuestionOptions{Concept: "c-weight"}},
					{ID: "height", Type: "obs", QuestionOptions: patientgrid.QuestionOptions{Concept: "c-height"}},
					{ID: "bp", Type: "obsGroup", QuestionOptions: patientgrid.QuestionOptions{Concept: "c-bp"}, Questions: []patientgrid.Question{
						{ID: "systolic", Label: "Systolic", Type: "obs", QuestionOptions: patientgrid.QuestionOptions{Concept: "c-sys"}},
					}},
				},
			}},
		}},
	}
}

func testCatalog(forms ...patientgrid.Form) *patientgrid.Catalog {
	c := &patientgrid.Catalog{
		Forms:   forms,
		Schemas: map[string]*patientgrid.FormSchema{},
		Labels:  map[string]string{},
	}
	for _, f := range forms {
		c.Schemas[f.SchemaReference()] = testSchema()
		c.Labels[patientgrid.QuestionColumnName(f.UUID, "height")] = "Height (cm)"
	}
	return c
}

// completeDraft returns a draft on the filters page that can be submitted.
func completeDraft(forms ...string) *Draft {
	d := newDraft("d1", periodFrom)
	d.Page = PageFilters
	d.Name = "Ward A"
	d.Forms = forms
	d.Filters[FilterCountry] = &FilterSelection{Name: "Iraq", Operand: "IQ"}
	from, to := periodFrom, periodTo
	d.Period = &Period{From: &from, To: &to}
	return d
}
