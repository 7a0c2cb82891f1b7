package wizard

import (
	"errors"
	"testing"

	"github.com/icrc/patientgrid/internal/config"
	"github.com/icrc/patientgrid/internal/domain/patientgrid"
)

func columnsByName(post *patientgrid.PatientGridPost) map[string]patientgrid.PatientGridColumnPost {
	out := make(map[string]patientgrid.PatientGridColumnPost, len(post.Columns))
	for _, c := range post.Columns {
		out[c.Name] = c
	}
	return out
}

func TestBuildGridPost_Columns(t *testing.T) {
	d := completeDraft("f1", "f2")
	d.Description = "Weekly review"
	cfg := config.DefaultGridConfig()
	cfg.DefaultHiddenQuestions["f1"] = []string{"weight"}

	post, err := BuildGridPost(d, testCatalog(testForm("f1", "et1"), testForm("f2", "et2")), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.Name != "Ward A" || post.Description != "Weekly review" {
		t.Errorf("unexpected header %+v", post)
	}
	// 5 patient details, then per form date, age and 3 questions.
	if len(post.Columns) != 15 {
		t.Fatalf("expected 15 columns, got %d", len(post.Columns))
	}
	wantOrder := []string{
		patientgrid.PatientDetailsNameColumn,
		patientgrid.PatientDetailsGenderColumn,
		patientgrid.PatientDetailsAgeCategoryColumn,
		patientgrid.PatientDetailsCountryColumn,
		patientgrid.PatientDetailsStructureColumn,
		patientgrid.FormDateColumnName("f1"),
		patientgrid.FormAgeColumnName("f1"),
		patientgrid.QuestionColumnName("f1", "weight"),
		patientgrid.QuestionColumnName("f1", "height"),
		patientgrid.QuestionColumnName("f1", "systolic"),
		patientgrid.FormDateColumnName("f2"),
	}
	for i, name := range wantOrder {
		if post.Columns[i].Name != name {
			t.Errorf("column %d: got %s, want %s", i, post.Columns[i].Name, name)
		}
	}

	cols := columnsByName(post)
	age := cols[patientgrid.PatientDetailsAgeCategoryColumn]
	if !age.ConvertToAgeRange || age.EncounterType != "et1" || age.Datatype != DatatypeAgeAtEnc {
		t.Errorf("expected age range from the first form, got %+v", age)
	}
	if c := cols[patientgrid.QuestionColumnName("f1", "weight")]; !c.Hidden || c.Concept != "c-weight" || c.Type != ColumnTypeObs || c.Display != "Weight (kg)" {
		t.Errorf("unexpected weight column %+v", c)
	}
	if c := cols[patientgrid.QuestionColumnName("f2", "weight")]; c.Hidden {
		t.Error("expected default hiding to be per form")
	}
	if c := cols[patientgrid.QuestionColumnName("f1", "height")]; c.Display != "Height (cm)" {
		t.Errorf("expected catalog label, got %q", c.Display)
	}
	if c := cols[patientgrid.FormDateColumnName("f2")]; c.EncounterType != "et2" || c.Datatype != DatatypeEncDate || c.Display != "Date" {
		t.Errorf("unexpected date column %+v", c)
	}
	if c := cols[patientgrid.PatientDetailsNameColumn]; c.Display != "Name" {
		t.Errorf("expected built-in label, got %q", c.Display)
	}
}

func TestBuildGridPost_ConfiguredAgeRangeEncounterType(t *testing.T) {
	cfg := config.DefaultGridConfig()
	cfg.AgeRangeEncounterType = "et-registration"

	post, err := BuildGridPost(completeDraft("f1"), testCatalog(testForm("f1", "et1")), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := columnsByName(post)[patientgrid.PatientDetailsAgeCategoryColumn]; c.EncounterType != "et-registration" {
		t.Errorf("expected configured encounter type, got %q", c.EncounterType)
	}
}

func TestBuildGridPost_Filters(t *testing.T) {
	d := completeDraft("f1", "f2")
	d.Filters[FilterGender] = &FilterSelection{Name: "Women", Operand: "F"}
	d.Filters[FilterAgeCategory] = &FilterSelection{Name: "Children", Operand: ""}

	post, err := BuildGridPost(d, testCatalog(testForm("f1", "et1"), testForm("f2", "et2")), config.DefaultGridConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []patientgrid.PatientGridFilterPost{
		{Name: "Iraq", Operand: "IQ", Column: patientgrid.PatientDetailsCountryColumn},
		{Name: "Women", Operand: "F", Column: patientgrid.PatientDetailsGenderColumn},
		{Name: "period", Operand: "2024-01-01T00:00:00Z,2024-06-30T00:00:00Z", Column: patientgrid.FormDateColumnName("f1")},
		{Name: "period", Operand: "2024-01-01T00:00:00Z,2024-06-30T00:00:00Z", Column: patientgrid.FormDateColumnName("f2")},
	}
	if len(post.Filters) != len(want) {
		t.Fatalf("expected %d filters, got %+v", len(want), post.Filters)
	}
	for i := range want {
		if post.Filters[i] != want[i] {
			t.Errorf("filter %d: got %+v, want %+v", i, post.Filters[i], want[i])
		}
	}
}

func TestBuildGridPost_FormWithoutSchema(t *testing.T) {
	cat := testCatalog(testForm("f1", "et1"))
	delete(cat.Schemas, "schema-f1")

	post, err := BuildGridPost(completeDraft("f1"), cat, config.DefaultGridConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(post.Columns) != 7 {
		t.Errorf("expected patient details plus date and age, got %d columns", len(post.Columns))
	}
}

func TestBuildGridPost_Incomplete(t *testing.T) {
	d := completeDraft("f1")
	d.Period = nil
	if _, err := BuildGridPost(d, testCatalog(testForm("f1", "et1")), config.DefaultGridConfig()); !errors.Is(err, ErrCannotSubmit) {
		t.Errorf("expected ErrCannotSubmit, got %v", err)
	}
	if _, err := BuildGridPost(completeDraft("f1"), testCatalog(), config.DefaultGridConfig()); !errors.Is(err, ErrCannotSubmit) {
		t.Errorf("expected ErrCannotSubmit without forms, got %v", err)
	}
}
