package wizard

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestDraft_Navigation(t *testing.T) {
	d := newDraft("d1", time.Now())

	if d.CanGoBack() {
		t.Error("expected no page before details")
	}
	if err := d.Back(); !errors.Is(err, ErrNoPage) {
		t.Errorf("expected ErrNoPage, got %v", err)
	}
	if err := d.Next(); !errors.Is(err, ErrPageIncomplete) {
		t.Fatalf("expected ErrPageIncomplete without a name, got %v", err)
	}

	d.Name = "Ward A"
	if !d.CanGoNext() {
		t.Fatal("expected details page to be complete")
	}
	if err := d.Next(); err != nil || d.Page != PageSections {
		t.Fatalf("expected sections page, got %s (%v)", d.Page, err)
	}
	if err := d.Next(); !errors.Is(err, ErrPageIncomplete) {
		t.Fatalf("expected forms to be required, got %v", err)
	}

	d.Forms = []string{"f1"}
	if err := d.Next(); err != nil || d.Page != PageFilters {
		t.Fatalf("expected filters page, got %s (%v)", d.Page, err)
	}
	if d.CanGoNext() {
		t.Error("expected no page after filters")
	}
	if err := d.Next(); !errors.Is(err, ErrNoPage) {
		t.Errorf("expected ErrNoPage, got %v", err)
	}
	if err := d.Back(); err != nil || d.Page != PageSections {
		t.Errorf("expected back to sections, got %s (%v)", d.Page, err)
	}
}

func TestDraft_Missing(t *testing.T) {
	d := newDraft("d1", time.Now())
	d.Page = PageFilters

	want := []string{"name", "forms", "country or structure", "period"}
	if got := d.Missing(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if d.CanSubmit() {
		t.Error("expected empty draft not to be submittable")
	}

	d = completeDraft("f1")
	if got := d.Missing(); len(got) != 0 {
		t.Errorf("expected nothing missing, got %v", got)
	}
}

func TestDraft_StructureSatisfiesLocation(t *testing.T) {
	d := completeDraft("f1")
	delete(d.Filters, FilterCountry)
	if d.CanSubmit() {
		t.Fatal("expected a location filter to be required")
	}
	d.Filters[FilterStructure] = &FilterSelection{Name: "Erbil", Operand: "s-1"}
	if !d.CanSubmit() {
		t.Errorf("expected structure to satisfy the location requirement, missing %v", d.Missing())
	}
}

func TestDraft_BlankOperandIsNotAFilter(t *testing.T) {
	d := completeDraft("f1")
	d.Filters[FilterCountry] = &FilterSelection{Name: "Iraq", Operand: "  "}
	if d.CanSubmit() {
		t.Error("expected blank operand not to count")
	}
}

func TestDraft_CanSubmitFromAnyPage(t *testing.T) {
	d := completeDraft("f1")
	d.Page = PageDetails
	if !d.CanSubmit() {
		t.Error("expected submission to ignore the current page")
	}
	if d.Page != PageDetails {
		t.Error("expected CanSubmit not to move the draft")
	}
}

func TestPeriod_Operand(t *testing.T) {
	from := time.Date(2024, 1, 1, 2, 0, 0, 0, time.FixedZone("AST", 3*3600))
	to := periodTo
	tests := []struct {
		name string
		p    Period
		want string
	}{
		{"both bounds", Period{From: &from, To: &to}, "2023-12-31T23:00:00Z,2024-06-30T00:00:00Z"},
		{"open end", Period{From: &from}, "2023-12-31T23:00:00Z,"},
		{"open start", Period{To: &to}, ",2024-06-30T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Operand(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	var unset *Period
	if unset.Set() || (&Period{}).Set() {
		t.Error("expected unset period")
	}
}

func TestPatch_Apply(t *testing.T) {
	d := newDraft("d1", time.Now())
	d.Filters[FilterGender] = &FilterSelection{Name: "Women", Operand: "F"}
	forms := []string{"f1", "f2"}
	shared := true

	err := Patch{
		Name:    strPtr("Ward A"),
		Shared:  &shared,
		Forms:   &forms,
		Filters: map[FilterKind]*FilterSelection{FilterCountry: {Name: "Iraq", Operand: "IQ"}, FilterGender: nil},
	}.Apply(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "Ward A" || !d.Shared || !reflect.DeepEqual(d.Forms, forms) {
		t.Errorf("unexpected draft %+v", d)
	}
	if _, ok := d.Filters[FilterGender]; ok {
		t.Error("expected null filter to clear the selection")
	}
	if d.Filters[FilterCountry].Operand != "IQ" {
		t.Error("expected country filter to be set")
	}

	forms[0] = "changed"
	if d.Forms[0] != "f1" {
		t.Error("expected forms to be copied")
	}

	if err := (Patch{Description: strPtr("notes")}).Apply(d); err != nil || d.Name != "Ward A" || d.Description != "notes" {
		t.Errorf("expected absent fields to be kept, got %+v (%v)", d, err)
	}
}

func TestPatch_ApplyRejectsInvalid(t *testing.T) {
	before, after := periodTo, periodFrom
	dup := []string{"f1", "f1"}
	blank := []string{""}
	tests := []struct {
		name string
		p    Patch
	}{
		{"unknown filter", Patch{Filters: map[FilterKind]*FilterSelection{"planet": {Operand: "x"}}}},
		{"duplicate form", Patch{Forms: &dup}},
		{"blank form", Patch{Forms: &blank}},
		{"reversed period", Patch{Period: &Period{From: &before, To: &after}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDraft("d1", time.Now())
			d.Name = "kept"
			p := tt.p
			p.Name = strPtr("changed")
			if err := p.Apply(d); !errors.Is(err, ErrInvalidDraft) {
				t.Fatalf("expected ErrInvalidDraft, got %v", err)
			}
			if d.Name != "kept" {
				t.Error("expected a rejected patch not to change the draft")
			}
		})
	}
}
