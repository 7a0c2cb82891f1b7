package editing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/icrc/patientgrid/internal/domain/patientgrid"
)

const (
	nameCol   = patientgrid.PatientDetailsNameColumn
	genderCol = patientgrid.PatientDetailsGenderColumn
)

func testGrid() *patientgrid.PatientGrid {
	return &patientgrid.PatientGrid{
		UUID: "g1",
		Name: "Ward A",
		Columns: []patientgrid.PatientGridColumn{
			{UUID: "col-name", Name: nameCol},
			{UUID: "col-gender", Name: genderCol, Hidden: true},
		},
		Filters: []patientgrid.PatientGridFilter{
			{UUID: "flt-1", Name: "Women", Operand: "F", Column: patientgrid.Ref{UUID: "col-gender", Display: genderCol}},
		},
	}
}

func TestBaselineFromGrid(t *testing.T) {
	st := BaselineFromGrid(testGrid())
	if st.ColumnHiddenStates[nameCol] || !st.ColumnHiddenStates[genderCol] {
		t.Errorf("unexpected hidden states %v", st.ColumnHiddenStates)
	}
	if len(st.Filters) != 1 || st.Filters[0].ColumnName != genderCol || st.Filters[0].UUID != "flt-1" {
		t.Errorf("unexpected filters %+v", st.Filters)
	}
}

func TestSession_EditsAreFullSnapshots(t *testing.T) {
	sess := NewSession(testGrid())
	sess.HideColumn(nameCol)
	sess.AddFilter(patientgrid.LocalFilter{UUID: "ignored", Name: "Ada", Operand: "Ada", ColumnName: nameCol})

	eff := sess.Effective()
	if !eff.ColumnHiddenStates[nameCol] {
		t.Error("expected name hidden")
	}
	if len(eff.Filters) != 2 || eff.Filters[1].Persisted() {
		t.Errorf("expected a local filter appended, got %+v", eff.Filters)
	}

	sess.Undo()
	eff = sess.Effective()
	if !eff.ColumnHiddenStates[nameCol] {
		t.Error("expected hidden state kept after undoing the filter")
	}
	if len(eff.Filters) != 1 {
		t.Errorf("expected filter removed by undo, got %d", len(eff.Filters))
	}

	sess.Undo()
	if sess.Effective().ColumnHiddenStates[nameCol] {
		t.Error("expected original state after undoing everything")
	}
	sess.Redo()
	if !sess.Effective().ColumnHiddenStates[nameCol] {
		t.Error("expected redo to restore the hidden state")
	}
}

func TestSession_NoopEditsAreNotRecorded(t *testing.T) {
	sess := NewSession(testGrid())
	sess.HideColumn(genderCol)
	sess.ShowColumn(nameCol)
	if sess.Stack.CanUndo() {
		t.Error("expected no history for edits that change nothing")
	}
}

func TestSession_RemoveFilter(t *testing.T) {
	sess := NewSession(testGrid())
	if err := sess.RemoveFilter(3); !errors.Is(err, ErrFilterIndex) {
		t.Errorf("expected ErrFilterIndex, got %v", err)
	}
	if err := sess.RemoveFilter(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sess.Effective().Filters) != 0 {
		t.Error("expected filter removed")
	}
	if len(sess.Original.Filters) != 1 {
		t.Error("expected original untouched")
	}
}

func TestSession_RemovedLastFilterStaysRemoved(t *testing.T) {
	original := BaselineFromGrid(testGrid())
	sess := NewSession(testGrid())
	if err := sess.RemoveFilter(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess.HideColumn(nameCol)

	eff := sess.Effective()
	if len(eff.Filters) != 0 {
		t.Errorf("expected no filters after an unrelated edit, got %+v", eff.Filters)
	}
	ch := Diff(original, eff)
	if len(ch.Removed) != 1 || ch.Removed[0].UUID != "flt-1" {
		t.Errorf("expected flt-1 to be removed on save, got %+v", ch.Removed)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back Session
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back.ShowColumn(genderCol)
	if n := len(back.Effective().Filters); n != 0 {
		t.Errorf("expected no filters after decoding, got %d", n)
	}
}

func TestSession_Rebase(t *testing.T) {
	grid := testGrid()
	sess := NewSession(grid)
	sess.HideColumn(nameCol)

	if sess.Rebase(grid) {
		t.Error("expected no rebase for an unchanged grid")
	}

	changed := testGrid()
	changed.Columns[1].Hidden = false
	if !sess.Rebase(changed) {
		t.Fatal("expected rebase for a changed grid")
	}
	if sess.Original.ColumnHiddenStates[genderCol] {
		t.Error("expected original rebuilt from the new grid")
	}
	if !sess.Effective().ColumnHiddenStates[nameCol] {
		t.Error("expected pending edits kept")
	}
}

func TestSession_JSON(t *testing.T) {
	sess := NewSession(testGrid())
	sess.HideColumn(nameCol)
	sess.Undo()

	data, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back Session
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Stack.CanRedo() || back.BaselineVersion != sess.BaselineVersion {
		t.Errorf("unexpected session %+v", back)
	}
	back.Redo()
	if !back.Effective().ColumnHiddenStates[nameCol] {
		t.Error("expected redo after decoding")
	}
}

func TestDiff(t *testing.T) {
	original := BaselineFromGrid(testGrid())
	sess := NewSession(testGrid())
	sess.ShowColumn(genderCol)
	sess.HideColumn(nameCol)
	sess.RemoveFilter(0)
	sess.AddFilter(patientgrid.LocalFilter{Name: "Ada", Operand: "Ada", ColumnName: nameCol})

	ch := Diff(original, sess.Effective())
	if len(ch.Hidden) != 2 || ch.Hidden[genderCol] || !ch.Hidden[nameCol] {
		t.Errorf("unexpected hidden changes %v", ch.Hidden)
	}
	if len(ch.Added) != 1 || ch.Added[0].Name != "Ada" {
		t.Errorf("unexpected added filters %+v", ch.Added)
	}
	if len(ch.Removed) != 1 || ch.Removed[0].UUID != "flt-1" {
		t.Errorf("unexpected removed filters %+v", ch.Removed)
	}
	if ch.Count() != 4 {
		t.Errorf("expected 4 changes, got %d", ch.Count())
	}

	if !Diff(original, original).Empty() {
		t.Error("expected no changes between identical states")
	}
}
