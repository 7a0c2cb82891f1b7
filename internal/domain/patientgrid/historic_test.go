package patientgrid

import "testing"

func TestProjectHistoricEncounters(t *testing.T) {
	form := testForm("f1", "et1")
	questions := MappableQuestions(&form, testSchema())
	encounters := []HistoricEncounter{
		{
			UUID:              "e1",
			EncounterDatetime: "2023-05-01T10:00:00.000+0000",
			Obs: []Obs{
				{Concept: Ref{UUID: "c-weight"}, Value: ScalarValue("70")},
				{Concept: Ref{UUID: "c-weight"}, Value: ScalarValue("71")},
				{Concept: Ref{UUID: "c-sys"}, Value: CodedValue("a1", "High")},
			},
		},
		{UUID: "e2", EncounterDatetime: "2023-06-01T08:30:00.000+0000"},
	}

	rows := ProjectHistoricEncounters(&form, questions, encounters)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	first := rows[0]
	if first[FormDateColumnName("f1")] != "01-May-2023, 10:00" {
		t.Errorf("unexpected date %q", first[FormDateColumnName("f1")])
	}
	if first[QuestionColumnName("f1", "weight")] != "70" {
		t.Errorf("expected first matching obs to win, got %q", first[QuestionColumnName("f1", "weight")])
	}
	if first[QuestionColumnName("f1", "systolic")] != "High" {
		t.Errorf("expected coded display, got %q", first[QuestionColumnName("f1", "systolic")])
	}
	if v, ok := first[QuestionColumnName("f1", "height")]; !ok || v != "" {
		t.Errorf("expected empty height entry, got %q (%v)", v, ok)
	}
	if len(rows[1]) != 4 {
		t.Errorf("expected date plus 3 question entries, got %d", len(rows[1]))
	}
}

func TestProjectHistoricEncounters_NilForm(t *testing.T) {
	if rows := ProjectHistoricEncounters(nil, nil, []HistoricEncounter{{UUID: "e1"}}); rows != nil {
		t.Errorf("expected nil, got %v", rows)
	}
}

func TestHistoricColumnTree(t *testing.T) {
	form := testForm("f1", "et1")
	tree := HistoricColumnTree(&form, testSchema(), nil)

	want := []string{
		FormDateColumnName("f1"),
		QuestionColumnName("f1", "weight"),
		QuestionColumnName("f1", "height"),
		QuestionColumnName("f1", "systolic"),
	}
	got := tree.Accessors()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("leaf %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
