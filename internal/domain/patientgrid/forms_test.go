package patientgrid

import "testing"

func TestUsableForms(t *testing.T) {
	ok := testForm("ok", "et1")
	unpublished := testForm("unpublished", "et1")
	unpublished.Published = false
	retired := testForm("retired", "et1")
	retired.Retired = true
	noSchema := testForm("noschema", "et1")
	noSchema.Resources = nil
	guarded := testForm("guarded", "et2")
	guarded.EncounterTypePrivilege = "View Psychiatric Encounters"
	forms := []Form{ok, unpublished, retired, noSchema, guarded}

	tests := []struct {
		name       string
		privileges []string
		want       []string
	}{
		{"no privileges", nil, []string{"ok"}},
		{"holds guard", []string{"View Psychiatric Encounters"}, []string{"ok", "guarded"}},
		{"wildcard", []string{AllPrivileges}, []string{"ok", "guarded"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UsableForms(forms, tt.privileges)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d forms", tt.want, len(got))
			}
			for i, id := range tt.want {
				if got[i].UUID != id {
					t.Errorf("form %d: expected %s, got %s", i, id, got[i].UUID)
				}
			}
		})
	}
}

func TestFormsInReport(t *testing.T) {
	forms := []Form{testForm("f1", "et1"), testForm("f2", "et2"), testForm("f3", "et3")}
	present := presentSet(
		PatientDetailsNameColumn,
		QuestionColumnName("f3", "weight"),
		FormDateColumnName("f1"),
	)
	got := FormsInReport(forms, present)
	if len(got) != 2 || got[0].UUID != "f1" || got[1].UUID != "f3" {
		t.Errorf("expected f1 and f3 in order, got %+v", got)
	}
}

func TestFormsByUUID(t *testing.T) {
	forms := []Form{testForm("f1", "et1")}
	idx := FormsByUUID(forms)
	if idx["f1"] != &forms[0] {
		t.Error("expected index to point into the slice")
	}
}
