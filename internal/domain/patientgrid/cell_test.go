package patientgrid

import (
	"encoding/json"
	"testing"
)

func TestCell_Decode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind CellKind
		wantText string
	}{
		{"null", `null`, CellEmpty, ""},
		{"string", `"Ada"`, CellString, "Ada"},
		{"integer", `42`, CellNumber, "42"},
		{"float with zero fraction", `42.0`, CellNumber, "42"},
		{"exponent", `1e3`, CellNumber, "1000"},
		{"bool", `true`, CellBool, "true"},
		{"coded obs", `{"value":{"uuid":"a1","display":"Yes"}}`, CellObs, "Yes"},
		{"coded obs with name", `{"value":{"uuid":"a1","name":{"display":"No"}}}`, CellObs, "No"},
		{"scalar obs", `{"value":"12.5"}`, CellObs, "12.5"},
		{"numeric obs", `{"value":70}`, CellObs, "70"},
		{"obs without value", `{"uuid":"o1"}`, CellObs, ""},
		{"obs with string encounter", `{"uuid":"o1","concept":{"uuid":"c1"},"value":"Yes","encounter":"e1"}`, CellObs, "Yes"},
		{"obs with numeric concept", `{"concept":42,"value":"12.5"}`, CellObs, "12.5"},
		{"coded obs with numeric field path", `{"formFieldPath":7,"value":{"uuid":"a1","display":"No"}}`, CellObs, "No"},
		{"encounters", `[{"col-1":{"value":"x"}}]`, CellEncounters, ""},
		{"unknown array", `[1,2]`, CellUnknown, "[1,2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cell
			if err := json.Unmarshal([]byte(tt.raw), &c); err != nil {
				t.Fatalf("decode never fails, got %v", err)
			}
			if c.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, c.Kind)
			}
			if got := c.String(); got != tt.wantText {
				t.Errorf("expected %q, got %q", tt.wantText, got)
			}
		})
	}
}

func TestCell_DecodeRow(t *testing.T) {
	var row ReportRow
	raw := `{"uuid":"p1","patientDetails__name":"Ada","formQuestion__f1__q1":{"value":{"uuid":"a1","display":"Yes"}},"form__f1__formAge":31}`
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.UUID() != "p1" {
		t.Errorf("expected p1, got %q", row.UUID())
	}
	if row["formQuestion__f1__q1"].Obs.Value.MatchKey() != "a1" {
		t.Errorf("expected coded value a1")
	}
	if row["form__f1__formAge"].Kind != CellNumber {
		t.Errorf("expected number cell")
	}
}

func TestCell_EncodeKeepsShape(t *testing.T) {
	row := ReportRow{
		"a": StringCell("x"),
		"b": NumberCell("3"),
		"c": obsCell("u1", "Yes"),
		"d": {Kind: CellEmpty},
	}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back ReportRow
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for k, want := range row {
		if back[k].Kind != want.Kind || back[k].String() != want.String() {
			t.Errorf("%s: expected %s %q, got %s %q", k, want.Kind, want.String(), back[k].Kind, back[k].String())
		}
	}
}

func TestObsValue_MatchKey(t *testing.T) {
	if got := CodedValue("u1", "Yes").MatchKey(); got != "u1" {
		t.Errorf("coded: got %q", got)
	}
	if got := ScalarValue("12").MatchKey(); got != "12" {
		t.Errorf("scalar: got %q", got)
	}
}

func TestRef_DecodesStringOrObject(t *testing.T) {
	var refs []Ref
	if err := json.Unmarshal([]byte(`["u1",{"uuid":"u2","display":"Two"},null]`), &refs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs[0].UUID != "u1" || refs[1].Display != "Two" || refs[2].UUID != "" {
		t.Errorf("unexpected refs %+v", refs)
	}
}
