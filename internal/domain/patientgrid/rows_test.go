package patientgrid

import "testing"

func TestProjectRow(t *testing.T) {
	row := ReportRow{
		"uuid":                     StringCell("p1"),
		PatientDetailsNameColumn:   StringCell("Ada"),
		PatientDetailsGenderColumn: {Kind: CellEmpty},
		QuestionColumnName("f1", "smoker"): obsCell("a1", "Yes"),
		QuestionColumnName("f1", "weight"): ObsCell(Obs{Value: ScalarValue("70.5")}),
		FormAgeColumnName("f1"):            NumberCell("31"),
		FormDateColumnName("f1"):           StringCell("2023-05-01T10:00:00.000+0000"),
		"flag":                             {Kind: CellBool, Text: "false"},
	}

	got := ProjectRow(row)
	want := map[string]string{
		"uuid":                     "p1",
		PatientDetailsNameColumn:   "Ada",
		PatientDetailsGenderColumn: "",
		QuestionColumnName("f1", "smoker"): "Yes",
		QuestionColumnName("f1", "weight"): "70.5",
		FormAgeColumnName("f1"):            "31",
		FormDateColumnName("f1"):           "01-May-2023, 10:00",
		"flag":                             "false",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestProjectRows_Empty(t *testing.T) {
	got := ProjectRows(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestFormatDateTime(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2023-05-01T10:00:00.000+0000", "01-May-2023, 10:00"},
		{"2023-05-01T10:00:00Z", "01-May-2023, 10:00"},
		{"2023-12-24", "24-Dec-2023, 00:00"},
		{"", ""},
		{"not a date", "not a date"},
	}
	for _, tt := range tests {
		if got := FormatDateTime(tt.raw); got != tt.want {
			t.Errorf("FormatDateTime(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
