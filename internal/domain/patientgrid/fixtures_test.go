package patientgrid

// testForm returns a form whose schema ("schema-<uuid>") has a vitals
// section with two obs questions and a nested group, plus a section without
// mappable questions.
func testForm(uuid, encounterType string) Form {
	return Form{
		UUID:          uuid,
		Name:          "Form " + uuid,
		Published:     true,
		EncounterType: Ref{UUID: encounterType, Display: "Encounter " + encounterType},
		Resources:     []FormResource{{Name: SchemaResourceName, ValueReference: "schema-" + uuid}},
	}
}

func testSchema() *FormSchema {
	return &FormSchema{
		Name: "Vitals form",
		Pages: []SchemaPage{{
			Label: "Page 1",
			Sections: []SchemaSection{
				{
					Label: "Vitals",
					Questions: []Question{
						{ID: "weight", Label: "Weight (kg)", Type: "obs", QuestionOptions: QuestionOptions{Concept: "c-weight"}},
						{ID: "height", Type: "obs", QuestionOptions: QuestionOptions{Concept: "c-height"}},
						{ID: "bp", Label: "Blood pressure", Type: "obsGroup", QuestionOptions: QuestionOptions{Concept: "c-bp"}, Questions: []Question{
							{ID: "systolic", Label: "Systolic", Type: "obs", QuestionOptions: QuestionOptions{Concept: "c-sys"}},
						}},
					},
				},
				{
					Label: "Notes",
					Questions: []Question{
						{ID: "note", Label: "Note", Type: "markdown"},
					},
				},
			},
		}},
	}
}

func testSchemas(forms ...Form) map[string]*FormSchema {
	out := make(map[string]*FormSchema, len(forms))
	for _, f := range forms {
		out[f.SchemaReference()] = testSchema()
	}
	return out
}

func presentSet(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func obsCell(uuid, display string) Cell {
	return ObsCell(Obs{Value: CodedValue(uuid, display)})
}
