package patientgrid

// ProjectHistoricEncounters turns the past encounters of one patient for a
// form into display rows keyed like the form's columns: the form date
// column plus one entry per mappable question.
//
// Each question takes the first observation of the encounter whose concept
// matches the question's concept; further observations of the same concept
// are not shown.
func ProjectHistoricEncounters(form *Form, questions []MappableQuestion, encounters []HistoricEncounter) []DisplayRow {
	if form == nil {
		return nil
	}
	dateColumn := FormDateColumnName(form.UUID)
	rows := make([]DisplayRow, 0, len(encounters))
	for _, enc := range encounters {
		row := make(DisplayRow, len(questions)+1)
		row[dateColumn] = FormatDateTime(enc.EncounterDatetime)
		for _, q := range questions {
			row[q.ColumnName()] = ""
			if obs, ok := firstObsForConcept(enc.Obs, q.Question.QuestionOptions.Concept); ok {
				row[q.ColumnName()] = obs.Value.String()
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// HistoricColumnTree is the column group used to display past encounters of
// a form. Every mappable question is included; there is no age column since
// encounters carry no age.
func HistoricColumnTree(form *Form, schema *FormSchema, labels map[string]string) ColumnNode {
	group := FormColumnGroup(form, schema, labels, func(string) bool { return true })
	ageColumn := FormAgeColumnName(form.UUID)
	columns := group.Columns[:0:0]
	for _, c := range group.Columns {
		if c.Accessor != ageColumn {
			columns = append(columns, c)
		}
	}
	group.Columns = columns
	return group
}

func firstObsForConcept(obs []Obs, concept string) (Obs, bool) {
	if concept == "" {
		return Obs{}, false
	}
	for _, o := range obs {
		if o.Concept.UUID == concept {
			return o, true
		}
	}
	return Obs{}, false
}
