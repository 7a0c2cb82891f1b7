package patientgrid

// DownloadInput gathers what is needed to lay out a grid download as a
// spreadsheet.
type DownloadInput struct {
	Rows []ReportRow
	// Columns of the grid; download obs maps are keyed by column uuid.
	Columns []PatientGridColumn
	Forms   []Form
	Schemas map[string]*FormSchema
	// IncludedColumns lists the names of the columns to emit.
	IncludedColumns []string
	Labels          map[string]string
	// PatientDetailsHeader is the group header above the patient detail
	// columns.
	PatientDetailsHeader string
}

type downloadColumn struct {
	header string
	value  func(ReportRow) string
}

type downloadSection struct {
	header  string
	columns []downloadColumn
}

type downloadGroup struct {
	header   string
	sections []downloadSection
}

// SectionRepetitionsRequiredPerForm returns, per form uuid, the largest
// number of encounters any row holds under the form's encounter type.
// Forms whose encounter type never appears map to 0.
func SectionRepetitionsRequiredPerForm(rows []ReportRow, forms []Form) map[string]int {
	out := make(map[string]int, len(forms))
	for _, f := range forms {
		most := 0
		for _, r := range rows {
			c, ok := r[f.EncounterType.UUID]
			if !ok || c.Kind != CellEncounters {
				continue
			}
			if n := len(c.Encounters); n > most {
				most = n
			}
		}
		out[f.UUID] = most
	}
	return out
}

// BuildDownloadMatrix lays out a download as rows of cells. Row 0 holds the
// group headers, row 1 the section headers and row 2 the column headers,
// each only in the first cell of its span. Every following row is one
// patient. Forms are repeated to the right once per encounter, as many
// times as the patient with the most encounters needs.
func BuildDownloadMatrix(in DownloadInput) [][]string {
	groups := downloadGroups(in)

	var width int
	for _, g := range groups {
		for _, s := range g.sections {
			width += len(s.columns)
		}
	}

	groupHeaders := make([]string, 0, width)
	sectionHeaders := make([]string, 0, width)
	columnHeaders := make([]string, 0, width)
	var columns []downloadColumn
	for _, g := range groups {
		firstInGroup := true
		for _, s := range g.sections {
			for ci, c := range s.columns {
				if firstInGroup {
					groupHeaders = append(groupHeaders, g.header)
					firstInGroup = false
				} else {
					groupHeaders = append(groupHeaders, "")
				}
				if ci == 0 {
					sectionHeaders = append(sectionHeaders, s.header)
				} else {
					sectionHeaders = append(sectionHeaders, "")
				}
				columnHeaders = append(columnHeaders, c.header)
				columns = append(columns, c)
			}
		}
	}

	matrix := make([][]string, 0, len(in.Rows)+3)
	matrix = append(matrix, groupHeaders, sectionHeaders, columnHeaders)
	for _, r := range in.Rows {
		line := make([]string, len(columns))
		for i, c := range columns {
			line[i] = c.value(r)
		}
		matrix = append(matrix, line)
	}
	return matrix
}

func downloadGroups(in DownloadInput) []downloadGroup {
	included := make(map[string]struct{}, len(in.IncludedColumns))
	for _, name := range in.IncludedColumns {
		included[name] = struct{}{}
	}
	isIncluded := func(name string) bool {
		_, ok := included[name]
		return ok
	}
	uuidByName := make(map[string]string, len(in.Columns))
	for _, c := range in.Columns {
		uuidByName[c.Name] = c.UUID
	}

	var groups []downloadGroup

	details := downloadSection{}
	detailNames := make(map[string]struct{})
	for _, name := range PatientDetailsColumns() {
		detailNames[name] = struct{}{}
	}
	for _, name := range in.IncludedColumns {
		if _, ok := detailNames[name]; !ok {
			continue
		}
		name := name
		details.columns = append(details.columns, downloadColumn{
			header: labelOr(in.Labels, name, DefaultColumnLabels[name]),
			value:  func(r ReportRow) string { return r[name].String() },
		})
	}
	if len(details.columns) > 0 {
		groups = append(groups, downloadGroup{header: in.PatientDetailsHeader, sections: []downloadSection{details}})
	}

	repetitions := SectionRepetitionsRequiredPerForm(in.Rows, in.Forms)
	for fi := range in.Forms {
		form := &in.Forms[fi]
		schema := SchemaFor(form, in.Schemas)
		for rep := 0; rep < repetitions[form.UUID]; rep++ {
			g := downloadGroup{header: form.DisplayName()}
			if s, ok := formDateAgeSection(form, rep, in.Labels, uuidByName, isIncluded); ok {
				g.sections = append(g.sections, s)
			}
			if schema != nil {
				for pi := range schema.Pages {
					page := &schema.Pages[pi]
					for si := range page.Sections {
						section := &page.Sections[si]
						s := downloadSection{header: section.Label}
						for _, q := range SectionQuestions(form, page, section) {
							name := q.ColumnName()
							if !isIncluded(name) {
								continue
							}
							s.columns = append(s.columns, downloadColumn{
								header: labelOr(in.Labels, name, questionText(q.Question)),
								value:  encounterValue(form.EncounterType.UUID, rep, uuidByName[name], false),
							})
						}
						if len(s.columns) > 0 {
							g.sections = append(g.sections, s)
						}
					}
				}
			}
			if len(g.sections) > 0 {
				groups = append(groups, g)
			}
		}
	}
	return groups
}

func formDateAgeSection(form *Form, rep int, labels map[string]string, uuidByName map[string]string, isIncluded func(string) bool) (downloadSection, bool) {
	s := downloadSection{}
	date := FormDateColumnName(form.UUID)
	if isIncluded(date) {
		s.columns = append(s.columns, downloadColumn{
			header: labelOr(labels, date, DefaultColumnLabels[FormDateLabelKey]),
			value:  encounterValue(form.EncounterType.UUID, rep, uuidByName[date], true),
		})
	}
	age := FormAgeColumnName(form.UUID)
	if isIncluded(age) {
		s.columns = append(s.columns, downloadColumn{
			header: labelOr(labels, age, DefaultColumnLabels[FormAgeLabelKey]),
			value:  encounterValue(form.EncounterType.UUID, rep, uuidByName[age], false),
		})
	}
	return s, len(s.columns) > 0
}

// encounterValue reads row[encounterType][rep][columnUUID].value, or "" when
// the patient has no such encounter.
func encounterValue(encounterType string, rep int, columnUUID string, asDate bool) func(ReportRow) string {
	return func(r ReportRow) string {
		c, ok := r[encounterType]
		if !ok || c.Kind != CellEncounters || rep >= len(c.Encounters) || columnUUID == "" {
			return ""
		}
		v := c.Encounters[rep][columnUUID]
		if asDate {
			return FormatDateTimeCell(v)
		}
		return v.String()
	}
}
