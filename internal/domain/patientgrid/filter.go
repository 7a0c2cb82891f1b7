package patientgrid

// LocalOnly returns the filters that have not been persisted yet.
func LocalOnly(filters []LocalFilter) []LocalFilter {
	var out []LocalFilter
	for _, f := range filters {
		if !f.Persisted() {
			out = append(out, f)
		}
	}
	return out
}

// ApplyLocalFilters applies the not yet persisted filters to rows. Persisted
// filters are already reflected in the fetched report and are skipped.
//
// Without local filters rows is returned as is. Otherwise the result is the
// concatenation of each filter's matches, so filters combine as a union and
// a row matching two filters appears twice.
func ApplyLocalFilters(rows []ReportRow, filters []LocalFilter) []ReportRow {
	local := LocalOnly(filters)
	if len(local) == 0 {
		return rows
	}
	var out []ReportRow
	for _, f := range local {
		for _, r := range rows {
			if cellMatches(r[f.ColumnName], f.Operand) {
				out = append(out, r)
			}
		}
	}
	return out
}

func cellMatches(c Cell, operand string) bool {
	switch c.Kind {
	case CellObs:
		if c.Obs == nil {
			return false
		}
		v := c.Obs.Value
		if v.Kind == ObsValueCoded {
			return v.UUID == operand
		}
		return v.Text == operand
	case CellEmpty, CellEncounters:
		return false
	default:
		return c.String() == operand
	}
}
