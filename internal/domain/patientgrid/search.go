package patientgrid

import (
	"sort"
	"strconv"
	"strings"
)

// SearchRows keeps the rows where any visible column contains query,
// ignoring case. An empty query keeps every row.
func SearchRows(rows []DisplayRow, query string, visible []string) []DisplayRow {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	var out []DisplayRow
	for _, r := range rows {
		for _, name := range visible {
			if strings.Contains(strings.ToLower(r[name]), query) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// SortRows sorts rows by column in place. Numeric values compare as
// numbers, everything else case-insensitively; ties keep their order.
func SortRows(rows []DisplayRow, column string, descending bool) {
	if column == "" {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(rows[i][column], rows[j][column])
		if descending {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
