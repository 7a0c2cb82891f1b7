package patientgrid

import (
	"strings"
	"time"
)

// DisplayDateTimeLayout is the layout of every rendered encounter date.
const DisplayDateTimeLayout = "02-Jan-2006, 15:04"

// dateLayouts are the timestamp shapes the backend is known to send.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DisplayRow is a report row reduced to display strings.
type DisplayRow map[string]string

// ProjectRows reduces every cell of every row to display text.
func ProjectRows(rows []ReportRow) []DisplayRow {
	out := make([]DisplayRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProjectRow(r))
	}
	return out
}

// ProjectRow reduces the cells of one row to display text. Form date columns
// are always rendered as date and time.
func ProjectRow(row ReportRow) DisplayRow {
	out := make(DisplayRow, len(row))
	for name, cell := range row {
		if IsFormDateColumnName(name) {
			out[name] = FormatDateTimeCell(cell)
			continue
		}
		out[name] = cell.String()
	}
	return out
}

// FormatDateTimeCell renders the timestamp held by a cell. Values that do
// not parse are returned as their plain text.
func FormatDateTimeCell(c Cell) string {
	return FormatDateTime(c.String())
}

// FormatDateTime renders a backend timestamp with DisplayDateTimeLayout.
func FormatDateTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if t, ok := parseTimestamp(raw); ok {
		return t.Format(DisplayDateTimeLayout)
	}
	return raw
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
