// Package spreadsheet serialises download matrices.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// WriteCSV writes every row of matrix as one CSV record.
func WriteCSV(w io.Writer, matrix [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(matrix); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename derives a download file name from a grid name and the export
// time, e.g. "Malnutrition_follow-up_2024-03-01.csv".
func Filename(gridName string, at time.Time, ext string) string {
	base := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(gridName), "_"), "_")
	if base == "" {
		base = "patient-grid"
	}
	return fmt.Sprintf("%s_%s.%s", base, at.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}
