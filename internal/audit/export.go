package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WriteCSV renders audit rows as CSV for the export endpoint.
func WriteCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"At", "Actor", "Role", "Resource", "Action", "Previous", "New"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("audit: write csv header: %w", err)
	}

	title := cases.Title(language.English)
	for _, row := range rows {
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			row.ActorEmail,
			title.String(row.RoleName),
			title.String(row.ResourceName),
			title.String(row.ActionName),
			formatPrev(row),
			formatValue(row.NewGranted, row.NewScope),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("audit: write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("audit: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatPrev(row Row) string {
	if row.PrevGranted == nil || row.PrevScope == nil {
		return "-"
	}
	return formatValue(*row.PrevGranted, *row.PrevScope)
}

func formatValue(granted bool, scope string) string {
	if !granted {
		return "denied"
	}
	return "granted/" + scope
}
