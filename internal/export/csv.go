// Package export renders lead collections as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/johnwards/leadtrack/internal/domain"
)

// header is the fixed column order of the export.
var header = []string{"Name", "Company", "Stage", "Engaged", "Last Contacted", "Email"}

// dateLayout renders dates like "Mar 5, 2025".
const dateLayout = "Jan 2, 2006"

// Filename returns the download filename for an export generated on the
// given day, like "all-leads-2025-03-05.csv".
func Filename(now time.Time) string {
	return fmt.Sprintf("all-leads-%s.csv", now.UTC().Format("2006-01-02"))
}

// WriteCSV renders leads to w with the fixed header row. Missing values
// render as "-" and booleans as Yes/No.
func WriteCSV(w io.Writer, leads []domain.Lead) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, lead := range leads {
		record := []string{
			orDash(lead.Name),
			orDash(lead.Company),
			orDash(string(lead.CurrentStage)),
			yesNo(lead.Engaged),
			formatDate(lead.LastContacted),
			orDash(lead.Email),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}
