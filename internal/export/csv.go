package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/subineru/redmine-stakeholder/internal/models"
)

var exportHeader = []string{
	"#", "Name", "Title", "Location", "Project Role",
	"Power", "Interest", "Primary Needs", "Expectations", "Participation Degree",
}

// WriteCSV streams a project's stakeholder list as CSV. Cell values are
// sanitized against spreadsheet formula injection before writing.
func WriteCSV(w io.Writer, stakeholders []models.Stakeholder) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i := range stakeholders {
		if err := cw.Write(csvRow(&stakeholders[i])); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvRow(s *models.Stakeholder) []string {
	return []string{
		strconv.Itoa(s.ProjectSequenceNumber),
		SanitizeCell(s.Name),
		SanitizeCell(s.Title),
		SanitizeCell(s.LocationTypeLabel()),
		SanitizeCell(s.ProjectRole),
		intCell(s.Power),
		intCell(s.Interest),
		SanitizeCell(s.PrimaryNeeds),
		SanitizeCell(s.Expectations),
		SanitizeCell(s.ParticipationDegreeLabel()),
	}
}

func intCell(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// SanitizeCell defuses formula injection: a leading =, +, -, @, tab or CR
// would make Excel evaluate the cell, so such values get a quote prefix.
func SanitizeCell(v string) string {
	if v == "" {
		return v
	}
	if strings.HasPrefix(v, "=") || strings.HasPrefix(v, "+") ||
		strings.HasPrefix(v, "-") || strings.HasPrefix(v, "@") ||
		strings.HasPrefix(v, "\t") || strings.HasPrefix(v, "\r") {
		return "'" + v
	}
	return v
}
