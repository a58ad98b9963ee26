package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"quizbot-service/internal/domain"
)

const resultsSheet = "Results"

var resultsHeader = []string{"ID", "Identity", "Name", "Variant", "Score", "Total", "Percent", "Started", "Completed"}

// WriteResultsXLSX renders completed sessions as a single-sheet workbook.
func WriteResultsXLSX(w io.Writer, sessions []domain.SessionSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}

	for i, h := range resultsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(resultsSheet, cell, h); err != nil {
			return err
		}
	}

	for r, s := range sessions {
		completed := ""
		if s.CompletedAt != nil {
			completed = s.CompletedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			s.ID,
			string(s.Identity),
			s.DisplayName,
			s.Variant,
			s.Score,
			s.TotalQuestions,
			domain.Percent(s.Score, s.TotalQuestions),
			s.StartedAt.Format("2006-01-02 15:04:05"),
			completed,
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	return f.Write(w)
}
