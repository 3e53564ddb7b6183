// Package export serializes a selected analysis record into downloadable
// report documents.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/marklens/marklens/internal/entity"
)

// Service produces XLSX and PDF report bytes for a single record, individual
// or class average.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ReportXLSX returns a one-sheet workbook for the record: a subject table
// followed by a totals block.
func (s *Service) ReportXLSX(record entity.AnalysisResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Report"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Student")
	write(2, 1, record.StudentName)

	headers := []string{"Subject", "Score", "Full Marks", "Percent"}
	for i, h := range headers {
		write(i+1, 3, h)
	}

	row := 4
	for _, subj := range record.Subjects {
		full := subj.FullMarksOrDefault()
		write(1, row, subj.Subject)
		write(2, row, subj.Score)
		write(3, row, full)
		if full > 0 {
			write(4, row, fmt.Sprintf("%.1f%%", subj.Score/full*100))
		} else {
			write(4, row, "")
		}
		row++
	}

	row++
	write(1, row, "Total Obtained")
	write(2, row, record.TotalObtained)
	row++
	write(1, row, "Total Possible")
	write(2, row, record.TotalPossible)
	row++
	write(1, row, "Percentage")
	write(2, row, fmt.Sprintf("%.1f%%", record.Percentage))
	if record.Summary != "" {
		row += 2
		write(1, row, "Summary")
		write(2, row, record.Summary)
	}

	_ = f.SetColWidth(sheet, "A", "A", 24)
	_ = f.SetColWidth(sheet, "B", "C", 12)
	_ = f.SetColWidth(sheet, "D", "D", 10)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"student", record.StudentName,
		"subjects", len(record.Subjects),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
