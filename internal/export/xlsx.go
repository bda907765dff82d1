// Package export renders job reports as XLSX workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/recapturedocs/recapturedocs/internal/job"
)

const (
	jobsSheet  = "Jobs"
	tasksSheet = "Tasks"
)

// JobsXLSX returns a workbook with one row per job on the Jobs sheet and one
// row per task on the Tasks sheet. It reports the state recorded on each job
// and does not poll the marketplace.
func JobsXLSX(jobs []*job.Job) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1; rename it rather than leaving it empty.
	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(tasksSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(jobsSheet)
	f.SetActiveSheet(idx)

	writeRow(f, jobsSheet, 1, "Job ID", "Filename", "Created", "State", "Pages",
		"Tasks Complete", "Cost (USD)", "Authorized", "Transaction", "Digest")
	writeRow(f, tasksSheet, 1, "Job ID", "Page", "Task ID", "Status", "Assignments", "Result")

	taskRow := 2
	for i, j := range jobs {
		writeRow(f, jobsSheet, i+2,
			j.ID,
			j.Filename,
			j.CreatedAt.Format("2006-01-02 15:04:05"),
			string(j.State()),
			len(j.Pages),
			fmt.Sprintf("%d/%d", j.CompletedCount(), len(j.Tasks)),
			float64(j.Cost())/100,
			j.Authorized,
			j.TransactionID,
			j.Digest,
		)
		for _, t := range j.Tasks {
			writeRow(f, tasksSheet, taskRow,
				j.ID,
				t.PageNumber,
				t.ID,
				string(t.Status),
				len(t.Assignments),
				truncate(t.Result, 200),
			)
			taskRow++
		}
	}

	_ = f.SetColWidth(jobsSheet, "A", "A", 38)
	_ = f.SetColWidth(jobsSheet, "B", "B", 28)
	_ = f.SetColWidth(jobsSheet, "C", "D", 20)
	_ = f.SetColWidth(jobsSheet, "I", "J", 36)
	_ = f.SetColWidth(tasksSheet, "A", "A", 38)
	_ = f.SetColWidth(tasksSheet, "C", "C", 36)
	_ = f.SetColWidth(tasksSheet, "F", "F", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
