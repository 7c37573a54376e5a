// Package workbook renders an extraction result as a styled Excel workbook:
// one Quarterly and one Annual tab per non-empty statement, plus one sheet
// per candidate segment/KPI table with its confidence in the title.
package workbook

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"finsheets/pkg/core/assemble"
	"finsheets/pkg/core/pipeline"
	"finsheets/pkg/core/reconcile"
	"finsheets/pkg/core/segments"
	"finsheets/pkg/core/taxonomy"
)

const (
	headerColor   = "1F3864"
	altRowColor   = "EBF3FB"
	dataColor     = "00008B"
	missingColor  = "BBBBBB"
	noteColor     = "808080"
	maxSheetChars = 31
)

var sheetTitles = map[taxonomy.Statement]string{
	taxonomy.IncomeStatement: "Income Stmt",
	taxonomy.BalanceSheet:    "Balance Sheet",
	taxonomy.CashFlow:        "Cash Flow",
}

// Writer builds workbooks from extraction results.
type Writer struct{}

func NewWriter() *Writer { return &Writer{} }

// Build renders the workbook in memory. The caller owns the file and should
// Close it.
func (w *Writer) Build(result *pipeline.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	styles, err := newStyleSet(f)
	if err != nil {
		return nil, fmt.Errorf("failed to register styles: %w", err)
	}

	for _, st := range taxonomy.Statements() {
		table := result.Statements[st]
		if table == nil || !table.HasValues() {
			continue
		}
		annual := fmt.Sprintf("Annual — %s", sheetTitles[st])
		if err := w.writeStatementSheet(f, styles, annual, result.Issuer.Name, table.Annual(), "Fiscal Year"); err != nil {
			return nil, err
		}
		quarterly := fmt.Sprintf("Quarterly — %s", sheetTitles[st])
		if err := w.writeStatementSheet(f, styles, quarterly, result.Issuer.Name, table.Quarterly(), "Quarter"); err != nil {
			return nil, err
		}
	}

	for i, candidate := range result.Candidates {
		name := truncateSheetName(fmt.Sprintf("Seg-KPI %d %s", i+1, candidate.SourceFilingID))
		if err := w.writeCandidateSheet(f, styles, name, candidate); err != nil {
			return nil, err
		}
	}

	// Drop the default sheet excelize seeds.
	if len(f.GetSheetList()) > 1 {
		f.DeleteSheet("Sheet1")
	}
	return f, nil
}

// WriteFile builds and saves the workbook.
func (w *Writer) WriteFile(result *pipeline.Result, path string) error {
	f, err := w.Build(result)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// writeStatementSheet lays out one statement/frequency tab: title row, styled
// period header, alternating data rows, "—" for missing cells, italics for
// derived values.
func (w *Writer) writeStatementSheet(f *excelize.File, styles *styleSet, name, company string, table *assemble.StatementTable, periodLabel string) error {
	name = truncateSheetName(name)
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	// Newest period in the leftmost data column.
	periods := make([]reconcile.PeriodKey, len(table.Periods))
	for i, p := range table.Periods {
		periods[len(periods)-1-i] = p
	}

	f.SetCellValue(name, "A1", fmt.Sprintf("%s  |  %s", company, name))
	f.SetCellStyle(name, "A1", "A1", styles.title)
	noteCell, _ := excelize.CoordinatesToCellName(len(periods)+3, 1)
	f.SetCellValue(name, noteCell, "Dollar values in $MM  |  EPS in $/share  |  Share counts in MM shares  |  Source: SEC EDGAR XBRL (as reported)")
	f.SetCellStyle(name, noteCell, noteCell, styles.note)

	f.SetCellValue(name, "A2", periodLabel)
	for i, p := range periods {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		f.SetCellValue(name, cell, p.Label())
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(periods)+1, 2)
	f.SetCellStyle(name, "A2", lastHeader, styles.header)

	for r, item := range table.ItemKeys {
		row := r + 3
		rowStyle := styles.rowFor(r, item)

		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetCellValue(name, labelCell, table.Labels[item])
		f.SetCellStyle(name, labelCell, labelCell, rowStyle.label)

		for c, p := range periods {
			cell, _ := excelize.CoordinatesToCellName(c+2, row)
			v := table.Cell(p, item)
			switch v.Status {
			case assemble.StatusMissing:
				f.SetCellValue(name, cell, "—")
				f.SetCellStyle(name, cell, cell, rowStyle.missing)
			case assemble.StatusDerived:
				f.SetCellValue(name, cell, v.Value)
				f.SetCellStyle(name, cell, cell, rowStyle.derived)
			default:
				f.SetCellValue(name, cell, v.Value)
				f.SetCellStyle(name, cell, cell, rowStyle.data)
			}
		}
	}

	f.SetColWidth(name, "A", "A", 52)
	lastCol, _ := excelize.ColumnNumberToName(len(periods) + 1)
	f.SetColWidth(name, "B", lastCol, 13)
	return nil
}

func (w *Writer) writeCandidateSheet(f *excelize.File, styles *styleSet, name string, candidate segments.CandidateTable) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	f.SetCellValue(name, "A1", fmt.Sprintf("Candidate table from filing %s  |  confidence %.2f — review before use",
		candidate.SourceFilingID, candidate.Confidence))
	f.SetCellStyle(name, "A1", "A1", styles.title)

	for c, label := range candidate.HeaderLabels {
		cell, _ := excelize.CoordinatesToCellName(c+1, 2)
		f.SetCellValue(name, cell, label)
		f.SetCellStyle(name, cell, cell, styles.header)
	}
	for r, row := range candidate.Matrix {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+3)
			f.SetCellValue(name, cell, value)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(candidate.HeaderLabels))
	if lastCol != "" {
		f.SetColWidth(name, "A", lastCol, 24)
	}
	return nil
}

func truncateSheetName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxSheetChars {
		return name
	}
	return string(runes[:maxSheetChars])
}
