package services

import (
	"fmt"
	"io"
	"time"

	"clinic_inventory_backend/internal/models"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportFilename is the download name of a monthly report workbook.
func ReportFilename(year, month int) string {
	return fmt.Sprintf("inventory_report_%04d_%02d.xlsx", year, month)
}

// ExportMonthlyReport writes the report as a workbook with one sheet per category.
func ExportMonthlyReport(report *models.MonthlyReport, w io.Writer) error {
	f, err := buildReportWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveMonthlyReport writes the workbook to path.
func SaveMonthlyReport(report *models.MonthlyReport, path string) error {
	f, err := buildReportWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func buildReportWorkbook(report *models.MonthlyReport) (*excelize.File, error) {
	f := excelize.NewFile()
	const defaultSheet = "Sheet1"
	month := time.Month(report.Month).String()

	for i, group := range report.Groups {
		sheet := group.Label
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}

		title := fmt.Sprintf("%s inventory, %s %d", group.Label, month, report.Year)
		if err := f.SetCellValue(sheet, "A1", title); err != nil {
			return nil, err
		}

		header := []interface{}{"Item", "Unit", "Expiry", "Beginning", "Replenished"}
		for day := 1; day <= report.DaysInMonth; day++ {
			header = append(header, day)
		}
		header = append(header, "Total Issued", "Balance")
		if err := f.SetSheetRow(sheet, "A3", &header); err != nil {
			return nil, err
		}

		for r, row := range group.Rows {
			values := []interface{}{row.Name, row.Unit, derefOrEmpty(row.ExpiryDate), row.BeginningStock, row.Replenished}
			for day := 1; day <= report.DaysInMonth; day++ {
				if qty, ok := row.Daily[day]; ok {
					values = append(values, qty)
				} else {
					values = append(values, "")
				}
			}
			values = append(values, row.TotalIssued, row.Balance)

			cell, err := excelize.CoordinatesToCellName(1, r+4)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return nil, err
			}
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
