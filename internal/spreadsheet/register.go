package spreadsheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/elite6108/sitesafe/internal/domain"
	"github.com/elite6108/sitesafe/internal/leave"
)

const (
	requestsSheet  = "Requests"
	summarySheet   = "Summary"
	incidentsSheet = "Incidents"
)

var (
	requestHeaders = []any{"Staff", "Start", "End", "Half Day", "Days", "Status", "Reason", "Decided By"}
	summaryHeaders = []any{"Staff", "Year Start", "Year End", "Allowance", "Approved", "Pending", "Remaining"}

	incidentHeaders = []any{"Report", "Date", "Status", "Category", "Type", "Project", "Location", "Reported By", "Injured Person", "RIDDOR", "Description"}
)

// WriteLeaveRegister writes an .xlsx workbook with one row per request and
// a per-member allowance summary.
func WriteLeaveRegister(w io.Writer, staff []domain.StaffMember, requests []domain.LeaveRequest, summaries []leave.Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), requestsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	names := make(map[string]string, len(staff))
	for _, s := range staff {
		names[s.ID] = s.FullName()
	}

	rows := make([][]any, 0, len(requests))
	for _, r := range requests {
		name, ok := names[r.StaffID]
		if !ok {
			name = r.StaffID
		}
		rows = append(rows, []any{name, r.StartDate, r.EndDate, yesNo(r.HalfDay), r.Days, r.Status, r.Reason, r.DecidedBy})
	}
	if err := writeSheet(f, requestsSheet, requestHeaders, rows, bold); err != nil {
		return err
	}

	rows = rows[:0]
	for _, s := range summaries {
		rows = append(rows, []any{s.Name, s.YearStart, s.YearEnd, s.Allowance, s.Approved, s.Pending, s.Remaining})
	}
	if err := writeSheet(f, summarySheet, summaryHeaders, rows, bold); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteIncidentRegister writes every incident as one row of an .xlsx sheet.
func WriteIncidentRegister(w io.Writer, incidents []domain.IncidentReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), incidentsSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	rows := make([][]any, 0, len(incidents))
	for _, in := range incidents {
		rows = append(rows, []any{
			in.ReportNumber, in.IncidentDate, in.Status, in.Category, in.IncidentType,
			in.ProjectName, in.Location, in.ReportedBy, in.InjuredPersonName,
			yesNo(in.RIDDORReportable != nil && *in.RIDDORReportable), in.Description,
		})
	}
	if err := writeSheet(f, incidentsSheet, incidentHeaders, rows, bold); err != nil {
		return err
	}
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headers []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
