// Package spreadsheet imports staff lists from Excel workbooks and exports
// the leave register.
package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/elite6108/sitesafe/internal/domain"
)

const maxXLSRows = 100000

// ReadRows returns every row of the workbook's only sheet. Legacy .xls files
// go through the xls reader; everything else is treated as .xlsx.
func ReadRows(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		if workbook.NumSheets() > 1 {
			return nil, fmt.Errorf("multiple worksheets found; please upload a file with a single sheet")
		}
		rows := workbook.ReadAllCells(maxXLSRows)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

// ParseStaff reads staff members from a sheet whose first row holds the
// headers. Either "first name" and "last name" or a single "name" column is
// required; "email" and "allowance" are optional. Rows without a name are
// skipped and a blank allowance falls back to defaultAllowance.
func ParseStaff(reader io.Reader, filename string, defaultAllowance float64) ([]domain.StaffMember, error) {
	rows, err := ReadRows(reader, filename)
	if err != nil {
		return nil, err
	}

	headerIndex := map[string]int{}
	for i, header := range rows[0] {
		headerIndex[normalizeHeader(header)] = i
	}
	firstIdx, hasFirst := headerIndex["first name"]
	lastIdx, hasLast := headerIndex["last name"]
	nameIdx, hasName := headerIndex["name"]
	if !(hasFirst && hasLast) && !hasName {
		return nil, fmt.Errorf("missing required column: first name and last name, or name")
	}
	emailIdx := indexOr(headerIndex, -1, "email", "email address")
	allowanceIdx := indexOr(headerIndex, -1, "allowance", "annual allowance", "holiday allowance")

	var staff []domain.StaffMember
	for n, row := range rows[1:] {
		var first, last string
		if hasFirst && hasLast {
			first, last = cellValue(row, firstIdx), cellValue(row, lastIdx)
		} else {
			first, last = splitName(cellValue(row, nameIdx))
		}
		if first == "" && last == "" {
			continue
		}
		allowance := defaultAllowance
		if raw := cellValue(row, allowanceIdx); raw != "" {
			allowance, err = strconv.ParseFloat(raw, 64)
			if err != nil || allowance < 0 {
				return nil, fmt.Errorf("row %d: allowance %q is not a valid number of days", n+2, raw)
			}
		}
		staff = append(staff, domain.StaffMember{
			FirstName:       first,
			LastName:        last,
			Email:           strings.ToLower(cellValue(row, emailIdx)),
			AnnualAllowance: allowance,
		})
	}
	return staff, nil
}

func indexOr(headers map[string]int, fallback int, names ...string) int {
	for _, name := range names {
		if idx, ok := headers[name]; ok {
			return idx
		}
	}
	return fallback
}

// splitName accepts "First Last" and "Last, First".
func splitName(name string) (string, string) {
	if strings.Contains(name, ",") {
		parts := strings.SplitN(name, ",", 2)
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
	}
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
