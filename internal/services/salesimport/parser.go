// Package salesimport reads daily sales tables uploaded as CSV or XLSX.
package salesimport

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"StockPulse/internal/domain/errs"
	"StockPulse/internal/domain/models"
	"StockPulse/pkg/util"

	"github.com/xuri/excelize/v2"
)

var (
	dateColumns     = []string{"date", "day", "transaction_date"}
	quantityColumns = []string{"quantity", "qty", "sales", "demand"}
)

// Parse reads the first sheet of an .xlsx file or the whole of a .csv file.
// The first row is the header; blank rows are skipped.
func Parse(filename string, r io.Reader) ([]models.Observation, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readXLSX(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, errs.Validation("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errs.Validation("failed to read xlsx file: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errs.Validation("failed to read xlsx rows: %v", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errs.Validation("failed to parse csv file: %v", err)
	}
	return rows, nil
}

func parseRows(rows [][]string) ([]models.Observation, error) {
	if len(rows) == 0 {
		return nil, errs.Validation("file is empty")
	}
	dateCol, qtyCol := column(rows[0], dateColumns), column(rows[0], quantityColumns)
	if dateCol < 0 || qtyCol < 0 {
		return nil, errs.Validation("header must contain a date column (%s) and a quantity column (%s)",
			strings.Join(dateColumns, ", "), strings.Join(quantityColumns, ", "))
	}

	out := make([]models.Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}
		rawDate, rawQty := cell(row, dateCol), cell(row, qtyCol)
		date, ok := parseDate(rawDate)
		if !ok {
			return nil, errs.Validation("row %d: invalid date %q", line, rawDate)
		}
		qty, err := strconv.ParseFloat(rawQty, 64)
		if err != nil || qty < 0 {
			return nil, errs.Validation("row %d: invalid quantity %q", line, rawQty)
		}
		out = append(out, models.Observation{Date: date, Quantity: qty})
	}
	if len(out) == 0 {
		return nil, errs.Validation("file has no data rows")
	}
	return out, nil
}

// maxSerial is the last day a spreadsheet serial number can encode (9999-12-31).
const maxSerial = 2958465

// parseDate also accepts spreadsheet serial day numbers; larger integers are
// read as unix seconds.
func parseDate(s string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial <= maxSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		return t, err == nil
	}
	return util.ParseTime(s)
}

func column(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
