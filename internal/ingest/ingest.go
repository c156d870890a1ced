// Package ingest parses comparable-sale export files (CSV and Excel) into
// sale records. MLS exports are messy: column names vary by vendor, dates
// arrive in a handful of layouts, and prices carry currency formatting.
// Parsing is tolerant: rows whose date or price cannot be recovered are
// dropped and counted rather than failing the whole file.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"marketadjust/internal/marketindex"
)

// Canonical column names after aliasing.
const (
	colAddress = "Address"
	colZip     = "Zip"
	colDate    = "Pending Date"
	colPrice   = "Sold Price"
)

// columnAliases maps lowercased export header variants to canonical names.
// Order within each list is the match preference.
var columnAliases = map[string][]string{
	colAddress: {"address", "property address", "street address", "site address"},
	colZip:     {"zip", "zip code", "zipcode", "postal code"},
	colDate:    {"pending date", "contract date", "pendingdate", "pending", "contractdate", "contract_date", "pending_date"},
	colPrice:   {"sold price", "sale price", "soldprice", "saleprice", "price", "sold_price", "sale_price"},
}

// dateLayouts are tried in order, month-first. dayFirstLayouts are the
// day-first fallback used when fewer than half the rows parse month-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan-02-2006",
}

var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
}

// Result is the outcome of parsing one input file.
type Result struct {
	Source      string
	Records     []marketindex.SaleRecord
	RowsDropped int
}

// Parser turns sale export files into sale records.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With(slog.String("component", "ingest"))}
}

// ParseFile parses a CSV or Excel file based on its extension. Record IDs
// are assigned sequentially starting at startID, so records from multiple
// files can share one ID space.
func (p *Parser) ParseFile(path string, startID int64) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return p.ParseCSVFile(path, startID)
	case ".xlsx", ".xlsm", ".xls":
		return p.ParseExcelFile(path, startID)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// ParseCSVFile parses a CSV export.
func (p *Parser) ParseCSVFile(path string, startID int64) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	result, err := p.ParseCSV(f, startID)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	result.Source = filepath.Base(path)
	return result, nil
}

// ParseCSV parses CSV content from a reader.
func (p *Parser) ParseCSV(r io.Reader, startID int64) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return p.parseRows(rows, startID)
}

// ParseExcelFile parses the first sheet of an Excel workbook that contains
// the required columns.
func (p *Parser) ParseExcelFile(path string, startID int64) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var lastErr error
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}

		result, err := p.parseRows(rows, startID)
		if err != nil {
			lastErr = err
			continue
		}

		p.logger.Info("parsed excel sheet",
			slog.String("file", filepath.Base(path)),
			slog.String("sheet", name),
			slog.Int("records", len(result.Records)),
			slog.Int("dropped", result.RowsDropped))

		result.Source = filepath.Base(path)
		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), lastErr)
	}
	return nil, fmt.Errorf("no sheet with sale data in %s", filepath.Base(path))
}

// parseRows converts a raw [header, data...] grid into sale records.
func (p *Parser) parseRows(rows [][]string, startID int64) (*Result, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	header := normalizeHeader(rows[0])
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	type rawRow struct {
		address string
		dateStr string
		price   float64
		priceOK bool
	}

	raws := make([]rawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		raw := rawRow{
			address: strings.TrimSpace(cellAt(row, columns[colAddress])),
			dateStr: strings.TrimSpace(cellAt(row, columns[colDate])),
		}
		raw.price, raw.priceOK = parseMoney(cellAt(row, columns[colPrice]))
		raws = append(raws, raw)
	}

	// Bulk-parse dates so the day-first fallback can be judged on the whole
	// column rather than row by row.
	dateStrs := make([]string, len(raws))
	for i, raw := range raws {
		dateStrs[i] = raw.dateStr
	}
	dates := parseDates(dateStrs)

	result := &Result{Records: make([]marketindex.SaleRecord, 0, len(raws))}
	nextID := startID
	for i, raw := range raws {
		if raw.address == "" || !raw.priceOK || raw.price <= 0 || dates[i].IsZero() {
			result.RowsDropped++
			continue
		}
		result.Records = append(result.Records, marketindex.SaleRecord{
			ID:           nextID,
			Address:      raw.address,
			ContractDate: dates[i],
			SoldPrice:    raw.price,
		})
		nextID++
	}

	return result, nil
}

// normalizeHeader strips BOMs, trims, and collapses runs of whitespace.
func normalizeHeader(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		cell = strings.ReplaceAll(cell, "\ufeff", "")
		out[i] = strings.Join(strings.Fields(cell), " ")
	}
	return out
}

// mapColumns resolves canonical column positions from a normalized header.
// Address, date and price are required; zip is aliased but optional since
// nothing downstream consumes it.
func mapColumns(header []string) (map[string]int, error) {
	lower := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, exists := lower[key]; !exists {
			lower[key] = i
		}
	}

	columns := make(map[string]int)
	for canonical, aliases := range columnAliases {
		columns[canonical] = -1
		for _, alias := range aliases {
			if idx, ok := lower[alias]; ok {
				columns[canonical] = idx
				break
			}
		}
	}

	var missing []string
	for _, required := range []string{colAddress, colDate, colPrice} {
		if columns[required] < 0 {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return columns, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseDates parses a column of date strings month-first, falling back to
// day-first for the whole column when that recovers more values.
func parseDates(values []string) []time.Time {
	monthFirst := parseDatesWith(values, dateLayouts)
	if parsedFraction(monthFirst, values) >= 0.50 {
		return monthFirst
	}

	dayFirst := parseDatesWith(values, append(append([]string{}, dayFirstLayouts...), dateLayouts...))
	if countParsed(dayFirst) > countParsed(monthFirst) {
		return dayFirst
	}
	return monthFirst
}

func parseDatesWith(values []string, layouts []string) []time.Time {
	out := make([]time.Time, len(values))
	for i, v := range values {
		out[i] = parseDate(v, layouts)
	}
	return out
}

func parseDate(value string, layouts []string) time.Time {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "nan", "none", "null":
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

func parsedFraction(dates []time.Time, values []string) float64 {
	nonEmpty := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return 1.0
	}
	return float64(countParsed(dates)) / float64(nonEmpty)
}

func countParsed(dates []time.Time) int {
	n := 0
	for _, d := range dates {
		if !d.IsZero() {
			n++
		}
	}
	return n
}

// parseMoney strips currency formatting and parses the remainder.
func parseMoney(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "$", "")
	value = strings.ReplaceAll(value, ",", "")
	value = strings.ReplaceAll(value, " ", "")
	switch strings.ToLower(value) {
	case "", "nan", "none", "null":
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
