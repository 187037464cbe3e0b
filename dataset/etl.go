package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bohumlab/commission-gateway/common/logger"
)

// The extraction pass turns raw per-company sheet grids into the uniform
// Dataset shape. Every insurer formats its commission sheet differently, so
// the pass combines a small per-company layout table (where the product rows
// and attribute columns sit) with dynamic detection of the FC commission
// column block, which moves around even within one insurer's file.
//
// Input is a cell grid (CSV export of the raw sheet, one file per company);
// the serving core never sees any of this.

// SheetLayout pins the static parts of one company's sheet format.
// Columns are zero-based; DataStartRow is the 1-based sheet row where
// product rows begin.
type SheetLayout struct {
	DataStartRow int `yaml:"data_start_row"`
	ProductCol   int `yaml:"product_col"`
	PaymentCol   int `yaml:"payment_col"`
	RateCol      int `yaml:"rate_col"`
}

// DefaultLayouts covers the insurers present in the source workbook.
var DefaultLayouts = map[string]SheetLayout{
	"KB라이프":   {DataStartRow: 12, ProductCol: 0, PaymentCol: 1, RateCol: 4},
	"미래에셋":   {DataStartRow: 12, ProductCol: 1, PaymentCol: 3, RateCol: 4},
	"삼성생명":   {DataStartRow: 12, ProductCol: 1, PaymentCol: 2, RateCol: 3},
	"IM라이프":   {DataStartRow: 21, ProductCol: 1, PaymentCol: 2, RateCol: 3},
	"교보생명":   {DataStartRow: 12, ProductCol: 0, PaymentCol: 1, RateCol: 4},
	"한화생명":   {DataStartRow: 13, ProductCol: 1, PaymentCol: 4, RateCol: 6},
	"KB손해보험": {DataStartRow: 16, ProductCol: 1, PaymentCol: 3, RateCol: 5},
	"현대해상":   {DataStartRow: 12, ProductCol: 0, PaymentCol: 4, RateCol: 5},
	"메리츠화재": {DataStartRow: 12, ProductCol: 0, PaymentCol: 2, RateCol: 4},
	"DB손해보험": {DataStartRow: 20, ProductCol: 0, PaymentCol: 2, RateCol: 4},
	"한화손해보험": {DataStartRow: 12, ProductCol: 0, PaymentCol: 1, RateCol: 3},
	"삼성화재":   {DataStartRow: 12, ProductCol: 0, PaymentCol: 4, RateCol: 5},
	"라이나손보": {DataStartRow: 12, ProductCol: 0, PaymentCol: 3, RateCol: 5},
}

// headingMarkers identify subtotal and header rows that must never become
// product records.
var headingMarkers = []string{"합계", "subtotal", "total", "소계", "상품명", "상품분류"}

const fcKeyPrefix = "2025년 FC 수수료_0.6"

// ReadSheetCSV parses a raw cell grid. Rows may have ragged lengths.
func ReadSheetCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cells, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read sheet csv: %w", err)
	}
	return cells, nil
}

func cellAt(cells [][]string, row, col int) string {
	if row < 0 || row >= len(cells) {
		return ""
	}
	if col < 0 || col >= len(cells[row]) {
		return ""
	}
	return strings.TrimSpace(cells[row][col])
}

func numericAt(cells [][]string, row, col int) (float64, bool) {
	s := cellAt(cells, row, col)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// findFCColumns locates the commission column block. The block starts at the
// column whose header row carries the base-rate marker (0.6 or 0.65) and ends
// at the FC계 header when one exists. Sheets without an FC계 header get the
// end column from the data itself: the most common last-numeric column across
// the first few product rows.
func findFCColumns(cells [][]string) (start, end int, ok bool) {
	start = -1
	for col := 0; col < 20 && start < 0; col++ {
		for _, row := range []int{7, 8} {
			switch cellAt(cells, row, col) {
			case "0.6", "0.65":
				start = col
			}
			if start >= 0 {
				break
			}
		}
	}
	if start < 0 {
		return 0, 0, false
	}

	end = -1
	for col := start; col < start+60 && end < 0; col++ {
		for _, row := range []int{7, 8, 9, 10} {
			v := cellAt(cells, row, col)
			if v == "FC계" || v == "FC 계" {
				end = col
				break
			}
		}
	}

	if end < 0 {
		end = detectEndByPattern(cells, start)
	}
	if end < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// detectEndByPattern votes on the last non-zero numeric column over the first
// few plausible product rows.
func detectEndByPattern(cells [][]string, start int) int {
	var sampleRows []int
	for row := 10; row < 25 && len(sampleRows) < 5; row++ {
		name := cellAt(cells, row, 0)
		if name == "" {
			name = cellAt(cells, row, 1)
		}
		if len([]rune(name)) <= 3 {
			continue
		}
		if strings.Contains(name, "합계") || strings.Contains(name, "상품명") {
			continue
		}
		sampleRows = append(sampleRows, row)
	}

	votes := map[int]int{}
	for _, row := range sampleRows {
		last, empty := -1, 0
		for col := start; col < start+60; col++ {
			if v, isNum := numericAt(cells, row, col); isNum && v != 0 {
				last = col
				empty = 0
				continue
			}
			empty++
			if empty >= 3 {
				break
			}
		}
		if last >= 0 {
			votes[last]++
		}
	}

	best, bestCount := -1, 0
	for col, n := range votes {
		if n > bestCount || (n == bestCount && col < best) {
			best, bestCount = col, n
		}
	}
	return best
}

// isHeadingRow reports whether a product-name cell is actually a subtotal or
// header marker.
func isHeadingRow(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range headingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// rateKey assembles the label for one commission column from the stacked
// header rows (sheet rows 8..10). Columns with no header text keep a
// positional col_N fallback so no value is silently lost.
func rateKey(cells [][]string, col, fcStart int) string {
	var parts []string
	if col == fcStart && strings.Contains(cellAt(cells, 7, col), "수수료") {
		parts = append(parts, fcKeyPrefix)
	}
	if h := cellAt(cells, 8, col); h != "" {
		parts = append(parts, h)
	}
	if h := cellAt(cells, 9, col); h != "" {
		parts = append(parts, h)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("col_%d", col)
	}
	return strings.Join(parts, "_")
}

// NormalizeSheet converts one company's raw cell grid into a CompanyRecord.
func NormalizeSheet(company string, cells [][]string, layout SheetLayout) (*CompanyRecord, error) {
	fcStart, fcEnd, ok := findFCColumns(cells)
	if !ok {
		return nil, fmt.Errorf("sheet %s: commission column block not found", company)
	}

	record := &CompanyRecord{CompanyName: company}
	for row := layout.DataStartRow - 1; row < len(cells); row++ {
		name := cellAt(cells, row, layout.ProductCol)
		if len([]rune(name)) < 3 || isHeadingRow(name) {
			continue
		}

		rates := map[string]float64{}
		for col := fcStart; col <= fcEnd; col++ {
			v, isNum := numericAt(cells, row, col)
			if !isNum {
				continue
			}
			if col == fcEnd {
				// Last column is the aggregate; keep the native label and
				// its normalized alias.
				rates[FCTotalKey] = v
				rates[TotalKey] = v
				continue
			}
			rates[rateKey(cells, col, fcStart)] = v
		}
		if len(rates) == 0 {
			continue
		}

		conversion, _ := numericAt(cells, row, layout.RateCol)
		record.Products = append(record.Products, &ProductRecord{
			RowNumber: row + 1,
			Metadata: ProductMetadata{
				ProductName:    name,
				PaymentPeriod:  cellAt(cells, row, layout.PaymentCol),
				ConversionRate: conversion,
			},
			BaseCommissionRates: rates,
		})
	}
	logger.Infof("etl: %s: %d products, commission cols %d..%d", company, len(record.Products), fcStart, fcEnd)
	return record, nil
}

// BuildDataset runs NormalizeSheet over every provided sheet. Sheets without
// a layout entry or without a detectable commission block are skipped with a
// warning; an entirely empty result is an error.
func BuildDataset(sheets map[string][][]string, layouts map[string]SheetLayout) (*Dataset, error) {
	if layouts == nil {
		layouts = DefaultLayouts
	}
	ds := &Dataset{Companies: map[string]*CompanyRecord{}}
	for company, cells := range sheets {
		layout, ok := layouts[company]
		if !ok {
			logger.Warnf("etl: no layout for sheet %s, skipping", company)
			continue
		}
		record, err := NormalizeSheet(company, cells, layout)
		if err != nil {
			logger.Warnf("etl: %v", err)
			continue
		}
		if len(record.Products) > 0 {
			ds.Companies[company] = record
		}
	}
	if ds.NumProducts() == 0 {
		return nil, ErrEmptyDataset
	}
	return ds, nil
}
