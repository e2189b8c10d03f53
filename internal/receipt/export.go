package receipt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Table selects which part of a Result is exported
type Table string

const (
	TableAll        Table = "all"
	TableSummary    Table = "summary"
	TableItems      Table = "items"
	TableCategories Table = "categories"
)

const (
	summarySheet    = "Summary"
	itemsSheet      = "Items"
	categoriesSheet = "Categories"
)

// ErrNoCategories is returned when the category sheet is requested but aggregation failed
var ErrNoCategories = errors.New("category totals are not available for this receipt")

// ParseTable parses a table name, defaulting to TableAll when empty
func ParseTable(s string) (Table, error) {
	switch t := Table(s); t {
	case "":
		return TableAll, nil
	case TableAll, TableSummary, TableItems, TableCategories:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown table %q", ErrInvalidRequest, s)
	}
}

// ExportWorkbook builds a spreadsheet holding the selected tables of result
func ExportWorkbook(result *Result, table Table) (*excelize.File, error) {
	var sheets []string
	switch table {
	case TableAll:
		sheets = []string{summarySheet, itemsSheet}
		if result.Categories != nil {
			sheets = append(sheets, categoriesSheet)
		}
	case TableSummary:
		sheets = []string{summarySheet}
	case TableItems:
		sheets = []string{itemsSheet}
	case TableCategories:
		if result.Categories == nil {
			return nil, ErrNoCategories
		}
		sheets = []string{categoriesSheet}
	default:
		return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidRequest, table)
	}

	f := excelize.NewFile()
	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				f.Close()
				return nil, fmt.Errorf("renaming sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("creating sheet %s: %w", name, err)
		}

		if err := writeRows(f, name, sheetRows(result, name)); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	return f, nil
}

// WriteWorkbook renders the selected tables of result as XLSX bytes
func WriteWorkbook(result *Result, table Table) ([]byte, error) {
	f, err := ExportWorkbook(result, table)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func sheetRows(result *Result, sheet string) [][]any {
	switch sheet {
	case summarySheet:
		s := result.Summary
		return [][]any{
			{"Company", "Date", "Discount", "Total"},
			{s.Company, s.Date, nullCell(s.Discount), decimalCell(s.Total)},
		}
	case itemsSheet:
		rows := [][]any{{"Description", "Quantity", "Unit Price", "Total", "ProductType"}}
		for _, item := range result.Receipt.Items {
			rows = append(rows, []any{
				item.Description,
				nullCell(item.Quantity),
				nullCell(item.UnitPrice),
				nullCell(item.Total),
				item.ProductType,
			})
		}
		return rows
	case categoriesSheet:
		rows := [][]any{{"ProductType", "Total"}}
		for _, c := range result.Categories {
			rows = append(rows, []any{c.ProductType, decimalCell(c.Total)})
		}
		return rows
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func decimalCell(d decimal.Decimal) any {
	v, _ := d.Float64()
	return v
}

// nullCell leaves the cell empty for a missing or non-numeric value
func nullCell(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return decimalCell(d.Decimal)
}
