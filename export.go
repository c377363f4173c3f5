package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

const (
	defaultExportName = "Monthly_Safety_Violations.xlsx"
	defaultCSVName    = "Monthly_Safety_Violations.csv"
	exportSheet       = "Violations"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// writeRowsXLSX writes the header and the given materialized rows into the
// "Violations" sheet of a new workbook.
func writeRowsXLSX(w io.Writer, rows []Row) (err error) {
	book := excelize.NewFile()
	defer func() {
		if cerr := book.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := book.SetSheetName(book.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := writeSheetRow(book, 1, TableHeader); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeSheetRow(book, i+2, row.Cells); err != nil {
			return err
		}
	}
	if _, err := book.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheetRow(book *excelize.File, line int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	values := make([]any, len(cells))
	for i, value := range cells {
		if value != "" {
			values[i] = value
		}
	}
	if err := book.SetSheetRow(exportSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", line, err)
	}
	return nil
}

// writeRowsCSV writes the same rows as writeRowsXLSX in CSV form.
func writeRowsCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(TableHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.Cells); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeRowsFile(path string, rows []Row, write func(io.Writer, []Row) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := write(file, rows); err != nil {
		return err
	}
	return file.Close()
}

func writeJSON(value any, path string) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
