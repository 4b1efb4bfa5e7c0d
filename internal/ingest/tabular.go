// Package ingest feeds the per-tenant raw buffer from three channels:
// batched JSON pushes, tabular file uploads, and the live event stream.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mutsynchub/poslens/internal/record"
)

// ParseUpload converts an uploaded tabular file into raw records, picking the
// parser from the file extension. Only .csv and .xlsx are supported.
func ParseUpload(filename string, r io.Reader, arrivedAt time.Time) ([]record.Record, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r, arrivedAt)
	case ".xlsx":
		return ParseXLSX(r, arrivedAt)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

// ParseCSV reads a CSV with a header row into raw records. Every cell stays a
// string; the shared coercion helpers deal with types downstream.
func ParseCSV(r io.Reader, arrivedAt time.Time) ([]record.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var recs []record.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		recs = append(recs, rowRecord(header, row, arrivedAt))
	}
	return recs, nil
}

// ParseXLSX reads the first sheet of an XLSX workbook, treating the first row
// as the header.
func ParseXLSX(r io.Reader, arrivedAt time.Time) ([]record.Record, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	var recs []record.Record
	for _, row := range rows[1:] {
		recs = append(recs, rowRecord(header, row, arrivedAt))
	}
	return recs, nil
}

// rowRecord zips a header with a data row. Short rows simply bind fewer
// fields; extra cells beyond the header are dropped.
func rowRecord(header, row []string, arrivedAt time.Time) record.Record {
	n := len(row)
	if len(header) < n {
		n = len(header)
	}
	fields := make([]record.Field, 0, n)
	for i := 0; i < n; i++ {
		fields = append(fields, record.Field{Key: header[i], Value: row[i]})
	}
	return record.New(arrivedAt, fields)
}
