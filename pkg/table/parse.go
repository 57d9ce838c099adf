// Copyright 2025 The fawa Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// AllowedExtensions lists the upload formats Parse understands.
var AllowedExtensions = []string{".csv", ".xlsx", ".xls"}

const utf8BOM = "\ufeff"

// ParseError is a parse failure whose message is safe to show to the user.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrorf(err error, format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// Parse decodes an uploaded file into a table with normalized column names.
// The format is chosen from the filename extension.
func Parse(filename string, data []byte) (*Table, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, parseErrorf(nil, "Missing filename. Please upload a CSV or Excel file.")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	var read func([]byte) ([][]string, error)
	switch ext {
	case ".csv":
		read = readCSV
	case ".xlsx":
		read = readXLSX
	case ".xls":
		read = readXLS
	default:
		return nil, parseErrorf(nil, "Unsupported file type. Use .csv, .xlsx, or .xls.")
	}

	if len(data) == 0 {
		return nil, parseErrorf(nil, "Uploaded file is empty.")
	}

	records, err := read(data)
	if err != nil {
		return nil, parseErrorf(err, "Could not read the uploaded file. Verify the file format and try again.")
	}
	if len(records) == 0 {
		return nil, parseErrorf(nil, "Could not read the uploaded file. Verify the file format and try again.")
	}

	header := NormalizeColumns(records[0])
	body := dropBlankRows(records[1:])
	if len(body) == 0 {
		return nil, parseErrorf(nil, "Uploaded file has no data rows to analyze.")
	}

	t, err := New(header, body)
	if err != nil {
		return nil, parseErrorf(err, "Could not read the uploaded file. Verify the file format and try again.")
	}
	return t, nil
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return widenHeader(rows), nil
}

// readXLS reads the first sheet of a legacy BIFF workbook. The decoder
// panics on some malformed inputs, so panics are turned into errors.
func readXLS(data []byte) (records [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			continue
		}
		rec := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			rec[c] = row.Col(c)
		}
		records = append(records, rec)
	}
	return widenHeader(records), nil
}

// sheetRow returns row i, or nil when the sheet has no record for it.
// WorkSheet.Row dereferences the missing entry instead of returning nil.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// widenHeader pads the header of a spreadsheet to the widest row, since
// spreadsheet readers drop trailing empty cells.
func widenHeader(records [][]string) [][]string {
	if len(records) == 0 {
		return records
	}
	width := 0
	for _, r := range records {
		if len(r) > width {
			width = len(r)
		}
	}
	if len(records[0]) < width {
		header := make([]string, width)
		copy(header, records[0])
		records[0] = header
	}
	return records
}
