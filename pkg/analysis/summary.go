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

package analysis

import (
	"sort"

	"github.com/fawa-io/tablestat/pkg/table"
)

// SummaryToTable turns the raw summary into a table with ElementColumn
// first and one row per analysed column. When the selected names appear as
// the raw table's columns rather than its row labels the summary is
// transposed. Rows follow the selection order; labels that are not part of
// the selection keep their relative order after the selected ones.
func SummaryToTable(raw *table.Table, selected []string) *table.Table {
	if raw == nil || len(raw.Columns) == 0 {
		return &table.Table{Columns: []string{ElementColumn}}
	}

	want := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		want[s] = struct{}{}
	}

	inColumns, inLabels := 0, 0
	for _, c := range raw.Columns[1:] {
		if _, ok := want[c]; ok {
			inColumns++
		}
	}
	for _, row := range raw.Rows {
		if len(row) > 0 {
			if _, ok := want[row[0]]; ok {
				inLabels++
			}
		}
	}

	var out *table.Table
	if inColumns > 0 && inLabels == 0 {
		out = transpose(raw)
	} else {
		out = &table.Table{
			Columns: append([]string{ElementColumn}, raw.Columns[1:]...),
			Rows:    raw.Rows,
		}
	}

	order := make(map[string]int, len(selected))
	for i, s := range selected {
		order[s] = i
	}
	rank := func(row []string) int {
		if i, ok := order[row[0]]; ok {
			return i
		}
		return len(selected)
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return rank(out.Rows[i]) < rank(out.Rows[j])
	})
	return out
}

// transpose swaps rows and columns, using the first column as labels.
func transpose(raw *table.Table) *table.Table {
	names := raw.Columns[1:]
	cols := make([]string, 0, len(raw.Rows)+1)
	cols = append(cols, ElementColumn)
	for _, row := range raw.Rows {
		cols = append(cols, row[0])
	}

	rows := make([][]string, len(names))
	for i, name := range names {
		row := make([]string, 0, len(raw.Rows)+1)
		row = append(row, name)
		for _, r := range raw.Rows {
			row = append(row, r[i+1])
		}
		rows[i] = row
	}
	return &table.Table{Columns: cols, Rows: rows}
}
