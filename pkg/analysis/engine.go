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

// Package analysis connects uploaded tables to the external statistics
// engine and shapes its output into a result table.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/metrics"
	"github.com/fawa-io/tablestat/pkg/table"
)

// ElementColumn heads the first column of every summary table.
const ElementColumn = "element"

// Error is an analysis failure whose message is safe to show to the user.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(err error, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Err: err}
}

// Engine computes summary statistics for the selected columns of t. The
// returned table has one row per selected column, in selection order.
type Engine interface {
	Summarize(ctx context.Context, t *table.Table, columns []string) (*table.Table, error)
}

// Runner invokes the statistics library on an all-numeric table (empty
// cells are missing values) and returns its summary as produced, either
// with selected columns as rows or as columns. The first column of the
// returned table holds the row labels.
type Runner interface {
	Run(ctx context.Context, numeric *table.Table) (*table.Table, error)
}

// Adapter is the Engine used by the web layer.
type Adapter struct {
	runner  Runner
	metrics *metrics.Registry
}

var _ Engine = (*Adapter)(nil)

// NewAdapter returns an Engine backed by runner.
func NewAdapter(runner Runner, reg *metrics.Registry) *Adapter {
	return &Adapter{runner: runner, metrics: reg}
}

// Summarize validates the selection, coerces the selected columns to
// numbers and asks the runner for summary statistics.
func (a *Adapter) Summarize(ctx context.Context, t *table.Table, columns []string) (res *table.Table, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "failed"
		}
		a.metrics.Inc(metrics.AnalysisRuns, metrics.Labels{"outcome": outcome})
	}()

	selected, err := NormalizeSelection(columns)
	if err != nil {
		return nil, err
	}
	if missing := MissingColumns(t, selected); len(missing) > 0 {
		return nil, errorf(nil, "Selected columns are not available in the uploaded data: %s", strings.Join(missing, ", "))
	}

	numeric, err := numericTable(t, selected)
	if err != nil {
		return nil, err
	}

	raw, err := a.runner.Run(ctx, numeric)
	if err != nil {
		var aerr *Error
		if errors.As(err, &aerr) {
			return nil, aerr
		}
		fwlog.Errorf("statistics engine failed: %v", err)
		return nil, errorf(err, "MinexPy StatisticalAnalyzer could not generate summary statistics for the selected columns.")
	}

	res = SummaryToTable(raw, selected)
	if res.Len() == 0 {
		return nil, errorf(nil, "MinexPy returned an empty statistical summary.")
	}
	return res, nil
}

// NormalizeSelection trims names, drops blanks and repeats, and keeps the
// first-seen order. An empty result is an Error.
func NormalizeSelection(columns []string) ([]string, error) {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errorf(nil, "Please select at least one column to analyze.")
	}
	return out, nil
}

// MissingColumns returns the selected names t does not have.
func MissingColumns(t *table.Table, selected []string) []string {
	var missing []string
	for _, c := range selected {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ParseNumber converts a cell the way a lenient numeric coercion would:
// surrounding space is ignored and anything unparsable, or NaN, is missing.
func ParseNumber(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func numericTable(t *table.Table, selected []string) (*table.Table, error) {
	sub, err := t.Select(selected)
	if err != nil {
		return nil, errorf(err, "Selected columns are not available in the uploaded data: %s", strings.Join(selected, ", "))
	}

	hasValue := make([]bool, len(selected))
	for _, row := range sub.Rows {
		for i, cell := range row {
			v, ok := ParseNumber(cell)
			if !ok {
				row[i] = ""
				continue
			}
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
			hasValue[i] = true
		}
	}

	var empty []string
	for i, ok := range hasValue {
		if !ok {
			empty = append(empty, selected[i])
		}
	}
	if len(empty) > 0 {
		return nil, errorf(nil, "Analysis failed because these selected columns contain no numeric values: %s", strings.Join(empty, ", "))
	}
	return sub, nil
}
