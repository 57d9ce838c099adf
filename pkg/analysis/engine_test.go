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
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/tablestat/pkg/metrics"
	"github.com/fawa-io/tablestat/pkg/table"
)

type runnerFunc func(ctx context.Context, numeric *table.Table) (*table.Table, error)

func (f runnerFunc) Run(ctx context.Context, numeric *table.Table) (*table.Table, error) {
	return f(ctx, numeric)
}

func sample() *table.Table {
	return &table.Table{
		Columns: []string{"id", "Fe", "Cu", "note"},
		Rows: [][]string{
			{"s1", "1.5", " 2 ", "x"},
			{"s2", "n/a", "4", "y"},
			{"s3", "3.5", "", "z"},
		},
	}
}

// rowsPerColumn mimics an engine reporting one row per input column.
func rowsPerColumn(_ context.Context, numeric *table.Table) (*table.Table, error) {
	out := &table.Table{Columns: []string{"", "count"}}
	for i := len(numeric.Columns) - 1; i >= 0; i-- {
		out.Rows = append(out.Rows, []string{numeric.Columns[i], "2"})
	}
	return out, nil
}

func TestNormalizeSelection(t *testing.T) {
	testCases := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "trim and dedupe", in: []string{" Fe", "Cu", "Fe ", "", "Cu"}, want: []string{"Fe", "Cu"}},
		{name: "keeps first-seen order", in: []string{"b", "a", "b"}, want: []string{"b", "a"}},
		{name: "only blanks", in: []string{"", "  "}, wantErr: true},
		{name: "nil", in: nil, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeSelection(tc.in)
			if tc.wantErr {
				var aerr *Error
				require.ErrorAs(t, err, &aerr)
				assert.Equal(t, "Please select at least one column to analyze.", aerr.Msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "1.5", want: 1.5, ok: true},
		{in: " 2 ", want: 2, ok: true},
		{in: "1e3", want: 1000, ok: true},
		{in: "-0.25", want: -0.25, ok: true},
		{in: "", ok: false},
		{in: "n/a", ok: false},
		{in: "NaN", ok: false},
		{in: "1,5", ok: false},
	}
	for _, tc := range testCases {
		got, ok := ParseNumber(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}

func TestSummarizePassesNumericTable(t *testing.T) {
	var got *table.Table
	a := NewAdapter(runnerFunc(func(ctx context.Context, numeric *table.Table) (*table.Table, error) {
		got = numeric
		return rowsPerColumn(ctx, numeric)
	}), nil)

	_, err := a.Summarize(context.Background(), sample(), []string{"Fe", "Cu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fe", "Cu"}, got.Columns)
	assert.Equal(t, [][]string{{"1.5", "2"}, {"", "4"}, {"3.5", ""}}, got.Rows)
}

func TestSummarizeOrdersRowsBySelection(t *testing.T) {
	reg := metrics.NewRegistry()
	a := NewAdapter(runnerFunc(rowsPerColumn), reg)

	res, err := a.Summarize(context.Background(), sample(), []string{"Cu", " Fe", "Cu"})
	require.NoError(t, err)
	assert.Equal(t, []string{ElementColumn, "count"}, res.Columns)
	assert.Equal(t, [][]string{{"Cu", "2"}, {"Fe", "2"}}, res.Rows)
	assert.Equal(t, 1.0, reg.Value(metrics.AnalysisRuns, metrics.Labels{"outcome": "ok"}))
}

func TestSummarizeTransposesMetricRows(t *testing.T) {
	a := NewAdapter(runnerFunc(func(context.Context, *table.Table) (*table.Table, error) {
		return &table.Table{
			Columns: []string{"", "Fe", "Cu"},
			Rows: [][]string{
				{"mean", "2.5", "3"},
				{"std", "1.41", "1.41"},
			},
		}, nil
	}), nil)

	res, err := a.Summarize(context.Background(), sample(), []string{"Cu", "Fe"})
	require.NoError(t, err)
	assert.Equal(t, []string{ElementColumn, "mean", "std"}, res.Columns)
	assert.Equal(t, [][]string{{"Cu", "3", "1.41"}, {"Fe", "2.5", "1.41"}}, res.Rows)
}

func TestSummarizeErrors(t *testing.T) {
	boom := errors.New("engine crashed")
	testCases := []struct {
		name    string
		columns []string
		runner  Runner
		wantMsg string
	}{
		{
			name:    "no selection",
			columns: []string{" "},
			runner:  runnerFunc(rowsPerColumn),
			wantMsg: "Please select at least one column to analyze.",
		},
		{
			name:    "unknown columns",
			columns: []string{"Fe", "Zn", "Pb"},
			runner:  runnerFunc(rowsPerColumn),
			wantMsg: "Selected columns are not available in the uploaded data: Zn, Pb",
		},
		{
			name:    "non numeric columns",
			columns: []string{"Fe", "note", "id"},
			runner:  runnerFunc(rowsPerColumn),
			wantMsg: "Analysis failed because these selected columns contain no numeric values: note, id",
		},
		{
			name:    "engine failure",
			columns: []string{"Fe"},
			runner: runnerFunc(func(context.Context, *table.Table) (*table.Table, error) {
				return nil, boom
			}),
			wantMsg: "MinexPy StatisticalAnalyzer could not generate summary statistics for the selected columns.",
		},
		{
			name:    "empty summary",
			columns: []string{"Fe"},
			runner: runnerFunc(func(context.Context, *table.Table) (*table.Table, error) {
				return &table.Table{Columns: []string{"", "mean"}}, nil
			}),
			wantMsg: "MinexPy returned an empty statistical summary.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reg := metrics.NewRegistry()
			_, err := NewAdapter(tc.runner, reg).Summarize(context.Background(), sample(), tc.columns)
			var aerr *Error
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, tc.wantMsg, aerr.Error())
			assert.Equal(t, 1.0, reg.Value(metrics.AnalysisRuns, metrics.Labels{"outcome": "failed"}))
		})
	}
}

func TestSummarizeKeepsEngineErrorMessage(t *testing.T) {
	want := &Error{Msg: "MinexPy is not installed or does not expose minexpy.stats.StatisticalAnalyzer."}
	a := NewAdapter(runnerFunc(func(context.Context, *table.Table) (*table.Table, error) {
		return nil, want
	}), nil)

	_, err := a.Summarize(context.Background(), sample(), []string{"Fe"})
	assert.Same(t, want, err)
}

func TestSummaryToTableUnlistedRowsGoLast(t *testing.T) {
	raw := &table.Table{
		Columns: []string{"", "mean"},
		Rows:    [][]string{{"total", "9"}, {"Cu", "3"}, {"Fe", "2"}},
	}
	res := SummaryToTable(raw, []string{"Fe", "Cu"})
	assert.Equal(t, [][]string{{"Fe", "2"}, {"Cu", "3"}, {"total", "9"}}, res.Rows)
}

func TestSummaryToTableEmpty(t *testing.T) {
	res := SummaryToTable(nil, []string{"Fe"})
	assert.Equal(t, []string{ElementColumn}, res.Columns)
	assert.Zero(t, res.Len())
}

func TestExecRunnerMissingInterpreter(t *testing.T) {
	r := NewExecRunner(filepath.Join(t.TempDir(), "no-such-python"))
	_, err := r.Run(context.Background(), sample())

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Msg, "MinexPy is not installed")
}

func TestExecRunnerRoundTripsCSV(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	r := &ExecRunner{Command: "cat"}
	in := &table.Table{Columns: []string{"", "mean"}, Rows: [][]string{{"Fe", "2.5"}}}

	out, err := r.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestExecRunnerFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	_, err := (&ExecRunner{Command: "false"}).Run(context.Background(), sample())
	require.Error(t, err)

	var aerr *Error
	assert.False(t, errors.As(err, &aerr), "a crashing engine is not a missing engine")
}

func TestExecRunnerHonoursCancellation(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&ExecRunner{Command: "cat"}).Run(ctx, sample())
	assert.ErrorIs(t, err, context.Canceled)
}
