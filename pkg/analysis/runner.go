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
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/table"
)

// exitMissingEngine is the status the bundled script exits with when the
// statistics library cannot be imported.
const exitMissingEngine = 3

const minexpyScript = `import sys
import pandas as pd
try:
    from minexpy.stats import StatisticalAnalyzer
except Exception as exc:
    sys.stderr.write("import minexpy.stats: %s\n" % exc)
    sys.exit(3)
df = pd.read_csv(sys.stdin)
summary = StatisticalAnalyzer(df).summary(as_dataframe=True)
if isinstance(summary, dict):
    summary = pd.Series(summary)
if isinstance(summary, pd.Series):
    summary = pd.DataFrame({str(df.columns[0]): summary})
summary.to_csv(sys.stdout)
`

// ExecRunner runs the statistics engine as a child process. The numeric
// table is written to its stdin as CSV and the summary is read back from
// its stdout as CSV.
type ExecRunner struct {
	Command string
	Args    []string
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner returns a runner that feeds the bundled MinexPy script to
// the given Python interpreter.
func NewExecRunner(interpreter string) *ExecRunner {
	return &ExecRunner{Command: interpreter, Args: []string{"-c", minexpyScript}}
}

func (r *ExecRunner) Run(ctx context.Context, numeric *table.Table) (*table.Table, error) {
	in, err := numeric.CSV()
	if err != nil {
		return nil, fmt.Errorf("encode engine input: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Stdin = bytes.NewReader(in)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || (errors.As(err, &exitErr) && exitErr.ExitCode() == exitMissingEngine) {
			fwlog.Warnf("statistics engine unavailable: %v: %s", err, strings.TrimSpace(stderr.String()))
			return nil, errorf(err, "MinexPy is not installed or does not expose minexpy.stats.StatisticalAnalyzer.")
		}
		return nil, fmt.Errorf("run %s: %w: %s", r.Command, err, strings.TrimSpace(stderr.String()))
	}

	return parseSummary(stdout.Bytes())
}

func parseSummary(data []byte) (*table.Table, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read engine output: %w", err)
	}
	if len(records) == 0 {
		return &table.Table{}, nil
	}
	return table.New(records[0], records[1:])
}
