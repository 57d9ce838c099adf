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

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/tablestat/pkg/table"
)

func TestDatasetStore_SaveAndLoad(t *testing.T) {
	ds := NewDatasetStore(t.TempDir())

	src, err := table.Parse("in.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)

	id, err := ds.Save(src, "in.csv")
	require.NoError(t, err)

	got, filename, err := ds.Load(id, 3600*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "in.csv", filename)
	assert.Equal(t, src, got)

	out, err := got.CSV()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(out))

	meta, err := os.ReadFile(filepath.Join(ds.Files().Dir(), id+".json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source_filename":"in.csv"}`, string(meta))
}

func TestDatasetStore_RawPayloadScenario(t *testing.T) {
	// Same layout as the dataset store, with the bytes stored verbatim.
	s := NewFileStore("dataset", t.TempDir(), datasetSuffix, datasetMetaSuffix)

	id, err := s.Save([]byte("a,b\n1,2\n"), []byte(`{"source_filename":"in.csv"}`))
	require.NoError(t, err)

	payload, meta, err := s.Load(id, 3600*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(payload))
	assert.JSONEq(t, `{"source_filename":"in.csv"}`, string(meta))
}

func TestDatasetStore_ExpiresAfterTTL(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real TTL to elapse")
	}
	ds := NewDatasetStore(t.TempDir())
	src := &table.Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}

	id, err := ds.Save(src, "in.csv")
	require.NoError(t, err)

	time.Sleep(2 * time.Second)

	_, _, err = ds.Load(id, time.Second)
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := os.ReadDir(ds.Files().Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), id), "leftover file %s", e.Name())
	}
}

func TestDatasetStore_FilenameFallbacks(t *testing.T) {
	ds := NewDatasetStore(t.TempDir())
	src := &table.Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}

	testCases := []struct {
		name   string
		mutate func(t *testing.T, id string)
		saveAs string
	}{
		{name: "blank filename", saveAs: "  ", mutate: func(*testing.T, string) {}},
		{
			name:   "missing sidecar",
			saveAs: "in.csv",
			mutate: func(t *testing.T, id string) {
				require.NoError(t, os.Remove(filepath.Join(ds.Files().Dir(), id+".json")))
			},
		},
		{
			name:   "corrupt sidecar",
			saveAs: "in.csv",
			mutate: func(t *testing.T, id string) {
				require.NoError(t, os.WriteFile(filepath.Join(ds.Files().Dir(), id+".json"), []byte("{not json"), 0o600))
			},
		},
		{
			name:   "empty filename in sidecar",
			saveAs: "in.csv",
			mutate: func(t *testing.T, id string) {
				require.NoError(t, os.WriteFile(filepath.Join(ds.Files().Dir(), id+".json"), []byte(`{"source_filename":""}`), 0o600))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ds.Save(src, tc.saveAs)
			require.NoError(t, err)
			tc.mutate(t, id)

			got, filename, err := ds.Load(id, ttl)
			require.NoError(t, err)
			assert.Equal(t, DefaultSourceFilename, filename)
			assert.Equal(t, src, got)
		})
	}
}

func TestDatasetStore_CorruptPayloadIsNotFound(t *testing.T) {
	ds := NewDatasetStore(t.TempDir())
	id, err := ds.Save(&table.Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}, "in.csv")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(ds.Files().Dir(), id+".tbl"), []byte("garbage"), 0o600))

	_, _, err = ds.Load(id, ttl)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatasetStore_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ds := NewDatasetStore(t.TempDir(), WithClock(clock.Now))
	id, err := ds.Save(&table.Table{Columns: []string{"a"}}, "in.csv")
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * ttl)
	n, err := ds.Sweep(ttl)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := os.ReadDir(ds.Files().Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "dataset %s left files behind", id)
}

func TestResultStore_SaveAndLoad(t *testing.T) {
	rs := NewResultStore(t.TempDir())
	res := &table.Table{
		Columns: []string{"element", "mean"},
		Rows:    [][]string{{"Fe", "1.5"}, {"Cu", "2"}},
	}

	id, err := rs.Save(res)
	require.NoError(t, err)

	data, err := rs.Load(id, ttl)
	require.NoError(t, err)
	assert.Equal(t, "element,mean\nFe,1.5\nCu,2\n", string(data))

	_, err = os.Stat(filepath.Join(rs.Files().Dir(), id+".csv"))
	assert.NoError(t, err)

	_, err = rs.Load(strings.ToUpper(id), ttl)
	assert.ErrorIs(t, err, ErrNotFound)
}
