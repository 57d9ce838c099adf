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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/table"
)

const (
	datasetSuffix     = ".tbl"
	datasetMetaSuffix = ".json"

	// DefaultSourceFilename stands in for a missing or unreadable filename.
	DefaultSourceFilename = "uploaded_file"
)

// DatasetMeta is the JSON sidecar stored next to each dataset.
type DatasetMeta struct {
	SourceFilename string `json:"source_filename"`
}

// DatasetStore keeps uploaded tables between the upload and statistics
// requests.
type DatasetStore struct {
	files *FileStore
}

var _ Datasets = (*DatasetStore)(nil)

// NewDatasetStore returns a dataset store rooted at dir.
func NewDatasetStore(dir string, opts ...Option) *DatasetStore {
	return &DatasetStore{files: NewFileStore("dataset", dir, datasetSuffix, datasetMetaSuffix, opts...)}
}

// Files exposes the underlying file store.
func (d *DatasetStore) Files() *FileStore {
	return d.files
}

// Save encodes t and records sourceFilename in the sidecar.
func (d *DatasetStore) Save(t *table.Table, sourceFilename string) (string, error) {
	payload, err := table.Encode(t)
	if err != nil {
		return "", fmt.Errorf("dataset store: %w", err)
	}
	if strings.TrimSpace(sourceFilename) == "" {
		sourceFilename = DefaultSourceFilename
	}
	meta, err := json.Marshal(DatasetMeta{SourceFilename: sourceFilename})
	if err != nil {
		return "", fmt.Errorf("dataset store: %w", err)
	}
	return d.files.Save(payload, meta)
}

// Load returns the table saved under id and its source filename. An
// undecodable payload is reported as ErrNotFound; a bad sidecar only loses
// the filename.
func (d *DatasetStore) Load(id string, ttl time.Duration) (*table.Table, string, error) {
	payload, meta, err := d.files.Load(id, ttl)
	if err != nil {
		return nil, "", err
	}

	t, err := table.Decode(payload)
	if err != nil {
		fwlog.Warnf("dataset store: %s is unreadable: %v", id, err)
		return nil, "", ErrNotFound
	}

	filename := DefaultSourceFilename
	if meta != nil {
		var m DatasetMeta
		if err := json.Unmarshal(meta, &m); err == nil && m.SourceFilename != "" {
			filename = m.SourceFilename
		}
	}
	return t, filename, nil
}

// Sweep deletes expired datasets with their sidecars.
func (d *DatasetStore) Sweep(ttl time.Duration) (int, error) {
	return d.files.Sweep(ttl)
}

// Name identifies the store.
func (d *DatasetStore) Name() string {
	return d.files.Name()
}
