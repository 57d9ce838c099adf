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
	"fmt"
	"time"

	"github.com/fawa-io/tablestat/pkg/table"
)

const resultSuffix = ".csv"

// ResultStore keeps analysis output as CSV until it is downloaded or expires.
type ResultStore struct {
	files *FileStore
}

var _ Results = (*ResultStore)(nil)

// NewResultStore returns a result store rooted at dir.
func NewResultStore(dir string, opts ...Option) *ResultStore {
	return &ResultStore{files: NewFileStore("result", dir, resultSuffix, "", opts...)}
}

// Files exposes the underlying file store.
func (r *ResultStore) Files() *FileStore {
	return r.files
}

// Save writes t as CSV and returns the new result id.
func (r *ResultStore) Save(t *table.Table) (string, error) {
	data, err := t.CSV()
	if err != nil {
		return "", fmt.Errorf("result store: %w", err)
	}
	return r.files.Save(data, nil)
}

// Load returns the CSV bytes of id as written.
func (r *ResultStore) Load(id string, ttl time.Duration) ([]byte, error) {
	payload, _, err := r.files.Load(id, ttl)
	return payload, err
}

// Sweep deletes expired results.
func (r *ResultStore) Sweep(ttl time.Duration) (int, error) {
	return r.files.Sweep(ttl)
}

// Name identifies the store.
func (r *ResultStore) Name() string {
	return r.files.Name()
}
