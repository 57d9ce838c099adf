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

// Package storage keeps uploaded datasets and generated results on local
// disk for a limited time.
//
// Every object is a flat file <id><suffix> in the store directory, where id
// is 32 lowercase hex characters. An object older than the TTL given to Load
// or Sweep is treated as absent and deleted when it is examined.
package storage

import (
	"errors"
	"time"

	"github.com/fawa-io/tablestat/pkg/metrics"
	"github.com/fawa-io/tablestat/pkg/table"
)

// ErrNotFound is returned for every object that cannot be handed out:
// malformed ids, missing, expired or undecodable objects alike.
var ErrNotFound = errors.New("object not found")

// Datasets defines the operations the web layer needs on uploaded tables.
type Datasets interface {
	// Save persists t with the name of the file it came from and returns its id.
	Save(t *table.Table, sourceFilename string) (string, error)

	// Load returns the table and its source filename.
	Load(id string, ttl time.Duration) (*table.Table, string, error)
}

// Results defines the operations the web layer needs on analysis output.
type Results interface {
	// Save persists t as CSV and returns its id.
	Save(t *table.Table) (string, error)

	// Load returns the stored CSV bytes.
	Load(id string, ttl time.Duration) ([]byte, error)
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock replaces time.Now as the reference for age computations.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		s.now = now
	}
}

// WithMetrics records saves, loads and sweeps in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(s *FileStore) {
		s.metrics = r
	}
}
