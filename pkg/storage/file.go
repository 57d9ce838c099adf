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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fawa-io/tablestat/pkg/fwlog"
	"github.com/fawa-io/tablestat/pkg/metrics"
	"github.com/fawa-io/tablestat/pkg/util"
)

// FileStore is a TTL-bounded blob store in a single flat directory.
// Payloads live in <id><payloadSuffix>; when metaSuffix is set, an optional
// sidecar lives in <id><metaSuffix>.
type FileStore struct {
	name          string
	dir           string
	payloadSuffix string
	metaSuffix    string

	now     func() time.Time
	metrics *metrics.Registry
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save. An empty metaSuffix disables sidecars.
func NewFileStore(name, dir, payloadSuffix, metaSuffix string, opts ...Option) *FileStore {
	s := &FileStore{
		name:          name,
		dir:           dir,
		payloadSuffix: payloadSuffix,
		metaSuffix:    metaSuffix,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the store in logs and metrics.
func (s *FileStore) Name() string {
	return s.name
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) payloadPath(id string) string {
	return filepath.Join(s.dir, id+s.payloadSuffix)
}

func (s *FileStore) metaPath(id string) string {
	if s.metaSuffix == "" {
		return ""
	}
	return filepath.Join(s.dir, id+s.metaSuffix)
}

// Save writes payload, and meta when the store keeps sidecars and meta is
// non-nil, under a freshly generated id.
func (s *FileStore) Save(payload, meta []byte) (string, error) {
	if err := util.CreateDir(s.dir); err != nil {
		return "", fmt.Errorf("%s store: creating %s: %w", s.name, s.dir, err)
	}

	id := util.NewID()
	if err := util.WriteFile(s.payloadPath(id), payload); err != nil {
		return "", fmt.Errorf("%s store: writing payload: %w", s.name, err)
	}
	if mp := s.metaPath(id); mp != "" && meta != nil {
		if err := util.WriteFile(mp, meta); err != nil {
			s.remove(id)
			return "", fmt.Errorf("%s store: writing metadata: %w", s.name, err)
		}
	}

	s.metrics.Inc(metrics.StoreSaves, metrics.Labels{"store": s.name})
	fwlog.Debugf("%s store: saved %s (%d bytes)", s.name, id, len(payload))
	return id, nil
}

// Load returns the payload and sidecar of id. The sidecar is nil when the
// store has none or it cannot be read. Objects older than ttl are deleted
// and reported as ErrNotFound.
func (s *FileStore) Load(id string, ttl time.Duration) (payload, meta []byte, err error) {
	defer func() {
		outcome := "hit"
		switch {
		case errors.Is(err, ErrNotFound):
			outcome = "not_found"
		case err != nil:
			outcome = "error"
		}
		s.metrics.Inc(metrics.StoreLoads, metrics.Labels{"store": s.name, "outcome": outcome})
	}()

	if !util.ValidID(id) {
		return nil, nil, ErrNotFound
	}

	path := s.payloadPath(id)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s store: stat %s: %w", s.name, id, err)
	}

	if s.expired(info, ttl) {
		s.remove(id)
		fwlog.Debugf("%s store: %s expired on load", s.name, id)
		return nil, nil, ErrNotFound
	}

	payload, err = os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s store: reading %s: %w", s.name, id, err)
	}

	if mp := s.metaPath(id); mp != "" {
		if b, err := os.ReadFile(mp); err == nil {
			meta = b
		}
	}
	return payload, meta, nil
}

// Sweep deletes every expired object directly under the store directory
// and returns how many were removed. A missing directory holds nothing.
// Files that vanish or cannot be removed are skipped.
func (s *FileStore) Sweep(ttl time.Duration) (int, error) {
	names, err := util.ReadDirNames(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s store: listing %s: %w", s.name, s.dir, err)
	}

	deleted := 0
	for _, name := range names {
		if !strings.HasSuffix(name, s.payloadSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, s.payloadSuffix)
		if !util.ValidID(id) {
			continue
		}

		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		if !s.expired(info, ttl) {
			continue
		}
		if err := util.RemoveIfExists(s.payloadPath(id)); err != nil {
			fwlog.Debugf("%s store: sweep could not remove %s: %v", s.name, id, err)
			continue
		}
		if mp := s.metaPath(id); mp != "" {
			if err := util.RemoveIfExists(mp); err != nil {
				fwlog.Debugf("%s store: sweep could not remove metadata of %s: %v", s.name, id, err)
			}
		}
		deleted++
	}

	s.metrics.Add(metrics.StoreSwept, metrics.Labels{"store": s.name}, float64(deleted))
	return deleted, nil
}

func (s *FileStore) expired(info fs.FileInfo, ttl time.Duration) bool {
	return s.now().Sub(info.ModTime()) > ttl
}

// remove deletes the payload and sidecar of id, ignoring failures.
func (s *FileStore) remove(id string) {
	if err := util.RemoveIfExists(s.payloadPath(id)); err != nil {
		fwlog.Debugf("%s store: removing %s: %v", s.name, id, err)
	}
	if mp := s.metaPath(id); mp != "" {
		if err := util.RemoveIfExists(mp); err != nil {
			fwlog.Debugf("%s store: removing metadata of %s: %v", s.name, id, err)
		}
	}
}
