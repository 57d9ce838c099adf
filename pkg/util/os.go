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

package util

import (
	"errors"
	"io/fs"
	"os"
)

const (
	// the owner can make/remove files inside the directory
	privateDirMode = 0700
	// the owner can read/write the file
	privateFileMode = 0600
)

// Exist reports whether path exists. Stat errors other than
// "not exist" are treated as existing so callers surface them later.
func Exist(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// CreateDir creates dirpath and any missing parents. An existing
// directory is not an error.
func CreateDir(dirpath string) error {
	return os.MkdirAll(dirpath, privateDirMode)
}

// WriteFile writes data to path with owner-only permissions.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, privateFileMode)
}

// RemoveIfExists deletes path. A path that is already gone is not an error.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ReadDirNames returns the names of the regular files directly under dirpath.
func ReadDirNames(dirpath string) ([]string, error) {
	entries, err := os.ReadDir(dirpath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
