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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// chdir changes the working directory for the rest of the test (stand-in
// for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
}

func load(t *testing.T, configFile string, args ...string) (Config, error) {
	t.Helper()
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	return Load(v, pflag.NewFlagSet("test", pflag.ContinueOnError), args)
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	c, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5000", c.Addr)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 20, c.MaxContentLengthMB)
	assert.Equal(t, int64(20*1024*1024), c.MaxContentLength())
	assert.Equal(t, time.Hour, c.TTL())
	assert.Equal(t, 5*time.Minute, c.CleanupInterval())
	assert.Equal(t, filepath.Join(os.TempDir(), "minexpygui-results"), c.ResultStorageDir)
	assert.Equal(t, filepath.Join(os.TempDir(), "minexpygui-datasets"), c.DatasetStorageDir)
	assert.Equal(t, "python3", c.AnalysisCommand)
	assert.Equal(t, "CHANGELOG.md", c.ChangelogPath)
	assert.Empty(t, c.AllowedOrigins)
}

func TestLoadPrecedence(t *testing.T) {
	file := writeConfig(t, `
addr: 0.0.0.0:7000
maxContentLengthMB: 5
resultTTLSeconds: 60
resultStorageDir: /from/file
logLevel: debug
allowedOrigins:
  - http://a.test
`)
	t.Setenv("RESULT_TTL_SECONDS", "120")
	t.Setenv("DATASET_STORAGE_DIR", "/from/env")
	t.Setenv("TABLESTAT_ANALYSISCOMMAND", "/opt/venv/bin/python")

	c, err := load(t, file, "--addr", "127.0.0.1:9000")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", c.Addr, "flag beats file")
	assert.Equal(t, 120, c.ResultTTLSeconds, "env beats file")
	assert.Equal(t, 5, c.MaxContentLengthMB, "file beats default")
	assert.Equal(t, "/from/file", c.ResultStorageDir)
	assert.Equal(t, "/from/env", c.DatasetStorageDir)
	assert.Equal(t, "/opt/venv/bin/python", c.AnalysisCommand)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, []string{"http://a.test"}, c.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "zero ttl", env: map[string]string{"RESULT_TTL_SECONDS": "0"}},
		{name: "negative interval", env: map[string]string{"RESULT_CLEANUP_INTERVAL_SECONDS": "-1"}},
		{name: "zero upload limit", env: map[string]string{"MAX_CONTENT_LENGTH_MB": "0"}},
		{name: "unknown log level", args: []string{"--logLevel", "loud"}},
		{name: "cert without key", args: []string{"--certFile", "cert.pem"}},
		{name: "not a number", env: map[string]string{"MAX_CONTENT_LENGTH_MB": "lots"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := load(t, "", tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestLoadUnreadableConfigFile(t *testing.T) {
	_, err := load(t, writeConfig(t, "addr: [unterminated"))
	assert.Error(t, err)
}

func TestReloadKeepsLastGoodConfig(t *testing.T) {
	file := writeConfig(t, "logLevel: warn\n")
	v := viper.New()
	v.SetConfigFile(file)
	c, err := Load(v, pflag.NewFlagSet("test", pflag.ContinueOnError), nil)
	require.NoError(t, err)
	set(c)
	assert.Equal(t, "warn", Get().LogLevel)

	require.NoError(t, os.WriteFile(file, []byte("logLevel: error\n"), 0o600))
	require.NoError(t, v.ReadInConfig())
	reload(v)
	assert.Equal(t, "error", Get().LogLevel)

	require.NoError(t, os.WriteFile(file, []byte("resultTTLSeconds: -5\n"), 0o600))
	require.NoError(t, v.ReadInConfig())
	reload(v)
	assert.Equal(t, "error", Get().LogLevel)
	assert.Equal(t, 3600, Get().ResultTTLSeconds)

	t.Cleanup(func() { set(Config{LogLevel: "info"}) })
}
