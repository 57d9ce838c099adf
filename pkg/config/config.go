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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fawa-io/tablestat/pkg/fwlog"
)

type Config struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	LogLevel string `mapstructure:"logLevel"`

	MaxContentLengthMB           int    `mapstructure:"maxContentLengthMB"`
	ResultTTLSeconds             int    `mapstructure:"resultTTLSeconds"`
	ResultCleanupIntervalSeconds int    `mapstructure:"resultCleanupIntervalSeconds"`
	ResultStorageDir             string `mapstructure:"resultStorageDir"`
	DatasetStorageDir            string `mapstructure:"datasetStorageDir"`

	AnalysisCommand string   `mapstructure:"analysisCommand"`
	ChangelogPath   string   `mapstructure:"changelogPath"`
	AllowedOrigins  []string `mapstructure:"allowedOrigins"`
}

// TTL is how long stored datasets and results stay readable.
func (c Config) TTL() time.Duration {
	return time.Duration(c.ResultTTLSeconds) * time.Second
}

// CleanupInterval is the minimum time between two sweeps.
func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.ResultCleanupIntervalSeconds) * time.Second
}

// MaxContentLength is the request body limit in bytes.
func (c Config) MaxContentLength() int64 {
	return int64(c.MaxContentLengthMB) * 1024 * 1024
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.MaxContentLengthMB <= 0 {
		errs = append(errs, fmt.Errorf("maxContentLengthMB must be positive, got %d", c.MaxContentLengthMB))
	}
	if c.ResultTTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("resultTTLSeconds must be positive, got %d", c.ResultTTLSeconds))
	}
	if c.ResultCleanupIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("resultCleanupIntervalSeconds must not be negative, got %d", c.ResultCleanupIntervalSeconds))
	}
	if strings.TrimSpace(c.ResultStorageDir) == "" {
		errs = append(errs, errors.New("resultStorageDir must not be empty"))
	}
	if strings.TrimSpace(c.DatasetStorageDir) == "" {
		errs = append(errs, errors.New("datasetStorageDir must not be empty"))
	}
	if strings.TrimSpace(c.AnalysisCommand) == "" {
		errs = append(errs, errors.New("analysisCommand must not be empty"))
	}
	if _, err := fwlog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		errs = append(errs, errors.New("certFile and keyFile must be set together"))
	}
	return errors.Join(errs...)
}

// envNames are the historical environment variables, honoured without the
// TABLESTAT_ prefix.
var envNames = map[string]string{
	"maxContentLengthMB":           "MAX_CONTENT_LENGTH_MB",
	"resultTTLSeconds":             "RESULT_TTL_SECONDS",
	"resultCleanupIntervalSeconds": "RESULT_CLEANUP_INTERVAL_SECONDS",
	"resultStorageDir":             "RESULT_STORAGE_DIR",
	"datasetStorageDir":            "DATASET_STORAGE_DIR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:5000")
	v.SetDefault("logLevel", "info")
	v.SetDefault("maxContentLengthMB", 20)
	v.SetDefault("resultTTLSeconds", 3600)
	v.SetDefault("resultCleanupIntervalSeconds", 300)
	v.SetDefault("resultStorageDir", filepath.Join(os.TempDir(), "minexpygui-results"))
	v.SetDefault("datasetStorageDir", filepath.Join(os.TempDir(), "minexpygui-datasets"))
	v.SetDefault("analysisCommand", "python3")
	v.SetDefault("changelogPath", "CHANGELOG.md")
	v.SetDefault("allowedOrigins", []string{})
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String("addr", "", "HTTP listen address (e.g., '127.0.0.1:5000')")
	fs.String("certFile", "", "Path to the TLS certificate file.")
	fs.String("keyFile", "", "Path to the TLS private key file.")
	fs.String("logLevel", "", "Log level: debug, info, warn, error or fatal.")
	fs.Int("maxContentLengthMB", 0, "Maximum upload size in MB.")
	fs.Int("resultTTLSeconds", 0, "Lifetime of stored datasets and results in seconds.")
	fs.Int("resultCleanupIntervalSeconds", 0, "Minimum seconds between expiry sweeps.")
	fs.String("resultStorageDir", "", "Directory for analysis results.")
	fs.String("datasetStorageDir", "", "Directory for uploaded datasets.")
	fs.String("analysisCommand", "", "Python interpreter used to run the statistics engine.")
	fs.String("changelogPath", "", "Markdown file served on /changelog.")
	fs.StringSlice("allowedOrigins", nil, "CORS origins allowed to call the server.")
}

// Load resolves the configuration from flags, environment, config file and
// defaults, in that order of precedence. A config file set on v with
// SetConfigFile is used as is; otherwise config.yaml is looked up in the
// working directory and /etc/tablestat/.
func Load(v *viper.Viper, fs *pflag.FlagSet, args []string) (Config, error) {
	setDefaults(v)

	registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("failed to parse flags: %w", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("failed to bind pflags: %w", err)
	}

	v.SetEnvPrefix("TABLESTAT")
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tablestat/")
	}
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fwlog.Infof("Config file not found, using flags, environment and defaults.")
		} else {
			return Config{}, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("the configuration cannot be decoded into the struct: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

var (
	once sync.Once

	mu sync.RWMutex

	config Config
)

// InitConfig loads the process configuration once and starts watching the
// config file, if one was found.
func InitConfig() error {
	var initErr error
	once.Do(func() {
		initErr = LoadAndWatch(viper.GetViper(), pflag.CommandLine, os.Args[1:])
	})
	return initErr
}

// Get returns a snapshot of the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return config
}

func set(c Config) {
	mu.Lock()
	config = c
	mu.Unlock()
	applyLogLevel(c.LogLevel)
}

func LoadAndWatch(v *viper.Viper, fs *pflag.FlagSet, args []string) error {
	c, err := Load(v, fs, args)
	if err != nil {
		return err
	}
	set(c)

	if v.ConfigFileUsed() == "" {
		return nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		fwlog.Infof("config file %s changed, reloading", e.Name)
		reload(v)
	})
	v.WatchConfig()
	return nil
}

// reload keeps the previous configuration when the new one is invalid.
// Storage directories, address and TLS files are read once at startup;
// the log level takes effect immediately.
func reload(v *viper.Viper) {
	c, err := decode(v)
	if err != nil {
		fwlog.Errorf("error reloading the configuration: %v", err)
		return
	}
	set(c)
	fwlog.Infof("the configuration has been reloaded")
}

func applyLogLevel(s string) {
	lvl, err := fwlog.ParseLevel(s)
	if err != nil {
		fwlog.Warnf("%v, keeping level %s", err, lvl)
	}
	fwlog.SetLevel(lvl)
}
