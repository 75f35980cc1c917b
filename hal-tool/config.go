// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/container"
)

// Config holds the settings shared by every command.  Values come from the
// built in defaults, then the --config file, then explicitly set flags.
type Config struct {
	Backend        string `yaml:"backend"`
	PagesPerBuffer uint64 `yaml:"pages_per_buffer"`
	Compression    string `yaml:"compression"`
	GCSToken       string `yaml:"gcs_token"`
	GCSPublic      bool   `yaml:"gcs_public"`
	MetricsFile    string `yaml:"metrics_file"`
	ProfileDir     string `yaml:"profile_dir"`
	Verbose        bool   `yaml:"verbose"`
}

var backends = map[string]bool{"file": true, "badger": true, "gcs": true}

func defaultConfig() Config {
	return Config{
		Backend:        "file",
		PagesPerBuffer: hal.DefaultOptions().PagesPerBuffer,
		Compression:    "zstd",
	}
}

// bindFlags registers the global flags of cmd, storing their values in
// flagValues.
func bindFlags(cmd *cobra.Command, flagValues *Config) {
	d := defaultConfig()
	flags := cmd.PersistentFlags()
	flags.StringVar(&flagValues.Backend, "backend", d.Backend, "storage backend: file, badger or gcs")
	flags.Uint64Var(&flagValues.PagesPerBuffer, "pages-per-buffer", d.PagesPerBuffer, "storage chunks held in each resident page")
	flags.StringVar(&flagValues.Compression, "compression", d.Compression, "block compression of new badger and gcs datasets: raw or zstd")
	flags.StringVar(&flagValues.GCSToken, "gcs-token", "", "OAuth2 bearer token for gcs alignments")
	flags.BoolVar(&flagValues.GCSPublic, "gcs-public", false, "read gcs alignments without credentials")
	flags.StringVar(&flagValues.MetricsFile, "metrics-file", "", "write paging and report metrics to this file on exit")
	flags.StringVar(&flagValues.ProfileDir, "profile", "", "write a CPU profile to this directory")
	flags.BoolVar(&flagValues.Verbose, "verbose", false, "log library debug output to stderr")
}

// loadConfig returns the effective configuration.  Flags set on the command
// line override the file at path, which overrides the defaults.
func loadConfig(path string, cmd *cobra.Command, flagValues Config) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %v", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %v", path, err)
		}
	}

	overrides := map[string]func(){
		"backend":          func() { cfg.Backend = flagValues.Backend },
		"pages-per-buffer": func() { cfg.PagesPerBuffer = flagValues.PagesPerBuffer },
		"compression":      func() { cfg.Compression = flagValues.Compression },
		"gcs-token":        func() { cfg.GCSToken = flagValues.GCSToken },
		"gcs-public":       func() { cfg.GCSPublic = flagValues.GCSPublic },
		"metrics-file":     func() { cfg.MetricsFile = flagValues.MetricsFile },
		"profile":          func() { cfg.ProfileDir = flagValues.ProfileDir },
		"verbose":          func() { cfg.Verbose = flagValues.Verbose },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	if !backends[cfg.Backend] {
		return Config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if cfg.PagesPerBuffer == 0 {
		return Config{}, fmt.Errorf("pages per buffer must be positive")
	}
	if _, err := container.CodecByName(cfg.Compression); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
