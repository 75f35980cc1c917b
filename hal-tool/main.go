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

// This binary prints reports about hierarchical alignments, lifts wiggle
// tracks between their genomes and exports genome sequences as FASTA.
package main

import (
	"log"
	"log/slog"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/googlegenomics/hal/internal/metrics"
)

// app holds the state shared by the commands of one invocation.
type app struct {
	configPath string
	flagValues Config
	cfg        Config
	logger     *slog.Logger
	profiler   interface{ Stop() }
}

func newRootCommand() *cobra.Command {
	app := &app{}
	root := &cobra.Command{
		Use:               "hal-tool",
		Short:             "Query, lift over and export hierarchical alignments",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.teardown()
		},
	}
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "YAML file supplying default flag values")
	bindFlags(root, &app.flagValues)
	root.AddCommand(app.statsCommand(), app.liftoverCommand(), app.exportCommand(), app.catCommand())
	return root
}

func (app *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(app.configPath, cmd, app.flagValues)
	if err != nil {
		return err
	}
	app.cfg = cfg
	if cfg.Verbose {
		app.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if cfg.ProfileDir != "" {
		app.profiler = profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.ProfileDir), profile.NoShutdownHook)
	}
	return nil
}

func (app *app) teardown() error {
	if app.profiler != nil {
		app.profiler.Stop()
		app.profiler = nil
	}
	if app.cfg.MetricsFile != "" {
		return metrics.WriteFile(app.cfg.MetricsFile)
	}
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("hal-tool: %v", err)
	}
}
