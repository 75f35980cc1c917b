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

// Package metrics holds the process-wide prometheus collectors for dataset
// paging and column iteration.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageLoads counts pages read from the container, by dataset kind.
	PageLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hal_page_loads_total",
		Help: "Pages read from the backing container",
	}, []string{"dataset"})

	// PageFlushes counts dirty pages written back, by dataset kind.
	PageFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hal_page_flushes_total",
		Help: "Dirty pages written to the backing container",
	}, []string{"dataset"})

	// Columns counts columns produced by column iterators.
	Columns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hal_columns_total",
		Help: "Alignment columns computed",
	})

	// ReportDuration tracks the time taken by each CLI report.
	ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hal_report_duration_seconds",
		Help:    "Report duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"report"})
)

// WriteFile dumps the default registry in the text exposition format.
func WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics to %s: %v", path, err)
	}
	return nil
}
