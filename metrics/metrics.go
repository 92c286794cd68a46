// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package metrics exports the counts of an analysis in the Prometheus text
// format, e.g. for the textfile collector of the node exporter.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/forensicanalysis/usnanalytics"
)

const namespace = "usnanalytics"

// Metrics of a single analysis run.
type Metrics struct {
	registry *prometheus.Registry

	records   *prometheus.GaugeVec
	segments  prometheus.Gauge
	imageSize prometheus.Gauge
	duration  prometheus.Gauge
	lastRun   prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.records = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "records",
		Help:      "Number of journal records by state",
	}, []string{"state"})
	m.segments = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "usn_segments",
		Help:      "Number of contiguous usn ranges",
	})
	m.imageSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "image_size_bytes",
		Help:      "Size of the analyzed journal image",
	})
	m.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "duration_seconds",
		Help:      "Wall time of the analysis",
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the end of the analysis",
	})
	m.registry.MustRegister(m.records, m.segments, m.imageSize, m.duration, m.lastRun)
	return m
}

// Observe sets all metrics from summary.
func (m *Metrics) Observe(summary *usnanalytics.Summary, took time.Duration) {
	for state, count := range map[string]int{
		"found":       summary.Found,
		"corrupt":     summary.Corrupt,
		"duplicate":   summary.Duplicates,
		"unique":      summary.Unique,
		"v3":          summary.V3,
		"unsupported": summary.Unsupported,
		"packed":      summary.Packed,
	} {
		m.records.WithLabelValues(state).Set(float64(count))
	}
	m.segments.Set(float64(len(summary.Segments)))
	m.imageSize.Set(float64(summary.Size))
	m.duration.Set(took.Seconds())
	m.lastRun.SetToCurrentTime()
}

// WriteFile atomically writes all metrics to path.
func (m *Metrics) WriteFile(path string) error {
	return errors.Wrap(prometheus.WriteToTextfile(path, m.registry), "could not write metrics")
}
