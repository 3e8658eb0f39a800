// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package metrics exposes the pipeline's operational counters through a
// small interface with a Prometheus-backed implementation and a no-op
// fallback, so the core classification path never has a hard runtime
// dependency on a metrics server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder receives the four pipeline counters as they are updated. A
// Pipeline's Run calls it only from its own goroutine, never
// concurrently: AddReads and AddBases while holding the pipeline's
// metrics mutex, SetActiveWorkers and ObserveChunkLatency without it. So
// implementations do not need their own internal locking beyond what a
// shared prometheus.Collector already provides.
type Recorder interface {
	// AddReads accounts for a batch of records examined by QC.
	AddReads(sampleID string, total, passed int)
	// AddBases accounts for the sequence bases of reads that passed QC.
	AddBases(sampleID string, passed uint64)
	// ObserveChunkLatency records the wall-clock time, in seconds, taken
	// to process one chunk across the worker pool.
	ObserveChunkLatency(sampleID string, seconds float64)
	// SetActiveWorkers reports the configured worker-pool size for a run.
	SetActiveWorkers(sampleID string, workers int)
}

const namespace = "metaclass"

type prometheusRecorder struct {
	readsTotal    *prometheus.CounterVec
	readsPassed   *prometheus.CounterVec
	basesPassed   *prometheus.CounterVec
	chunkLatency  *prometheus.HistogramVec
	activeWorkers *prometheus.GaugeVec
}

// NewPrometheusRecorder builds a Recorder backed by the given registerer.
// If registerer is nil, prometheus.DefaultRegisterer is used.
func NewPrometheusRecorder(registerer prometheus.Registerer) (Recorder, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	r := &prometheusRecorder{
		readsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Total reads examined by the QC filter, by sample.",
		}, []string{"sample_id"}),
		readsPassed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_passed_total",
			Help:      "Reads that passed the QC filter, by sample.",
		}, []string{"sample_id"}),
		basesPassed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bases_passed_total",
			Help:      "Bases contributed by QC-passing reads, by sample.",
		}, []string{"sample_id"}),
		chunkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_processing_seconds",
			Help:      "Wall-clock time to process one chunk across the worker pool.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sample_id"}),
		activeWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Configured worker-pool size for the current run.",
		}, []string{"sample_id"}),
	}

	for _, c := range []prometheus.Collector{r.readsTotal, r.readsPassed, r.basesPassed, r.chunkLatency, r.activeWorkers} {
		if err := registerer.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = are
				continue
			}
			return nil, err
		}
	}

	return r, nil
}

func (r *prometheusRecorder) AddReads(sampleID string, total, passed int) {
	r.readsTotal.WithLabelValues(sampleID).Add(float64(total))
	r.readsPassed.WithLabelValues(sampleID).Add(float64(passed))
}

func (r *prometheusRecorder) AddBases(sampleID string, passed uint64) {
	r.basesPassed.WithLabelValues(sampleID).Add(float64(passed))
}

func (r *prometheusRecorder) ObserveChunkLatency(sampleID string, seconds float64) {
	r.chunkLatency.WithLabelValues(sampleID).Observe(seconds)
}

func (r *prometheusRecorder) SetActiveWorkers(sampleID string, workers int) {
	r.activeWorkers.WithLabelValues(sampleID).Set(float64(workers))
}

type noopRecorder struct{}

// NewNoopRecorder returns a Recorder that discards every observation.
func NewNoopRecorder() Recorder { return noopRecorder{} }

func (noopRecorder) AddReads(string, int, int)          {}
func (noopRecorder) AddBases(string, uint64)            {}
func (noopRecorder) ObserveChunkLatency(string, float64) {}
func (noopRecorder) SetActiveWorkers(string, int)       {}
