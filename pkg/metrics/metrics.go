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

// Package metrics keeps the process counters in a Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Counter names.
const (
	StoreSaves   = "tablestat_store_saves_total"
	StoreLoads   = "tablestat_store_loads_total"
	StoreSwept   = "tablestat_store_swept_total"
	SweepRuns    = "tablestat_sweeps_total"
	AnalysisRuns = "tablestat_analysis_runs_total"
)

// Labels is a set of label name/value pairs.
type Labels = prometheus.Labels

type counterDef struct {
	name   string
	help   string
	labels []string
}

var counters = []counterDef{
	{StoreSaves, "Objects written to a temporary store.", []string{"store"}},
	{StoreLoads, "Load attempts against a temporary store, by outcome.", []string{"store", "outcome"}},
	{StoreSwept, "Expired objects deleted by sweeps.", []string{"store"}},
	{SweepRuns, "Expiry sweeps executed.", nil},
	{AnalysisRuns, "Analysis engine invocations, by outcome.", []string{"outcome"}},
}

// Registry holds the counters above. A nil *Registry is valid and
// records nothing.
type Registry struct {
	reg  *prometheus.Registry
	vecs map[string]*prometheus.CounterVec
}

// NewRegistry returns a registry with every counter registered and no
// series yet.
func NewRegistry() *Registry {
	r := &Registry{
		reg:  prometheus.NewRegistry(),
		vecs: make(map[string]*prometheus.CounterVec, len(counters)),
	}
	for _, c := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: c.name, Help: c.help}, c.labels)
		r.reg.MustRegister(vec)
		r.vecs[c.name] = vec
	}
	return r
}

// Add increases the counter name{labels} by v. Unknown names and label
// sets that do not match the counter's label names are dropped.
func (r *Registry) Add(name string, labels Labels, v float64) {
	if r == nil {
		return
	}
	vec, ok := r.vecs[name]
	if !ok {
		return
	}
	c, err := vec.GetMetricWith(labels)
	if err != nil {
		return
	}
	c.Add(v)
}

// Inc increases the counter name{labels} by one.
func (r *Registry) Inc(name string, labels Labels) {
	r.Add(name, labels, 1)
}

// Value returns the current value of name{labels}, or zero for a series
// that was never touched. Reading does not create the series.
func (r *Registry) Value(name string, labels Labels) float64 {
	if r == nil {
		return 0
	}
	families, err := r.reg.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if sameLabels(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func sameLabels(pairs []*dto.LabelPair, labels Labels) bool {
	if len(pairs) != len(labels) {
		return false
	}
	for _, p := range pairs {
		if v, ok := labels[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

// Gatherer exposes the registry for scraping. A nil registry gathers
// nothing.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}
