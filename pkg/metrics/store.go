// Copyright 2019 The logrange Authors
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

package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AppendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "httplog_appends_total",
		Help: "Total number of append attempts by result (ok, invalid, error)",
	}, []string{"result"})

	AppendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "httplog_append_latency_seconds",
		Help:    "Histogram of the time spent for writing an entry, including rollover if any",
		Buckets: prometheus.DefBuckets,
	})

	RolloversTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "httplog_rollovers_total",
		Help: "Total number of segments rotated",
	})

	RolloverFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "httplog_rollover_failures_total",
		Help: "Total number of rollover attempts failed",
	})

	OpenSegments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "httplog_open_segments",
		Help: "Current number of active segments with an open file handle",
	})

	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "httplog_requests_total",
		Help: "Total number of HTTP requests served by status code",
	}, []string{"code"})
)

const (
	ResultOk      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
)
