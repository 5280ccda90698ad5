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

// Package metrics contains the prometheus collectors of the service and the
// exporter which serves them.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/jrivets/log4g"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type (
	// ExporterConfig defines where the exporter listens. Empty Address
	// disables the exporter.
	ExporterConfig struct {
		Address string
	}

	// Exporter serves collected metrics over HTTP on /metrics
	Exporter struct {
		Config *ExporterConfig `inject:""`

		logger log4g.Logger
		srv    *http.Server
		addr   net.Addr
	}
)

func init() {
	prometheus.MustRegister(AppendsTotal, AppendLatency, RolloversTotal, RolloverFailures, OpenSegments, RequestsTotal)
}

// NewExporter creates new Exporter instance
func NewExporter() *Exporter {
	e := new(Exporter)
	e.logger = log4g.GetLogger("metrics.Exporter")
	return e
}

// Init provides an implementaion of linker.Initializer interface
func (e *Exporter) Init(ctx context.Context) error {
	if e.Config == nil || e.Config.Address == "" {
		e.logger.Info("No address for metrics exporter, it is disabled.")
		return nil
	}

	ln, err := net.Listen("tcp", e.Config.Address)
	if err != nil {
		return errors.Wrapf(err, "could not listen %s for the metrics exporter", e.Config.Address)
	}
	e.addr = ln.Addr()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	e.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := e.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics exporter stopped, err=", err)
		}
	}()
	e.logger.Info("Prometheus exporter listening on ", e.addr)
	return nil
}

// Addr returns the address the exporter listens on, or nil if it is disabled
func (e *Exporter) Addr() net.Addr {
	return e.addr
}

// Shutdown provides implementation for linker.Shutdowner interface
func (e *Exporter) Shutdown() {
	if e.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.srv.Shutdown(ctx); err != nil {
		e.logger.Warn("Shutdown(): err=", err)
	}
	e.srv = nil
}
