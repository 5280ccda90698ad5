// Copyright 2018-2019 The logrange Authors
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

package server

import (
	"context"

	"github.com/jrivets/log4g"
	"github.com/logrange/httplog/api/rest"
	"github.com/logrange/httplog/pkg/metrics"
	"github.com/logrange/httplog/pkg/store"
	"github.com/logrange/linker"
	"github.com/pkg/errors"
)

// Start starts the httplog server using the configuration provided. It will
// stop it as soon as ctx is closed
func Start(ctx context.Context, cfg *Config) (err error) {
	log := log4g.GetLogger("server")
	if err := cfg.Check(); err != nil {
		return errors.Wrapf(err, "invalid configuration %s", cfg)
	}
	log.Info("Start with config:", cfg)

	injector, err := newInjector(cfg)
	if err != nil {
		return err
	}
	injector.SetLogger(log4g.GetLogger("injector"))

	// the injector panics if a component could not be initialized
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("could not start the server: %v", r)
		}
	}()
	injector.Init(ctx)

	<-ctx.Done()
	injector.Shutdown()
	log.Info("Server is stopped")
	return nil
}

func newInjector(cfg *Config) (*linker.Injector, error) {
	rcfg, err := cfg.RestConfig()
	if err != nil {
		return nil, err
	}

	injector := linker.New()
	injector.Register(
		linker.Component{Name: "", Value: cfg.StoreConfig()},
		linker.Component{Name: "", Value: rcfg},
		linker.Component{Name: "", Value: cfg.ExporterConfig()},
		linker.Component{Name: "", Value: store.NewStore()},
		linker.Component{Name: "", Value: rest.NewServer()},
		linker.Component{Name: "", Value: metrics.NewExporter()},
	)
	return injector, nil
}
