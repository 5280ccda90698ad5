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

import (
	"context"
	"io/ioutil"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterDisabled(t *testing.T) {
	e := NewExporter()
	e.Config = &ExporterConfig{}
	require.NoError(t, e.Init(context.Background()))
	assert.Nil(t, e.Addr())
	e.Shutdown()
}

func TestExporterServesMetrics(t *testing.T) {
	e := NewExporter()
	e.Config = &ExporterConfig{Address: "127.0.0.1:0"}
	require.NoError(t, e.Init(context.Background()))
	defer e.Shutdown()

	RolloversTotal.Inc()
	resp, err := http.Get("http://" + e.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "httplog_rollovers_total"))
}

func TestExporterListenError(t *testing.T) {
	e := NewExporter()
	e.Config = &ExporterConfig{Address: "127.0.0.1:-1"}
	assert.Error(t, e.Init(context.Background()))
}
