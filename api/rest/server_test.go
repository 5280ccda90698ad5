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

package rest

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/logrange/httplog/pkg/store"
	"github.com/logrange/httplog/pkg/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, limit int) (*Server, string) {
	dir, err := ioutil.TempDir("", "restTest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	st, err := store.New(&store.Config{Dir: dir, LineLimit: limit, SyncWrites: true})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := NewServer()
	s.Store = st
	s.Config = &Config{ListenAddress: "127.0.0.1", MaxRequestSize: 1024}
	return s, dir
}

func do(s *Server, method, remoteAddr, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "/", strings.NewReader(body))
	r.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)
	return w
}

func assertResponse(t *testing.T, w *httptest.ResponseRecorder, code int, body string) {
	assert.Equal(t, code, w.Code)
	assert.Equal(t, body+"\n", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
}

func readFile(t *testing.T, fn string) string {
	data, err := ioutil.ReadFile(fn)
	require.NoError(t, err)
	return string(data)
}

func TestNotPost(t *testing.T) {
	s, dir := newTestServer(t, 10)
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodHead} {
		w := do(s, m, "10.0.0.5:3456", `{"channel":"doorbell","message":"m"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		if m != http.MethodHead {
			assertResponse(t, w, http.StatusOK, RespNotImplemented)
		}
	}
	fis, _ := ioutil.ReadDir(dir)
	assert.Empty(t, fis)
}

func TestPostWithTime(t *testing.T) {
	s, dir := newTestServer(t, 10)
	w := do(s, http.MethodPost, "10.0.0.5:3456", `{"channel":"doorbell","message":"ding","time":"2019-03-01T10:20:30.123Z"}`)
	assertResponse(t, w, http.StatusOK, RespQueued)
	assert.Equal(t, "2019-03-01T10:20:30.123Z,ding\n", readFile(t, filepath.Join(dir, "10.0.0.5.doorbell.log")))
}

func TestPostWithoutTime(t *testing.T) {
	s, dir := newTestServer(t, 10)
	w := do(s, http.MethodPost, "10.0.0.5:3456", `{"channel":"doorbell","message":"ding"}`)
	assertResponse(t, w, http.StatusOK, RespQueued)

	line := readFile(t, filepath.Join(dir, "10.0.0.5.doorbell.log"))
	e, ok := store.ParseLine(line)
	require.True(t, ok)
	assert.Equal(t, "ding", e.Message)
	assert.True(t, timestamp.IsValid(e.Timestamp), e.Timestamp)
}

func TestPostValidation(t *testing.T) {
	s, dir := newTestServer(t, 10)

	testBadRequest(t, s, `{"message":"ding"}`, RespBadChannel)
	testBadRequest(t, s, `{"channel":"","message":"ding"}`, RespBadChannel)
	testBadRequest(t, s, `{"channel":"../etc","message":"ding"}`, RespBadChannel)
	testBadRequest(t, s, `{"channel":"door bell","message":"ding"}`, RespBadChannel)
	testBadRequest(t, s, `{"channel":"doorbell"}`, RespEmptyMessage)
	testBadRequest(t, s, `{"channel":"doorbell","message":""}`, RespEmptyMessage)
	testBadRequest(t, s, `{"channel":"doorbell","message":"ding","time":""}`, RespBadTime)
	testBadRequest(t, s, `{"channel":"doorbell","message":"ding","time":"yesterday"}`, RespBadTime)
	testBadRequest(t, s, `{"channel":"doorbell","message":"ding","time":"2019-03-01T10:20:30,5Z"}`, RespBadTime)
	testBadRequest(t, s, `{"channel":"doorbell"`, RespMalformed)
	testBadRequest(t, s, `{"channel":5,"message":"ding"}`, RespMalformed)
	testBadRequest(t, s, `"doorbell"`, RespMalformed)

	// channel is checked first
	testBadRequest(t, s, `{"channel":"","message":"","time":"x"}`, RespBadChannel)
	testBadRequest(t, s, `{"channel":"doorbell","message":"","time":"x"}`, RespEmptyMessage)

	fis, _ := ioutil.ReadDir(dir)
	assert.Empty(t, fis)
}

func TestPostTooLongChannel(t *testing.T) {
	s, dir := newTestServer(t, 3)
	body := `{"channel":"` + strings.Repeat("c", 242) + `","message":"ding"}`
	for i := 0; i < 5; i++ {
		w := do(s, http.MethodPost, "10.0.0.5:3456", body)
		assertResponse(t, w, http.StatusBadRequest, RespBadChannel)
	}
	fis, _ := ioutil.ReadDir(dir)
	assert.Empty(t, fis)
}

func TestPostInvalidOrigin(t *testing.T) {
	s, _ := newTestServer(t, 10)
	w := do(s, http.MethodPost, "bad/host:3456", `{"channel":"doorbell","message":"ding"}`)
	assertResponse(t, w, http.StatusBadRequest, RespBadOrigin)
}

func TestPostTooLarge(t *testing.T) {
	s, _ := newTestServer(t, 10)
	body := `{"channel":"doorbell","message":"` + strings.Repeat("a", 2000) + `"}`
	w := do(s, http.MethodPost, "10.0.0.5:3456", body)
	assertResponse(t, w, http.StatusRequestEntityTooLarge, RespTooLarge)
}

func TestPostStorageFailure(t *testing.T) {
	s, dir := newTestServer(t, 10)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "10.0.0.5.doorbell.log"), 0755))
	w := do(s, http.MethodPost, "10.0.0.5:3456", `{"channel":"doorbell","message":"ding"}`)
	assertResponse(t, w, http.StatusInternalServerError, RespStoreFailed)
}

func TestPostStoreClosed(t *testing.T) {
	s, _ := newTestServer(t, 10)
	s.Store.Close()
	w := do(s, http.MethodPost, "10.0.0.5:3456", `{"channel":"doorbell","message":"ding"}`)
	assertResponse(t, w, http.StatusServiceUnavailable, RespShuttingDown)
}

func TestPostRollover(t *testing.T) {
	s, dir := newTestServer(t, 3)
	for i := 0; i < 4; i++ {
		w := do(s, http.MethodPost, "[::ffff:10.0.0.5]:3456", `{"channel":"doorbell","message":"ding","time":"2019-03-01"}`)
		assertResponse(t, w, http.StatusOK, RespQueued)
	}
	assert.Equal(t, strings.Repeat("2019-03-01,ding\n", 3), readFile(t, filepath.Join(dir, "10.0.0.5.doorbell.0.log")))
	assert.Equal(t, "2019-03-01,ding\n", readFile(t, filepath.Join(dir, "10.0.0.5.doorbell.log")))
}

func TestOriginOf(t *testing.T) {
	assert.Equal(t, "10.0.0.5", originOf("10.0.0.5:3456"))
	assert.Equal(t, "10.0.0.5", originOf("[::ffff:10.0.0.5]:3456"))
	assert.Equal(t, "__1", originOf("[::1]:3456"))
	assert.Equal(t, "fe80__1_eth0", originOf("[fe80::1%eth0]:3456"))
	assert.Equal(t, "10.0.0.5", originOf("10.0.0.5"))
	assert.True(t, store.IsValidName(originOf("[2001:db8::1]:80")))
}

func TestServerListens(t *testing.T) {
	s, dir := newTestServer(t, 10)
	require.NoError(t, s.Init(context.Background()))
	defer s.Shutdown()

	resp, err := http.Post("http://"+s.Addr().String()+"/", "application/json",
		strings.NewReader(`{"channel":"doorbell","message":"ding","time":"2019-03-01T10:20:30Z"}`))
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, RespQueued+"\n", string(body))
	assert.Equal(t, "2019-03-01T10:20:30Z,ding\n", readFile(t, filepath.Join(dir, "127.0.0.1.doorbell.log")))

	resp, err = http.Get("http://" + s.Addr().String() + "/anything")
	require.NoError(t, err)
	body, _ = ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, RespNotImplemented+"\n", string(body))
}

func testBadRequest(t *testing.T, s *Server, body, resp string) {
	w := do(s, http.MethodPost, "10.0.0.5:3456", body)
	assertResponse(t, w, http.StatusBadRequest, resp)
}
