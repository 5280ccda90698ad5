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

// Package rest contains the HTTP ingress of the service. The server accepts
// JSON encoded entries in POST requests and appends them to the store under
// the key made of the client address and the channel name.
package rest

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrivets/log4g"
	"github.com/logrange/httplog/pkg/metrics"
	"github.com/logrange/httplog/pkg/store"
	"github.com/logrange/httplog/pkg/timestamp"
	"github.com/logrange/httplog/pkg/util"
	"github.com/pkg/errors"
)

type (
	// Config struct defines the HTTP listener settings
	Config struct {
		// ListenAddress is the host the server listens on
		ListenAddress string

		// ListenPort is the port the server listens on, 0 picks a free one
		ListenPort int

		// MaxRequestSize limits size of a request body in bytes
		MaxRequestSize int64
	}

	// Server struct receives entries over HTTP and writes them to the Store
	Server struct {
		Store  *store.Store `inject:""`
		Config *Config      `inject:""`

		logger log4g.Logger
		srv    *http.Server
		addr   net.Addr
	}

	// request is the expected body of a POST request
	request struct {
		Channel string  `json:"channel"`
		Message string  `json:"message"`
		Time    *string `json:"time"`
	}
)

// Response bodies, every one is followed by the line break
const (
	RespNotImplemented = "Not implemented yet."
	RespQueued         = "Message queued."
	RespBadChannel     = "Invalid or empty channel name."
	RespEmptyMessage   = "Empty message."
	RespBadTime        = "Invalid ISO 8601 or empty time."
	RespBadOrigin      = "Invalid origin address."
	RespMalformed      = "Malformed JSON body."
	RespTooLarge       = "Request body is too large."
	RespStoreFailed    = "Failed to store message."
	RespShuttingDown   = "Service is shutting down."
)

// DefaultMaxRequestSize is used when Config.MaxRequestSize is not positive
const DefaultMaxRequestSize = 64 * 1024

// NewServer creates new Server instance
func NewServer() *Server {
	s := new(Server)
	s.logger = log4g.GetLogger("rest.Server")
	return s
}

// Init provides an implementaion of linker.Initializer interface. It starts
// listening for incoming connections.
func (s *Server) Init(ctx context.Context) error {
	hp := net.JoinHostPort(s.Config.ListenAddress, strconv.Itoa(s.Config.ListenPort))
	ln, err := net.Listen("tcp", hp)
	if err != nil {
		return errors.Wrapf(err, "could not listen %s", hp)
	}
	s.addr = ln.Addr()
	s.srv = &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server stopped, err=", err)
		}
	}()
	s.logger.Info("Server running at http://", s.addr, "/")
	return nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown provides implementation for linker.Shutdowner interface
func (s *Server) Shutdown() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("Shutdown(): err=", err)
	}
	s.srv = nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respond(w, http.StatusOK, RespNotImplemented)
		return
	}

	logger := s.logger.WithId("{" + uuid.New().String() + "}").(log4g.Logger)
	code, resp := s.ingest(logger, w, r)
	s.respond(w, code, resp)
}

func (s *Server) ingest(logger log4g.Logger, w http.ResponseWriter, r *http.Request) (int, string) {
	max := s.Config.MaxRequestSize
	if max <= 0 {
		max = DefaultMaxRequestSize
	}

	var req request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, max))
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			logger.Warn("Request from ", r.RemoteAddr, " is larger than ", max, " bytes")
			return http.StatusRequestEntityTooLarge, RespTooLarge
		}
		logger.Debug("Could not decode request from ", r.RemoteAddr, ", err=", err)
		return http.StatusBadRequest, RespMalformed
	}

	key := store.Key{Origin: originOf(r.RemoteAddr), Channel: req.Channel}
	entry := store.Entry{Message: req.Message}
	if resp := validate(&req, key); resp != "" {
		metrics.AppendsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		logger.Debug("Rejecting request from ", r.RemoteAddr, ": ", resp)
		return http.StatusBadRequest, resp
	}
	if req.Time != nil {
		entry.Timestamp = *req.Time
	} else {
		entry.Timestamp = timestamp.Now()
	}

	err := s.Store.Append(key, entry)
	if err == nil {
		logger.Debug("Successfully appended entry to ", key)
		return http.StatusOK, RespQueued
	}

	switch errors.Cause(err) {
	case store.ErrInvalidKey:
		return http.StatusBadRequest, RespBadChannel
	case store.ErrEmptyMessage:
		return http.StatusBadRequest, RespEmptyMessage
	case store.ErrInvalidTimestamp:
		return http.StatusBadRequest, RespBadTime
	case util.ErrWrongState:
		return http.StatusServiceUnavailable, RespShuttingDown
	}
	logger.Error("Failed to append entry to ", key, ". Error: ", err)
	return http.StatusInternalServerError, RespStoreFailed
}

// validate checks the request in the order the errors are reported. It
// returns the response text for the first failed check, or an empty string.
func validate(req *request, key store.Key) string {
	if !store.IsValidName(req.Channel) {
		return RespBadChannel
	}
	if len(req.Message) == 0 {
		return RespEmptyMessage
	}
	if req.Time != nil && !timestamp.IsValid(*req.Time) {
		return RespBadTime
	}
	if !store.IsValidName(key.Origin) {
		return RespBadOrigin
	}
	return ""
}

func (s *Server) respond(w http.ResponseWriter, code int, msg string) {
	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	io.WriteString(w, msg+"\n")
}

var originReplacer = strings.NewReplacer(":", "_", "%", "_")

// originOf turns the remote address of a connection to the origin part of
// a store.Key. IPv4-mapped IPv6 addresses are turned to IPv4 ones, symbols
// not allowed in file names are substituted.
func originOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if a, err := netip.ParseAddr(host); err == nil {
		host = a.Unmap().String()
	}
	return originReplacer.Replace(host)
}
