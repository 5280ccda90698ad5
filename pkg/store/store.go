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

// Package store contains the append-only channel log store. Every Key has
// its own active segment file, which is renamed to a numbered rotated segment
// when the configured number of lines is reached.
//
// Operations for one Key are serialized, operations for different keys don't
// share any lock. The Store doesn't coordinate with other processes, only one
// process must write to the directory at a time.
package store

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jrivets/log4g"
	"github.com/logrange/httplog/pkg/metrics"
	"github.com/logrange/httplog/pkg/util"
	"github.com/pkg/errors"
)

type (
	// Store struct provides Append and Rollover operations over segment files
	Store struct {
		Config *Config `inject:""`

		logger log4g.Logger
		state  int32

		// segments contains Key.String():*segment pairs
		segments sync.Map

		closedCh chan struct{}
		wg       sync.WaitGroup
	}
)

const (
	stateNew = iota
	stateStarted
	stateClosed
)

// NewStore creates new Store instance. The Config field must be set before
// Init() is called.
func NewStore() *Store {
	s := new(Store)
	s.logger = log4g.GetLogger("store.Store")
	s.closedCh = make(chan struct{})
	return s
}

// New creates and initializes new Store with the cfg provided.
func New(cfg *Config) (*Store, error) {
	s := NewStore()
	s.Config = cfg
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Init provides an implementaion of linker.Initializer interface
func (s *Store) Init(ctx context.Context) error {
	if s.Config == nil {
		return errors.New("store config is not provided")
	}
	if err := s.Config.Check(); err != nil {
		return errors.Wrapf(err, "invalid store config %s", s.Config)
	}
	if err := util.EnsureDir(s.Config.Dir); err != nil {
		return errors.Wrapf(err, "it seems like %s dir doesn't exist, and it is not possible to create it", s.Config.Dir)
	}
	if !atomic.CompareAndSwapInt32(&s.state, stateNew, stateStarted) {
		return util.ErrWrongState
	}

	if s.Config.IdleTimeout > 0 {
		s.wg.Add(1)
		go s.sweeper(s.Config.IdleTimeout)
	}
	s.logger.Info("Started with ", s.Config)
	return nil
}

// Shutdown provides implementation for linker.Shutdowner interface
func (s *Store) Shutdown() {
	s.Close()
}

// Close closes all opened segment files. The Store cannot be used after the
// call.
func (s *Store) Close() error {
	if !atomic.CompareAndSwapInt32(&s.state, stateStarted, stateClosed) {
		return util.ErrWrongState
	}
	close(s.closedCh)
	s.wg.Wait()

	cnt := 0
	s.segments.Range(func(k, v interface{}) bool {
		sg := v.(*segment)
		sg.lock.Lock()
		if err := sg.closeFile(); err != nil {
			s.logger.Warn("Close(): could not close ", sg.path, ", err=", err)
		}
		sg.retired = true
		sg.lock.Unlock()
		s.segments.Delete(k)
		cnt++
		return true
	})
	s.logger.Info("Close(): ", cnt, " segment(s) closed")
	return nil
}

// Append writes the entry e to the active segment of the key. The entry
// is considered recorded only if nil is returned. If the segment reaches the
// configured line limit, it is rotated before the call returns. A rollover
// failure doesn't affect the append result, the rollover will be retried by
// next append for the key.
func (s *Store) Append(key Key, e Entry) error {
	if err := key.Check(); err != nil {
		metrics.AppendsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return err
	}
	if err := e.Check(); err != nil {
		metrics.AppendsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return err
	}

	start := time.Now()
	sg, err := s.acquire(key)
	if err != nil {
		return err
	}
	defer sg.lock.Unlock()

	if err := sg.write(e.Line(), s.Config.SyncWrites); err != nil {
		metrics.AppendsTotal.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error("Failed to append entry to ", sg.path, ". Error: ", err)
		return err
	}
	metrics.AppendsTotal.WithLabelValues(metrics.ResultOk).Inc()

	if sg.lines >= s.Config.LineLimit {
		s.logger.Debug("Line limit reached for ", sg.path, ", lines=", sg.lines, ". Rolling over.")
		s.rollover(sg)
	}
	metrics.AppendLatency.Observe(time.Since(start).Seconds())
	return nil
}

// Rollover rotates the active segment of the key regardless of its size.
// It returns the path of the rotated segment, or util.ErrNotFound if the key
// has no active segment.
func (s *Store) Rollover(key Key) (string, error) {
	if err := key.Check(); err != nil {
		return "", err
	}

	sg, err := s.acquire(key)
	if err != nil {
		return "", err
	}
	defer sg.lock.Unlock()

	return s.rollover(sg)
}

// ActivePath returns the active segment file name for the key
func (s *Store) ActivePath(key Key) string {
	return key.activePath(s.Config.Dir)
}

func (s *Store) rollover(sg *segment) (string, error) {
	rp, err := sg.rollover()
	if err != nil {
		if err != util.ErrNotFound {
			metrics.RolloverFailures.Inc()
			s.logger.Error("Could not roll over ", sg.path, ", err=", err)
		}
		return "", err
	}
	metrics.RolloversTotal.Inc()
	if fi, err := os.Stat(rp); err == nil {
		s.logger.Info("Rolled over ", sg.path, " to ", rp, ", size=", humanize.Bytes(uint64(fi.Size())))
	} else {
		s.logger.Info("Rolled over ", sg.path, " to ", rp)
	}
	return rp, nil
}

// acquire returns the locked segment for the key
func (s *Store) acquire(key Key) (*segment, error) {
	path := key.activePath(s.Config.Dir)
	for {
		if atomic.LoadInt32(&s.state) != stateStarted {
			return nil, util.ErrWrongState
		}

		v, _ := s.segments.LoadOrStore(path, newSegment(path))
		sg := v.(*segment)
		sg.lock.Lock()
		if !sg.retired {
			if atomic.LoadInt32(&s.state) != stateStarted {
				sg.lock.Unlock()
				return nil, util.ErrWrongState
			}
			return sg, nil
		}
		// the segment was removed by sweeper, or by Close
		sg.lock.Unlock()
	}
}

// sweeper closes and forgets segments which were not used for idleTO
func (s *Store) sweeper(idleTO time.Duration) {
	defer s.wg.Done()

	period := idleTO / 2
	if period < 10*time.Millisecond {
		period = 10 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-s.closedCh:
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-idleTO))
		}
	}
}

func (s *Store) sweep(since time.Time) {
	cnt := 0
	s.segments.Range(func(k, v interface{}) bool {
		sg := v.(*segment)
		sg.lock.Lock()
		if !sg.retired && sg.idle(since) {
			if err := sg.closeFile(); err != nil {
				s.logger.Warn("sweep(): could not close ", sg.path, ", err=", err)
			}
			sg.retired = true
			s.segments.Delete(k)
			cnt++
		}
		sg.lock.Unlock()
		return true
	})
	if cnt > 0 {
		s.logger.Debug("sweep(): ", cnt, " idle segment(s) closed")
	}
}
