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

package store

import (
	"fmt"
	"time"
)

type (
	// Config struct defines the Store settings
	Config struct {
		// Dir contains the directory where segment files are stored
		Dir string

		// LineLimit defines number of lines in an active segment which
		// causes the segment rollover
		LineLimit int

		// SyncWrites requires every append to be synced to the storage
		// before the append is reported successful
		SyncWrites bool

		// IdleTimeout defines how long an active segment file handle can be
		// unused before it is closed. 0 disables closing idle handles.
		IdleTimeout time.Duration
	}
)

// Check returns an error if the config settings are not acceptable
func (c *Config) Check() error {
	if len(c.Dir) == 0 {
		return fmt.Errorf("Dir must not be empty")
	}
	if c.LineLimit <= 0 {
		return fmt.Errorf("invalid LineLimit=%d, must be > 0", c.LineLimit)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout=%s, must be >= 0", c.IdleTimeout)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("{Dir=%s, LineLimit=%d, SyncWrites=%t, IdleTimeout=%s}", c.Dir, c.LineLimit, c.SyncWrites, c.IdleTimeout)
}
