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
	"io"
	"os"
	"sync"
	"time"

	"github.com/logrange/httplog/pkg/metrics"
	"github.com/logrange/httplog/pkg/util"
)

type (
	// segment owns the active segment file of one key. All operations with
	// the file are done holding lock.
	segment struct {
		lock   sync.Mutex
		path   string
		file   *os.File
		fileId string
		lines  int
		used   time.Time

		// retired is set when the segment is removed from the Store, the
		// segment must not be used anymore
		retired bool
	}
)

// rename moves the active segment file on rollover
var rename = os.Rename

func newSegment(path string) *segment {
	return &segment{path: path}
}

// ensureOpen opens the active segment file if it is not opened yet, or if
// the file was replaced by another one under the same name. The lines counter
// is re-calculated every time the file is opened.
func (sg *segment) ensureOpen() error {
	if sg.file != nil {
		fi, err := os.Stat(sg.path)
		if err == nil && util.GetFileId(sg.path, fi) == sg.fileId {
			return nil
		}
		// renamed or removed by someone else, will continue with new one
		sg.closeFile()
	}

	f, err := os.OpenFile(sg.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return &StorageError{Op: "open", Path: sg.path, Err: err}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return &StorageError{Op: "stat", Path: sg.path, Err: err}
	}

	lines, err := util.CountLines(io.NewSectionReader(f, 0, fi.Size()))
	if err != nil {
		f.Close()
		return &StorageError{Op: "read", Path: sg.path, Err: err}
	}

	sg.file = f
	sg.fileId = util.GetFileId(sg.path, fi)
	sg.lines = lines
	metrics.OpenSegments.Inc()
	return nil
}

// write appends the line to the active segment. In case of an error the file
// is closed, so the lines counter will be re-calculated on next write.
func (sg *segment) write(line []byte, sync bool) error {
	if err := sg.ensureOpen(); err != nil {
		return err
	}
	sg.used = time.Now()

	if _, err := sg.file.Write(line); err != nil {
		sg.closeFile()
		return &StorageError{Op: "write", Path: sg.path, Err: err}
	}

	if sync {
		if err := sg.file.Sync(); err != nil {
			sg.closeFile()
			return &StorageError{Op: "sync", Path: sg.path, Err: err}
		}
	}
	sg.lines++
	return nil
}

// rollover renames the active segment file to the rotated one with the lowest
// free generation number. It returns the new name of the file.
func (sg *segment) rollover() (string, error) {
	sg.closeFile()

	if _, err := os.Lstat(sg.path); err != nil {
		if os.IsNotExist(err) {
			return "", util.ErrNotFound
		}
		return "", &StorageError{Op: "stat", Path: sg.path, Err: err}
	}

	var rp string
	for gen := 0; ; gen++ {
		rp = rotatedPath(sg.path, gen)
		_, err := os.Lstat(rp)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", &StorageError{Op: "scan", Path: rp, Err: err}
		}
	}

	if err := rename(sg.path, rp); err != nil {
		return "", &StorageError{Op: "rename", Path: sg.path, Err: err}
	}
	sg.lines = 0
	return rp, nil
}

// idle returns whether the segment was not used since the time provided
func (sg *segment) idle(since time.Time) bool {
	return sg.used.Before(since)
}

func (sg *segment) closeFile() error {
	if sg.file == nil {
		return nil
	}
	err := sg.file.Close()
	sg.file = nil
	sg.fileId = ""
	metrics.OpenSegments.Dec()
	return err
}
