// Copyright 2018 The logrange Authors
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

package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// PidFile is a file which contains pid of the running process. The file is
// locked while the process is running, so another process could not
// acquire it.
type PidFile struct {
	fn string
	fl *flock.Flock
}

// NewPidFile creates new PidFile struct by the file name
func NewPidFile(fn string) *PidFile {
	return &PidFile{fn: fn}
}

// Name returns the pid file name
func (pf *PidFile) Name() string {
	return pf.fn
}

// Interrupt tries to read the pid file and interrupt the process by its Pid, if possible
func (pf *PidFile) Interrupt() (int, error) {
	pid, err := pf.ReadPid()
	if err != nil {
		return -1, err
	}

	if pid == -1 {
		return -1, fmt.Errorf("not running")
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("there is a process pid=%d, but could not access to the process: %v", pid, err)
	}

	if err = p.Signal(os.Interrupt); err != nil {
		return pid, fmt.Errorf("could not send signal to pid=%d: %v", pid, err)
	}
	return pid, nil
}

// ReadPid tries to read the pid file and returns pid value, if possible. It
// returns -1 if there is no pid file.
func (pf *PidFile) ReadPid() (int, error) {
	res, err := ioutil.ReadFile(pf.fn)
	if err != nil {
		return -1, nil
	}

	content := strings.TrimSpace(string(res))
	if len(content) == 0 {
		return -1, nil
	}
	if len(content) > 10 {
		return -1, fmt.Errorf("wrong content of %s", pf.fn)
	}

	pid, err := strconv.ParseInt(content, 10, 64)
	if err != nil {
		return -1, fmt.Errorf("could not parse content=\"%s\" of the file %s", content, pf.fn)
	}
	return int(pid), nil
}

// Lock tries to acquire the pid file and write the current process Id there.
// It returns an error if the file is locked by another process.
func (pf *PidFile) Lock() error {
	if pf.fl != nil {
		panic("Lock() must not be called twice")
	}

	plock := flock.New(pf.fn)
	l, err := plock.TryLock()
	if err != nil {
		return fmt.Errorf("could not get lock for %s: %v", pf.fn, err)
	}
	if !l {
		return fmt.Errorf("%s is locked, seems like another process is running", pf.fn)
	}

	if err := pf.writePid(); err != nil {
		plock.Unlock()
		return fmt.Errorf("could not write current pid to %s: %v", pf.fn, err)
	}
	pf.fl = plock
	return nil
}

// Unlock releases resources acquired by Lock.
func (pf *PidFile) Unlock() {
	if pf.fl == nil {
		panic("Must be locked!")
	}
	os.Remove(pf.fn)
	pf.fl.Unlock()
	pf.fl = nil
}

func (pf *PidFile) writePid() error {
	f, err := os.OpenFile(pf.fn, os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d", os.Getpid())
	return err
}
