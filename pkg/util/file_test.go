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

package util

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFileId(t *testing.T) {
	fd, err := ioutil.TempFile("/tmp", "GetFileId_")
	if err != nil {
		t.Fatal(err)
	}

	defer func() {
		if fd != nil {
			fd.Close()
			os.Remove(fd.Name())
		}
	}()

	fi, err := fd.Stat()
	if err != nil {
		t.Fatal(err)
	}

	id := GetFileId(fd.Name(), fi)
	assert.True(t, strings.HasPrefix(id, fd.Name()+"_"))
	assert.Contains(t, id, fmt.Sprintf("_%v_", fi.Sys().(*syscall.Stat_t).Ino))

	// same name, another file
	fn := fd.Name()
	fd.Close()
	os.Remove(fn)
	fd, err = os.Create(fn)
	if err != nil {
		t.Fatal(err)
	}
	other := make([]byte, 10)
	fd.Write(other)
	fi2, err := os.Stat(fn)
	if err != nil {
		t.Fatal(err)
	}
	if os.SameFile(fi, fi2) {
		t.Skip("file system reused the inode")
	}
	assert.NotEqual(t, id, GetFileId(fn, fi2))
}

func TestSetFileExt(t *testing.T) {
	if s := SetFileExt("/a/b/c.ddd", ".idx"); "/a/b/c.idx" != s {
		t.Fatal("expecting \"/a/b/c.idx\" but got ", s)
	}

	if s := SetFileExt("/a/b/c.ddd", "idx"); "/a/b/c.idx" != s {
		t.Fatal("expecting \"/a/b/c.idx\" but got ", s)
	}
	if s := SetFileExt("10.0.0.5.doorbell.log", ""); "10.0.0.5.doorbell" != s {
		t.Fatal("expecting \"10.0.0.5.doorbell\" but got ", s)
	}
}

func TestEnsureDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "EnsureDir_")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	d := filepath.Join(dir, "a", "b")
	assert.NoError(t, EnsureDir(d))
	assert.NoError(t, EnsureDir(d))
	fi, err := os.Stat(d)
	assert.NoError(t, err)
	assert.True(t, fi.IsDir())

	fn := filepath.Join(dir, "file")
	assert.NoError(t, ioutil.WriteFile(fn, []byte("data"), 0644))
	assert.Error(t, EnsureDir(fn))
}

func TestCountLines(t *testing.T) {
	testCountLines(t, "", 0)
	testCountLines(t, "\n", 1)
	testCountLines(t, "a", 1)
	testCountLines(t, "a\nb\n", 2)
	testCountLines(t, "a\nb", 2)
	testCountLines(t, strings.Repeat("line\n", 20000), 20000)
}

func testCountLines(t *testing.T, s string, exp int) {
	n, err := CountLines(strings.NewReader(s))
	if err != nil {
		t.Fatal("must not be error, but err=", err)
	}
	if n != exp {
		t.Fatal("expecting ", exp, " lines, but got ", n)
	}
}
