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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// GetFileId generates an id by file name and its info. The id can help to identify
// whether the file behind a name was replaced or not. For example, if two identifiers
// calculated for same file name are different, we assume the file was renamed
// or removed and another one was created under the name between the first and
// the second identifiers calculations.
func GetFileId(file string, info os.FileInfo) string {
	stat := info.Sys().(*syscall.Stat_t)
	return fmt.Sprintf("%s_%v_%v", file, stat.Ino, stat.Dev)
}

// SetFileExt changes file extension to ext. ext can be empty, then the result
// will have no extension
func SetFileExt(file, ext string) string {
	if len(ext) > 0 && ext[0] != '.' {
		ext = "." + ext
	}
	e := filepath.Ext(file)
	return file[:len(file)-len(e)] + ext
}

// EnsureDir checks whether dir exists and creates it with all parents if
// it doesn't. It returns an error if dir exists, but it is not a directory.
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("%s exists, but it is not a directory", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// CountLines reads r till the end and returns number of '\n' symbols found.
// A trailing piece of data without the line separator is counted as a line as well.
func CountLines(r io.Reader) (int, error) {
	var (
		buf   [32 * 1024]byte
		cnt   int
		last  byte = '\n'
		total int64
	)
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			cnt += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return cnt, err
		}
	}
	if total > 0 && last != '\n' {
		cnt++
	}
	return cnt, nil
}
