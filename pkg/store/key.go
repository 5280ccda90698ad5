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
	"path/filepath"
	"regexp"

	"github.com/logrange/httplog/pkg/util"
)

type (
	// Key identifies a log: Origin is normally the client address and
	// Channel is the name provided by the client.
	Key struct {
		Origin  string
		Channel string
	}
)

// ActiveExt is the extension of every segment file
const ActiveExt = ".log"

const (
	// maxFileNameLen is the file name length limit of common file-systems
	maxFileNameLen = 255

	// MaxKeyLen is the longest Key.String() accepted. The rotated segment
	// name of such a key, with any generation number, fits maxFileNameLen.
	MaxKeyLen = maxFileNameLen - len(".9223372036854775807") - len(ActiveExt)
)

var namePattern = regexp.MustCompile(`^[\w\-.]+$`)

// IsValidName returns whether s is allowed to be used as an origin or a
// channel name.
func IsValidName(s string) bool {
	return len(s) > 0 && namePattern.MatchString(s)
}

// Check returns ErrInvalidKey if either part of the key is not valid, or
// the key is too long to be a part of a file name.
func (k Key) Check() error {
	if !IsValidName(k.Origin) || !IsValidName(k.Channel) {
		return ErrInvalidKey
	}
	if len(k.Origin)+1+len(k.Channel) > MaxKeyLen {
		return ErrInvalidKey
	}
	return nil
}

// String returns the file name base of the key
func (k Key) String() string {
	return k.Origin + "." + k.Channel
}

// activePath returns path of the active segment of k in dir
func (k Key) activePath(dir string) string {
	return filepath.Join(dir, k.String()+ActiveExt)
}

// rotatedPath returns path of the rotated segment with the generation gen
// for the active segment path ap
func rotatedPath(ap string, gen int) string {
	return fmt.Sprintf("%s.%d%s", util.SetFileExt(ap, ""), gen, ActiveExt)
}
