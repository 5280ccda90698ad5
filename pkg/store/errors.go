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

	"github.com/pkg/errors"
)

var (
	// ErrInvalidKey is returned when origin or channel of a Key doesn't
	// match the allowed name pattern
	ErrInvalidKey = fmt.Errorf("invalid or empty key")

	// ErrEmptyMessage is returned when an Entry has no message
	ErrEmptyMessage = fmt.Errorf("empty message")

	// ErrInvalidTimestamp is returned when an Entry timestamp is empty or is
	// not an ISO-8601 one
	ErrInvalidTimestamp = fmt.Errorf("invalid ISO 8601 or empty timestamp")
)

// StorageError describes a failed file-system operation. An entry which
// append returned the error is not considered as recorded.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (se *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", se.Op, se.Path, se.Err)
}

// Cause returns the underlying error, it makes StorageError compatible with
// errors.Cause()
func (se *StorageError) Cause() error {
	return se.Err
}

// Unwrap returns the underlying error
func (se *StorageError) Unwrap() error {
	return se.Err
}

// IsValidationError returns whether err is one of the errors which are
// reported before any I/O is done.
func IsValidationError(err error) bool {
	switch errors.Cause(err) {
	case ErrInvalidKey, ErrEmptyMessage, ErrInvalidTimestamp:
		return true
	}
	return false
}

// IsStorageError returns whether err is, or wraps, a *StorageError
func IsStorageError(err error) bool {
	for err != nil {
		if _, ok := err.(*StorageError); ok {
			return true
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}
