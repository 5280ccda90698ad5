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

// Package timestamp contains ISO-8601 validation used for client-supplied
// entry times, and the layout used for server-generated ones.
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the layout of server-generated timestamps. It is the ISO-8601
// extended format in UTC with milliseconds, e.g. 2019-03-01T10:20:30.123Z
const Layout = "2006-01-02T15:04:05.000Z"

// layouts contains the ISO-8601 forms accepted by Parse. Fractional seconds
// are accepted after the seconds field for any layout with seconds.
var layouts = []string{
	// extended format
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",

	// basic format
	"20060102T150405Z0700",
	"20060102T150405Z07",
	"20060102T150405",
	"20060102",
}

// Now returns the current UTC time formatted by Layout
func Now() string {
	return Format(time.Now())
}

// Format returns t in UTC, formatted by Layout
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse checks whether s is an ISO-8601 date or date-time and returns the
// time it represents. Times without zone are treated as UTC. Comma decimal
// separators are not accepted, the comma separates fields in a log line.
func Parse(s string) (time.Time, error) {
	if len(s) == 0 {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if strings.ContainsAny(s, ", \t\r\n") {
		return time.Time{}, fmt.Errorf("timestamp %q contains not allowed symbols", s)
	}

	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO 8601 timestamp", s)
}

// IsValid returns whether s could be parsed by Parse
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
