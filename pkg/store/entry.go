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
	"strings"

	"github.com/logrange/httplog/pkg/timestamp"
)

type (
	// Entry is a log record. Timestamp is an ISO-8601 string and the Message
	// is an arbitrary non-empty text.
	Entry struct {
		Timestamp string
		Message   string
	}
)

var (
	msgEncoder = strings.NewReplacer("\\", "\\\\", "\n", "\\n", "\r", "\\r")
)

// NewEntry returns an Entry stamped by the current time
func NewEntry(msg string) Entry {
	return Entry{Timestamp: timestamp.Now(), Message: msg}
}

// Check validates the entry fields
func (e Entry) Check() error {
	if len(e.Message) == 0 {
		return ErrEmptyMessage
	}
	if !timestamp.IsValid(e.Timestamp) {
		return ErrInvalidTimestamp
	}
	return nil
}

// Line returns the entry representation in a segment file, which is
// "<timestamp>,<message>\n". Backslashes and line breaks of the message are
// escaped, so one entry always takes exactly one line.
func (e Entry) Line() []byte {
	msg := msgEncoder.Replace(e.Message)
	b := make([]byte, 0, len(e.Timestamp)+len(msg)+2)
	b = append(b, e.Timestamp...)
	b = append(b, ',')
	b = append(b, msg...)
	return append(b, '\n')
}

// ParseLine turns a segment file line (with or without the trailing line
// break) back to the Entry.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSuffix(line, "\n")
	idx := strings.IndexByte(line, ',')
	if idx < 0 {
		return Entry{}, false
	}
	return Entry{Timestamp: line[:idx], Message: DecodeMessage(line[idx+1:])}, true
}

// DecodeMessage reverses the message escaping done by Entry.Line()
func DecodeMessage(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case '\\':
			sb.WriteByte('\\')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
