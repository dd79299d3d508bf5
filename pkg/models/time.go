/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimeFormat is the single serialised form for timestamps. It is fixed width
// so that text columns sort chronologically, and it always ends in Z.
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

var errUnsupportedTimeValue = errors.New("unsupported time value")

// naiveLayouts are accepted when reading legacy values that carry no zone.
// They are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UTCTime is a timestamp that is always held, stored and serialised in UTC.
type UTCTime struct {
	time.Time
}

// NewUTCTime normalises t to UTC.
func NewUTCTime(t time.Time) UTCTime {
	return UTCTime{Time: t.UTC()}
}

// NowUTC returns the current time as a UTCTime.
func NowUTC() UTCTime {
	return NewUTCTime(time.Now())
}

// UTCPtr returns a pointer to the UTC form of t.
func UTCPtr(t time.Time) *UTCTime {
	u := NewUTCTime(t)

	return &u
}

// String renders the timestamp with an explicit UTC marker.
func (t UTCTime) String() string {
	return t.UTC().Format(TimeFormat)
}

func (t UTCTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	return json.Marshal(t.String())
}

func (t *UTCTime) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	if s == nil || *s == "" {
		t.Time = time.Time{}

		return nil
	}

	parsed, err := ParseUTC(*s)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// Value implements driver.Valuer.
func (t UTCTime) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}

	return t.String(), nil
}

// Scan implements sql.Scanner. Values without zone information are read as UTC.
func (t *UTCTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}

		return nil
	case time.Time:
		t.Time = v.UTC()

		return nil
	case string:
		parsed, err := ParseUTC(v)
		if err != nil {
			return err
		}

		*t = parsed

		return nil
	case []byte:
		parsed, err := ParseUTC(string(v))
		if err != nil {
			return err
		}

		*t = parsed

		return nil
	default:
		return fmt.Errorf("%w: %T", errUnsupportedTimeValue, src)
	}
}

// ParseUTC parses RFC 3339 timestamps and zone-less legacy timestamps.
func ParseUTC(s string) (UTCTime, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewUTCTime(parsed), nil
	}

	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NewUTCTime(parsed), nil
		}
	}

	return UTCTime{}, fmt.Errorf("%w: %q", errUnsupportedTimeValue, s)
}
