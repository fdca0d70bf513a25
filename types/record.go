/*
 * Copyright 2025 tomoncle.
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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Record is a structured value stored in a collection. It is persisted as
// JSON text by every engine.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without returns a copy of the record lacking the given field.
func (r Record) Without(field string) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record)
	}
	delete(out, field)
	return out
}

// With returns a copy of the record with field set to value.
func (r Record) With(field string, value interface{}) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, 1)
	}
	out[field] = value
	return out
}

// Value implements driver.Valuer. JSON is handed to the driver as text so
// that text columns accept it on every dialect.
func (r Record) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *Record) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = make(Record)
		return nil
	case []byte:
		return r.UnmarshalBytes(v)
	case string:
		return r.UnmarshalBytes([]byte(v))
	default:
		return fmt.Errorf("record: unsupported scan type %T", value)
	}
}

// MarshalBytes encodes the record as JSON.
func (r Record) MarshalBytes() ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

// UnmarshalBytes decodes JSON into the record, replacing its content.
func (r *Record) UnmarshalBytes(b []byte) error {
	out := make(Record)
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
	}
	*r = out
	return nil
}
