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

import "fmt"

// DefaultKeyPath is the record field used as identifier when none is set.
const DefaultKeyPath = "id"

// Collection describes a named bucket of records.
type Collection struct {
	Topic         string `json:"topic" yaml:"topic"`
	KeyPath       string `json:"key_path" yaml:"key_path"`
	AutoIncrement bool   `json:"auto_increment" yaml:"auto_increment"`
}

// Validate reports descriptor errors.
func (c Collection) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("collection topic cannot be empty")
	}
	if c.KeyPath == "" {
		return fmt.Errorf("collection %q: key path cannot be empty", c.Topic)
	}
	return nil
}

// KeyOf extracts and normalizes the key stored at the collection's key path.
func (c Collection) KeyOf(record Record) (interface{}, error) {
	raw, ok := record[c.KeyPath]
	if !ok {
		return nil, fmt.Errorf("%w: record has no %q field", ErrInvalidKey, c.KeyPath)
	}
	if c.AutoIncrement {
		return IntegerKey(raw)
	}
	return NormalizeKey(raw)
}
