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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidKey is returned for values that cannot identify a record.
var ErrInvalidKey = errors.New("invalid key")

// NormalizeKey converts a key into its canonical form: a string, an int64
// for integral numbers, or a float64 for the remaining numbers.
func NormalizeKey(key interface{}) (interface{}, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case int:
		return int64(k), nil
	case int8:
		return int64(k), nil
	case int16:
		return int64(k), nil
	case int32:
		return int64(k), nil
	case int64:
		return k, nil
	case uint:
		return uintKey(uint64(k))
	case uint8:
		return int64(k), nil
	case uint16:
		return int64(k), nil
	case uint32:
		return int64(k), nil
	case uint64:
		return uintKey(k)
	case float32:
		return floatKey(float64(k))
	case float64:
		return floatKey(k)
	case json.Number:
		if i, err := k.Int64(); err == nil {
			return i, nil
		}
		f, err := k.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
		}
		return floatKey(f)
	case nil:
		return nil, fmt.Errorf("%w: key is missing", ErrInvalidKey)
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, key)
	}
}

func uintKey(u uint64) (interface{}, error) {
	if u > math.MaxInt64 {
		return float64(u), nil
	}
	return int64(u), nil
}

func floatKey(f float64) (interface{}, error) {
	if math.IsNaN(f) {
		return nil, fmt.Errorf("%w: NaN", ErrInvalidKey)
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f), nil
	}
	return f, nil
}

// IntegerKey normalizes key and requires a positive integer, the only keys
// a generated sequence can hold.
func IntegerKey(key interface{}) (int64, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return 0, err
	}
	i, ok := k.(int64)
	if !ok || i < 1 {
		return 0, fmt.Errorf("%w: %v is not a positive integer", ErrInvalidKey, key)
	}
	return i, nil
}

// EncodeKey renders a key as text. Strings are JSON quoted so that "1" and 1
// never collide.
func EncodeKey(key interface{}) (string, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	switch v := k.(type) {
	case string:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64), nil
	}
}

// DecodeKey reverses EncodeKey.
func DecodeKey(s string) (interface{}, error) {
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return out, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return f, nil
}
