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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{"a", "a"},
		{"", ""},
		{7, int64(7)},
		{int32(-3), int64(-3)},
		{uint16(9), int64(9)},
		{uint64(math.MaxUint64), float64(math.MaxUint64)},
		{float64(12), int64(12)},
		{1.5, 1.5},
		{json.Number("42"), int64(42)},
		{json.Number("4.25"), 4.25},
	}
	for _, tt := range tests {
		got, err := NormalizeKey(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestNormalizeKey_Invalid(t *testing.T) {
	for _, in := range []interface{}{nil, true, math.NaN(), []int{1}, map[string]int{}, json.Number("x")} {
		_, err := NormalizeKey(in)
		assert.ErrorIs(t, err, ErrInvalidKey, "%v", in)
	}
}

func TestIntegerKey(t *testing.T) {
	k, err := IntegerKey(float64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), k)

	for _, in := range []interface{}{0, -1, 1.5, "3"} {
		_, err := IntegerKey(in)
		assert.ErrorIs(t, err, ErrInvalidKey, "%v", in)
	}
}

func TestEncodeDecodeKey(t *testing.T) {
	tests := []struct {
		in      interface{}
		encoded string
		decoded interface{}
	}{
		{"1", `"1"`, "1"},
		{1, "1", int64(1)},
		{2.5, "2.5", 2.5},
		{`qu"ote`, `"qu\"ote"`, `qu"ote`},
	}
	for _, tt := range tests {
		s, err := EncodeKey(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.encoded, s)

		back, err := DecodeKey(s)
		require.NoError(t, err)
		assert.Equal(t, tt.decoded, back)
	}

	_, err := DecodeKey("not-a-key")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCollectionKeyOf(t *testing.T) {
	auto := Collection{Topic: "todos", KeyPath: "id", AutoIncrement: true}
	k, err := auto.KeyOf(Record{"id": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), k)

	_, err = auto.KeyOf(Record{"id": "5"})
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = auto.KeyOf(Record{})
	assert.ErrorIs(t, err, ErrInvalidKey)

	keyed := Collection{Topic: "notes", KeyPath: "slug"}
	k, err = keyed.KeyOf(Record{"slug": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", k)

	assert.Error(t, Collection{KeyPath: "id"}.Validate())
	assert.Error(t, Collection{Topic: "x"}.Validate())
	assert.NoError(t, auto.Validate())
}
