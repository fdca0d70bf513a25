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

package capacity

import (
	"math"
	"strconv"

	"github.com/tomoncle/webdb/types"
)

// Size is a byte count expressed in its largest fitting unit.
type Size struct {
	Converted float64    `json:"converted"`
	Units     types.Unit `json:"units"`
}

// Convert classifies n into the largest unit whose scaled value stays below
// 1024. Anything at or beyond 1024^5 is reported in PB. Values converted out
// of bytes are rounded to two decimals.
func Convert(n float64) Size {
	if n < 1024 {
		return Size{Converted: n, Units: types.UnitBytes}
	}
	for _, u := range types.Units()[1:] {
		if u == types.UnitPB || n < u.Scale()*1024 {
			return Size{Converted: round2(n / u.Scale()), Units: u}
		}
	}
	return Size{Converted: round2(n / types.UnitPB.Scale()), Units: types.UnitPB}
}

// String renders the size as "<converted> <units>", e.g. "1.5 KB".
func (s Size) String() string {
	return strconv.FormatFloat(s.Converted, 'f', -1, 64) + " " + s.Units.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
