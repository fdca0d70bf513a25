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

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract shared by the package enums.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// Unit is a storage magnitude, from plain bytes up to petabytes.
type Unit int

const (
	UnitBytes Unit = iota
	UnitKB
	UnitMB
	UnitGB
	UnitTB
	UnitPB
)

var _ BaseEnum = UnitBytes

var unitNames = [...]string{"bytes", "KB", "MB", "GB", "TB", "PB"}

var unitDescs = [...]string{
	"bytes",
	"kilobytes (1024 bytes)",
	"megabytes (1024^2 bytes)",
	"gigabytes (1024^3 bytes)",
	"terabytes (1024^4 bytes)",
	"petabytes (1024^5 bytes)",
}

// Units lists every unit in ascending magnitude.
func Units() []Unit {
	return []Unit{UnitBytes, UnitKB, UnitMB, UnitGB, UnitTB, UnitPB}
}

func (u Unit) IsValid() bool {
	return u >= UnitBytes && u <= UnitPB
}

// Number returns the power of 1024 the unit stands for.
func (u Unit) Number() int {
	if !u.IsValid() {
		return IllegalValue
	}
	return int(u)
}

func (u Unit) String() string {
	return u.Name()
}

func (u Unit) Name() string {
	if !u.IsValid() {
		return IllegalName
	}
	return unitNames[u]
}

func (u Unit) Desc() string {
	if !u.IsValid() {
		return IllegalDesc
	}
	return unitDescs[u]
}

// Scale returns the number of bytes in one unit.
func (u Unit) Scale() float64 {
	scale := 1.0
	for i := 0; i < u.Number(); i++ {
		scale *= 1024
	}
	return scale
}
