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

package database

import (
	"errors"
	"fmt"

	"github.com/tomoncle/webdb/capacity"
	"github.com/tomoncle/webdb/repository"
)

var (
	// ErrUnsupported reports an engine or estimator the host cannot provide.
	ErrUnsupported = capacity.ErrUnsupported

	ErrInsufficientCapacity = errors.New("insufficient storage capacity")
	ErrVersion              = errors.New("requested version is lower than the stored version")
	ErrClosed               = errors.New("database is closed")

	ErrNotFound   = repository.ErrNotFound
	ErrConstraint = repository.ErrConstraint
	ErrData       = repository.ErrData
)

// CapacityError is raised before connecting when the host lacks free space.
type CapacityError struct {
	Report capacity.Report
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("storage doesn't have enough space, requested: %s, capacity: %s, used: %s",
		e.Report.Requested, e.Report.Capacity, e.Report.Used)
}

func (e *CapacityError) Unwrap() error {
	return ErrInsufficientCapacity
}
