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
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned when the platform cannot report storage quota.
var ErrUnsupported = errors.New("storage estimate is not supported on this platform")

// BytesPerMB converts the megabyte figures used in configuration to bytes.
const BytesPerMB = 1024 * 1024

// Estimate is the storage quota allotted to the database and the amount of
// it currently consumed, both in bytes.
type Estimate struct {
	Quota uint64 `json:"quota"`
	Usage uint64 `json:"usage"`
}

// Free returns the unused part of the quota.
func (e Estimate) Free() uint64 {
	if e.Usage >= e.Quota {
		return 0
	}
	return e.Quota - e.Usage
}

// Report is the outcome of a capacity check with human readable figures.
type Report struct {
	IsCapable bool   `json:"is_capable"`
	Capacity  string `json:"capacity"`
	Used      string `json:"used"`
	Requested string `json:"requested"`
}

// Estimator reports the storage estimate of the host.
type Estimator interface {
	Estimate(ctx context.Context) (Estimate, error)
}

// StaticEstimator always reports the same figures.
type StaticEstimator Estimate

func (s StaticEstimator) Estimate(ctx context.Context) (Estimate, error) {
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}
	return Estimate(s), nil
}

// Evaluate compares the free space of e against minCapacityMB megabytes. The
// free space must strictly exceed the requested amount.
func Evaluate(minCapacityMB float64, e Estimate) Report {
	quota := float64(e.Quota)
	used := float64(e.Usage)
	minBytes := minCapacityMB * BytesPerMB
	return Report{
		IsCapable: quota-used > minBytes,
		Capacity:  Convert(quota).String(),
		Used:      Convert(used).String(),
		Requested: Convert(minBytes).String(),
	}
}

// Check asks the estimator for the current figures and evaluates them.
func Check(ctx context.Context, estimator Estimator, minCapacityMB float64) (Report, error) {
	if estimator == nil {
		return Report{}, ErrUnsupported
	}
	e, err := estimator.Estimate(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to estimate storage: %w", err)
	}
	return Evaluate(minCapacityMB, e), nil
}
