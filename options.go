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

package webdb

import (
	"github.com/tomoncle/webdb/capacity"
	"github.com/tomoncle/webdb/database"
)

// Option customizes a Database.
type Option = database.ManagerOption

// WithOnSuccess registers a callback invoked once a connection opens.
func WithOnSuccess(fn func(Info)) Option {
	return database.WithOnSuccess(fn)
}

// WithOnError registers a callback invoked when opening a connection fails.
func WithOnError(fn func(error)) Option {
	return database.WithOnError(fn)
}

func WithLogger(logger Logger) Option {
	return database.WithLogger(logger)
}

// WithEstimator replaces the storage estimator of the capacity check.
func WithEstimator(e capacity.Estimator) Option {
	return database.WithEstimator(e)
}
