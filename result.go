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
	"context"
	"fmt"
)

// Result is the settled outcome of an operation: Data on success, Error
// with the zero value of Data on failure.
type Result[T any] struct {
	Data  T     `json:"data"`
	Error error `json:"error"`
}

// Settle packages a (value, error) pair.
func Settle[T any](data T, err error) Result[T] {
	if err != nil {
		var zero T
		return Result[T]{Data: zero, Error: err}
	}
	return Result[T]{Data: data}
}

func (r Result[T]) Ok() bool {
	return r.Error == nil
}

func (r Result[T]) Unwrap() (T, error) {
	return r.Data, r.Error
}

// Async runs fn on its own goroutine. The returned channel delivers exactly
// one Result and is then closed. A panic in fn settles as an error.
func Async[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		var (
			data T
			err  error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("webdb: operation panicked: %v", r)
				}
			}()
			data, err = fn(ctx)
		}()
		ch <- Settle(data, err)
	}()
	return ch
}
