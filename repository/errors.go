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

package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	bolt "go.etcd.io/bbolt"

	"github.com/tomoncle/webdb/types"
)

// Error kinds reported by every engine. They wrap the native engine error
// when there is one, so errors.As still reaches it.
var (
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")
	ErrData       = errors.New("invalid data")
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

func IsSqlError(err error) (is bool, sqlErr SQLError) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1146:
			return true, NoTableErr
		case 1050:
			return true, ExistTableErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1265, 1406:
			return true, DataTruncatedErr
		case 1366:
			return true, InvalidTypeCastErr
		default:
			return true, UnknownErr
		}
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "sqlstate 42p01") ||
		strings.Contains(s, "undefined table") ||
		strings.Contains(s, "no such table") ||
		(strings.Contains(s, "relation") && strings.Contains(s, "does not exist")) {
		return true, NoTableErr
	}
	if strings.Contains(s, "already exists") &&
		(strings.Contains(s, "table") || strings.Contains(s, "relation")) {
		return true, ExistTableErr
	}
	if strings.Contains(s, "duplicate key value") ||
		strings.Contains(s, "unique constraint failed") ||
		strings.Contains(s, "sqlstate 23505") {
		return true, DuplicateKeyErr
	}
	if strings.Contains(s, "not-null constraint") ||
		strings.Contains(s, "sqlstate 23502") ||
		strings.Contains(s, "not null constraint failed") {
		return true, NotNullViolationErr
	}
	if strings.Contains(s, "string data right truncation") ||
		strings.Contains(s, "sqlstate 22001") ||
		strings.Contains(s, "data truncated") {
		return true, DataTruncatedErr
	}
	if strings.Contains(s, "datatype mismatch") ||
		strings.Contains(s, "sqlstate 42804") ||
		strings.Contains(s, "sqlstate 22p02") {
		return true, InvalidTypeCastErr
	}
	return false, UnknownErr
}

// classify tags a native engine error with its kind.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConstraint) || errors.Is(err, ErrData) {
		return err
	}
	if errors.Is(err, types.ErrInvalidKey) {
		return fmt.Errorf("%w: %w", ErrData, err)
	}
	switch {
	case errors.Is(err, bolt.ErrBucketNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, bolt.ErrKeyRequired),
		errors.Is(err, bolt.ErrKeyTooLarge),
		errors.Is(err, bolt.ErrValueTooLarge):
		return fmt.Errorf("%w: %w", ErrData, err)
	}
	if is, kind := IsSqlError(err); is {
		switch kind {
		case NoTableErr:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case DuplicateKeyErr:
			return fmt.Errorf("%w: %w", ErrConstraint, err)
		case NotNullViolationErr, DataTruncatedErr, InvalidTypeCastErr:
			return fmt.Errorf("%w: %w", ErrData, err)
		}
	}
	return err
}

func collectionNotFound(topic string) error {
	return fmt.Errorf("%w: collection %q does not exist", ErrNotFound, topic)
}

func keyExists(topic string, key interface{}) error {
	return fmt.Errorf("%w: key %v already exists in collection %q", ErrConstraint, key, topic)
}
