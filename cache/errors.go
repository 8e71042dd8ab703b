// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package cache

import "fmt"

// ErrPrimaryKeyNotFound is returned by get/update/delete when the supplied
// primary key has no live binding.
var ErrPrimaryKeyNotFound = sentinel("primary key not found")

// ErrPrimaryKeyExists is returned by insert when the record's primary key
// is already bound to a live record.
var ErrPrimaryKeyExists = sentinel("primary key already exists")

// ErrOrderByNotSupported is returned when a query's order_by cannot be
// satisfied by the index chosen to drive the scan.
var ErrOrderByNotSupported = sentinel("order_by not supported by the available indexes")

type cacheError string

func sentinel(msg string) error { return cacheError(msg) }

func (e cacheError) Error() string { return string(e) }

// SchemaNotFoundError reports a lookup by name that found nothing.
type SchemaNotFoundError struct {
	Name string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("cache: schema %q not found", e.Name)
}

// SchemaIdentifierNotFoundError reports a lookup by schema_id that found
// nothing.
type SchemaIdentifierNotFoundError struct {
	ID uint32
}

func (e *SchemaIdentifierNotFoundError) Error() string {
	return fmt.Sprintf("cache: schema identifier %d not found", e.ID)
}

// IndexNotFoundError reports a filter the query planner could not map
// onto any registered index.
type IndexNotFoundError struct {
	Field string
	Op    string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("cache: no index satisfies %s %s", e.Field, e.Op)
}

// StorageError wraps an underlying kv-store failure (I/O, map-full,
// corruption). Callers that need to distinguish causes should use
// errors.Unwrap / errors.Is on Cause.
type StorageError struct {
	Cause error
}

func (e *StorageError) Error() string { return fmt.Sprintf("cache: storage error: %v", e.Cause) }
func (e *StorageError) Unwrap() error { return e.Cause }

// SerializationError / DeserializationError report codec failures tagged
// with the Go type name involved, per §7.
type SerializationError struct {
	Type   string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cache: failed to serialize %s: %s", e.Type, e.Reason)
}

type DeserializationError struct {
	Type   string
	Reason string
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cache: failed to deserialize %s: %s", e.Type, e.Reason)
}

// InvariantViolationError is the "fatal abort" case from §7: a
// same-transaction contradiction that indicates a bug rather than an
// expected runtime condition. Query panics with it when a secondary-index
// entry names a record ID that has no record in the same transaction. It
// is deliberately distinct from
// ErrPrimaryKeyNotFound, which also covers the benign case of a stale
// primary-key binding pointing at a record deleted by a previous,
// unrelated transaction.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("cache: internal invariant violated: %s", e.Detail)
}
