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

package schema

import (
	"fmt"

	"github.com/erigontech/reccache/value"
)

// ConsistencyError reports a record whose shape does not match the schema
// it claims to belong to.
type ConsistencyError struct {
	SchemaName string
	Reason     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("schema %q: %s", e.SchemaName, e.Reason)
}

// CheckConsistency verifies that values has exactly one field per entry of
// s.Fields and that each field's type matches, Null always excepted
// (nullable columns). It is a programmer-error detector for debug builds,
// not a hot-path validator, and is cheap enough to run unconditionally
// when the caller opts in.
func CheckConsistency(s Schema, values []value.Field) error {
	if len(values) != len(s.Fields) {
		return &ConsistencyError{
			SchemaName: s.Name,
			Reason:     fmt.Sprintf("expected %d fields, got %d", len(s.Fields), len(values)),
		}
	}
	for i, def := range s.Fields {
		v := values[i]
		if v.IsNull() {
			continue
		}
		if v.Type() != def.Type {
			return &ConsistencyError{
				SchemaName: s.Name,
				Reason:     fmt.Sprintf("field %q: expected %s, got %s", def.Name, def.Type, v.Type()),
			}
		}
	}
	return nil
}
