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

// Package schema models the schema registry from §4.3: field
// declarations, the primary-index field-position list, and the secondary
// index definitions a schema carries.
package schema

import "github.com/erigontech/reccache/value"

// FieldDef names and types one positional field of a schema's records.
type FieldDef struct {
	Name string
	Type value.Type
}

// Schema is the record shape registered under one schema_id (§3.4).
// PrimaryIndex lists field positions concatenated (in order) to form the
// primary key; an empty PrimaryIndex means auto-generated IDs only, with
// no primary-key lookup path (S1).
type Schema struct {
	Name         string
	Fields       []FieldDef
	PrimaryIndex []int
}

func (s Schema) FieldPosition(name string) (int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// IndexKind selects the secondary-index behavior described in §4.6.
type IndexKind uint8

const (
	SortedInverted IndexKind = iota
	FullText
)

func (k IndexKind) String() string {
	switch k {
	case SortedInverted:
		return "SortedInverted"
	case FullText:
		return "FullText"
	default:
		return "Unknown"
	}
}

// IndexDefinition is one secondary index over a schema. Fields holds the
// field positions in definition order; FullText indexes carry exactly one
// position (the indexed String/Text field).
type IndexDefinition struct {
	Kind   IndexKind
	Fields []int
}
