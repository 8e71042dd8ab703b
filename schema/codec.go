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
	"encoding/binary"
	"fmt"

	"github.com/erigontech/reccache/value"
)

// Entry is one registered schema plus its secondary index definitions,
// the unit stored in the `schemas` sub-database (§4.3).
type Entry struct {
	ID      value.SchemaID
	Name    string
	Schema  Schema
	Indexes []IndexDefinition
}

const entryCodecVersion = 1

func putString(buf []byte, s string) int {
	binary.BigEndian.PutUint32(buf, uint32(len(s)))
	copy(buf[4:], s)
	return 4 + len(s)
}

func getString(buf []byte) (string, int, error) {
	if len(buf) < 4 {
		return "", 0, fmt.Errorf("schema: truncated string length")
	}
	n := int(binary.BigEndian.Uint32(buf))
	if len(buf) < 4+n {
		return "", 0, fmt.Errorf("schema: truncated string body")
	}
	return string(buf[4 : 4+n]), 4 + n, nil
}

func stringLen(s string) int { return 4 + len(s) }

func intsLen(xs []int) int { return 4 + 4*len(xs) }

func putInts(buf []byte, xs []int) int {
	binary.BigEndian.PutUint32(buf, uint32(len(xs)))
	off := 4
	for _, x := range xs {
		binary.BigEndian.PutUint32(buf[off:], uint32(x))
		off += 4
	}
	return off
}

func getInts(buf []byte) ([]int, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("schema: truncated int list length")
	}
	n := int(binary.BigEndian.Uint32(buf))
	if len(buf) < 4+4*n {
		return nil, 0, fmt.Errorf("schema: truncated int list body")
	}
	out := make([]int, n)
	off := 4
	for i := 0; i < n; i++ {
		out[i] = int(binary.BigEndian.Uint32(buf[off:]))
		off += 4
	}
	return out, off, nil
}

// EncodeEntry serializes e in a simple length-delimited form. Schema
// metadata is control-plane state read once per process, not a hot-path
// structure, so it is encoded with plain fixed-width/length-prefixed
// fields rather than a general-purpose serialization library.
func EncodeEntry(e Entry) []byte {
	size := 1 + 4 + stringLen(e.Name) + stringLen(e.Schema.Name) + 4 + intsLen(e.Schema.PrimaryIndex) + 4
	for _, f := range e.Schema.Fields {
		size += stringLen(f.Name) + 1
	}
	for _, idx := range e.Indexes {
		size += 1 + intsLen(idx.Fields)
	}

	buf := make([]byte, size)
	off := 0
	buf[off] = entryCodecVersion
	off++
	binary.BigEndian.PutUint32(buf[off:], uint32(e.ID))
	off += 4
	off += putString(buf[off:], e.Name)
	off += putString(buf[off:], e.Schema.Name)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(e.Schema.Fields)))
	off += 4
	for _, f := range e.Schema.Fields {
		off += putString(buf[off:], f.Name)
		buf[off] = byte(f.Type)
		off++
	}
	off += putInts(buf[off:], e.Schema.PrimaryIndex)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(e.Indexes)))
	off += 4
	for _, idx := range e.Indexes {
		buf[off] = byte(idx.Kind)
		off++
		off += putInts(buf[off:], idx.Fields)
	}
	return buf[:off]
}

// DecodeEntry reverses EncodeEntry.
func DecodeEntry(buf []byte) (Entry, error) {
	if len(buf) < 1+4 {
		return Entry{}, fmt.Errorf("schema: truncated entry header")
	}
	if buf[0] != entryCodecVersion {
		return Entry{}, fmt.Errorf("schema: unsupported entry codec version %d", buf[0])
	}
	off := 1
	id := value.SchemaID(binary.BigEndian.Uint32(buf[off:]))
	off += 4

	name, n, err := getString(buf[off:])
	if err != nil {
		return Entry{}, err
	}
	off += n

	schemaName, n, err := getString(buf[off:])
	if err != nil {
		return Entry{}, err
	}
	off += n

	if len(buf) < off+4 {
		return Entry{}, fmt.Errorf("schema: truncated field count")
	}
	fieldCount := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	fields := make([]FieldDef, fieldCount)
	for i := 0; i < fieldCount; i++ {
		fname, n, err := getString(buf[off:])
		if err != nil {
			return Entry{}, err
		}
		off += n
		if len(buf) < off+1 {
			return Entry{}, fmt.Errorf("schema: truncated field type")
		}
		fields[i] = FieldDef{Name: fname, Type: value.Type(buf[off])}
		off++
	}

	primaryIndex, n, err := getInts(buf[off:])
	if err != nil {
		return Entry{}, err
	}
	off += n

	if len(buf) < off+4 {
		return Entry{}, fmt.Errorf("schema: truncated index count")
	}
	idxCount := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	indexes := make([]IndexDefinition, idxCount)
	for i := 0; i < idxCount; i++ {
		if len(buf) < off+1 {
			return Entry{}, fmt.Errorf("schema: truncated index kind")
		}
		kind := IndexKind(buf[off])
		off++
		flds, n, err := getInts(buf[off:])
		if err != nil {
			return Entry{}, err
		}
		off += n
		indexes[i] = IndexDefinition{Kind: kind, Fields: flds}
	}

	return Entry{
		ID:      id,
		Name:    name,
		Schema:  Schema{Name: schemaName, Fields: fields, PrimaryIndex: primaryIndex},
		Indexes: indexes,
	}, nil
}
