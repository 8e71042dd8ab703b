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

package value

import (
	"encoding/binary"
	"fmt"
)

// SchemaID packs the 16-bit namespace and 16-bit version described in
// §3.4/§4.3 into a single comparable value, used as the schemas table key.
type SchemaID uint32

func NewSchemaID(namespace, version uint16) SchemaID {
	return SchemaID(uint32(namespace)<<16 | uint32(version))
}

func (id SchemaID) Namespace() uint16 { return uint16(id >> 16) }
func (id SchemaID) Version() uint16   { return uint16(id) }
func (id SchemaID) String() string {
	return fmt.Sprintf("%d.%d", id.Namespace(), id.Version())
}

// Record is an ordered sequence of typed fields carrying a schema
// identifier and a monotonically-incremented version (§3.1, invariant 5).
type Record struct {
	SchemaID SchemaID
	Version  uint32
	Values   []Field
}

// recordCodecVersion guards the on-disk record format; it is not the same
// counter as Record.Version, which is the pipeline's per-row version.
const recordCodecVersion = 1

// EncodeRecord serializes r into the record store's length-delimited,
// self-describing format (§4.5): each field is stored with an explicit
// length prefix so concatenation is unambiguous, unlike the bare
// composite-key encoding in key.go.
func EncodeRecord(r Record) []byte {
	size := 1 + 4 + 4 + 4
	fieldLens := make([]int, len(r.Values))
	for i, f := range r.Values {
		fieldLens[i] = EncodedLen(f)
		size += 4 + fieldLens[i]
	}
	buf := make([]byte, size)
	off := 0
	buf[off] = recordCodecVersion
	off++
	binary.BigEndian.PutUint32(buf[off:], uint32(r.SchemaID))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], r.Version)
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Values)))
	off += 4
	for i, f := range r.Values {
		binary.BigEndian.PutUint32(buf[off:], uint32(fieldLens[i]))
		off += 4
		off += EncodeInto(buf[off:], f)
	}
	return buf
}

// DecodeRecord reverses EncodeRecord, copying field payloads so the result
// outlives buf (mirrors Decode, not DecodeBorrowed).
func DecodeRecord(buf []byte) (Record, error) {
	if len(buf) < 1+4+4+4 {
		return Record{}, &DecodeError{Kind: ErrBadDataLength}
	}
	if buf[0] != recordCodecVersion {
		return Record{}, fmt.Errorf("value: unsupported record codec version %d", buf[0])
	}
	off := 1
	schemaID := SchemaID(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	version := binary.BigEndian.Uint32(buf[off:])
	off += 4
	count := binary.BigEndian.Uint32(buf[off:])
	off += 4
	values := make([]Field, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(buf) {
			return Record{}, &DecodeError{Kind: ErrBadDataLength}
		}
		fieldLen := int(binary.BigEndian.Uint32(buf[off:]))
		off += 4
		if off+fieldLen > len(buf) {
			return Record{}, &DecodeError{Kind: ErrBadDataLength}
		}
		field, err := Decode(buf[off : off+fieldLen])
		if err != nil {
			return Record{}, err
		}
		values[i] = field
		off += fieldLen
	}
	return Record{SchemaID: schemaID, Version: version, Values: values}, nil
}
