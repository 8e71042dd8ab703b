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
	"math"
	"unicode/utf8"
)

// DecodeErrorKind distinguishes the ways Decode/DecodeBorrowed can fail, per
// the codec contract in the spec (§4.1): EmptyInput | UnknownTypeTag(u8) |
// BadDataLength | BadUtf8.
type DecodeErrorKind uint8

const (
	ErrEmptyInput DecodeErrorKind = iota
	ErrUnknownTypeTag
	ErrBadDataLength
	ErrBadUTF8
)

type DecodeError struct {
	Kind DecodeErrorKind
	Tag  uint8 // valid only for ErrUnknownTypeTag
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case ErrEmptyInput:
		return "value: empty input"
	case ErrUnknownTypeTag:
		return fmt.Sprintf("value: unknown type tag %d", e.Tag)
	case ErrBadDataLength:
		return "value: bad data length"
	case ErrBadUTF8:
		return "value: invalid utf8"
	default:
		return "value: decode error"
	}
}

const dateLen = 10 // len("YYYY-MM-DD")

func dataLen(f Field) int {
	switch f.typ {
	case TypeInt, TypeUInt, TypeFloat, TypeTimestamp:
		return 8
	case TypeBool:
		return 1
	case TypeString, TypeText, TypeBinary, TypeBson:
		return len(f.bytes)
	case TypeDecimal:
		return 16
	case TypeDate:
		return dateLen
	case TypeNull:
		return 0
	default:
		return 0
	}
}

// EncodedLen returns the exact number of bytes Encode/EncodeInto will
// produce for f: 1 tag byte plus the type's payload length.
func EncodedLen(f Field) int {
	return 1 + dataLen(f)
}

// EncodeInto writes f's tag-prefixed encoding into dst, which must be at
// least EncodedLen(f) bytes, and returns the number of bytes written.
func EncodeInto(dst []byte, f Field) int {
	dst[0] = byte(f.typ)
	payload := dst[1:]
	switch f.typ {
	case TypeInt:
		binary.BigEndian.PutUint64(payload, uint64(f.i64))
	case TypeUInt:
		binary.BigEndian.PutUint64(payload, f.u64)
	case TypeFloat:
		binary.BigEndian.PutUint64(payload, math.Float64bits(f.f64))
	case TypeBool:
		if f.boolean {
			payload[0] = 1
		} else {
			payload[0] = 0
		}
	case TypeString, TypeText, TypeBinary, TypeBson:
		copy(payload, f.bytes)
	case TypeDecimal:
		copy(payload, f.decimal[:])
	case TypeTimestamp:
		binary.BigEndian.PutUint64(payload, uint64(f.timestamp))
	case TypeDate:
		copy(payload, []byte(f.date.String()))
	case TypeNull:
		// no payload
	}
	return 1 + dataLen(f)
}

// Encode returns f's tag-prefixed encoding as a freshly allocated slice.
func Encode(f Field) []byte {
	buf := make([]byte, EncodedLen(f))
	EncodeInto(buf, f)
	return buf
}

// Decode parses a tag-prefixed field, copying any variable-length payload
// so the result outlives buf.
func Decode(buf []byte) (Field, error) {
	return decode(buf, true)
}

// DecodeBorrowed parses a tag-prefixed field without copying variable
// length payloads (String/Text/Binary/Bson alias buf directly). The
// result is only valid for as long as buf is — in particular, only until
// the next cursor operation or the end of the transaction that produced
// buf. Callers that need to retain the value past that point must clone
// it (e.g. via value.Encode + value.Decode).
func DecodeBorrowed(buf []byte) (Field, error) {
	return decode(buf, false)
}

func decode(buf []byte, ownBytes bool) (Field, error) {
	if len(buf) == 0 {
		return Field{}, &DecodeError{Kind: ErrEmptyInput}
	}
	tag := buf[0]
	if tag > uint8(TypeNull) {
		return Field{}, &DecodeError{Kind: ErrUnknownTypeTag, Tag: tag}
	}
	typ := Type(tag)
	payload := buf[1:]

	bytesOf := func(b []byte) []byte {
		if !ownBytes {
			return b
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}

	switch typ {
	case TypeInt:
		if len(payload) != 8 {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		return Field{typ: typ, i64: int64(binary.BigEndian.Uint64(payload))}, nil
	case TypeUInt:
		if len(payload) != 8 {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		return Field{typ: typ, u64: binary.BigEndian.Uint64(payload)}, nil
	case TypeFloat:
		if len(payload) != 8 {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		return Field{typ: typ, f64: math.Float64frombits(binary.BigEndian.Uint64(payload))}, nil
	case TypeBool:
		if len(payload) != 1 {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		return Field{typ: typ, boolean: payload[0] == 1}, nil
	case TypeString, TypeText:
		if !utf8.Valid(payload) {
			return Field{}, &DecodeError{Kind: ErrBadUTF8}
		}
		return Field{typ: typ, bytes: bytesOf(payload)}, nil
	case TypeBinary, TypeBson:
		return Field{typ: typ, bytes: bytesOf(payload)}, nil
	case TypeDecimal:
		if len(payload) != 16 {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		var d Decimal
		copy(d[:], payload)
		return Field{typ: typ, decimal: d}, nil
	case TypeTimestamp:
		if len(payload) != 8 {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		return Field{typ: typ, timestamp: int64(binary.BigEndian.Uint64(payload))}, nil
	case TypeDate:
		if len(payload) != dateLen {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		d, err := parseDate(payload)
		if err != nil {
			return Field{}, err
		}
		return Field{typ: typ, date: d}, nil
	case TypeNull:
		if len(payload) != 0 {
			return Field{}, &DecodeError{Kind: ErrBadDataLength}
		}
		return Field{typ: typ}, nil
	default:
		return Field{}, &DecodeError{Kind: ErrUnknownTypeTag, Tag: tag}
	}
}

func parseDate(b []byte) (Date, error) {
	if len(b) != dateLen || b[4] != '-' || b[7] != '-' {
		return Date{}, &DecodeError{Kind: ErrBadDataLength}
	}
	year, ok1 := parseDigits(b[0:4])
	month, ok2 := parseDigits(b[5:7])
	day, ok3 := parseDigits(b[8:10])
	if !ok1 || !ok2 || !ok3 {
		return Date{}, &DecodeError{Kind: ErrBadDataLength}
	}
	return Date{Year: int32(year), Month: uint8(month), Day: uint8(day)}, nil
}

func parseDigits(b []byte) (int, bool) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
