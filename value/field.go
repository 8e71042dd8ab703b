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

// Package value implements the typed field codec and composite-key builder
// that back every sub-database in the record cache.
package value

import (
	"fmt"
	"math"
	"time"
	"unsafe"
)

// Type is the one-byte tag prefixing every encoded field.
type Type uint8

const (
	TypeInt Type = iota
	TypeUInt
	TypeFloat
	TypeBool
	TypeString
	TypeText
	TypeBinary
	TypeDecimal
	TypeTimestamp
	TypeDate
	TypeBson
	TypeNull
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "Int"
	case TypeUInt:
		return "UInt"
	case TypeFloat:
		return "Float"
	case TypeBool:
		return "Boolean"
	case TypeString:
		return "String"
	case TypeText:
		return "Text"
	case TypeBinary:
		return "Binary"
	case TypeDecimal:
		return "Decimal"
	case TypeTimestamp:
		return "Timestamp"
	case TypeDate:
		return "Date"
	case TypeBson:
		return "Bson"
	case TypeNull:
		return "Null"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Decimal is the 16-byte fixed-width payload used for FieldType.Decimal.
// The core never performs arithmetic on it, only storage/comparison, so it
// is kept as an opaque byte array rather than reaching for a decimal-math
// library (see DESIGN.md for why no third-party decimal type was used).
type Decimal [16]byte

// Date is a plain calendar date, encoded as ASCII "YYYY-MM-DD".
type Date struct {
	Year  int32
	Month uint8
	Day   uint8
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Field is a tagged union over the cache's supported column types. Zero
// value is Int(0); use the constructors below to build other variants.
type Field struct {
	typ       Type
	i64       int64
	u64       uint64
	f64       float64
	boolean   bool
	bytes     []byte // String/Text (raw utf8)/Binary/Bson payload
	decimal   Decimal
	timestamp int64 // millis since epoch, UTC
	date      Date
}

func Int(v int64) Field        { return Field{typ: TypeInt, i64: v} }
func UInt(v uint64) Field      { return Field{typ: TypeUInt, u64: v} }
func Float(v float64) Field    { return Field{typ: TypeFloat, f64: v} }
func Bool(v bool) Field        { return Field{typ: TypeBool, boolean: v} }
func String(v string) Field    { return Field{typ: TypeString, bytes: []byte(v)} }
func Text(v string) Field      { return Field{typ: TypeText, bytes: []byte(v)} }
func Binary(v []byte) Field    { return Field{typ: TypeBinary, bytes: v} }
func DecimalValue(v Decimal) Field {
	return Field{typ: TypeDecimal, decimal: v}
}
func Timestamp(t time.Time) Field {
	return Field{typ: TypeTimestamp, timestamp: t.UnixMilli()}
}
func DateValue(v Date) Field { return Field{typ: TypeDate, date: v} }
func Bson(v []byte) Field    { return Field{typ: TypeBson, bytes: v} }
func Null() Field            { return Field{typ: TypeNull} }

func (f Field) Type() Type { return f.typ }

func (f Field) AsInt() (int64, bool)       { return f.i64, f.typ == TypeInt }
func (f Field) AsUInt() (uint64, bool)     { return f.u64, f.typ == TypeUInt }
func (f Field) AsFloat() (float64, bool)   { return f.f64, f.typ == TypeFloat }
func (f Field) AsBool() (bool, bool)       { return f.boolean, f.typ == TypeBool }
func (f Field) AsBinary() ([]byte, bool)   { return f.bytes, f.typ == TypeBinary }
func (f Field) AsBson() ([]byte, bool)     { return f.bytes, f.typ == TypeBson }
func (f Field) AsDecimal() (Decimal, bool) { return f.decimal, f.typ == TypeDecimal }
func (f Field) AsDate() (Date, bool)       { return f.date, f.typ == TypeDate }

// AsTimestamp returns the instant as UTC; the wire format does not retain
// an offset (see field encoding rules), so neither does this accessor.
func (f Field) AsTimestamp() (time.Time, bool) {
	return time.UnixMilli(f.timestamp).UTC(), f.typ == TypeTimestamp
}

// AsString returns the zero-copy view of a String field's bytes as a
// string. The returned string aliases the Field's backing bytes; if the
// Field came from a borrowed decode, the string is only valid for as long
// as that decode's source buffer is (see DecodeBorrowed).
func (f Field) AsString() (string, bool) {
	if f.typ != TypeString {
		return "", false
	}
	return bytesToString(f.bytes), true
}

func (f Field) AsText() (string, bool) {
	if f.typ != TypeText {
		return "", false
	}
	return bytesToString(f.bytes), true
}

// AsStringLike returns the raw UTF-8 payload of a String or Text field,
// which is the only pair of variants FullText indexing is defined over.
func (f Field) AsStringLike() (string, bool) {
	if f.typ != TypeString && f.typ != TypeText {
		return "", false
	}
	return bytesToString(f.bytes), true
}

func (f Field) IsNull() bool { return f.typ == TypeNull }

// Equal reports structural equality, matching the derived PartialEq of the
// source Field enum (bit-for-bit on payload, not "type coercion" equality).
func (f Field) Equal(other Field) bool {
	if f.typ != other.typ {
		return false
	}
	switch f.typ {
	case TypeInt:
		return f.i64 == other.i64
	case TypeUInt:
		return f.u64 == other.u64
	case TypeFloat:
		return math.Float64bits(f.f64) == math.Float64bits(other.f64)
	case TypeBool:
		return f.boolean == other.boolean
	case TypeString, TypeText, TypeBinary, TypeBson:
		return string(f.bytes) == string(other.bytes)
	case TypeDecimal:
		return f.decimal == other.decimal
	case TypeTimestamp:
		return f.timestamp == other.timestamp
	case TypeDate:
		return f.date == other.date
	case TypeNull:
		return true
	default:
		return false
	}
}

func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(&b))
}
