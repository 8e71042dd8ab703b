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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCases() []Field {
	return []Field{
		Int(0), Int(1), Int(-7),
		UInt(0), UInt(1), UInt(42),
		Float(0), Float(1.5), Float(-3.25),
		Bool(true), Bool(false),
		String(""), String("hello"),
		Text(""), Text("world"),
		Binary(nil), Binary([]byte{1, 2, 3}),
		DecimalValue(Decimal{0: 1, 15: 9}),
		Timestamp(time.UnixMilli(0).UTC()),
		Timestamp(time.UnixMilli(1577836800123).UTC()),
		DateValue(Date{Year: 1970, Month: 1, Day: 1}),
		DateValue(Date{Year: 2020, Month: 12, Day: 31}),
		Bson([]byte(`{"abc":"foo"}`)),
		Null(),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range testCases() {
		encoded := Encode(f)
		require.Equal(t, EncodedLen(f), len(encoded))

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.True(t, f.Equal(decoded), "round trip mismatch for %v", f.Type())

		borrowed, err := DecodeBorrowed(encoded)
		require.NoError(t, err)
		assert.True(t, f.Equal(borrowed))
	}
}

func TestEncodedLenMatchesEncode(t *testing.T) {
	for _, f := range testCases() {
		assert.Equal(t, EncodedLen(f), len(Encode(f)))
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, ErrEmptyInput, de.Kind)

	_, err = Decode([]byte{99})
	require.ErrorAs(t, err, &de)
	require.Equal(t, ErrUnknownTypeTag, de.Kind)
	require.Equal(t, uint8(99), de.Tag)

	_, err = Decode([]byte{byte(TypeUInt), 1, 2, 3})
	require.ErrorAs(t, err, &de)
	require.Equal(t, ErrBadDataLength, de.Kind)

	_, err = Decode(append([]byte{byte(TypeString)}, 0xff, 0xfe))
	require.ErrorAs(t, err, &de)
	require.Equal(t, ErrBadUTF8, de.Kind)
}

func TestCompositeKeyOrdering(t *testing.T) {
	k1 := CompositeKey([]Field{UInt(1)}, []int{0})
	k2 := CompositeKey([]Field{UInt(2)}, []int{0})
	assert.True(t, string(k1) < string(k2))
}

func TestRecordRoundTrip(t *testing.T) {
	r := Record{
		SchemaID: NewSchemaID(1, 0),
		Version:  3,
		Values:   []Field{UInt(42), String("nyc"), Null()},
	}
	buf := EncodeRecord(r)
	got, err := DecodeRecord(buf)
	require.NoError(t, err)
	require.Equal(t, r.SchemaID, got.SchemaID)
	require.Equal(t, r.Version, got.Version)
	require.Len(t, got.Values, len(r.Values))
	for i := range r.Values {
		assert.True(t, r.Values[i].Equal(got.Values[i]))
	}
}
