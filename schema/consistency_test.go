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
	"testing"

	"github.com/erigontech/reccache/value"
	"github.com/stretchr/testify/require"
)

func widgetSchema() Schema {
	return Schema{
		Name: "widgets",
		Fields: []FieldDef{
			{Name: "id", Type: value.TypeUInt},
			{Name: "city", Type: value.TypeString},
		},
	}
}

func TestCheckConsistencyOK(t *testing.T) {
	err := CheckConsistency(widgetSchema(), []value.Field{value.UInt(1), value.String("SF")})
	require.NoError(t, err)
}

func TestCheckConsistencyNullableFieldAllowed(t *testing.T) {
	err := CheckConsistency(widgetSchema(), []value.Field{value.UInt(1), value.Null()})
	require.NoError(t, err)
}

func TestCheckConsistencyWrongFieldCount(t *testing.T) {
	err := CheckConsistency(widgetSchema(), []value.Field{value.UInt(1)})
	require.Error(t, err)
	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
}

func TestCheckConsistencyWrongFieldType(t *testing.T) {
	err := CheckConsistency(widgetSchema(), []value.Field{value.UInt(1), value.Int(5)})
	require.Error(t, err)
}
