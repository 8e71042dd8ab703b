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
	"path/filepath"
	"testing"

	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/value"
	"github.com/stretchr/testify/require"
)

func openTestEnv(t *testing.T) *kv.Env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mdbx")
	env, err := kv.Open(kv.Options{Path: path, MaxReaders: 8, MaxDBs: 8, MapSize: 64 << 20}, true)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func TestEntryRoundTrip(t *testing.T) {
	e := Entry{
		ID:   value.NewSchemaID(1, 0),
		Name: "widgets",
		Schema: Schema{
			Name: "widgets",
			Fields: []FieldDef{
				{Name: "id", Type: value.TypeUInt},
				{Name: "city", Type: value.TypeString},
			},
			PrimaryIndex: []int{0},
		},
		Indexes: []IndexDefinition{
			{Kind: SortedInverted, Fields: []int{1}},
			{Kind: FullText, Fields: []int{1}},
		},
	}
	buf := EncodeEntry(e)
	got, err := DecodeEntry(buf)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestRegistryInsertAndLookup(t *testing.T) {
	env := openTestEnv(t)
	txn, err := env.BeginRwTxn()
	require.NoError(t, err)
	defer txn.Abort()

	byID, byName, err := CreateTables(txn, true)
	require.NoError(t, err)
	reg, err := NewRegistry(txn, byID, byName, nil)
	require.NoError(t, err)

	e := Entry{
		ID:     value.NewSchemaID(1, 0),
		Name:   "widgets",
		Schema: Schema{Name: "widgets", Fields: []FieldDef{{Name: "id", Type: value.TypeUInt}}, PrimaryIndex: []int{0}},
	}
	require.NoError(t, reg.Insert(txn, e))

	got, ok := reg.GetByID(e.ID)
	require.True(t, ok)
	require.Equal(t, e.Name, got.Name)

	got, ok = reg.GetByName("widgets")
	require.True(t, ok)
	require.Equal(t, e.ID, got.ID)

	require.ErrorIs(t, reg.Insert(txn, e), ErrSchemaIDExists)

	dup := e
	dup.ID = value.NewSchemaID(2, 0)
	require.ErrorIs(t, reg.Insert(txn, dup), ErrSchemaNameExists)

	require.Len(t, reg.IterAll(), 1)
}

func TestRegistryReloadsFromStorage(t *testing.T) {
	env := openTestEnv(t)

	e := Entry{
		ID:     value.NewSchemaID(1, 0),
		Name:   "widgets",
		Schema: Schema{Name: "widgets", Fields: []FieldDef{{Name: "id", Type: value.TypeUInt}}, PrimaryIndex: []int{0}},
	}

	func() {
		txn, err := env.BeginRwTxn()
		require.NoError(t, err)
		defer txn.Abort()
		byID, byName, err := CreateTables(txn, true)
		require.NoError(t, err)
		reg, err := NewRegistry(txn, byID, byName, nil)
		require.NoError(t, err)
		require.NoError(t, reg.Insert(txn, e))
		require.NoError(t, txn.Commit())
	}()

	txn, err := env.BeginRoTxn()
	require.NoError(t, err)
	defer txn.Abort()
	byID, byName, err := CreateTables(txn, false)
	require.NoError(t, err)
	reg, err := NewRegistry(txn, byID, byName, nil)
	require.NoError(t, err)

	got, ok := reg.GetByID(e.ID)
	require.True(t, ok)
	require.Equal(t, e.Name, got.Name)
}
