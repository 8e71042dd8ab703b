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

package kv

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestEnv(t *testing.T) *Env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mdbx")
	env, err := Open(Options{Path: path, MaxReaders: 8, MaxDBs: 8, MapSize: 64 << 20}, true)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func u64Key(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func u64Decode(b []byte) (uint64, error) {
	return binary.BigEndian.Uint64(b), nil
}

func strEncode(s string) []byte { return []byte(s) }
func strDecode(b []byte) (string, error) {
	return string(b), nil
}

func TestMapInsertGetRemove(t *testing.T) {
	env := openTestEnv(t)
	txn, err := env.BeginRwTxn()
	require.NoError(t, err)
	defer txn.Abort()

	dbi, err := OpenDBI(txn, "widgets", KeyTypeU64, false, true)
	require.NoError(t, err)
	m := NewMap[uint64, string](dbi, u64Key, u64Decode, strEncode, strDecode)

	inserted, err := m.Insert(txn, 1, "alpha")
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = m.Insert(txn, 1, "beta")
	require.NoError(t, err)
	require.False(t, inserted, "insert must not overwrite an existing key")

	v, ok, err := m.Get(txn, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alpha", v)

	require.NoError(t, m.Put(txn, 1, "gamma"))
	v, ok, err = m.Get(txn, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "gamma", v, "Put must overwrite")

	removed, err := m.Remove(txn, 1)
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err = m.Get(txn, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMapIterAndExtend(t *testing.T) {
	env := openTestEnv(t)
	txn, err := env.BeginRwTxn()
	require.NoError(t, err)
	defer txn.Abort()

	dbi, err := OpenDBI(txn, "widgets", KeyTypeU64, false, true)
	require.NoError(t, err)
	m := NewMap[uint64, string](dbi, u64Key, u64Decode, strEncode, strDecode)

	require.NoError(t, m.Extend(txn, []Pair[uint64, string]{
		{Key: 3, Val: "c"}, {Key: 1, Val: "a"}, {Key: 2, Val: "b"},
	}))

	count, err := m.Count(txn)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	pairs, err := m.Iter(txn)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	require.Equal(t, uint64(1), pairs[0].Key)
	require.Equal(t, uint64(2), pairs[1].Key)
	require.Equal(t, uint64(3), pairs[2].Key)

	require.NoError(t, m.Extend(txn, []Pair[uint64, string]{{Key: 1, Val: "clobbered"}}))
	v, _, err := m.Get(txn, 1)
	require.NoError(t, err)
	require.Equal(t, "a", v, "extend must not overwrite existing keys")
}

func TestMultimapInsertRemoveAndScan(t *testing.T) {
	env := openTestEnv(t)
	txn, err := env.BeginRwTxn()
	require.NoError(t, err)
	defer txn.Abort()

	dbi, err := OpenDBI(txn, "idx", KeyTypeVariable, true, true)
	require.NoError(t, err)
	mm := NewMultimap[uint64](dbi, u64Key, u64Decode)

	require.NoError(t, mm.Insert(txn, []byte("city:nyc"), 1))
	require.NoError(t, mm.Insert(txn, []byte("city:nyc"), 2))
	require.NoError(t, mm.Insert(txn, []byte("city:sf"), 3))

	values, err := mm.ScanValues(txn, []byte("city:nyc"))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{1, 2}, values)

	require.NoError(t, mm.Remove(txn, []byte("city:nyc"), 1))
	values, err = mm.ScanValues(txn, []byte("city:nyc"))
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, values)
}

func TestMultimapRangeScan(t *testing.T) {
	env := openTestEnv(t)
	txn, err := env.BeginRwTxn()
	require.NoError(t, err)
	defer txn.Abort()

	dbi, err := OpenDBI(txn, "idx", KeyTypeVariable, true, true)
	require.NoError(t, err)
	mm := NewMultimap[uint64](dbi, u64Key, u64Decode)

	require.NoError(t, mm.Insert(txn, []byte("a"), 1))
	require.NoError(t, mm.Insert(txn, []byte("b"), 2))
	require.NoError(t, mm.Insert(txn, []byte("c"), 3))
	require.NoError(t, mm.Insert(txn, []byte("d"), 4))

	kvs, err := mm.RangeScan(txn, &Bound{Value: []byte("b"), Inclusive: true}, &Bound{Value: []byte("c"), Inclusive: true})
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	require.Equal(t, uint64(2), kvs[0].Val)
	require.Equal(t, uint64(3), kvs[1].Val)

	kvs, err = mm.RangeScan(txn, &Bound{Value: []byte("b"), Inclusive: false}, nil)
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	require.Equal(t, uint64(3), kvs[0].Val)
	require.Equal(t, uint64(4), kvs[1].Val)
}

func TestRangeIteratorMatchesRangeScan(t *testing.T) {
	env := openTestEnv(t)
	txn, err := env.BeginRwTxn()
	require.NoError(t, err)
	defer txn.Abort()

	dbi, err := OpenDBI(txn, "idx", KeyTypeVariable, true, true)
	require.NoError(t, err)
	mm := NewMultimap[uint64](dbi, u64Key, u64Decode)
	for i, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, mm.Insert(txn, []byte(k), uint64(i+1)))
	}

	it, err := mm.NewRangeIterator(txn, &Bound{Value: []byte("b"), Inclusive: true}, nil)
	require.NoError(t, err)
	defer it.Close()

	var got []uint64
	for {
		_, v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Equal(t, []uint64{2, 3, 4}, got)
}
