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
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"
)

// Map is the unique-key KV view from §4.2: count, get, insert
// (no-overwrite), put (overwrite), remove, clear, iter and extend. There
// are no separate keys-only or values-only iterators; Iter returns both.
type Map[K any, V any] struct {
	dbi       mdbx.DBI
	encodeKey func(K) []byte
	decodeKey func([]byte) (K, error)
	encodeVal func(V) []byte
	decodeVal func([]byte) (V, error)
}

func NewMap[K any, V any](
	dbi mdbx.DBI,
	encodeKey func(K) []byte, decodeKey func([]byte) (K, error),
	encodeVal func(V) []byte, decodeVal func([]byte) (V, error),
) Map[K, V] {
	return Map[K, V]{dbi: dbi, encodeKey: encodeKey, decodeKey: decodeKey, encodeVal: encodeVal, decodeVal: decodeVal}
}

func (m Map[K, V]) DBI() mdbx.DBI { return m.dbi }

func (m Map[K, V]) Count(txn *mdbx.Txn) (uint64, error) {
	stat, err := txn.StatDBI(m.dbi)
	if err != nil {
		return 0, errors.Wrap(err, "kv: stat")
	}
	return stat.Entries, nil
}

func (m Map[K, V]) Get(txn *mdbx.Txn, key K) (V, bool, error) {
	var zero V
	raw, err := txn.Get(m.dbi, m.encodeKey(key))
	if err != nil {
		if mdbx.IsNotFound(err) {
			return zero, false, nil
		}
		return zero, false, errors.Wrap(err, "kv: get")
	}
	v, err := m.decodeVal(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Insert returns whether key was newly added; it returns false, not an
// error, when key is already present (§4.2 Map.insert contract).
func (m Map[K, V]) Insert(txn *mdbx.Txn, key K, val V) (bool, error) {
	err := txn.Put(m.dbi, m.encodeKey(key), m.encodeVal(val), mdbx.NoOverwrite)
	if err != nil {
		if mdbx.IsKeyExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "kv: insert")
	}
	return true, nil
}

// Put unconditionally writes key -> val, overwriting any existing value.
// Used where the contract requires replace-on-write (e.g. the ID
// allocator's counter slot and key bindings, the record store).
func (m Map[K, V]) Put(txn *mdbx.Txn, key K, val V) error {
	if err := txn.Put(m.dbi, m.encodeKey(key), m.encodeVal(val), 0); err != nil {
		return errors.Wrap(err, "kv: put")
	}
	return nil
}

// Remove returns whether key was actually removed.
func (m Map[K, V]) Remove(txn *mdbx.Txn, key K) (bool, error) {
	err := txn.Del(m.dbi, m.encodeKey(key), nil)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "kv: remove")
	}
	return true, nil
}

func (m Map[K, V]) Clear(txn *mdbx.Txn) error {
	if err := txn.Drop(m.dbi, false); err != nil {
		return errors.Wrap(err, "kv: clear")
	}
	return nil
}

// Pair is one decoded (key, value) entry from an iterator.
type Pair[K any, V any] struct {
	Key K
	Val V
}

// Iter walks the whole map in key order.
func (m Map[K, V]) Iter(txn *mdbx.Txn) ([]Pair[K, V], error) {
	cur, err := txn.OpenCursor(m.dbi)
	if err != nil {
		return nil, errors.Wrap(err, "kv: open cursor")
	}
	defer cur.Close()

	var out []Pair[K, V]
	k, v, err := cur.Get(nil, nil, mdbx.First)
	for err == nil {
		key, decErr := m.decodeKey(k)
		if decErr != nil {
			return nil, decErr
		}
		val, decErr := m.decodeVal(v)
		if decErr != nil {
			return nil, decErr
		}
		out = append(out, Pair[K, V]{Key: key, Val: val})
		k, v, err = cur.Get(nil, nil, mdbx.Next)
	}
	if !mdbx.IsNotFound(err) {
		return nil, errors.Wrap(err, "kv: iterate")
	}
	return out, nil
}

// Extend inserts every (key, value) pair from src, skipping (not
// overwriting) keys that already exist — the Map.extend-from-iterator
// contract from §4.2.
func (m Map[K, V]) Extend(txn *mdbx.Txn, src []Pair[K, V]) error {
	for _, p := range src {
		if _, err := m.Insert(txn, p.Key, p.Val); err != nil {
			return err
		}
	}
	return nil
}
