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
	"bytes"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"
)

// Multimap is the duplicate-key view used by the secondary-index engine
// (§4.7): one encoded key may carry many values, stored sorted by MDBX's
// DupSort comparator (plain byte-wise comparison on the encoded value).
type Multimap[V any] struct {
	dbi       mdbx.DBI
	encodeVal func(V) []byte
	decodeVal func([]byte) (V, error)
}

func NewMultimap[V any](dbi mdbx.DBI, encodeVal func(V) []byte, decodeVal func([]byte) (V, error)) Multimap[V] {
	return Multimap[V]{dbi: dbi, encodeVal: encodeVal, decodeVal: decodeVal}
}

func (m Multimap[V]) DBI() mdbx.DBI { return m.dbi }

// Insert adds (key, val) unless that exact pair is already present; MDBX's
// dup-sort comparator treats (key, val) as the unique identity here.
func (m Multimap[V]) Insert(txn *mdbx.Txn, key []byte, val V) error {
	err := txn.Put(m.dbi, key, m.encodeVal(val), mdbx.NoDupData)
	if err != nil && !mdbx.IsKeyExist(err) {
		return errors.Wrap(err, "kv: multimap insert")
	}
	return nil
}

// Remove deletes exactly the (key, val) pair, leaving any other value
// under the same key untouched.
func (m Multimap[V]) Remove(txn *mdbx.Txn, key []byte, val V) error {
	err := txn.Del(m.dbi, key, m.encodeVal(val))
	if err != nil && !mdbx.IsNotFound(err) {
		return errors.Wrap(err, "kv: multimap remove")
	}
	return nil
}

func (m Multimap[V]) Clear(txn *mdbx.Txn) error {
	if err := txn.Drop(m.dbi, false); err != nil {
		return errors.Wrap(err, "kv: multimap clear")
	}
	return nil
}

// Bound describes one side of a range scan over a multimap key-space; a
// nil Value means unbounded on that side.
type Bound struct {
	Value     []byte
	Inclusive bool
}

// ScanValues returns every value stored under exactly key, in dup-sort
// order — the equality-seek path used for FullText token lookups.
func (m Multimap[V]) ScanValues(txn *mdbx.Txn, key []byte) ([]V, error) {
	cur, err := txn.OpenCursor(m.dbi)
	if err != nil {
		return nil, errors.Wrap(err, "kv: open cursor")
	}
	defer cur.Close()

	var out []V
	_, v, err := cur.Get(key, nil, mdbx.SetKey)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "kv: multimap seek")
	}
	for {
		val, decErr := m.decodeVal(v)
		if decErr != nil {
			return nil, decErr
		}
		out = append(out, val)
		_, v, err = cur.Get(nil, nil, mdbx.NextDup)
		if err != nil {
			if mdbx.IsNotFound(err) {
				break
			}
			return nil, errors.Wrap(err, "kv: multimap scan")
		}
	}
	return out, nil
}

// KeyValue pairs a raw encoded key with one decoded value, produced by
// RangeScan when a query spans more than one key (trailing-range terms).
type KeyValue[V any] struct {
	Key []byte
	Val V
}

// RangeScan walks keys in [lower, upper] (bounds applied per Inclusive),
// yielding every (key, value) pair across every key in range, in key then
// dup-sort order. A nil lower starts at the first key; a nil upper runs to
// the last key. It returns the whole range at once; the query executor
// walks ranges incrementally through NewRangeIterator instead.
func (m Multimap[V]) RangeScan(txn *mdbx.Txn, lower, upper *Bound) ([]KeyValue[V], error) {
	cur, err := txn.OpenCursor(m.dbi)
	if err != nil {
		return nil, errors.Wrap(err, "kv: open cursor")
	}
	defer cur.Close()

	var k, v []byte
	if lower == nil || lower.Value == nil {
		k, v, err = cur.Get(nil, nil, mdbx.First)
	} else {
		k, v, err = cur.Get(lower.Value, nil, mdbx.SetRange)
		if err == nil && !lower.Inclusive && bytes.Equal(k, lower.Value) {
			k, v, err = cur.Get(nil, nil, mdbx.NextNoDup)
		}
	}

	var out []KeyValue[V]
	for err == nil {
		if upper != nil && upper.Value != nil {
			cmp := bytes.Compare(k, upper.Value)
			if cmp > 0 || (cmp == 0 && !upper.Inclusive) {
				break
			}
		}
		val, decErr := m.decodeVal(v)
		if decErr != nil {
			return nil, decErr
		}
		out = append(out, KeyValue[V]{Key: append([]byte(nil), k...), Val: val})
		k, v, err = cur.Get(nil, nil, mdbx.Next)
	}
	if err != nil && !mdbx.IsNotFound(err) {
		return nil, errors.Wrap(err, "kv: multimap range scan")
	}
	return out, nil
}
