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

// RangeIterator walks one multimap key range incrementally, without
// materializing the whole scan up front. The query executor's chunked
// k-way intersection (§4.7) refills a small buffer from one of these per
// contributing index, bounding peak memory by intersection_chunk_size
// regardless of how many rows a single index term matches.
type RangeIterator[V any] struct {
	cur       *mdbx.Cursor
	decodeVal func([]byte) (V, error)
	upper     *Bound
	started   bool
	done      bool

	// hasPending holds the entry the lower bound already landed the
	// cursor on (via SetRange or the NextNoDup that skips an exclusive
	// lower bound's exact match). The first Next() call must yield it
	// rather than advancing past it.
	hasPending bool
	pendingKey []byte
	pendingVal []byte
}

// NewRangeIterator opens a cursor positioned at the start of [lower, upper].
// The caller must call Close when finished.
func (m Multimap[V]) NewRangeIterator(txn *mdbx.Txn, lower, upper *Bound) (*RangeIterator[V], error) {
	cur, err := txn.OpenCursor(m.dbi)
	if err != nil {
		return nil, errors.Wrap(err, "kv: open cursor")
	}
	it := &RangeIterator[V]{cur: cur, decodeVal: m.decodeVal, upper: upper}
	if lower != nil && lower.Value != nil {
		k, v, err := cur.Get(lower.Value, nil, mdbx.SetRange)
		if err != nil {
			if mdbx.IsNotFound(err) {
				it.done = true
				it.started = true
				return it, nil
			}
			cur.Close()
			return nil, errors.Wrap(err, "kv: multimap seek")
		}
		if !lower.Inclusive && bytes.Equal(k, lower.Value) {
			k, v, err = cur.Get(nil, nil, mdbx.NextNoDup)
			if err != nil {
				if mdbx.IsNotFound(err) {
					it.done = true
					it.started = true
					return it, nil
				}
				cur.Close()
				return nil, errors.Wrap(err, "kv: multimap advance")
			}
		}
		it.started = true
		it.hasPending = true
		it.pendingKey = k
		it.pendingVal = v
	}
	return it, nil
}

func (it *RangeIterator[V]) Close() {
	it.cur.Close()
}

// Next returns the next (key, value) pair in range, or ok=false once the
// range (or the whole table) is exhausted.
func (it *RangeIterator[V]) Next() (key []byte, val V, ok bool, err error) {
	var zero V
	if it.done {
		return nil, zero, false, nil
	}

	var k, v []byte
	switch {
	case it.hasPending:
		k, v = it.pendingKey, it.pendingVal
		it.hasPending = false
	case !it.started:
		k, v, err = it.cur.Get(nil, nil, mdbx.First)
		it.started = true
	default:
		k, v, err = it.cur.Get(nil, nil, mdbx.Next)
	}
	if err != nil {
		if mdbx.IsNotFound(err) {
			it.done = true
			return nil, zero, false, nil
		}
		return nil, zero, false, errors.Wrap(err, "kv: multimap iterate")
	}
	if it.upper != nil && it.upper.Value != nil {
		cmp := bytes.Compare(k, it.upper.Value)
		if cmp > 0 || (cmp == 0 && !it.upper.Inclusive) {
			it.done = true
			return nil, zero, false, nil
		}
	}
	decoded, decErr := it.decodeVal(v)
	if decErr != nil {
		return nil, zero, false, decErr
	}
	return k, decoded, true, nil
}
