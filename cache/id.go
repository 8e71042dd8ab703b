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

package cache

import (
	"encoding/binary"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/kv"
	"github.com/pkg/errors"
)

// nextIDSentinel is the reserved primary_index key holding the next-free
// record_id counter (§4.4). No legal encoded primary key collides with it:
// every real primary key either starts with a Field type tag in [0,11]
// (§3.2) or is empty (auto-keyed schemas never consult the allocator's
// primary-key-bound path at all). 0xFF is outside the tag range, so no
// real composite key, whose first byte is always a tag, can equal it.
var nextIDSentinel = []byte{0xFF}

// idAllocator assigns monotonically unique record IDs (§4.4), backed by a
// reserved entry in the primary-key map. PK-to-ID bindings are permanent:
// delete never removes them, so re-inserting under a previously-used
// primary key reuses that key's original ID (§9 open question).
type idAllocator struct {
	primaryIndex kv.Map[[]byte, uint64]
}

func u64Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func u64Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.New("cache: malformed u64 value")
	}
	return binary.BigEndian.Uint64(b), nil
}

func bytesEncode(b []byte) []byte { return b }
func bytesDecode(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func newPrimaryIndexTable(dbi mdbx.DBI) kv.Map[[]byte, uint64] {
	return kv.NewMap[[]byte, uint64](dbi, bytesEncode, bytesDecode, u64Encode, u64Decode)
}

// lookup returns the ID bound to primaryKey, if any. primaryKey may be
// nil (auto-keyed schemas never call this).
func (a idAllocator) lookup(txn *mdbx.Txn, primaryKey []byte) (uint64, bool, error) {
	return a.primaryIndex.Get(txn, primaryKey)
}

// nextID implements §4.4: if primaryKey already maps to an ID, that ID is
// returned with existing=true (Insert rejects the insert as a duplicate
// only if a record is still stored under that ID, and otherwise reuses
// the ID). Otherwise the counter is read, bound to primaryKey (when
// non-nil) and incremented, and the fresh ID is returned.
func (a idAllocator) nextID(txn *mdbx.Txn, primaryKey []byte) (id uint64, existing bool, err error) {
	if primaryKey != nil {
		if bound, ok, err := a.primaryIndex.Get(txn, primaryKey); err != nil {
			return 0, false, err
		} else if ok {
			return bound, true, nil
		}
	}

	counter, ok, err := a.primaryIndex.Get(txn, nextIDSentinel)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		counter = 1
	}

	if primaryKey != nil {
		if err := a.primaryIndex.Put(txn, primaryKey, counter); err != nil {
			return 0, false, err
		}
	}
	if err := a.primaryIndex.Put(txn, nextIDSentinel, counter+1); err != nil {
		return 0, false, err
	}
	return counter, false, nil
}
