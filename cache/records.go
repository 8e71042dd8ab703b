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
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/value"
)

// recordStore is the Map[u64, record] from §4.5. Records are serialized
// with value.EncodeRecord/DecodeRecord, a stable, self-describing,
// length-delimited format.
type recordStore struct {
	table kv.Map[uint64, value.Record]
}

func recordDecode(b []byte) (value.Record, error) {
	r, err := value.DecodeRecord(b)
	if err != nil {
		return value.Record{}, &DeserializationError{Type: "Record", Reason: err.Error()}
	}
	return r, nil
}

func newRecordStore(dbi mdbx.DBI) recordStore {
	table := kv.NewMap[uint64, value.Record](dbi, u64Encode, u64Decode, value.EncodeRecord, recordDecode)
	return recordStore{table: table}
}

func (s recordStore) get(txn *mdbx.Txn, id uint64) (value.Record, bool, error) {
	return s.table.Get(txn, id)
}

func (s recordStore) insert(txn *mdbx.Txn, id uint64, r value.Record) error {
	if err := s.table.Put(txn, id, r); err != nil {
		return err
	}
	return nil
}

func (s recordStore) remove(txn *mdbx.Txn, id uint64) (bool, error) {
	return s.table.Remove(txn, id)
}

func (s recordStore) count(txn *mdbx.Txn) (uint64, error) {
	return s.table.Count(txn)
}

func (s recordStore) iterSchema(txn *mdbx.Txn, schemaID value.SchemaID) ([]kv.Pair[uint64, value.Record], error) {
	all, err := s.table.Iter(txn)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Val.SchemaID == schemaID {
			out = append(out, p)
		}
	}
	return out, nil
}
