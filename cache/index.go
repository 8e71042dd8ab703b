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
	"fmt"
	"strings"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/schema"
	"github.com/erigontech/reccache/value"
)

// indexTable is one secondary index's backing multimap, keyed by the
// composite encoded field value(s) and storing record IDs as duplicate
// values (§4.6).
type indexTable struct {
	def schema.IndexDefinition
	mm  kv.Multimap[uint64]
}

func recordIDEncode(id uint64) []byte { return u64Encode(id) }
func recordIDDecode(b []byte) (uint64, error) { return u64Decode(b) }

func newIndexTable(def schema.IndexDefinition, dbi mdbx.DBI) indexTable {
	return indexTable{def: def, mm: kv.NewMultimap[uint64](dbi, recordIDEncode, recordIDDecode)}
}

func indexTableName(schemaID value.SchemaID, indexPos int) string {
	return fmt.Sprintf("secondary_index_%d_%d", uint32(schemaID), indexPos)
}

// indexKeys computes the set of index keys build_indexes must insert for
// one record under one index definition (§4.6).
func indexKeys(def schema.IndexDefinition, values []value.Field) [][]byte {
	switch def.Kind {
	case schema.SortedInverted:
		return [][]byte{value.CompositeKey(values, def.Fields)}
	case schema.FullText:
		text, _ := values[def.Fields[0]].AsStringLike()
		return fullTextTokenKeys(text)
	default:
		return nil
	}
}

// fullTextTokenKeys tokenizes on whitespace, ASCII-lowercases, and
// deduplicates tokens so that a field containing the same word twice does
// not produce two (identical key, record_id) pairs in a DupSort multimap
// that already rejects that duplicate — dedup here just avoids redundant
// insert/remove calls.
func fullTextTokenKeys(text string) [][]byte {
	fields := strings.Fields(text)
	seen := make(map[string]struct{}, len(fields))
	keys := make([][]byte, 0, len(fields))
	for _, tok := range fields {
		lower := asciiLower(tok)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		keys = append(keys, []byte(lower))
	}
	return keys
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// buildIndexes inserts (key, recordID) into every index table for a
// record's current field values. It is total on success; the caller's
// transaction is expected to be aborted by the caller on any error,
// leaving no partial index state visible to other transactions (§4.6).
func buildIndexes(txn *mdbx.Txn, tables []indexTable, values []value.Field, recordID uint64) error {
	for _, idx := range tables {
		for _, key := range indexKeys(idx.def, values) {
			if err := idx.mm.Insert(txn, key, recordID); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteIndexes removes the same (key, recordID) pairs buildIndexes would
// have inserted for values.
func deleteIndexes(txn *mdbx.Txn, tables []indexTable, values []value.Field, recordID uint64) error {
	for _, idx := range tables {
		for _, key := range indexKeys(idx.def, values) {
			if err := idx.mm.Remove(txn, key, recordID); err != nil {
				return err
			}
		}
	}
	return nil
}
