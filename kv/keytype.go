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

// Package kv is the storage façade described in §4.2: it abstracts the
// mmap store (github.com/erigontech/mdbx-go) behind the vocabulary used by
// the rest of the cache — environments, sub-databases, read/write
// transactions and cursors — mirroring the table-config idiom of the
// teacher's erigon-lib/kv package (TableCfg / TableFlags).
package kv

import "github.com/erigontech/mdbx-go/mdbx"

// KeyType is the key-type declaration hint from §4.2: it lets the
// underlying store pick an internal comparator for a sub-database.
type KeyType uint8

const (
	KeyTypeVariable KeyType = iota
	KeyTypeFixedOther
	KeyTypeU32
	KeyTypeU64
)

// is64bit mirrors the teacher's `#[cfg(target_pointer_width = "64")]`
// carve-out for u64 keys: on 32-bit platforms a u64 key cannot use the
// store's native IntegerKey comparator and falls back to FixedOther.
const is64bit = ^uint(0)>>32 != 0

// dbiFlags returns the mdbx flags matching a KeyType. Integer keys are
// still encoded big-endian by their callers (the record store's u64 IDs,
// the schema table's SchemaID keys), so on little-endian hosts the
// IntegerKey comparator orders
// entries by byte-reversed magnitude. This is the inherited quirk
// documented in §4.2/§9: none of this cache's sub-databases depend on
// ordered iteration of an integer-keyed table, so the quirk is harmless
// and is reproduced bit-for-bit rather than "fixed".
func dbiFlags(kt KeyType) mdbx.DBIFlags {
	switch kt {
	case KeyTypeU32:
		return mdbx.IntegerKey
	case KeyTypeU64:
		if is64bit {
			return mdbx.IntegerKey
		}
		return 0
	default:
		return 0
	}
}
