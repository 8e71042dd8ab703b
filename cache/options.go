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

// Package cache wires the value codec, schema registry, and kv façade into
// the transactional record-and-index engine described in §4: ID
// allocation, the record store, the secondary-index engine, the query
// executor, the checkpoint store, and the single-writer/multi-reader
// transaction discipline.
package cache

import (
	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"
)

// CommonOptions configures any cache, read-only or writable (§6.4).
type CommonOptions struct {
	// Dir is the directory holding the environment file. If empty, a
	// process temp directory is used.
	Dir  string
	Name string

	MaxReaders            uint64
	MaxDBs                uint64
	IntersectionChunkSize int

	// Debug enables schema.CheckConsistency on every insert/update. It is
	// cheap enough to leave on in most deployments; it exists as a flag
	// because it is a programmer-error detector, not something every
	// caller needs to pay for on a record shape it already trusts.
	Debug bool

	Log *zap.Logger
}

// DefaultCommonOptions mirrors the defaults table in §6.4.
func DefaultCommonOptions() CommonOptions {
	return CommonOptions{
		MaxReaders:            1000,
		MaxDBs:                1000,
		IntersectionChunkSize: 100,
	}
}

func (o CommonOptions) withDefaults() CommonOptions {
	if o.MaxReaders == 0 {
		o.MaxReaders = 1000
	}
	if o.MaxDBs == 0 {
		o.MaxDBs = 1000
	}
	if o.IntersectionChunkSize == 0 {
		o.IntersectionChunkSize = 100
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// WriteOptions configures a writable cache in addition to CommonOptions.
type WriteOptions struct {
	CommonOptions
	// MaxSize bounds the memory-mapped capacity. datasize.ByteSize gives
	// this field a typed, human-readable form ("64GB") instead of a bare
	// integer byte count.
	MaxSize datasize.ByteSize
}

// DefaultWriteOptions mirrors the 1 TiB default max_size from §6.4.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		CommonOptions: DefaultCommonOptions(),
		MaxSize:       datasize.TB,
	}
}

func (o WriteOptions) withDefaults() WriteOptions {
	o.CommonOptions = o.CommonOptions.withDefaults()
	if o.MaxSize == 0 {
		o.MaxSize = datasize.TB
	}
	return o
}
