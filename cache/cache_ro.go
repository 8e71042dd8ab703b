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
	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/schema"
)

// RoCache is the read-only cache flavour from §4.9: it opens a fresh read
// transaction per operation, giving callers unbounded read concurrency up
// to max_readers (§5) with no writer in the process.
type RoCache struct {
	base
}

// OpenReadOnly opens an existing cache directory for read-only access.
// Every mandatory sub-database must already exist, or the call fails with
// kv.ErrDatabaseNotFound (§6.3).
func OpenReadOnly(opts CommonOptions) (*RoCache, error) {
	opts = opts.withDefaults()
	env, err := kv.Open(kv.Options{
		Path:       envPath(opts),
		MaxReaders: opts.MaxReaders,
		MaxDBs:     opts.MaxDBs,
		ReadOnly:   true,
	}, false)
	if err != nil {
		return nil, wrapStorage(err)
	}

	txn, err := env.BeginRoTxn()
	if err != nil {
		env.Close()
		return nil, wrapStorage(err)
	}
	defer txn.Abort()

	records, primary, chk, byID, byName, err := openMandatoryTables(txn, false)
	if err != nil {
		env.Close()
		return nil, err
	}
	registry, err := schema.NewRegistry(txn, byID, byName, opts.Log)
	if err != nil {
		env.Close()
		return nil, err
	}

	c := &RoCache{base: base{
		env: env, name: opts.Name, log: opts.Log, chunkSize: opts.IntersectionChunkSize,
		registry: registry, records: records, primary: primary, chkpoint: chk,
		metrics: newMetrics(),
	}}
	for _, e := range registry.IterAll() {
		tables, err := openIndexTables(txn, e.ID, e.Indexes, false)
		if err != nil {
			env.Close()
			return nil, err
		}
		c.setIndexTablesFor(e.ID, tables)
	}
	return c, nil
}

func (c *RoCache) Close() error { return c.env.Close() }

func (c *RoCache) Get(primaryKey []byte) (Hydrated, error) {
	txn, err := c.env.BeginRoTxn()
	if err != nil {
		return Hydrated{}, wrapStorage(err)
	}
	defer txn.Abort()

	id, ok, err := c.primary.lookup(txn, primaryKey)
	if err != nil {
		return Hydrated{}, err
	}
	if !ok {
		return Hydrated{}, ErrPrimaryKeyNotFound
	}
	rec, ok, err := c.records.get(txn, id)
	if err != nil {
		return Hydrated{}, err
	}
	if !ok {
		return Hydrated{}, ErrPrimaryKeyNotFound
	}
	return Hydrated{ID: id, Record: rec}, nil
}

func (c *RoCache) Count(schemaName string, expr QueryExpression) (int, error) {
	txn, err := c.env.BeginRoTxn()
	if err != nil {
		return 0, wrapStorage(err)
	}
	defer txn.Abort()

	entry, err := c.resolveSchema(schemaName)
	if err != nil {
		return 0, err
	}
	ids, err := resolveIDs(txn, entry.ID, entry.Schema, entry.Indexes, c.indexTablesFor(entry.ID), c.records, expr, c.chunkSize)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (c *RoCache) Query(schemaName string, expr QueryExpression) ([]Hydrated, error) {
	txn, err := c.env.BeginRoTxn()
	if err != nil {
		return nil, wrapStorage(err)
	}
	defer txn.Abort()

	entry, err := c.resolveSchema(schemaName)
	if err != nil {
		return nil, err
	}
	ids, err := resolveIDs(txn, entry.ID, entry.Schema, entry.Indexes, c.indexTablesFor(entry.ID), c.records, expr, c.chunkSize)
	if err != nil {
		return nil, err
	}
	return hydrate(txn, c.records, ids)
}

var _ Reader = (*RoCache)(nil)
