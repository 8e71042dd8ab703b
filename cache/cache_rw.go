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
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/schema"
	"github.com/erigontech/reccache/value"
)

// RwCache is the read/write cache flavour from §4.9. It owns one shared
// write transaction handle; at most one goroutine may act on it at a
// time. The spec's "read/write lock... readers borrow it immutably"
// language describes the original's concurrent-reader behavior, which
// assumes a storage handle safe for simultaneous multi-thread reads. This
// implementation takes the conservative reading: a plain mutex serializes
// every use (read or write) of the shared transaction, since mdbx-go
// cursors are not documented as safe for concurrent multi-goroutine use
// against the same transaction. The unbounded multi-reader guarantee
// (§5) is honored on RoCache, which opens one independent read
// transaction per call.
type RwCache struct {
	base

	debug bool

	txnMu sync.Mutex
	txn   *mdbx.Txn
}

// Create initializes a brand-new writable cache directory: it creates
// the mandatory sub-databases, commits that initial state, and opens the
// first shared write transaction (§3.5).
func Create(opts WriteOptions) (*RwCache, error) {
	opts = opts.withDefaults()
	env, err := kv.Open(kv.Options{
		Path:       envPath(opts.CommonOptions),
		MaxReaders: opts.MaxReaders,
		MaxDBs:     opts.MaxDBs,
		MapSize:    opts.MaxSize,
	}, true)
	if err != nil {
		return nil, wrapStorage(err)
	}

	initTxn, err := env.BeginRwTxn()
	if err != nil {
		env.Close()
		return nil, wrapStorage(err)
	}
	records, primary, chk, byID, byName, err := openMandatoryTables(initTxn, true)
	if err != nil {
		initTxn.Abort()
		env.Close()
		return nil, err
	}
	registry, err := schema.NewRegistry(initTxn, byID, byName, opts.Log)
	if err != nil {
		initTxn.Abort()
		env.Close()
		return nil, err
	}
	if err := initTxn.Commit(); err != nil {
		env.Close()
		return nil, wrapStorage(err)
	}

	writeTxn, err := env.BeginRwTxn()
	if err != nil {
		env.Close()
		return nil, wrapStorage(err)
	}

	c := &RwCache{
		base: base{
			env: env, name: opts.Name, log: opts.Log, chunkSize: opts.IntersectionChunkSize,
			registry: registry, records: records, primary: primary, chkpoint: chk,
			metrics: newMetrics(),
		},
		debug: opts.Debug,
		txn:   writeTxn,
	}
	return c, nil
}

// Open re-opens an existing writable cache directory. Every mandatory
// sub-database must already exist.
func Open(opts WriteOptions) (*RwCache, error) {
	opts = opts.withDefaults()
	env, err := kv.Open(kv.Options{
		Path:       envPath(opts.CommonOptions),
		MaxReaders: opts.MaxReaders,
		MaxDBs:     opts.MaxDBs,
		MapSize:    opts.MaxSize,
	}, false)
	if err != nil {
		return nil, wrapStorage(err)
	}

	writeTxn, err := env.BeginRwTxn()
	if err != nil {
		env.Close()
		return nil, wrapStorage(err)
	}
	records, primary, chk, byID, byName, err := openMandatoryTables(writeTxn, false)
	if err != nil {
		writeTxn.Abort()
		env.Close()
		return nil, err
	}
	registry, err := schema.NewRegistry(writeTxn, byID, byName, opts.Log)
	if err != nil {
		writeTxn.Abort()
		env.Close()
		return nil, err
	}

	c := &RwCache{
		base: base{
			env: env, name: opts.Name, log: opts.Log, chunkSize: opts.IntersectionChunkSize,
			registry: registry, records: records, primary: primary, chkpoint: chk,
			metrics: newMetrics(),
		},
		debug: opts.Debug,
		txn:   writeTxn,
	}
	for _, e := range registry.IterAll() {
		tables, err := openIndexTables(writeTxn, e.ID, e.Indexes, false)
		if err != nil {
			writeTxn.Abort()
			env.Close()
			return nil, err
		}
		c.setIndexTablesFor(e.ID, tables)
	}
	return c, nil
}

// Close commits no pending state; callers must Commit explicitly before
// Close if they want the current write transaction's effects durable.
func (c *RwCache) Close() error {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()
	if c.txn != nil {
		c.txn.Abort()
		c.txn = nil
	}
	return c.env.Close()
}

// RegisterSchema implements §4.3 insert: only valid before any records
// exist for id, which this implementation enforces by requiring it be
// called before any Insert targeting that schema.
func (c *RwCache) RegisterSchema(id value.SchemaID, name string, sch schema.Schema, indexes []schema.IndexDefinition) error {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	tables, err := openIndexTables(c.txn, id, indexes, true)
	if err != nil {
		return err
	}
	if err := c.registry.Insert(c.txn, schema.Entry{ID: id, Name: name, Schema: sch, Indexes: indexes}); err != nil {
		return err
	}
	c.setIndexTablesFor(id, tables)
	return nil
}

// Insert implements §4.4/§6.2: allocates an ID (reusing one bound to the
// record's primary key, if any), rejects a primary-key collision, writes
// the record, and builds every secondary index entry, all under the
// shared write transaction.
func (c *RwCache) Insert(record value.Record) (uint64, error) {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	entry, ok := c.registry.GetByID(record.SchemaID)
	if !ok {
		return 0, &SchemaIdentifierNotFoundError{ID: uint32(record.SchemaID)}
	}

	if c.debug {
		if err := schema.CheckConsistency(entry.Schema, record.Values); err != nil {
			return 0, err
		}
	}

	var primaryKey []byte
	if len(entry.Schema.PrimaryIndex) > 0 {
		primaryKey = value.CompositeKey(record.Values, entry.Schema.PrimaryIndex)
	}

	id, existing, err := c.primary.nextID(c.txn, primaryKey)
	if err != nil {
		return 0, err
	}
	if existing {
		if _, ok, err := c.records.get(c.txn, id); err != nil {
			return 0, err
		} else if ok {
			return 0, ErrPrimaryKeyExists
		}
	}

	if record.Version == 0 {
		record.Version = 1
	}
	if err := c.records.insert(c.txn, id, record); err != nil {
		return 0, err
	}
	if err := buildIndexes(c.txn, c.indexTablesFor(record.SchemaID), record.Values, id); err != nil {
		return 0, err
	}
	c.metrics.inserts.Inc()
	return id, nil
}

// Update implements §4.9/§6.2's compose-as-delete+insert update path: it
// looks up the record by primaryKey, removes its index entries, writes
// the new values under a strictly incremented version, and rebuilds
// indexes — all under the shared write transaction — returning the prior
// version.
func (c *RwCache) Update(primaryKey []byte, record value.Record) (uint32, error) {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	id, ok, err := c.primary.lookup(c.txn, primaryKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPrimaryKeyNotFound
	}
	prior, ok, err := c.records.get(c.txn, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPrimaryKeyNotFound
	}

	tables := c.indexTablesFor(prior.SchemaID)
	if err := deleteIndexes(c.txn, tables, prior.Values, id); err != nil {
		return 0, err
	}

	record.SchemaID = prior.SchemaID
	record.Version = prior.Version + 1

	entry, ok := c.registry.GetByID(record.SchemaID)
	if !ok {
		return 0, &SchemaIdentifierNotFoundError{ID: uint32(record.SchemaID)}
	}
	if c.debug {
		if err := schema.CheckConsistency(entry.Schema, record.Values); err != nil {
			return 0, err
		}
	}
	newKey := primaryKey
	if len(entry.Schema.PrimaryIndex) > 0 {
		newKey = value.CompositeKey(record.Values, entry.Schema.PrimaryIndex)
	}
	newID, existing, err := c.primary.nextID(c.txn, newKey)
	if err != nil {
		return 0, err
	}
	if existing && newID != id {
		return 0, ErrPrimaryKeyExists
	}

	if err := c.records.insert(c.txn, newID, record); err != nil {
		return 0, err
	}
	if newID != id {
		if _, err := c.records.remove(c.txn, id); err != nil {
			return 0, err
		}
	}
	if err := buildIndexes(c.txn, tables, record.Values, newID); err != nil {
		return 0, err
	}
	c.metrics.updates.Inc()
	return prior.Version, nil
}

// Delete implements §6.2: it removes the record and its index entries.
// The primary-key binding itself is left in place (§4.4/§9): a later
// insert under the same primary key reuses this record_id.
func (c *RwCache) Delete(primaryKey []byte) (uint32, error) {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	id, ok, err := c.primary.lookup(c.txn, primaryKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPrimaryKeyNotFound
	}
	rec, ok, err := c.records.get(c.txn, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPrimaryKeyNotFound
	}

	tables := c.indexTablesFor(rec.SchemaID)
	if err := deleteIndexes(c.txn, tables, rec.Values, id); err != nil {
		return 0, err
	}
	if _, err := c.records.remove(c.txn, id); err != nil {
		return 0, err
	}
	c.metrics.deletes.Inc()
	return rec.Version, nil
}

// Commit implements §4.8/§4.9: it clear-then-extends the checkpoint
// store, commits the current write transaction, and opens a fresh one
// atomically under the same lock (commit_and_renew).
func (c *RwCache) Commit(checkpoint map[NodeHandle]OpIdentifier) error {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	if err := c.chkpoint.replace(c.txn, checkpoint); err != nil {
		return err
	}
	if err := c.txn.Commit(); err != nil {
		return wrapStorage(err)
	}
	newTxn, err := c.env.BeginRwTxn()
	if err != nil {
		c.txn = nil
		return wrapStorage(err)
	}
	c.txn = newTxn
	c.metrics.commits.Inc()
	return nil
}

func (c *RwCache) GetCheckpoint() (map[NodeHandle]OpIdentifier, error) {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()
	return c.chkpoint.snapshot(c.txn)
}

func (c *RwCache) Get(primaryKey []byte) (Hydrated, error) {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	id, ok, err := c.primary.lookup(c.txn, primaryKey)
	if err != nil {
		return Hydrated{}, err
	}
	if !ok {
		return Hydrated{}, ErrPrimaryKeyNotFound
	}
	rec, ok, err := c.records.get(c.txn, id)
	if err != nil {
		return Hydrated{}, err
	}
	if !ok {
		return Hydrated{}, ErrPrimaryKeyNotFound
	}
	return Hydrated{ID: id, Record: rec}, nil
}

func (c *RwCache) Count(schemaName string, expr QueryExpression) (int, error) {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	entry, err := c.resolveSchema(schemaName)
	if err != nil {
		return 0, err
	}
	ids, err := resolveIDs(c.txn, entry.ID, entry.Schema, entry.Indexes, c.indexTablesFor(entry.ID), c.records, expr, c.chunkSize)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (c *RwCache) Query(schemaName string, expr QueryExpression) ([]Hydrated, error) {
	c.txnMu.Lock()
	defer c.txnMu.Unlock()

	entry, err := c.resolveSchema(schemaName)
	if err != nil {
		return nil, err
	}
	ids, err := resolveIDs(c.txn, entry.ID, entry.Schema, entry.Indexes, c.indexTablesFor(entry.ID), c.records, expr, c.chunkSize)
	if err != nil {
		return nil, err
	}
	return hydrate(c.txn, c.records, ids)
}

var _ Writer = (*RwCache)(nil)
