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
	"os"
	"path/filepath"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/schema"
	"github.com/erigontech/reccache/value"
	"go.uber.org/zap"
)

const (
	tableRecords      = "records"
	tablePrimaryIndex = "primary_index"
	tableCheckpoint   = "checkpoint"
)

// Reader is the read surface exposed by both cache flavours (§6.2).
type Reader interface {
	Name() string
	Get(primaryKey []byte) (Hydrated, error)
	Count(schemaName string, expr QueryExpression) (int, error)
	Query(schemaName string, expr QueryExpression) ([]Hydrated, error)
	GetSchemaByName(name string) (schema.Entry, bool)
	GetSchemaByID(id value.SchemaID) (schema.Entry, bool)
}

// Writer is the additional surface a writable cache exposes (§6.2).
type Writer interface {
	Reader
	RegisterSchema(id value.SchemaID, name string, sch schema.Schema, indexes []schema.IndexDefinition) error
	Insert(record value.Record) (uint64, error)
	Update(primaryKey []byte, record value.Record) (uint32, error)
	Delete(primaryKey []byte) (uint32, error)
	Commit(checkpoint map[NodeHandle]OpIdentifier) error
	GetCheckpoint() (map[NodeHandle]OpIdentifier, error)
}

// base holds everything shared by RoCache and RwCache: the environment,
// the schema registry, and the per-schema index table handles. Table
// handles (mdbx.DBI values) are resolved once per process via OpenDBI and
// cached here, mirroring the teacher's erigon-lib/kv bucket-handle cache.
type base struct {
	env  *kv.Env
	name string
	log  *zap.Logger

	chunkSize int

	registry *schema.Registry

	mu       sync.RWMutex
	indexes  map[value.SchemaID][]indexTable
	records  recordStore
	primary  idAllocator
	chkpoint checkpointStore

	metrics *metrics
}

func envPath(opts CommonOptions) string {
	name := opts.Name
	if name == "" {
		name = "cache"
	}
	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, name+".mdbx")
}

// openMandatoryTables opens (and, when create is true, creates) the
// records/primary_index/schemas/schemas_by_name/checkpoint sub-databases
// every cache must have (§6.3).
func openMandatoryTables(txn *mdbx.Txn, create bool) (recordStore, idAllocator, checkpointStore, kv.Map[value.SchemaID, schema.Entry], kv.Map[string, value.SchemaID], error) {
	recordsDBI, err := kv.OpenDBI(txn, tableRecords, kv.KeyTypeU64, false, create)
	if err != nil {
		return recordStore{}, idAllocator{}, checkpointStore{}, kv.Map[value.SchemaID, schema.Entry]{}, kv.Map[string, value.SchemaID]{}, err
	}
	primaryDBI, err := kv.OpenDBI(txn, tablePrimaryIndex, kv.KeyTypeVariable, false, create)
	if err != nil {
		return recordStore{}, idAllocator{}, checkpointStore{}, kv.Map[value.SchemaID, schema.Entry]{}, kv.Map[string, value.SchemaID]{}, err
	}
	checkpointDBI, err := kv.OpenDBI(txn, tableCheckpoint, kv.KeyTypeVariable, false, create)
	if err != nil {
		return recordStore{}, idAllocator{}, checkpointStore{}, kv.Map[value.SchemaID, schema.Entry]{}, kv.Map[string, value.SchemaID]{}, err
	}
	byID, byName, err := schema.CreateTables(txn, create)
	if err != nil {
		return recordStore{}, idAllocator{}, checkpointStore{}, kv.Map[value.SchemaID, schema.Entry]{}, kv.Map[string, value.SchemaID]{}, err
	}

	records := newRecordStore(recordsDBI)
	primary := idAllocator{primaryIndex: newPrimaryIndexTable(primaryDBI)}
	chk := newCheckpointStore(checkpointDBI)
	return records, primary, chk, byID, byName, nil
}

// openIndexTables resolves (or creates) the secondary_index_<id>_<pos>
// sub-database for every index definition of entry.
func openIndexTables(txn *mdbx.Txn, id value.SchemaID, indexes []schema.IndexDefinition, create bool) ([]indexTable, error) {
	tables := make([]indexTable, len(indexes))
	for i, def := range indexes {
		dbi, err := kv.OpenDBI(txn, indexTableName(id, i), kv.KeyTypeVariable, true, create)
		if err != nil {
			return nil, err
		}
		tables[i] = newIndexTable(def, dbi)
	}
	return tables, nil
}

func (b *base) indexTablesFor(id value.SchemaID) []indexTable {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.indexes[id]
}

func (b *base) setIndexTablesFor(id value.SchemaID, tables []indexTable) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexes == nil {
		b.indexes = make(map[value.SchemaID][]indexTable)
	}
	b.indexes[id] = tables
}

func (b *base) Name() string { return b.name }

func (b *base) GetSchemaByName(name string) (schema.Entry, bool) {
	return b.registry.GetByName(name)
}

func (b *base) GetSchemaByID(id value.SchemaID) (schema.Entry, bool) {
	return b.registry.GetByID(id)
}

func (b *base) resolveSchema(schemaName string) (schema.Entry, error) {
	e, ok := b.registry.GetByName(schemaName)
	if !ok {
		return schema.Entry{}, &SchemaNotFoundError{Name: schemaName}
	}
	return e, nil
}

func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Cause: err}
}
