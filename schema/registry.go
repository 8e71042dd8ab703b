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

package schema

import (
	"encoding/binary"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/value"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrSchemaIDExists and ErrSchemaNameExists guard the "schema identifiers
// must be unique" rule from §4.3.
var (
	ErrSchemaIDExists   = errors.New("schema: schema_id already registered")
	ErrSchemaNameExists = errors.New("schema: schema name already registered")
)

const (
	tableSchemas       = "schemas"
	tableSchemasByName = "schemas_by_name"
)

func schemaIDKey(id value.SchemaID) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(id))
	return b
}

func schemaIDDecode(b []byte) (value.SchemaID, error) {
	if len(b) != 4 {
		return 0, errors.New("schema: malformed schema_id key")
	}
	return value.SchemaID(binary.BigEndian.Uint32(b)), nil
}

func nameKey(s string) []byte { return []byte(s) }
func nameDecode(b []byte) (string, error) {
	return string(b), nil
}

// Registry is the process-wide schema catalogue for one cache (§3.4,
// §4.3). Schemas are registered once, at create time, and are immutable
// thereafter; Registry keeps an in-memory mirror built at Open so that
// read-heavy lookups (get_by_id / get_by_name, consulted on every
// insert/query) never pay for a transaction round trip.
type Registry struct {
	byID   kv.Map[value.SchemaID, Entry]
	byName kv.Map[string, value.SchemaID]
	log    *zap.Logger

	mu      sync.RWMutex
	entries map[value.SchemaID]Entry
	names   map[string]value.SchemaID
}

// CreateTables opens (creating if necessary) the two sub-databases backing
// the registry.
func CreateTables(txn *mdbx.Txn, create bool) (kv.Map[value.SchemaID, Entry], kv.Map[string, value.SchemaID], error) {
	idDBI, err := kv.OpenDBI(txn, tableSchemas, kv.KeyTypeU32, false, create)
	if err != nil {
		return kv.Map[value.SchemaID, Entry]{}, kv.Map[string, value.SchemaID]{}, err
	}
	nameDBI, err := kv.OpenDBI(txn, tableSchemasByName, kv.KeyTypeVariable, false, create)
	if err != nil {
		return kv.Map[value.SchemaID, Entry]{}, kv.Map[string, value.SchemaID]{}, err
	}
	byID := kv.NewMap[value.SchemaID, Entry](idDBI, schemaIDKey, schemaIDDecode, EncodeEntry, DecodeEntry)
	byName := kv.NewMap[string, value.SchemaID](nameDBI, nameKey, nameDecode, schemaIDKey, schemaIDDecode)
	return byID, byName, nil
}

// NewRegistry builds a Registry over already-opened tables and loads its
// in-memory mirror from txn.
func NewRegistry(txn *mdbx.Txn, byID kv.Map[value.SchemaID, Entry], byName kv.Map[string, value.SchemaID], log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		byID:    byID,
		byName:  byName,
		log:     log,
		entries: make(map[value.SchemaID]Entry),
		names:   make(map[string]value.SchemaID),
	}
	pairs, err := byID.Iter(txn)
	if err != nil {
		return nil, errors.Wrap(err, "schema: load registry")
	}
	for _, p := range pairs {
		r.entries[p.Key] = p.Val
		r.names[p.Val.Name] = p.Key
	}
	r.log.Debug("schema registry loaded", zap.Int("count", len(r.entries)))
	return r, nil
}

// Insert registers a new schema. It is only valid before any records
// exist under the schema's id (enforced by the caller, which must not
// call Insert once writes against that schema_id have begun; §3.5).
func (r *Registry) Insert(txn *mdbx.Txn, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.ID]; ok {
		return ErrSchemaIDExists
	}
	if _, ok := r.names[e.Name]; ok {
		return ErrSchemaNameExists
	}

	inserted, err := r.byID.Insert(txn, e.ID, e)
	if err != nil {
		return err
	}
	if !inserted {
		return ErrSchemaIDExists
	}
	if _, err := r.byName.Insert(txn, e.Name, e.ID); err != nil {
		return err
	}

	r.entries[e.ID] = e
	r.names[e.Name] = e.ID
	return nil
}

func (r *Registry) GetByID(id value.SchemaID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) GetByName(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[id], true
}

func (r *Registry) IterAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
