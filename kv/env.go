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
	"github.com/c2h5oh/datasize"
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"
)

// ErrDatabaseNotFound is returned by OpenDBI when create is false and the
// named sub-database does not already exist in the environment — the
// read-only-cache-on-incomplete-directory case from §6.3.
var ErrDatabaseNotFound = errors.New("kv: sub-database not found")

// Options configures a single cache environment (§6.4).
type Options struct {
	Path       string
	MaxReaders uint64
	MaxDBs     uint64
	MapSize    datasize.ByteSize // ignored (and may be zero) when ReadOnly
	ReadOnly   bool
}

// Env owns one mdbx environment and every sub-database of one cache,
// satisfying invariant 6 (all sub-stores live in one physical environment
// and see the same transactional snapshot).
type Env struct {
	env  *mdbx.Env
	path string
}

// Open creates or opens the environment at opts.Path. Writable callers
// must pass create=true on first use; read-only callers never create.
func Open(opts Options, create bool) (*Env, error) {
	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, errors.Wrap(err, "kv: allocate environment")
	}
	if err := env.SetOption(mdbx.OptMaxDB, opts.MaxDBs); err != nil {
		return nil, errors.Wrap(err, "kv: set max dbs")
	}
	if err := env.SetOption(mdbx.OptMaxReaders, opts.MaxReaders); err != nil {
		return nil, errors.Wrap(err, "kv: set max readers")
	}
	if !opts.ReadOnly && opts.MapSize > 0 {
		if err := env.SetGeometry(-1, -1, int(opts.MapSize), -1, -1, -1); err != nil {
			return nil, errors.Wrap(err, "kv: set geometry")
		}
	}
	flags := mdbx.NoSubdir
	if opts.ReadOnly {
		flags |= mdbx.Readonly
	} else if create {
		flags |= mdbx.Create
	}
	if err := env.Open(opts.Path, flags, 0o664); err != nil {
		env.Close()
		return nil, errors.Wrapf(err, "kv: open environment at %s", opts.Path)
	}
	return &Env{env: env, path: opts.Path}, nil
}

func (e *Env) Path() string { return e.path }

func (e *Env) Close() error {
	e.env.Close()
	return nil
}

func (e *Env) BeginRoTxn() (*mdbx.Txn, error) {
	txn, err := e.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, errors.Wrap(err, "kv: begin read transaction")
	}
	return txn, nil
}

func (e *Env) BeginRwTxn() (*mdbx.Txn, error) {
	txn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, errors.Wrap(err, "kv: begin write transaction")
	}
	return txn, nil
}

// OpenDBI opens (and optionally creates) the named sub-database with the
// comparator implied by kt, and a DupSort flag for multimaps.
func OpenDBI(txn *mdbx.Txn, name string, kt KeyType, dupSort bool, create bool) (mdbx.DBI, error) {
	flags := dbiFlags(kt)
	if dupSort {
		flags |= mdbx.DupSort
	}
	if create {
		flags |= mdbx.Create
	}
	dbi, err := txn.OpenDBI(name, flags, nil, nil)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return 0, errors.Wrapf(ErrDatabaseNotFound, "sub-database %q", name)
		}
		return 0, errors.Wrapf(err, "kv: open sub-database %q", name)
	}
	return dbi, nil
}
