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

// NodeHandle identifies a pipeline source whose progress is tracked by
// the checkpoint store (§4.8). It is a variable-length binary identifier;
// Namespace/ID is this implementation's concrete shape for it.
type NodeHandle struct {
	Namespace string
	ID        uint64
}

func (h NodeHandle) Bytes() []byte {
	buf := make([]byte, 4+len(h.Namespace)+8)
	binary.BigEndian.PutUint32(buf, uint32(len(h.Namespace)))
	copy(buf[4:], h.Namespace)
	binary.BigEndian.PutUint64(buf[4+len(h.Namespace):], h.ID)
	return buf
}

func ParseNodeHandle(b []byte) (NodeHandle, error) {
	if len(b) < 4 {
		return NodeHandle{}, errors.New("cache: malformed node handle")
	}
	n := int(binary.BigEndian.Uint32(b))
	if len(b) != 4+n+8 {
		return NodeHandle{}, errors.New("cache: malformed node handle")
	}
	return NodeHandle{
		Namespace: string(b[4 : 4+n]),
		ID:        binary.BigEndian.Uint64(b[4+n:]),
	}, nil
}

// OpIdentifier is the 16-byte (txid, seq) pair a checkpoint maps a
// NodeHandle to (§4.8).
type OpIdentifier struct {
	TxID uint64
	Seq  uint64
}

func (op OpIdentifier) Bytes() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf, op.TxID)
	binary.BigEndian.PutUint64(buf[8:], op.Seq)
	return buf
}

func ParseOpIdentifier(b []byte) (OpIdentifier, error) {
	if len(b) != 16 {
		return OpIdentifier{}, errors.New("cache: malformed op identifier")
	}
	return OpIdentifier{TxID: binary.BigEndian.Uint64(b), Seq: binary.BigEndian.Uint64(b[8:])}, nil
}

func nodeHandleEncode(h NodeHandle) []byte { return h.Bytes() }

func opIdentifierEncode(op OpIdentifier) []byte { return op.Bytes() }

// checkpointStore is the Map[NodeHandle, OpIdentifier] from §4.8.
// commit(checkpoint) replaces its entire contents (clear, then extend)
// inside the caller's write transaction.
type checkpointStore struct {
	table kv.Map[NodeHandle, OpIdentifier]
}

func newCheckpointStore(dbi mdbx.DBI) checkpointStore {
	table := kv.NewMap[NodeHandle, OpIdentifier](dbi, nodeHandleEncode, ParseNodeHandle, opIdentifierEncode, ParseOpIdentifier)
	return checkpointStore{table: table}
}

// replace clears the store and inserts every entry of checkpoint, which
// must happen inside one write transaction so readers never observe a
// partially-replaced checkpoint (§4.8, testable property 6).
func (s checkpointStore) replace(txn *mdbx.Txn, checkpoint map[NodeHandle]OpIdentifier) error {
	if err := s.table.Clear(txn); err != nil {
		return err
	}
	pairs := make([]kv.Pair[NodeHandle, OpIdentifier], 0, len(checkpoint))
	for h, op := range checkpoint {
		pairs = append(pairs, kv.Pair[NodeHandle, OpIdentifier]{Key: h, Val: op})
	}
	return s.table.Extend(txn, pairs)
}

func (s checkpointStore) snapshot(txn *mdbx.Txn) (map[NodeHandle]OpIdentifier, error) {
	pairs, err := s.table.Iter(txn)
	if err != nil {
		return nil, err
	}
	out := make(map[NodeHandle]OpIdentifier, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Val
	}
	return out, nil
}
