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
	"sort"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/schema"
	"github.com/erigontech/reccache/value"
)

// Hydrated is one (record_id, record) result pair (§4.7 step 6).
type Hydrated struct {
	ID     uint64
	Record value.Record
}

func drainAll(src idSource, chunkSize int) ([]uint64, error) {
	var out []uint64
	for {
		chunk, err := src.nextChunk(chunkSize)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return out, nil
		}
		out = append(out, chunk...)
	}
}

// chunkedIntersect implements §4.7 step 3: it repeatedly refills a bounded
// buffer (at most chunkSize unconsumed IDs) per contributing source and
// intersects across sources, so the per-source buffers hold at most
// O(chunkSize * len(sources)) IDs regardless of how large any one scan is.
// The result slice is not bounded, and a single source is drained whole.
func chunkedIntersect(chunkSize int, sources []idSource) ([]uint64, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	if len(sources) == 1 {
		ids, err := drainAll(sources[0], chunkSize)
		if err != nil {
			return nil, err
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return dedupSorted(ids), nil
	}

	bufs := make([][]uint64, len(sources))
	exhausted := make([]bool, len(sources))

	refill := func(i int) error {
		for len(bufs[i]) == 0 && !exhausted[i] {
			chunk, err := sources[i].nextChunk(chunkSize)
			if err != nil {
				return err
			}
			if len(chunk) == 0 {
				exhausted[i] = true
				break
			}
			sort.Slice(chunk, func(a, b int) bool { return chunk[a] < chunk[b] })
			bufs[i] = dedupSorted(chunk)
		}
		return nil
	}
	for i := range sources {
		if err := refill(i); err != nil {
			return nil, err
		}
	}

	var out []uint64
	for {
		ready := true
		for i := range bufs {
			if len(bufs[i]) == 0 {
				ready = false
				break
			}
		}
		if !ready {
			break
		}

		max := bufs[0][0]
		for i := 1; i < len(bufs); i++ {
			if bufs[i][0] > max {
				max = bufs[i][0]
			}
		}

		allEqual := true
		for i := range bufs {
			if bufs[i][0] != max {
				allEqual = false
				break
			}
		}

		if allEqual {
			out = append(out, max)
			for i := range bufs {
				bufs[i] = bufs[i][1:]
				if len(bufs[i]) == 0 {
					if err := refill(i); err != nil {
						return nil, err
					}
				}
			}
			continue
		}

		for i := range bufs {
			for len(bufs[i]) > 0 && bufs[i][0] < max {
				bufs[i] = bufs[i][1:]
			}
			if len(bufs[i]) == 0 {
				if err := refill(i); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func dedupSorted(ids []uint64) []uint64 {
	if len(ids) < 2 {
		return ids
	}
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// resolveIDs runs the full plan → scan → intersect → order → page
// pipeline (§4.7 steps 1-5) and returns the surviving record IDs.
func resolveIDs(
	txn *mdbx.Txn,
	schemaID value.SchemaID,
	sch schema.Schema,
	indexes []schema.IndexDefinition,
	tables []indexTable,
	records recordStore,
	expr QueryExpression,
	chunkSize int,
) ([]uint64, error) {
	contributions, err := planFilter(sch, indexes, expr.Filter)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	if len(contributions) == 0 {
		if len(expr.OrderBy) > 0 {
			return nil, ErrOrderByNotSupported
		}
		pairs, err := records.iterSchema(txn, schemaID)
		if err != nil {
			return nil, err
		}
		ids = make([]uint64, len(pairs))
		for i, p := range pairs {
			ids[i] = p.Key
		}
	} else {
		sources := make([]idSource, len(contributions))
		for i, c := range contributions {
			src, err := c.open(txn, tables)
			if err != nil {
				return nil, err
			}
			if cs, ok := src.(*cursorSource); ok {
				defer cs.it.Close()
			}
			sources[i] = src
		}

		if len(expr.OrderBy) > 0 {
			if len(contributions) != 1 || !contributions[0].isSortedInverted {
				return nil, ErrOrderByNotSupported
			}
			if len(expr.OrderBy) > 1 || expr.OrderBy[0].Field != contributions[0].orderField {
				return nil, ErrOrderByNotSupported
			}
		}

		if len(sources) == 1 {
			ids, err = drainAll(sources[0], chunkSize)
			if err != nil {
				return nil, err
			}
			if len(expr.OrderBy) == 1 && expr.OrderBy[0].Desc {
				reverseUint64(ids)
			}
		} else {
			ids, err = chunkedIntersect(chunkSize, sources)
			if err != nil {
				return nil, err
			}
		}
	}

	return page(ids, expr.Skip, expr.Limit), nil
}

func reverseUint64(ids []uint64) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

func page(ids []uint64, skip uint64, limit *uint64) []uint64 {
	if skip >= uint64(len(ids)) {
		return nil
	}
	ids = ids[skip:]
	if limit != nil && *limit < uint64(len(ids)) {
		ids = ids[:*limit]
	}
	return ids
}

// hydrate fetches each surviving ID's record. The IDs come from secondary
// index scans or from the record store itself, so a missing record behind
// a live index entry is an internal invariant violation (§3.4 invariant
// 3): it indicates the current transaction's own
// writes contradicted themselves, not an ordinary runtime condition, so
// it is a fatal abort rather than a recoverable error.
func hydrate(txn *mdbx.Txn, records recordStore, ids []uint64) ([]Hydrated, error) {
	out := make([]Hydrated, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := records.get(txn, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			panic(&InvariantViolationError{Detail: "index or primary-key entry references a record absent from the record store"})
		}
		out = append(out, Hydrated{ID: id, Record: rec})
	}
	return out, nil
}
