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
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/erigontech/reccache/kv"
	"github.com/erigontech/reccache/schema"
	"github.com/erigontech/reccache/value"
)

// Op is a filter comparison operator (§4.7).
type Op uint8

const (
	OpEQ Op = iota
	OpLT
	OpLTE
	OpGT
	OpGTE
	OpContains
)

func (op Op) String() string {
	switch op {
	case OpEQ:
		return "EQ"
	case OpLT:
		return "LT"
	case OpLTE:
		return "LTE"
	case OpGT:
		return "GT"
	case OpGTE:
		return "GTE"
	case OpContains:
		return "Contains"
	default:
		return "Unknown"
	}
}

// FilterTree is either a Leaf or a conjunction of sub-trees (§4.7).
type FilterTree interface{ isFilterTree() }

type Leaf struct {
	Field   string
	Op      Op
	Literal value.Field
}

type And struct{ Terms []FilterTree }

func (Leaf) isFilterTree() {}
func (And) isFilterTree()  {}

// OrderTerm is one (field, direction) entry of QueryExpression.OrderBy.
type OrderTerm struct {
	Field string
	Desc  bool
}

// QueryExpression is the input to query() and count() (§4.7). A nil
// Filter matches every record of the schema.
type QueryExpression struct {
	Filter  FilterTree
	OrderBy []OrderTerm
	Skip    uint64
	Limit   *uint64
}

func flattenFilter(f FilterTree, out []Leaf) []Leaf {
	switch t := f.(type) {
	case nil:
		return out
	case Leaf:
		return append(out, t)
	case And:
		for _, sub := range t.Terms {
			out = flattenFilter(sub, out)
		}
		return out
	default:
		return out
	}
}

func fieldName(s schema.Schema, pos int) string { return s.Fields[pos].Name }

// idSource yields a query contribution's record IDs in bounded chunks, so
// the executor never has to hold an entire scan in memory at once (§4.7
// step 3).
type idSource interface {
	nextChunk(n int) ([]uint64, error)
}

// sliceSource adapts an already-materialized ID list — used for FullText
// token lookups, which read exactly one multimap key each — to idSource.
type sliceSource struct {
	ids []uint64
	pos int
}

func (s *sliceSource) nextChunk(n int) ([]uint64, error) {
	if s.pos >= len(s.ids) {
		return nil, nil
	}
	end := s.pos + n
	if end > len(s.ids) {
		end = len(s.ids)
	}
	chunk := s.ids[s.pos:end]
	s.pos = end
	return chunk, nil
}

// cursorSource adapts a kv.RangeIterator over a SortedInverted multimap.
type cursorSource struct {
	it *kv.RangeIterator[uint64]
}

func (s *cursorSource) nextChunk(n int) ([]uint64, error) {
	out := make([]uint64, 0, n)
	for len(out) < n {
		_, id, ok, err := s.it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, id)
	}
	return out, nil
}

// plannedContribution is one index scan the planner chose to (partially)
// satisfy a query's filter. Exactly one of the two branches is set.
type plannedContribution struct {
	indexPos int

	// SortedInverted branch.
	isSortedInverted bool
	eqValues         []value.Field
	hasRange         bool
	rangeOp          Op
	rangeVal         value.Field

	// FullText branch: one contribution per matched token, all drawn
	// from the same index but each keyed on a single token.
	isFullText bool
	token      []byte

	// orderField names the first field of a SortedInverted index not
	// consumed by an EQ leaf ("" when every field was); this contribution,
	// taken alone, can serve an order_by request on that field.
	orderField string
}

// planFilter matches every leaf of the query's filter onto the schema's
// indexes (§4.7 step 1). Every leaf must be consumed by some index or the
// query fails with IndexNotFound.
func planFilter(s schema.Schema, indexes []schema.IndexDefinition, filter FilterTree) ([]plannedContribution, error) {
	leaves := flattenFilter(filter, nil)
	if len(leaves) == 0 {
		return nil, nil
	}
	consumed := make([]bool, len(leaves))

	findLeaf := func(field string, ops ...Op) int {
		for i, l := range leaves {
			if consumed[i] || l.Field != field {
				continue
			}
			for _, op := range ops {
				if l.Op == op {
					return i
				}
			}
		}
		return -1
	}

	var contributions []plannedContribution

	for idxPos, def := range indexes {
		switch def.Kind {
		case schema.FullText:
			fname := fieldName(s, def.Fields[0])
			li := findLeaf(fname, OpContains)
			if li < 0 {
				continue
			}
			text, _ := leaves[li].Literal.AsStringLike()
			for _, tok := range fullTextTokenKeys(text) {
				contributions = append(contributions, plannedContribution{
					indexPos: idxPos, isFullText: true, token: tok,
				})
			}
			consumed[li] = true

		case schema.SortedInverted:
			var eqValues []value.Field
			j := 0
			for ; j < len(def.Fields); j++ {
				fname := fieldName(s, def.Fields[j])
				li := findLeaf(fname, OpEQ)
				if li < 0 {
					break
				}
				consumed[li] = true
				eqValues = append(eqValues, leaves[li].Literal)
			}

			hasRange := false
			var rangeOp Op
			var rangeVal value.Field
			orderField := ""
			if j < len(def.Fields) {
				fname := fieldName(s, def.Fields[j])
				orderField = fname
				li := findLeaf(fname, OpLT, OpLTE, OpGT, OpGTE)
				if li >= 0 {
					consumed[li] = true
					hasRange = true
					rangeOp = leaves[li].Op
					rangeVal = leaves[li].Literal
				}
			}

			if len(eqValues) == 0 && !hasRange {
				continue
			}
			contributions = append(contributions, plannedContribution{
				indexPos: idxPos, isSortedInverted: true,
				eqValues: eqValues, hasRange: hasRange, rangeOp: rangeOp, rangeVal: rangeVal,
				orderField: orderField,
			})
		}
	}

	for i, ok := range consumed {
		if !ok {
			return nil, &IndexNotFoundError{Field: leaves[i].Field, Op: leaves[i].Op.String()}
		}
	}
	return contributions, nil
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// prefixUpperBound returns the first key lexicographically greater than
// every key starting with prefix, or nil if prefix is empty or consists
// entirely of 0xFF bytes (no finite upper bound; scan must run to the end
// of the table).
func prefixUpperBound(prefix []byte) *kv.Bound {
	if len(prefix) == 0 {
		return nil
	}
	bound := append([]byte(nil), prefix...)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] != 0xFF {
			bound[i]++
			return &kv.Bound{Value: bound[:i+1], Inclusive: false}
		}
	}
	return nil
}

func prefixLowerBound(prefix []byte) *kv.Bound {
	if len(prefix) == 0 {
		return nil
	}
	return &kv.Bound{Value: prefix, Inclusive: true}
}

// open binds a planned contribution to txn and returns the idSource that
// reads it. Every contribution is opened and drained against the same
// transaction, sequentially: mdbx-go transactions (like the teacher's own
// erigon-lib/kv transactions) are confined to the goroutine that owns
// them, so index scans that must observe one consistent snapshot — and,
// on a writable cache, the writer's own uncommitted data — cannot safely
// fan out across goroutines here.
func (c plannedContribution) open(txn *mdbx.Txn, tables []indexTable) (idSource, error) {
	idx := tables[c.indexPos]

	if c.isFullText {
		ids, err := idx.mm.ScanValues(txn, c.token)
		if err != nil {
			return nil, err
		}
		return &sliceSource{ids: ids}, nil
	}

	prefix := value.CompositeKey(c.eqValues, indexRange(len(c.eqValues)))
	var lower, upper *kv.Bound
	if c.hasRange {
		encodedVal := value.Encode(c.rangeVal)
		bound := append(append([]byte(nil), prefix...), encodedVal...)
		switch c.rangeOp {
		case OpGT:
			lower = &kv.Bound{Value: bound, Inclusive: false}
		case OpGTE:
			lower = &kv.Bound{Value: bound, Inclusive: true}
		case OpLT:
			upper = &kv.Bound{Value: bound, Inclusive: false}
		case OpLTE:
			upper = &kv.Bound{Value: bound, Inclusive: true}
		}
	}
	if lower == nil {
		lower = prefixLowerBound(prefix)
	}
	if upper == nil {
		upper = prefixUpperBound(prefix)
	}

	it, err := idx.mm.NewRangeIterator(txn, lower, upper)
	if err != nil {
		return nil, err
	}
	return &cursorSource{it: it}, nil
}
