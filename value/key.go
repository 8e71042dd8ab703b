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

package value

// CompositeKey concatenates the tag-prefixed encoding of values at the
// given field positions, in order. This is used for both primary keys
// (§3.3) and SortedInverted secondary-index keys: the type-tag prefix on
// every field gives the result a self-describing structure suitable for
// lexicographic range comparison, at the cost of ambiguous field
// boundaries for variable-length fields — the caller is expected to know
// where one encoded field ends, exactly as upstream does.
func CompositeKey(values []Field, positions []int) []byte {
	if len(positions) == 0 {
		return nil
	}
	total := 0
	for _, pos := range positions {
		total += EncodedLen(values[pos])
	}
	buf := make([]byte, total)
	off := 0
	for _, pos := range positions {
		off += EncodeInto(buf[off:], values[pos])
	}
	return buf
}
