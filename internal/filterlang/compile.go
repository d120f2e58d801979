package filterlang

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vectorkeep/vectorkeep/internal/metadata"
)

// Compile evaluates a parsed filter tree against idx's current postings:
//   must      = intersection of child bitmaps
//   should    = union of child bitmaps
//   must_not  = complement (relative to the live set) of union of children
//   term/range = metadata-index lookup
//
// The result is always computed fresh; only the parsed AST is cached,
// because bitmaps depend on live data and would go stale otherwise.
func Compile(n *Node, idx *metadata.Index) (*roaring.Bitmap, error) {
	switch n.Kind {
	case KindTerm:
		return idx.LookupTerm(n.Field, n.Value), nil

	case KindRange:
		return idx.LookupRange(n.Field, n.bounds()), nil

	case KindMust:
		acc, err := Compile(n.Children[0], idx)
		if err != nil {
			return nil, err
		}
		acc = acc.Clone()
		for _, c := range n.Children[1:] {
			bm, err := Compile(c, idx)
			if err != nil {
				return nil, err
			}
			acc.And(bm)
		}
		return acc, nil

	case KindShould:
		acc := roaring.New()
		for _, c := range n.Children {
			bm, err := Compile(c, idx)
			if err != nil {
				return nil, err
			}
			acc.Or(bm)
		}
		return acc, nil

	case KindMustNot:
		union := roaring.New()
		for _, c := range n.Children {
			bm, err := Compile(c, idx)
			if err != nil {
				return nil, err
			}
			union.Or(bm)
		}
		live := idx.Live()
		live.AndNot(union)
		return live, nil

	default:
		return nil, fmt.Errorf("filterlang: unknown node kind %q", n.Kind)
	}
}
