package metaindex

import (
	"strconv"
	"strings"

	"github.com/vektordb/vektor/internal/vecstore"
)

// Op is a leaf predicate operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpPrefix
	OpContains
)

type combinator int

const (
	combLeaf combinator = iota
	combAnd
	combOr
	combNot
)

// Filter is a predicate tree over row metadata. Leaves compare one key
// against a value; interior nodes combine children with AND/OR/NOT.
type Filter struct {
	comb combinator

	// Leaf fields
	key   string
	op    Op
	value string

	children []*Filter
}

// Eq matches rows whose key equals value.
func Eq(key, value string) *Filter { return leaf(key, OpEq, value) }

// Ne matches rows whose key is present and differs from value.
func Ne(key, value string) *Filter { return leaf(key, OpNe, value) }

// Lt matches rows whose key orders before value.
func Lt(key, value string) *Filter { return leaf(key, OpLt, value) }

// Le matches rows whose key orders at or before value.
func Le(key, value string) *Filter { return leaf(key, OpLe, value) }

// Gt matches rows whose key orders after value.
func Gt(key, value string) *Filter { return leaf(key, OpGt, value) }

// Ge matches rows whose key orders at or after value.
func Ge(key, value string) *Filter { return leaf(key, OpGe, value) }

// Prefix matches rows whose key starts with value.
func Prefix(key, value string) *Filter { return leaf(key, OpPrefix, value) }

// Contains matches rows whose key contains value as a substring.
func Contains(key, value string) *Filter { return leaf(key, OpContains, value) }

func leaf(key string, op Op, value string) *Filter {
	return &Filter{comb: combLeaf, key: key, op: op, value: value}
}

// And combines filters; all must match.
func And(children ...*Filter) *Filter {
	return &Filter{comb: combAnd, children: children}
}

// Or combines filters; at least one must match.
func Or(children ...*Filter) *Filter {
	return &Filter{comb: combOr, children: children}
}

// Not inverts a filter.
func Not(child *Filter) *Filter {
	return &Filter{comb: combNot, children: []*Filter{child}}
}

// Matches verifies the filter against one row's metadata chain. This is
// the row-by-row path; it is authoritative for every operator.
func (f *Filter) Matches(metadata []vecstore.Pair) bool {
	if f == nil {
		return true
	}

	switch f.comb {
	case combAnd:
		for _, c := range f.children {
			if !c.Matches(metadata) {
				return false
			}
		}
		return true
	case combOr:
		for _, c := range f.children {
			if c.Matches(metadata) {
				return true
			}
		}
		return len(f.children) == 0
	case combNot:
		return !f.children[0].Matches(metadata)
	}

	for _, p := range metadata {
		if p.Key != f.key {
			continue
		}
		if f.matchValue(p.Value) {
			return true
		}
	}
	return false
}

// matchValue applies the leaf operator to one stored value.
func (f *Filter) matchValue(stored string) bool {
	switch f.op {
	case OpEq:
		return compare(stored, f.value) == 0
	case OpNe:
		return compare(stored, f.value) != 0
	case OpLt:
		return compare(stored, f.value) < 0
	case OpLe:
		return compare(stored, f.value) <= 0
	case OpGt:
		return compare(stored, f.value) > 0
	case OpGe:
		return compare(stored, f.value) >= 0
	case OpPrefix:
		return strings.HasPrefix(stored, f.value)
	case OpContains:
		return strings.Contains(stored, f.value)
	}
	return false
}

// compare orders two values numerically when both parse as numbers,
// as booleans when both parse as booleans, and lexically otherwise.
func compare(a, b string) int {
	if fa, errA := strconv.ParseFloat(a, 64); errA == nil {
		if fb, errB := strconv.ParseFloat(b, 64); errB == nil {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ba, errA := strconv.ParseBool(a); errA == nil {
		if bb, errB := strconv.ParseBool(b); errB == nil {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

// Candidates attempts to serve the filter from the inverted index.
// The returned set is a superset of matching ordinals when ok is true;
// callers still verify each candidate with Matches. ok is false when no
// part of the tree is index-serviceable and a full scan is required.
func (f *Filter) Candidates(ix *Index) (map[uint64]struct{}, bool) {
	if f == nil || ix == nil {
		return nil, false
	}

	switch f.comb {
	case combLeaf:
		switch f.op {
		case OpEq:
			return ix.equalitySet(f.key, f.value), true
		case OpPrefix:
			return ix.prefixSet(f.key, f.value), true
		}
		return nil, false

	case combAnd:
		// Intersect every serviceable child; unknown children verify later.
		var acc map[uint64]struct{}
		for _, c := range f.children {
			set, ok := c.Candidates(ix)
			if !ok {
				continue
			}
			if acc == nil {
				acc = set
				continue
			}
			for ord := range acc {
				if _, in := set[ord]; !in {
					delete(acc, ord)
				}
			}
		}
		return acc, acc != nil

	case combOr:
		// A union is a valid superset only if every child is serviceable.
		acc := make(map[uint64]struct{})
		for _, c := range f.children {
			set, ok := c.Candidates(ix)
			if !ok {
				return nil, false
			}
			for ord := range set {
				acc[ord] = struct{}{}
			}
		}
		return acc, true
	}

	// NOT needs the complement; only a scan can produce it.
	return nil, false
}
