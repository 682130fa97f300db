package docstore

import (
	"fmt"
	"slices"
	"strings"
)

// Op is a filter operator.
type Op string

const (
	// OpEqual matches fields equal to the value.
	OpEqual Op = "=="
	// OpGreaterThan matches fields strictly greater than the value. Strings
	// compare lexically and numbers numerically; other types never match.
	OpGreaterThan Op = ">"
	// OpArrayContainsAny matches array fields sharing an element with the
	// value, which must be a []string or []any.
	OpArrayContainsAny Op = "array-contains-any"
)

// Filter is one field predicate. Filters of a query are ANDed.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents from one collection, or from every collection with
// the same id when Group is set.
type Query struct {
	// Collection is a full collection path.
	Collection string
	// Group is a collection id, for a collection group query.
	Group string
	// Under narrows a collection group query to documents below this
	// document or collection path. Backends use it to read less.
	Under   string
	Filters []Filter
	// OrderBy sorts ascending by this field. Documents missing it are dropped.
	OrderBy string
	// LimitToLast keeps only the last n documents after ordering.
	LimitToLast int
}

// Validate checks that exactly one source is set and the operators are known.
func (q Query) Validate() error {
	switch {
	case q.Collection == "" && q.Group == "":
		return fmt.Errorf("query needs a collection or a collection group")
	case q.Collection != "" && q.Group != "":
		return fmt.Errorf("query cannot have both a collection and a collection group")
	case q.Collection != "":
		if err := ValidateCollectionPath(q.Collection); err != nil {
			return err
		}
	case strings.Contains(q.Group, "/"):
		return fmt.Errorf("collection group %q must be a single id", q.Group)
	}
	if q.Under != "" {
		if q.Group == "" {
			return fmt.Errorf("a subtree filter only applies to collection group queries")
		}
		if err := validSegments(q.Under, segments(q.Under)); err != nil {
			return err
		}
	}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual, OpGreaterThan:
		case OpArrayContainsAny:
			if _, ok := anySlice(f.Value); !ok {
				return fmt.Errorf("array-contains-any on %q needs a slice value", f.Field)
			}
		default:
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	if q.LimitToLast > 0 && q.OrderBy == "" {
		return fmt.Errorf("LimitToLast requires OrderBy")
	}
	return nil
}

// Contains reports whether the document at docPath is in the query's source.
func (q Query) Contains(docPath string) bool {
	if q.Group != "" {
		return CollectionID(docPath) == q.Group && Within(docPath, q.Under)
	}
	return Parent(docPath) == strings.Trim(q.Collection, "/")
}

// Matches reports whether data satisfies every filter.
func (q Query) Matches(data map[string]any) bool {
	for _, f := range q.Filters {
		v, ok := data[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !equal(v, f.Value) {
				return false
			}
		case OpGreaterThan:
			if c, ok := compare(v, f.Value); !ok || c <= 0 {
				return false
			}
		case OpArrayContainsAny:
			if !containsAny(v, f.Value) {
				return false
			}
		}
	}
	return true
}

// Apply evaluates q over docs in memory: source membership, filters, ordering
// and LimitToLast. Without OrderBy the result is ordered by path. Backends
// that cannot push a query down fetch a superset and call Apply.
func Apply(q Query, docs []Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		if !q.Contains(d.Path) || !q.Matches(d.Data) {
			continue
		}
		if q.OrderBy != "" {
			if _, ok := d.Data[q.OrderBy]; !ok {
				continue
			}
		}
		out = append(out, d)
	}

	slices.SortStableFunc(out, func(a, b Snapshot) int {
		if q.OrderBy != "" {
			if c, ok := compare(a.Data[q.OrderBy], b.Data[q.OrderBy]); ok && c != 0 {
				return c
			}
		}
		return strings.Compare(a.Path, b.Path)
	})

	if q.LimitToLast > 0 && len(out) > q.LimitToLast {
		out = out[len(out)-q.LimitToLast:]
	}
	return out
}

func anySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}

func containsAny(field, values any) bool {
	have, ok := anySlice(field)
	if !ok {
		return false
	}
	want, _ := anySlice(values)
	for _, h := range have {
		for _, w := range want {
			if equal(h, w) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// compare orders two strings or two numbers. ok is false for any other pairing.
func compare(a, b any) (int, bool) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
