// Package tree turns flat parent-linked records into nested trees and
// provides helpers for walking them.
package tree

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmake-zxb/jk-ui/pkg/models"
)

// Default field names used when Options leaves them empty.
const (
	DefaultIDField       = "id"
	DefaultParentIDField = "parentId"
	DefaultChildrenField = "children"
)

// Options configures Build.
type Options struct {
	IDField       string
	ParentIDField string
	ChildrenField string

	// Root is the parent id marking top-level records. When nil, the
	// smallest numeric parent id is used, or 0 if none can be computed.
	Root any
}

func (o Options) withDefaults() Options {
	if o.IDField == "" {
		o.IDField = DefaultIDField
	}
	if o.ParentIDField == "" {
		o.ParentIDField = DefaultParentIDField
	}
	if o.ChildrenField == "" {
		o.ChildrenField = DefaultChildrenField
	}
	return o
}

// Build nests records under their parents. The input is deep-copied
// first and never modified. Child order follows input order. If no record
// sits at the root, the copied records are returned flat.
func Build(records []models.Record, opts Options) []models.Record {
	if len(records) == 0 {
		return []models.Record{}
	}
	opts = opts.withDefaults()

	a := newArena(models.CloneRecords(records), opts)

	root := opts.Root
	if root == nil {
		root = minParent(a.nodes, opts.ParentIDField)
	}
	rootKey := Key(root)

	var out []models.Record
	for i, n := range a.nodes {
		pid, ok := n[opts.ParentIDField]
		if ok && Key(pid) == rootKey {
			out = append(out, a.materialise(i, map[int]bool{}))
		}
	}
	if len(out) == 0 {
		return a.nodes
	}
	return out
}

// arena holds the copied records and their child links by index.
type arena struct {
	nodes    []models.Record
	children [][]int
	used     []bool
	field    string
}

func newArena(nodes []models.Record, opts Options) *arena {
	byParent := make(map[string][]int, len(nodes))
	for i, n := range nodes {
		if pid, ok := n[opts.ParentIDField]; ok {
			k := Key(pid)
			byParent[k] = append(byParent[k], i)
		}
	}
	children := make([][]int, len(nodes))
	for i, n := range nodes {
		if id, ok := n[opts.IDField]; ok {
			children[i] = byParent[Key(id)]
		}
	}
	return &arena{
		nodes:    nodes,
		children: children,
		used:     make([]bool, len(nodes)),
		field:    opts.ChildrenField,
	}
}

// materialise builds the nested record for node i. Nodes already on the
// current path are skipped so cycles terminate.
func (a *arena) materialise(i int, onPath map[int]bool) models.Record {
	n := a.nodes[i]
	if a.used[i] {
		n = n.Clone()
	} else {
		n = shallow(n)
	}
	a.used[i] = true

	onPath[i] = true
	defer delete(onPath, i)

	var kids []models.Record
	for _, c := range a.children[i] {
		if onPath[c] {
			continue
		}
		kids = append(kids, a.materialise(c, onPath))
	}
	if len(kids) > 0 {
		n[a.field] = kids
	}
	return n
}

func shallow(r models.Record) models.Record {
	out := make(models.Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// minParent returns the smallest numeric parent id. A missing or
// non-numeric value poisons the minimum and yields 0.
func minParent(nodes []models.Record, field string) any {
	best := math.Inf(1)
	for _, n := range nodes {
		v, ok := n[field]
		if !ok {
			return float64(0)
		}
		f, ok := toNumber(v)
		if !ok {
			return float64(0)
		}
		if f < best {
			best = f
		}
	}
	if math.IsInf(best, 0) || best == 0 {
		return float64(0)
	}
	return best
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), !math.IsNaN(float64(t))
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

// Key returns the comparison key for an id value. Numbers and numeric
// strings share a key per value, so 1, 1.0 and "1" are equal.
func Key(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case bool:
		return "b:" + strconv.FormatBool(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && !math.IsNaN(f) {
			return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "s:" + t
	}
	if f, ok := toNumber(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("v:%v", v)
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn stops the walk below that node.
func Walk(nodes []models.Record, childrenField string, fn func(n models.Record, depth int) bool) {
	if childrenField == "" {
		childrenField = DefaultChildrenField
	}
	walk(nodes, childrenField, 0, fn)
}

func walk(nodes []models.Record, field string, depth int, fn func(models.Record, int) bool) {
	for _, n := range nodes {
		if !fn(n, depth) {
			continue
		}
		walk(n.Children(field), field, depth+1, fn)
	}
}

// Count returns the total number of nodes in the forest.
func Count(nodes []models.Record, childrenField string) int {
	count := 0
	Walk(nodes, childrenField, func(models.Record, int) bool {
		count++
		return true
	})
	return count
}

// FindByID returns the first node whose id field matches id, or nil.
func FindByID(nodes []models.Record, opts Options, id any) models.Record {
	opts = opts.withDefaults()
	want := Key(id)
	var found models.Record
	Walk(nodes, opts.ChildrenField, func(n models.Record, _ int) bool {
		if found != nil {
			return false
		}
		if v, ok := n[opts.IDField]; ok && Key(v) == want {
			found = n
			return false
		}
		return true
	})
	return found
}

// Flatten returns every node in depth-first order with its children
// field removed. The returned records are copies.
func Flatten(nodes []models.Record, childrenField string) []models.Record {
	if childrenField == "" {
		childrenField = DefaultChildrenField
	}
	var out []models.Record
	Walk(nodes, childrenField, func(n models.Record, _ int) bool {
		c := shallow(n)
		delete(c, childrenField)
		out = append(out, c.Clone())
		return true
	})
	return out
}

// LeafIDs keeps the ids that name leaf nodes of the tree, in input order.
// Role menu grants store parents and leaves alike; a checkbox tree only
// wants the leaves checked so that parents render half-selected.
func LeafIDs(nodes []models.Record, opts Options, ids []any) []any {
	opts = opts.withDefaults()
	leaves := make(map[string]bool)
	Walk(nodes, opts.ChildrenField, func(n models.Record, _ int) bool {
		if len(n.Children(opts.ChildrenField)) == 0 {
			if v, ok := n[opts.IDField]; ok {
				leaves[Key(v)] = true
			}
		}
		return true
	})
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if leaves[Key(id)] {
			out = append(out, id)
		}
	}
	return out
}
