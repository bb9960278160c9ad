// Package criteria models advancement conditions as normalized AND/OR trees
// over atomic leaves.
package criteria

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindEmpty Kind = iota
	KindLeaf
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindLeaf:
		return "leaf"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Trigger binds a leaf to a named gameplay event. Every condition must match
// the event's attributes for the leaf to count the event.
type Trigger struct {
	Name       string
	Conditions map[string]string
}

// Matches reports whether attrs satisfies every condition.
func (t *Trigger) Matches(attrs map[string]string) bool {
	for k, want := range t.Conditions {
		if attrs[k] != want {
			return false
		}
	}
	return true
}

// Criterion is an immutable condition tree. The zero value is Empty.
// Composite values built through And/Or are always normalized: no child is
// Empty, no And sits directly under an And, no Or directly under an Or, and
// child ids are unique.
type Criterion struct {
	kind     Kind
	id       string
	goal     int
	trigger  *Trigger
	children []Criterion
}

// Empty is the criterion with no condition.
var Empty = Criterion{}

// Leaf returns an atomic criterion. Its id is also its only wire id.
func Leaf(id string) Criterion {
	return Criterion{kind: KindLeaf, id: id, goal: 1}
}

// Scored returns a leaf that completes after goal counted events. It carries
// goal wire ids (id#0 … id#goal-1) and behaves like an AND of them.
func Scored(id string, goal int) Criterion {
	if goal < 1 {
		goal = 1
	}
	return Criterion{kind: KindLeaf, id: id, goal: goal}
}

// WithTrigger returns a copy of a leaf bound to a trigger. Bindings take no
// part in equality.
func (c Criterion) WithTrigger(name string, conditions map[string]string) Criterion {
	if c.kind != KindLeaf {
		panic(fmt.Sprintf("criteria: trigger on %s criterion %q", c.kind, c.id))
	}
	conds := make(map[string]string, len(conditions))
	for k, v := range conditions {
		conds[k] = v
	}
	c.trigger = &Trigger{Name: name, Conditions: conds}
	return c
}

func (c Criterion) Kind() Kind        { return c.kind }
func (c Criterion) ID() string        { return c.id }
func (c Criterion) IsEmpty() bool     { return c.kind == KindEmpty }
func (c Criterion) Trigger() *Trigger { return c.trigger }

// Goal is the number of wire ids of a leaf; 0 for other kinds.
func (c Criterion) Goal() int {
	if c.kind != KindLeaf {
		return 0
	}
	return c.goal
}

func (c Criterion) Scored() bool { return c.kind == KindLeaf && c.goal > 1 }

// Children returns a copy of the operands of a composite.
func (c Criterion) Children() []Criterion {
	return append([]Criterion(nil), c.children...)
}

// WireIDs returns the ids a leaf is tracked under on the wire.
func (c Criterion) WireIDs() []string {
	if c.kind != KindLeaf {
		return nil
	}
	if c.goal <= 1 {
		return []string{c.id}
	}
	out := make([]string, c.goal)
	for i := range out {
		out[i] = ScoreID(c.id, i)
	}
	return out
}

// ScoreID is the wire id of the i-th step of a scored leaf.
func ScoreID(id string, i int) string {
	return id + "#" + strconv.Itoa(i)
}

func (c Criterion) String() string { return c.id }

func (c Criterion) describe() string {
	if c.Scored() {
		return "scored leaf (goal " + strconv.Itoa(c.goal) + ")"
	}
	return c.kind.String()
}

func And(cs ...Criterion) Criterion { return compose(KindAnd, cs) }
func Or(cs ...Criterion) Criterion  { return compose(KindOr, cs) }

func compose(kind Kind, cs []Criterion) Criterion {
	var flat []Criterion
	seen := map[string]Criterion{}
	add := func(ch Criterion) {
		if prev, ok := seen[ch.id]; ok {
			if prev.kind != ch.kind || prev.goal != ch.goal {
				panic(fmt.Sprintf("criteria: id %q names both a %s and a %s", ch.id, prev.describe(), ch.describe()))
			}
			return
		}
		seen[ch.id] = ch
		flat = append(flat, ch)
	}
	for _, ch := range cs {
		switch {
		case ch.kind == KindEmpty:
		case ch.kind == kind:
			for _, g := range ch.children {
				add(g)
			}
		default:
			add(ch)
		}
	}
	switch len(flat) {
	case 0:
		return Empty
	case 1:
		return flat[0]
	}
	ids := make([]string, len(flat))
	for i, ch := range flat {
		ids[i] = ch.id
	}
	return Criterion{
		kind:     kind,
		id:       kind.String() + "(" + strings.Join(ids, ",") + ")",
		children: flat,
	}
}

// Normalize rebuilds c through And/Or. It is a no-op on values produced by
// this package.
func Normalize(c Criterion) Criterion {
	switch c.kind {
	case KindAnd, KindOr:
		cs := make([]Criterion, len(c.children))
		for i, ch := range c.children {
			cs[i] = Normalize(ch)
		}
		return compose(c.kind, cs)
	}
	return c
}

// Equal compares structure and ids; trigger bindings are ignored.
func Equal(a, b Criterion) bool {
	if a.kind != b.kind || a.id != b.id || len(a.children) != len(b.children) {
		return false
	}
	if a.kind == KindLeaf && a.goal != b.goal {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

// Leaves returns the criteria reachable from c in depth-first order, each id
// once. With onlyLeaves false the composites themselves are included, each
// before its children.
func Leaves(c Criterion, onlyLeaves bool) []Criterion {
	var out []Criterion
	seen := map[string]bool{}
	var walk func(Criterion)
	walk = func(n Criterion) {
		switch n.kind {
		case KindEmpty:
			return
		case KindAnd, KindOr:
			if !onlyLeaves && !seen[n.id] {
				seen[n.id] = true
				out = append(out, n)
			}
			for _, ch := range n.children {
				walk(ch)
			}
		default:
			if !seen[n.id] {
				seen[n.id] = true
				out = append(out, n)
			}
		}
	}
	walk(c)
	return out
}

// AllWireIDs returns every leaf wire id under c, sorted.
func AllWireIDs(c Criterion) []string {
	var out []string
	for _, l := range Leaves(c, true) {
		out = append(out, l.WireIDs()...)
	}
	sort.Strings(out)
	return out
}

// DNF expands c into OR-of-AND groups of wire ids. Scored leaves contribute
// all their wire ids to one AND group. Empty yields no groups.
//
// DNF panics on an Or directly under an Or or an And directly under an And:
// such values cannot come out of And/Or, so meeting one is a bug.
func DNF(c Criterion) [][]string {
	switch c.kind {
	case KindEmpty:
		return nil
	case KindLeaf:
		return [][]string{c.WireIDs()}
	case KindOr:
		var out [][]string
		for _, ch := range c.children {
			if ch.kind == KindOr {
				panic(fmt.Sprintf("criteria: or %q directly contains or %q", c.id, ch.id))
			}
			out = append(out, DNF(ch)...)
		}
		return out
	case KindAnd:
		groups := [][]string{nil}
		for _, ch := range c.children {
			if ch.kind == KindAnd {
				panic(fmt.Sprintf("criteria: and %q directly contains and %q", c.id, ch.id))
			}
			sub := DNF(ch)
			if len(sub) == 0 {
				continue
			}
			next := make([][]string, 0, len(groups)*len(sub))
			for _, g := range groups {
				for _, s := range sub {
					next = append(next, mergeGroup(g, s))
				}
			}
			groups = next
		}
		return groups
	}
	panic(fmt.Sprintf("criteria: unknown kind %d", c.kind))
}

func mergeGroup(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
