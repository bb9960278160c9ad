// Package advancement tracks per-player progress through advancement trees
// and computes the deltas sent to clients each sync pulse.
//
// Everything here is owned by the world goroutine; nothing is locked.
package advancement

import (
	"errors"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/criteria"
)

// Unset marks a criterion or advancement that is not achieved.
const Unset int64 = -1

var (
	ErrDuplicate     = errors.New("advancement: already registered")
	ErrSelfParent    = errors.New("advancement: advancement is its own parent")
	ErrUnknownParent = errors.New("advancement: unknown parent")
	ErrEmptyKey      = errors.New("advancement: empty key")
)

// Display is the client-visible part of an advancement.
type Display struct {
	Title       i18n.Text
	Description i18n.Text
	Icon        protocol.Slot
	Frame       protocol.AdvancementFrame
	// Background is the tab texture; only used on roots.
	Background     string
	ShowToast      bool
	AnnounceToChat bool
	Hidden         bool
}

// Def describes an advancement to register.
type Def struct {
	Key       string
	Parent    string
	Criterion criteria.Criterion
	Display   *Display
}

// Advancement is immutable once registered, except that children are
// appended as they register.
type Advancement struct {
	key      string
	parent   *Advancement
	children []*Advancement
	display  *Display

	criterion    criteria.Criterion
	requirements [][]string
	wireIDs      []string
	wireSet      map[string]bool
	// nodes maps every leaf and composite id to its criterion.
	nodes map[string]criteria.Criterion
	// triggered are the leaves bound to a trigger.
	triggered []criteria.Criterion
	seq       int
}

func newAdvancement(def Def, parent *Advancement, seq int) *Advancement {
	c := criteria.Normalize(def.Criterion)
	a := &Advancement{
		key:          def.Key,
		parent:       parent,
		display:      def.Display,
		criterion:    c,
		requirements: criteria.DNF(c),
		wireIDs:      criteria.AllWireIDs(c),
		wireSet:      map[string]bool{},
		nodes:        map[string]criteria.Criterion{},
		seq:          seq,
	}
	for _, id := range a.wireIDs {
		a.wireSet[id] = true
	}
	for _, n := range criteria.Leaves(c, false) {
		a.nodes[n.ID()] = n
		if n.Kind() == criteria.KindLeaf && n.Trigger() != nil {
			a.triggered = append(a.triggered, n)
		}
	}
	return a
}

func (a *Advancement) Key() string                   { return a.key }
func (a *Advancement) Parent() *Advancement          { return a.parent }
func (a *Advancement) Display() *Display             { return a.display }
func (a *Advancement) Criterion() criteria.Criterion { return a.criterion }

func (a *Advancement) Children() []*Advancement {
	return append([]*Advancement(nil), a.children...)
}

// Requirements returns the OR-of-AND groups of wire criterion ids.
func (a *Advancement) Requirements() [][]string {
	out := make([][]string, len(a.requirements))
	for i, g := range a.requirements {
		out[i] = append([]string(nil), g...)
	}
	return out
}

// CriteriaIDs returns every wire criterion id, sorted.
func (a *Advancement) CriteriaIDs() []string {
	return append([]string(nil), a.wireIDs...)
}

// HasCriterion reports whether id is a leaf, scored leaf or wire id of a.
func (a *Advancement) HasCriterion(id string) bool {
	if a.wireSet[id] {
		return true
	}
	n, ok := a.nodes[id]
	return ok && n.Kind() == criteria.KindLeaf
}

// Root returns the top of a's parent chain.
func (a *Advancement) Root() *Advancement {
	for a.parent != nil {
		a = a.parent
	}
	return a
}

func (a *Advancement) announces() bool {
	return a.display != nil && a.display.AnnounceToChat
}
