package advancement

import (
	"fmt"
	"strconv"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/protocol"
)

// RootDisplay is shown on the synthetic root the tree inserts above members
// whose parent lives outside the tree.
type RootDisplay struct {
	Title       i18n.Text
	Description i18n.Text
	Icon        protocol.Slot
	Background  string
}

// Pos is a grid position inside a tree.
type Pos struct{ X, Y float32 }

const rootKey = "#root"

// observer is what one tracking player has been sent from this tree.
type observer struct {
	synced   bool
	sent     map[*Advancement]string // advancement -> wire parent it was sent with
	rootSent bool
}

// Tree groups advancements for display. It does not own them: an
// advancement can sit in several trees.
type Tree struct {
	id   int
	key  string
	root RootDisplay

	pos   map[*Advancement]Pos
	order []*Advancement

	added   map[*Advancement]struct{}
	removed []*Advancement

	observers map[*Player]*observer
}

func newTree(id int, key string, root RootDisplay) *Tree {
	return &Tree{
		id:        id,
		key:       key,
		root:      root,
		pos:       map[*Advancement]Pos{},
		added:     map[*Advancement]struct{}{},
		observers: map[*Player]*observer{},
	}
}

func (t *Tree) ID() int     { return t.id }
func (t *Tree) Key() string { return t.key }
func (t *Tree) Len() int    { return len(t.order) }

func (t *Tree) Contains(a *Advancement) bool {
	_, ok := t.pos[a]
	return ok
}

func (t *Tree) Position(a *Advancement) (Pos, bool) {
	p, ok := t.pos[a]
	return p, ok
}

// Members returns the advancements in insertion order.
func (t *Tree) Members() []*Advancement { return append([]*Advancement(nil), t.order...) }

// WireID namespaces an advancement key with the tree id.
func (t *Tree) WireID(a *Advancement) string { return t.wireKey(a.key) }

// RootID is the wire id of the synthetic root.
func (t *Tree) RootID() string { return t.wireKey(rootKey) }

func (t *Tree) wireKey(key string) string {
	return strconv.Itoa(t.id) + "/" + key
}

// Add places a at (x, y). Adding a present advancement fails and changes
// nothing.
func (t *Tree) Add(x, y float32, a *Advancement) error {
	if t.Contains(a) {
		return fmt.Errorf("%w: %s in tree %s", ErrDuplicate, a.key, t.key)
	}
	t.pos[a] = Pos{X: x, Y: y}
	t.order = append(t.order, a)
	t.added[a] = struct{}{}
	return nil
}

// Remove drops a if present and reports whether it was.
func (t *Tree) Remove(a *Advancement) bool {
	if !t.Contains(a) {
		return false
	}
	delete(t.pos, a)
	for i, x := range t.order {
		if x == a {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	if _, pending := t.added[a]; pending {
		delete(t.added, a)
	}
	t.removed = append(t.removed, a)
	return true
}

func (t *Tree) track(p *Player) {
	if _, ok := t.observers[p]; !ok {
		t.observers[p] = &observer{sent: map[*Advancement]string{}}
	}
}

func (t *Tree) untrack(p *Player) { delete(t.observers, p) }

// Tracking reports whether p observes the tree.
func (t *Tree) Tracking(p *Player) bool {
	_, ok := t.observers[p]
	return ok
}

// wireParent is the parent id a member is sent with: none for a real root,
// the synthetic root when the parent is outside the tree.
func (t *Tree) wireParent(a *Advancement) string {
	switch {
	case a.parent == nil:
		return ""
	case t.Contains(a.parent):
		return t.WireID(a.parent)
	default:
		return t.RootID()
	}
}

func (t *Tree) tabSent(p *Player, tabID string) bool {
	o, ok := t.observers[p]
	if !ok {
		return false
	}
	if o.rootSent && tabID == t.RootID() {
		return true
	}
	for a, parent := range o.sent {
		if parent == "" && t.WireID(a) == tabID {
			return true
		}
	}
	return false
}

// endTick forgets what was added and removed since the last pulse.
func (t *Tree) endTick() {
	if len(t.added) > 0 {
		t.added = map[*Advancement]struct{}{}
	}
	t.removed = nil
}

func (t *Tree) rootStruct() protocol.AdvancementStruct {
	return protocol.AdvancementStruct{
		ID: t.RootID(),
		Display: &protocol.AdvancementDisplay{
			Title:       t.root.Title,
			Description: t.root.Description,
			Icon:        t.root.Icon,
			Frame:       protocol.FrameTask,
			Background:  t.root.Background,
		},
	}
}

func (t *Tree) memberStruct(a *Advancement) protocol.AdvancementStruct {
	s := protocol.AdvancementStruct{
		ID:           t.WireID(a),
		Parent:       t.wireParent(a),
		Criteria:     a.CriteriaIDs(),
		Requirements: a.Requirements(),
	}
	if d := a.display; d != nil {
		pos := t.pos[a]
		s.Display = &protocol.AdvancementDisplay{
			Title:       d.Title,
			Description: d.Description,
			Icon:        d.Icon,
			Frame:       d.Frame,
			ShowToast:   d.ShowToast,
			Hidden:      d.Hidden,
			X:           pos.X,
			Y:           pos.Y,
		}
		if a.parent == nil {
			s.Display.Background = d.Background
		}
	}
	return s
}
