package advancement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"voxelcraft.ai/advancements/internal/sim/criteria"
)

// Notifier receives grant and revoke transitions. announce is set when the
// advancement asks for a chat announcement and announcements are enabled.
type Notifier interface {
	Granted(p *Player, a *Advancement, at int64, announce bool)
	Revoked(p *Player, a *Advancement)
}

type Options struct {
	// Clock defaults to time.Now.
	Clock    func() time.Time
	Notifier Notifier
	// Announce enables chat announcements of grants.
	Announce bool
}

// Registry owns every advancement, tree and loaded player. It replaces
// process-wide state: tree ids come from a counter on the registry.
type Registry struct {
	clock    func() time.Time
	notifier Notifier
	announce bool

	byKey map[string]*Advancement
	order []*Advancement

	trees      []*Tree
	treeByKey  map[string]*Tree
	nextTreeID int

	players     map[uuid.UUID]*Player
	playerOrder []*Player
}

func NewRegistry(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Registry{
		clock:      opts.Clock,
		notifier:   opts.Notifier,
		announce:   opts.Announce,
		byKey:      map[string]*Advancement{},
		treeByKey:  map[string]*Tree{},
		nextTreeID: 1,
		players:    map[uuid.UUID]*Player{},
	}
}

// Register adds an advancement. Parents must be registered first. Failed
// registrations leave the registry untouched.
func (r *Registry) Register(def Def) (*Advancement, error) {
	if def.Key == "" {
		return nil, ErrEmptyKey
	}
	if _, dup := r.byKey[def.Key]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, def.Key)
	}
	var parent *Advancement
	if def.Parent != "" {
		if def.Parent == def.Key {
			return nil, fmt.Errorf("%w: %s", ErrSelfParent, def.Key)
		}
		p, ok := r.byKey[def.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, def.Parent, def.Key)
		}
		parent = p
	}
	a := newAdvancement(def, parent, len(r.order))
	if parent != nil {
		parent.children = append(parent.children, a)
	}
	r.byKey[a.key] = a
	r.order = append(r.order, a)
	return a, nil
}

func (r *Registry) Get(key string) (*Advancement, bool) {
	a, ok := r.byKey[key]
	return a, ok
}

// All returns advancements in registration order.
func (r *Registry) All() []*Advancement {
	return append([]*Advancement(nil), r.order...)
}

// NewTree creates a tree with the next tree id and starts tracking it for
// every loaded player.
func (r *Registry) NewTree(key string, root RootDisplay) (*Tree, error) {
	if _, dup := r.treeByKey[key]; dup {
		return nil, fmt.Errorf("%w: tree %s", ErrDuplicate, key)
	}
	t := newTree(r.nextTreeID, key, root)
	r.nextTreeID++
	r.trees = append(r.trees, t)
	r.treeByKey[key] = t
	for _, p := range r.playerOrder {
		t.track(p)
	}
	return t, nil
}

func (r *Registry) Tree(key string) (*Tree, bool) {
	t, ok := r.treeByKey[key]
	return t, ok
}

func (r *Registry) Trees() []*Tree { return append([]*Tree(nil), r.trees...) }

// AddPlayer loads a player and subscribes it to every tree. The first pulse
// after this sends the player a full sync.
func (r *Registry) AddPlayer(id uuid.UUID, name string, conn Connection) (*Player, error) {
	if _, dup := r.players[id]; dup {
		return nil, fmt.Errorf("%w: player %s", ErrDuplicate, id)
	}
	p := &Player{
		reg:       r,
		id:        id,
		name:      name,
		conn:      conn,
		progress:  map[*Advancement]*Progress{},
		visible:   map[*Advancement]bool{},
		listeners: map[string]map[leafRef]criteria.Criterion{},
	}
	for _, a := range r.order {
		p.Progress(a)
	}
	r.players[id] = p
	r.playerOrder = append(r.playerOrder, p)
	for _, t := range r.trees {
		t.track(p)
	}
	return p, nil
}

func (r *Registry) Player(id uuid.UUID) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// PlayerByName is a linear lookup used by chat commands.
func (r *Registry) PlayerByName(name string) (*Player, bool) {
	for _, p := range r.playerOrder {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) Players() []*Player { return append([]*Player(nil), r.playerOrder...) }

func (r *Registry) RemovePlayer(id uuid.UUID) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	delete(r.players, id)
	for i, q := range r.playerOrder {
		if q == p {
			r.playerOrder = append(r.playerOrder[:i], r.playerOrder[i+1:]...)
			break
		}
	}
	for _, t := range r.trees {
		t.untrack(p)
	}
	p.listeners = map[string]map[leafRef]criteria.Criterion{}
}

// Fire dispatches a trigger for one player.
func (r *Registry) Fire(id uuid.UUID, trigger string, attrs map[string]string) int {
	p, ok := r.players[id]
	if !ok {
		return 0
	}
	return p.Fire(trigger, attrs)
}

func (r *Registry) notifyGranted(p *Player, pr *Progress) {
	if r.notifier == nil {
		return
	}
	r.notifier.Granted(p, pr.adv, pr.achieveTime, r.announce && pr.adv.announces())
}

func (r *Registry) notifyRevoked(p *Player, pr *Progress) {
	if r.notifier == nil {
		return
	}
	r.notifier.Revoked(p, pr.adv)
}

func (r *Registry) tabSent(p *Player, tabID string) bool {
	for _, t := range r.trees {
		if t.tabSent(p, tabID) {
			return true
		}
	}
	return false
}
