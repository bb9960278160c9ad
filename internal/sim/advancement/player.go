package advancement

import (
	"sort"

	"github.com/google/uuid"

	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/criteria"
)

// Connection is the session a player's sync packets go to.
type Connection interface {
	Send(m protocol.Message)
}

// ChangeSet collects what changed for one player since the last pulse.
type ChangeSet struct {
	progress   map[*Advancement]struct{}
	visibility map[*Advancement]struct{}
}

func (c *ChangeSet) markProgress(a *Advancement) {
	if c.progress == nil {
		c.progress = map[*Advancement]struct{}{}
	}
	c.progress[a] = struct{}{}
}

func (c *ChangeSet) markVisibility(a *Advancement) {
	if c.visibility == nil {
		c.visibility = map[*Advancement]struct{}{}
	}
	c.visibility[a] = struct{}{}
}

func (c *ChangeSet) ProgressChanged(a *Advancement) bool {
	_, ok := c.progress[a]
	return ok
}

func (c *ChangeSet) VisibilityChanged(a *Advancement) bool {
	_, ok := c.visibility[a]
	return ok
}

func (c *ChangeSet) Empty() bool { return len(c.progress) == 0 && len(c.visibility) == 0 }

func (c *ChangeSet) reset() {
	c.progress = nil
	c.visibility = nil
}

type leafRef struct {
	adv *Advancement
	id  string
}

// Player is one connected player's advancement state.
type Player struct {
	reg  *Registry
	id   uuid.UUID
	name string
	conn Connection

	progress map[*Advancement]*Progress
	visible  map[*Advancement]bool
	changes  ChangeSet
	// listeners is trigger name -> triggered leaves still waiting for it.
	listeners map[string]map[leafRef]criteria.Criterion

	synced bool
	tab    string
	// restoring suppresses notifications while saved progress is applied.
	restoring bool
}

func (p *Player) ID() uuid.UUID          { return p.id }
func (p *Player) Name() string           { return p.name }
func (p *Player) Changes() *ChangeSet    { return &p.changes }
func (p *Player) SelectedTab() string    { return p.tab }
func (p *Player) Connection() Connection { return p.conn }

func (p *Player) now() int64 {
	ms := p.reg.clock().UnixMilli()
	if ms < 0 {
		return 0
	}
	return ms
}

// Progress returns the player's progress for a, creating it on first use.
func (p *Player) Progress(a *Advancement) *Progress {
	pr, ok := p.progress[a]
	if !ok {
		pr = newProgress(p, a)
		p.progress[a] = pr
		pr.syncListeners()
	}
	return pr
}

func (p *Player) IsAchieved(a *Advancement) bool { return p.Progress(a).IsAchieved() }

// Grant achieves one criterion: a wire id, or a leaf id (scored leaves are
// filled to their goal). An empty id achieves everything.
func (p *Player) Grant(a *Advancement, id string) bool {
	pr := p.Progress(a)
	if id == "" {
		was := pr.IsAchieved()
		pr.AchieveAll()
		return !was
	}
	if a.wireSet[id] {
		_, had := pr.stamps[id]
		pr.Achieve(id)
		return !had
	}
	n, ok := a.nodes[id]
	if !ok || n.Kind() != criteria.KindLeaf {
		return false
	}
	before := pr.Score(id)
	pr.SetScore(id, n.Goal())
	return pr.Score(id) != before
}

// Revoke clears one criterion the same way Grant sets it. An empty id
// revokes everything.
func (p *Player) Revoke(a *Advancement, id string) bool {
	pr := p.Progress(a)
	if id == "" {
		return pr.RevokeAll()
	}
	if a.wireSet[id] {
		_, ok := pr.Revoke(id)
		return ok
	}
	n, ok := a.nodes[id]
	if !ok || n.Kind() != criteria.KindLeaf {
		return false
	}
	before := pr.Score(id)
	pr.SetScore(id, 0)
	return before != 0
}

func (p *Player) granted(pr *Progress) {
	p.refreshVisibility(pr.adv)
	if p.restoring {
		return
	}
	p.reg.notifyGranted(p, pr)
}

func (p *Player) revoked(pr *Progress) {
	p.refreshVisibility(pr.adv)
	if p.restoring {
		return
	}
	p.reg.notifyRevoked(p, pr)
}

func (p *Player) setListener(a *Advancement, leaf criteria.Criterion, on bool) {
	name := leaf.Trigger().Name
	ref := leafRef{adv: a, id: leaf.ID()}
	set := p.listeners[name]
	if on {
		if set == nil {
			set = map[leafRef]criteria.Criterion{}
			p.listeners[name] = set
		}
		set[ref] = leaf
		return
	}
	if set != nil {
		delete(set, ref)
		if len(set) == 0 {
			delete(p.listeners, name)
		}
	}
}

// Listening reports how many leaves wait for the named trigger.
func (p *Player) Listening(trigger string) int { return len(p.listeners[trigger]) }

// Fire counts one occurrence of a trigger with the given attributes against
// every matching leaf. Plain leaves are achieved, scored leaves advance by
// one step. Returns how many leaves moved.
func (p *Player) Fire(trigger string, attrs map[string]string) int {
	set := p.listeners[trigger]
	if len(set) == 0 {
		return 0
	}
	refs := make([]leafRef, 0, len(set))
	for ref, leaf := range set {
		if leaf.Trigger().Matches(attrs) {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].adv.seq != refs[j].adv.seq {
			return refs[i].adv.seq < refs[j].adv.seq
		}
		return refs[i].id < refs[j].id
	})
	moved := 0
	for _, ref := range refs {
		leaf := ref.adv.nodes[ref.id]
		pr := p.Progress(ref.adv)
		if leaf.Scored() {
			before := pr.Score(ref.id)
			if pr.AddScore(ref.id, 1) != before {
				moved++
			}
			continue
		}
		if _, had := pr.stamps[ref.id]; !had {
			pr.Achieve(ref.id)
			moved++
		}
	}
	return moved
}

// Snapshot returns stamped criteria by advancement key.
func (p *Player) Snapshot() map[string]map[string]int64 {
	out := map[string]map[string]int64{}
	for a, pr := range p.progress {
		if s := pr.snapshot(); s != nil {
			out[a.key] = s
		}
	}
	return out
}

// Restore applies saved stamps without grant/revoke notifications. Unknown
// advancement keys and criterion ids are skipped and counted.
func (p *Player) Restore(saved map[string]map[string]int64) (skipped int) {
	p.restoring = true
	defer func() { p.restoring = false }()
	for key, stamps := range saved {
		a, ok := p.reg.byKey[key]
		if !ok {
			skipped++
			continue
		}
		for id := range stamps {
			if !a.wireSet[id] {
				skipped++
			}
		}
		p.Progress(a).restore(stamps)
	}
	// Visibility is recomputed lazily from the restored state.
	p.visible = map[*Advancement]bool{}
	return skipped
}

// SelectTab records the tab the client opened and echoes it back. Only
// tabs already sent to the player are accepted.
func (p *Player) SelectTab(tabID string) bool {
	if tabID != "" && !p.reg.tabSent(p, tabID) {
		return false
	}
	p.tab = tabID
	if p.conn != nil {
		p.conn.Send(protocol.SelectAdvancementTab{TabID: tabID})
	}
	return true
}
