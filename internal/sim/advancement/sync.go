package advancement

import "voxelcraft.ai/advancements/internal/protocol"

// ComputeSyncDelta returns what p needs from this tree. An initial sync
// forgets what p was sent and emits every visible member; otherwise only
// members added or removed since the last pulse, visibility flips, moved
// parents and changed progress are emitted. The synthetic root is sent
// while any sent member hangs off it.
func (t *Tree) ComputeSyncDelta(p *Player, initial bool) protocol.Advancements {
	t.track(p)
	o := t.observers[p]
	var d protocol.Advancements
	candidates := map[*Advancement]bool{}
	resend := map[*Advancement]bool{}

	if initial {
		o.sent = map[*Advancement]string{}
		o.rootSent = false
		for _, a := range t.order {
			candidates[a] = true
		}
	} else {
		for _, a := range t.removed {
			if _, ok := o.sent[a]; ok {
				delete(o.sent, a)
				d.Removed = append(d.Removed, t.WireID(a))
			}
		}
		for a := range t.added {
			candidates[a] = true
		}
		for a := range p.changes.visibility {
			if t.Contains(a) {
				candidates[a] = true
			}
		}
		// Adding or removing a member can move the wire parent of others.
		if len(t.added) > 0 || len(t.removed) > 0 {
			for a, parent := range o.sent {
				if t.wireParent(a) != parent {
					resend[a] = true
				}
			}
		}
	}

	for _, a := range t.order {
		newlySent := false
		if candidates[a] || resend[a] {
			visible := p.Visible(a)
			_, was := o.sent[a]
			switch {
			case visible && (!was || resend[a]):
				if was {
					d.Removed = append(d.Removed, t.WireID(a))
				}
				o.sent[a] = t.wireParent(a)
				d.Added = append(d.Added, t.memberStruct(a))
				newlySent = true
			case !visible && was:
				delete(o.sent, a)
				d.Removed = append(d.Removed, t.WireID(a))
			}
		}
		if _, ok := o.sent[a]; ok && (newlySent || p.changes.ProgressChanged(a)) {
			d.Progress = append(d.Progress, p.Progress(a).entry(t.WireID(a)))
		}
	}

	needRoot := false
	for _, parent := range o.sent {
		if parent == t.RootID() {
			needRoot = true
			break
		}
	}
	switch {
	case needRoot && !o.rootSent:
		o.rootSent = true
		d.Added = append([]protocol.AdvancementStruct{t.rootStruct()}, d.Added...)
		d.Progress = append([]protocol.ProgressEntry{{ID: t.RootID()}}, d.Progress...)
	case !needRoot && o.rootSent:
		o.rootSent = false
		d.Removed = append(d.Removed, t.RootID())
	}
	o.synced = true
	return d
}

// Pulse sends every player one merged delta across all trees, then clears
// the per-tick added/removed sets and change sets whether or not anything
// was sent.
func (r *Registry) Pulse() {
	for _, p := range r.playerOrder {
		var msg protocol.Advancements
		msg.Clear = !p.synced
		for _, t := range r.trees {
			o := t.observers[p]
			d := t.ComputeSyncDelta(p, o == nil || !o.synced)
			msg.Added = append(msg.Added, d.Added...)
			msg.Removed = append(msg.Removed, d.Removed...)
			msg.Progress = append(msg.Progress, d.Progress...)
		}
		p.synced = true
		if !msg.Empty() && p.conn != nil {
			p.conn.Send(msg)
		}
	}
	for _, t := range r.trees {
		t.endTick()
	}
	for _, p := range r.playerOrder {
		p.changes.reset()
	}
}
