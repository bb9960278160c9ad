package advancement

// maxVisibilityHops is how many ancestors the visibility rule looks at.
const maxVisibilityHops = 2

// Visible reports whether a is shown to the player.
func (p *Player) Visible(a *Advancement) bool {
	v, ok := p.visible[a]
	if !ok {
		v = p.shouldBeVisible(a)
		p.visible[a] = v
	}
	return v
}

// shouldBeVisible: a is shown when it or a descendant is achieved, or when
// a is displayed, not hidden, and one of its nearest maxVisibilityHops
// ancestors is achieved, displayed and not hidden. Ancestors that fail the
// test are skipped, not treated as a barrier.
func (p *Player) shouldBeVisible(a *Advancement) bool {
	if p.achievedInSubtree(a) {
		return true
	}
	if !shown(a) {
		return false
	}
	node := a.parent
	for i := 0; node != nil && i < maxVisibilityHops; i++ {
		if shown(node) && p.IsAchieved(node) {
			return true
		}
		node = node.parent
	}
	return false
}

func shown(a *Advancement) bool { return a.display != nil && !a.display.Hidden }

func (p *Player) achievedInSubtree(a *Advancement) bool {
	if p.IsAchieved(a) {
		return true
	}
	for _, c := range a.children {
		if p.achievedInSubtree(c) {
			return true
		}
	}
	return false
}

// refreshVisibility re-evaluates the nodes whose rule reads a's achieved
// state: a itself, its children and grandchildren. Ancestors are reached
// through flips.
func (p *Player) refreshVisibility(a *Advancement) {
	p.ensureVisibility(a)
	for _, c := range a.children {
		p.ensureVisibility(c)
		for _, g := range c.children {
			p.ensureVisibility(g)
		}
	}
}

// ensureVisibility recomputes a; on a flip (or a first evaluation) the parent
// and children are re-evaluated in turn.
func (p *Player) ensureVisibility(a *Advancement) {
	now := p.shouldBeVisible(a)
	was, known := p.visible[a]
	p.visible[a] = now
	if known && was == now {
		return
	}
	p.changes.markVisibility(a)
	if a.parent != nil {
		p.ensureVisibility(a.parent)
	}
	for _, c := range a.children {
		p.ensureVisibility(c)
	}
}
