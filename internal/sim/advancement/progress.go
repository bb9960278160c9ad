package advancement

import (
	"sort"

	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/criteria"
)

// Progress is one player's state for one advancement.
type Progress struct {
	adv   *Advancement
	owner *Player
	// stamps holds only achieved wire ids.
	stamps      map[string]int64
	achieveTime int64
}

func newProgress(owner *Player, adv *Advancement) *Progress {
	pr := &Progress{adv: adv, owner: owner, stamps: map[string]int64{}, achieveTime: Unset}
	if len(adv.requirements) == 0 {
		pr.achieveTime = owner.now()
	}
	return pr
}

func (pr *Progress) Advancement() *Advancement { return pr.adv }

func (pr *Progress) IsAchieved() bool   { return pr.achieveTime != Unset }
func (pr *Progress) AchieveTime() int64 { return pr.achieveTime }

// Achieve stamps a wire criterion id. A stamped id keeps its original time.
// Unknown ids return Unset.
func (pr *Progress) Achieve(id string) int64 {
	if !pr.adv.wireSet[id] {
		return Unset
	}
	if t, ok := pr.stamps[id]; ok {
		return t
	}
	now := pr.owner.now()
	pr.stamps[id] = now
	pr.owner.changes.markProgress(pr.adv)
	if pr.achieveTime == Unset && pr.satisfied() {
		pr.achieveTime = now
		pr.owner.granted(pr)
	}
	pr.syncListeners()
	return now
}

// Revoke clears a wire criterion id and returns its previous stamp.
func (pr *Progress) Revoke(id string) (int64, bool) {
	prev, ok := pr.stamps[id]
	if !ok {
		return Unset, false
	}
	delete(pr.stamps, id)
	pr.owner.changes.markProgress(pr.adv)
	if pr.achieveTime != Unset && !pr.satisfied() {
		pr.achieveTime = Unset
		pr.owner.revoked(pr)
	}
	pr.syncListeners()
	return prev, true
}

// AchieveAll stamps every unset criterion with one timestamp. If already
// achieved it returns the existing achieve time and stamps nothing.
func (pr *Progress) AchieveAll() int64 {
	if pr.achieveTime != Unset {
		return pr.achieveTime
	}
	now := pr.owner.now()
	for _, id := range pr.adv.wireIDs {
		if _, ok := pr.stamps[id]; !ok {
			pr.stamps[id] = now
		}
	}
	pr.owner.changes.markProgress(pr.adv)
	pr.achieveTime = now
	pr.owner.granted(pr)
	pr.syncListeners()
	return now
}

// RevokeAll clears every stamp. Returns false when nothing was stamped.
func (pr *Progress) RevokeAll() bool {
	if len(pr.stamps) == 0 {
		return false
	}
	pr.stamps = map[string]int64{}
	pr.owner.changes.markProgress(pr.adv)
	if pr.achieveTime != Unset && !pr.satisfied() {
		pr.achieveTime = Unset
		pr.owner.revoked(pr)
	}
	pr.syncListeners()
	return true
}

// Score is the number of stamped steps of a scored leaf.
func (pr *Progress) Score(id string) int {
	n, ok := pr.adv.nodes[id]
	if !ok || n.Kind() != criteria.KindLeaf {
		return 0
	}
	score := 0
	for _, w := range n.WireIDs() {
		if _, ok := pr.stamps[w]; ok {
			score++
		}
	}
	return score
}

// SetScore stamps the first score steps of a scored leaf and clears the rest.
func (pr *Progress) SetScore(id string, score int) {
	n, ok := pr.adv.nodes[id]
	if !ok || n.Kind() != criteria.KindLeaf {
		return
	}
	for i, w := range n.WireIDs() {
		if i < score {
			pr.Achieve(w)
		} else {
			pr.Revoke(w)
		}
	}
}

// AddScore moves a scored leaf by delta, clamped to [0, goal], and returns
// the new score.
func (pr *Progress) AddScore(id string, delta int) int {
	n, ok := pr.adv.nodes[id]
	if !ok || n.Kind() != criteria.KindLeaf {
		return 0
	}
	score := pr.Score(id) + delta
	if score < 0 {
		score = 0
	}
	if score > n.Goal() {
		score = n.Goal()
	}
	pr.SetScore(id, score)
	return score
}

// Time returns the stamp of a wire id, or the derived time of a leaf or
// composite: an AND completes with its latest operand, an OR with its
// earliest completed one.
func (pr *Progress) Time(id string) int64 {
	if t, ok := pr.stamps[id]; ok {
		return t
	}
	n, ok := pr.adv.nodes[id]
	if !ok {
		return Unset
	}
	return pr.nodeTime(n)
}

func (pr *Progress) nodeTime(n criteria.Criterion) int64 {
	switch n.Kind() {
	case criteria.KindLeaf:
		return pr.groupTime(n.WireIDs())
	case criteria.KindAnd:
		latest := Unset
		for _, ch := range n.Children() {
			t := pr.nodeTime(ch)
			if t == Unset {
				return Unset
			}
			if t > latest {
				latest = t
			}
		}
		return latest
	case criteria.KindOr:
		earliest := Unset
		for _, ch := range n.Children() {
			if t := pr.nodeTime(ch); t != Unset && (earliest == Unset || t < earliest) {
				earliest = t
			}
		}
		return earliest
	}
	return Unset
}

// groupTime is the latest stamp of ids, or Unset if any is missing.
func (pr *Progress) groupTime(ids []string) int64 {
	latest := Unset
	for _, id := range ids {
		t, ok := pr.stamps[id]
		if !ok {
			return Unset
		}
		if t > latest {
			latest = t
		}
	}
	return latest
}

// satisfied recomputes the achieved state from the stamps: some group has
// every member stamped, or there are no groups.
func (pr *Progress) satisfied() bool {
	if len(pr.adv.requirements) == 0 {
		return true
	}
	for _, group := range pr.adv.requirements {
		if pr.groupTime(group) != Unset {
			return true
		}
	}
	return false
}

// completionTime is the earliest moment a group became fully stamped.
func (pr *Progress) completionTime() int64 {
	best := Unset
	for _, group := range pr.adv.requirements {
		if t := pr.groupTime(group); t != Unset && (best == Unset || t < best) {
			best = t
		}
	}
	return best
}

// restore replaces the stamps without notifications.
func (pr *Progress) restore(stamps map[string]int64) {
	pr.stamps = map[string]int64{}
	for id, t := range stamps {
		if pr.adv.wireSet[id] && t >= 0 {
			pr.stamps[id] = t
		}
	}
	switch {
	case len(pr.adv.requirements) == 0:
		if pr.achieveTime == Unset {
			pr.achieveTime = pr.owner.now()
		}
	default:
		pr.achieveTime = pr.completionTime()
	}
	pr.syncListeners()
}

func (pr *Progress) snapshot() map[string]int64 {
	if len(pr.stamps) == 0 {
		return nil
	}
	out := make(map[string]int64, len(pr.stamps))
	for id, t := range pr.stamps {
		out[id] = t
	}
	return out
}

// syncListeners keeps one trigger listener per incomplete triggered leaf
// while the advancement is not achieved.
func (pr *Progress) syncListeners() {
	for _, leaf := range pr.adv.triggered {
		want := pr.achieveTime == Unset && pr.groupTime(leaf.WireIDs()) == Unset
		pr.owner.setListener(pr.adv, leaf, want)
	}
}

// entry is the wire form of the progress.
func (pr *Progress) entry(id string) protocol.ProgressEntry {
	e := protocol.ProgressEntry{ID: id}
	for _, w := range pr.adv.wireIDs {
		c := protocol.CriterionProgress{ID: w, Time: Unset}
		if t, ok := pr.stamps[w]; ok {
			c.Achieved, c.Time = true, t
		}
		e.Criteria = append(e.Criteria, c)
	}
	return e
}

// Stamps returns the stamped wire ids in order.
func (pr *Progress) Stamps() []string {
	out := make([]string, 0, len(pr.stamps))
	for id := range pr.stamps {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
