package advancement

import (
	"reflect"
	"testing"

	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/criteria"
)

// story builds root -> cave -> deep -> deeper, plus a hidden and an
// undisplayed child of root, all in one tree.
type story struct {
	*fixture
	tree                                    *Tree
	root, cave, deep, deeper, secret, plain *Advancement
}

func newStory(t *testing.T) *story {
	t.Helper()
	s := &story{fixture: newFixture(t, true)}
	hidden := display("Secret")
	hidden.Hidden = true
	s.root = s.register(t, Def{Key: "root", Criterion: criteria.Empty, Display: display("Root")})
	s.cave = s.register(t, Def{Key: "cave", Parent: "root", Criterion: criteria.And(criteria.Leaf("a"), criteria.Leaf("b")), Display: display("Cave")})
	s.deep = s.register(t, Def{Key: "deep", Parent: "cave", Criterion: criteria.Leaf("d"), Display: display("Deep")})
	s.deeper = s.register(t, Def{Key: "deeper", Parent: "deep", Criterion: criteria.Leaf("dd"), Display: display("Deeper")})
	s.secret = s.register(t, Def{Key: "secret", Parent: "root", Criterion: criteria.Leaf("s"), Display: hidden})
	s.plain = s.register(t, Def{Key: "plain", Parent: "root", Criterion: criteria.Leaf("p")})

	tree, err := s.reg.NewTree("story", RootDisplay{Title: s.root.Display().Title})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	s.tree = tree
	for i, a := range []*Advancement{s.root, s.cave, s.deep, s.deeper, s.secret, s.plain} {
		if err := tree.Add(float32(i), 0, a); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return s
}

func addedIDs(d protocol.Advancements) []string {
	var out []string
	for _, a := range d.Added {
		out = append(out, a.ID)
	}
	return out
}

func progressIDs(d protocol.Advancements) []string {
	var out []string
	for _, e := range d.Progress {
		out = append(out, e.ID)
	}
	return out
}

func lastAdvancements(t *testing.T, s *sink) protocol.Advancements {
	t.Helper()
	if len(s.msgs) == 0 {
		t.Fatalf("nothing sent")
	}
	m, ok := s.msgs[len(s.msgs)-1].(protocol.Advancements)
	if !ok {
		t.Fatalf("last message is %T", s.msgs[len(s.msgs)-1])
	}
	return m
}

func TestVisibility_Rules(t *testing.T) {
	s := newStory(t)
	p := s.player(t, "steve", nil)
	want := map[*Advancement]bool{
		s.root:   true,  // achieved
		s.cave:   true,  // parent achieved
		s.deep:   true,  // grandparent achieved
		s.deeper: false, // nearest achieved ancestor is three hops up
		s.secret: false, // hidden and not achieved
		s.plain:  false, // no display
	}
	for a, v := range want {
		if got := p.Visible(a); got != v {
			t.Fatalf("Visible(%s)=%v want %v", a.Key(), got, v)
		}
	}

	p.Grant(s.cave, "")
	if !p.Visible(s.deeper) {
		t.Fatalf("deeper should show once its grandparent is achieved")
	}
	p.Grant(s.secret, "")
	p.Grant(s.plain, "")
	if !p.Visible(s.secret) || !p.Visible(s.plain) {
		t.Fatalf("achieved advancements should be visible")
	}
	p.Revoke(s.secret, "")
	if p.Visible(s.secret) {
		t.Fatalf("revoked hidden advancement still visible")
	}
}

func TestVisibility_HiddenAncestors(t *testing.T) {
	f := newFixture(t, false)
	hidden := display("Hidden")
	hidden.Hidden = true
	top := f.register(t, Def{Key: "top", Criterion: criteria.Leaf("t"), Display: display("Top")})
	veil := f.register(t, Def{Key: "veil", Parent: "top", Criterion: criteria.Leaf("v"), Display: hidden})
	under := f.register(t, Def{Key: "under", Parent: "veil", Criterion: criteria.Leaf("u"), Display: display("Under")})
	p := f.player(t, "steve", nil)

	p.Grant(top, "")
	if p.Visible(veil) {
		t.Fatalf("hidden advancement shown before it is achieved")
	}
	if !p.Visible(under) {
		t.Fatalf("achieved grandparent should show under through a hidden parent")
	}

	p.Revoke(top, "")
	p.Grant(veil, "")
	if !p.Visible(veil) || !p.Visible(top) {
		t.Fatalf("achieved veil and its ancestor should be visible")
	}
	if p.Visible(under) {
		t.Fatalf("an achieved hidden parent should not reveal its child")
	}
}

func TestVisibility_DescendantAchieved(t *testing.T) {
	f := newFixture(t, false)
	top := f.register(t, Def{Key: "top", Criterion: criteria.Leaf("t"), Display: display("Top")})
	mid := f.register(t, Def{Key: "mid", Parent: "top", Criterion: criteria.Leaf("m"), Display: display("Mid")})
	low := f.register(t, Def{Key: "low", Parent: "mid", Criterion: criteria.Leaf("l"), Display: display("Low")})
	p := f.player(t, "steve", nil)
	if p.Visible(top) || p.Visible(mid) || p.Visible(low) {
		t.Fatalf("nothing achieved yet, nothing should be visible")
	}
	p.Grant(low, "")
	for _, a := range []*Advancement{top, mid, low} {
		if !p.Visible(a) {
			t.Fatalf("%s should be visible above an achieved descendant", a.Key())
		}
		if !p.Changes().VisibilityChanged(a) {
			t.Fatalf("%s flip not recorded", a.Key())
		}
	}
}

func TestSync_InitialThenMinimal(t *testing.T) {
	s := newStory(t)
	conn := &sink{}
	p := s.player(t, "steve", conn)

	s.reg.Pulse()
	first := lastAdvancements(t, conn)
	if !first.Clear {
		t.Fatalf("first pulse should clear")
	}
	if got := addedIDs(first); !reflect.DeepEqual(got, []string{"1/root", "1/cave", "1/deep"}) {
		t.Fatalf("added %v", got)
	}
	if got := progressIDs(first); !reflect.DeepEqual(got, []string{"1/root", "1/cave", "1/deep"}) {
		t.Fatalf("progress %v", got)
	}
	if first.Added[1].Parent != "1/root" || first.Added[0].Parent != "" {
		t.Fatalf("parents %q %q", first.Added[0].Parent, first.Added[1].Parent)
	}

	if d := s.tree.ComputeSyncDelta(p, false); !d.Empty() {
		t.Fatalf("delta right after sync: %+v", d)
	}

	p.Progress(s.cave).Achieve("a")
	d := s.tree.ComputeSyncDelta(p, false)
	if len(d.Added) != 0 || len(d.Removed) != 0 || len(d.Progress) != 1 || d.Progress[0].ID != "1/cave" {
		t.Fatalf("one achievement should yield one progress entry: %+v", d)
	}
	wantCriteria := []protocol.CriterionProgress{{ID: "a", Achieved: true, Time: 1000}, {ID: "b", Time: Unset}}
	if !reflect.DeepEqual(d.Progress[0].Criteria, wantCriteria) {
		t.Fatalf("criteria %+v", d.Progress[0].Criteria)
	}

	s.reg.Pulse()
	if n := len(conn.msgs); n != 2 {
		t.Fatalf("sent %d messages", n)
	}
	if lastAdvancements(t, conn).Clear {
		t.Fatalf("only the first pulse clears")
	}
	s.reg.Pulse()
	if n := len(conn.msgs); n != 2 {
		t.Fatalf("empty pulse sent a message")
	}
}

func TestSync_VisibilityFlips(t *testing.T) {
	s := newStory(t)
	conn := &sink{}
	p := s.player(t, "steve", conn)
	s.reg.Pulse()

	p.Grant(s.cave, "")
	s.reg.Pulse()
	d := lastAdvancements(t, conn)
	if got := addedIDs(d); !reflect.DeepEqual(got, []string{"1/deeper"}) {
		t.Fatalf("added %v", got)
	}
	if d.Added[0].Parent != "1/deep" {
		t.Fatalf("deeper parent %q", d.Added[0].Parent)
	}
	if got := progressIDs(d); !reflect.DeepEqual(got, []string{"1/cave", "1/deeper"}) {
		t.Fatalf("progress %v", got)
	}

	p.Grant(s.secret, "")
	s.reg.Pulse()
	if got := addedIDs(lastAdvancements(t, conn)); !reflect.DeepEqual(got, []string{"1/secret"}) {
		t.Fatalf("added %v", got)
	}

	p.Revoke(s.secret, "")
	s.reg.Pulse()
	d = lastAdvancements(t, conn)
	if !reflect.DeepEqual(d.Removed, []string{"1/secret"}) || len(d.Added) != 0 || len(d.Progress) != 0 {
		t.Fatalf("revoke of hidden advancement: %+v", d)
	}
}

func TestSync_SyntheticRoot(t *testing.T) {
	s := newStory(t)
	p := s.player(t, "steve", nil)
	extra, err := s.reg.NewTree("extra", RootDisplay{Background: "minecraft:textures/gui/advancements/backgrounds/stone.png"})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if err := extra.Add(0, 0, s.deep); err != nil {
		t.Fatalf("Add: %v", err)
	}

	d := extra.ComputeSyncDelta(p, true)
	if got := addedIDs(d); !reflect.DeepEqual(got, []string{"2/#root", "2/deep"}) {
		t.Fatalf("added %v", got)
	}
	if d.Added[1].Parent != "2/#root" {
		t.Fatalf("member parent %q", d.Added[1].Parent)
	}
	if d.Added[0].Display == nil || d.Added[0].Display.Background == "" {
		t.Fatalf("synthetic root lost its background")
	}
	if got := progressIDs(d); !reflect.DeepEqual(got, []string{"2/#root", "2/deep"}) {
		t.Fatalf("progress %v", got)
	}

	extra.Remove(s.deep)
	d = extra.ComputeSyncDelta(p, false)
	if !reflect.DeepEqual(d.Removed, []string{"2/deep", "2/#root"}) {
		t.Fatalf("removed %v", d.Removed)
	}
}

func TestSync_ReparentOnAdd(t *testing.T) {
	s := newStory(t)
	p := s.player(t, "steve", nil)
	extra, _ := s.reg.NewTree("extra", RootDisplay{})
	extra.Add(0, 0, s.deep)
	extra.ComputeSyncDelta(p, true)
	s.reg.Pulse()

	extra.Add(1, 0, s.cave)
	d := extra.ComputeSyncDelta(p, false)
	if !reflect.DeepEqual(d.Removed, []string{"2/deep"}) {
		t.Fatalf("removed %v", d.Removed)
	}
	if got := addedIDs(d); !reflect.DeepEqual(got, []string{"2/deep", "2/cave"}) {
		t.Fatalf("added %v", got)
	}
	if d.Added[0].Parent != "2/cave" {
		t.Fatalf("deep should move under cave, got %q", d.Added[0].Parent)
	}
}

func TestPulse_ClearsChangesWithoutConnection(t *testing.T) {
	s := newStory(t)
	p := s.player(t, "steve", nil)
	s.reg.Pulse()
	p.Grant(s.cave, "")
	s.tree.Remove(s.plain)
	s.reg.Pulse()
	if !p.Changes().Empty() {
		t.Fatalf("changes survive the pulse")
	}
	if d := s.tree.ComputeSyncDelta(p, false); !d.Empty() {
		t.Fatalf("delta after pulse: %+v", d)
	}
}

func TestSelectTab(t *testing.T) {
	s := newStory(t)
	conn := &sink{}
	p := s.player(t, "steve", conn)
	s.reg.Pulse()
	if !p.SelectTab("1/root") || p.SelectedTab() != "1/root" {
		t.Fatalf("select root tab")
	}
	if got, ok := conn.msgs[len(conn.msgs)-1].(protocol.SelectAdvancementTab); !ok || got.TabID != "1/root" {
		t.Fatalf("tab echo %#v", conn.msgs[len(conn.msgs)-1])
	}
	if p.SelectTab("1/cave") || p.SelectTab("7/root") {
		t.Fatalf("non-root or unknown tab accepted")
	}
	if !p.SelectTab("") {
		t.Fatalf("closing the screen should be accepted")
	}
}

func TestFire_Triggers(t *testing.T) {
	f := newFixture(t, false)
	mine := criteria.Leaf("mine_stone").WithTrigger("block_broken", map[string]string{"block": "stone"})
	sprint := criteria.Scored("sprint", 3).WithTrigger("sprint", nil)
	stone := f.register(t, Def{Key: "stone", Criterion: mine})
	run := f.register(t, Def{Key: "run", Criterion: sprint})
	p := f.player(t, "steve", nil)

	if n := p.Fire("block_broken", map[string]string{"block": "dirt"}); n != 0 {
		t.Fatalf("dirt moved %d leaves", n)
	}
	if n := p.Fire("block_broken", map[string]string{"block": "stone", "tool": "pickaxe"}); n != 1 {
		t.Fatalf("stone moved %d leaves", n)
	}
	if !p.IsAchieved(stone) || p.Listening("block_broken") != 0 {
		t.Fatalf("stone: achieved=%v listening=%d", p.IsAchieved(stone), p.Listening("block_broken"))
	}

	for i := 0; i < 3; i++ {
		if n := f.reg.Fire(p.ID(), "sprint", nil); n != 1 {
			t.Fatalf("sprint %d moved %d", i, n)
		}
	}
	if !p.IsAchieved(run) || p.Progress(run).Score("sprint") != 3 {
		t.Fatalf("run not achieved after three sprints")
	}
	if n := p.Fire("sprint", nil); n != 0 {
		t.Fatalf("completed leaf still listening")
	}

	p.Revoke(stone, "")
	if p.Listening("block_broken") != 1 {
		t.Fatalf("revoke should re-arm the trigger")
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := newStory(t)
	steve := s.player(t, "steve", nil)
	steve.Progress(s.cave).Achieve("a")
	s.clock.ms = 1700
	steve.Progress(s.cave).Achieve("b")
	saved := steve.Snapshot()
	if !reflect.DeepEqual(saved, map[string]map[string]int64{"cave": {"a": 1000, "b": 1700}}) {
		t.Fatalf("snapshot %v", saved)
	}
	granted := len(s.rec.granted)

	saved["gone"] = map[string]int64{"x": 1}
	saved["deep"] = map[string]int64{"nope": 5}
	alex := s.player(t, "alex", nil)
	if skipped := alex.Restore(saved); skipped != 2 {
		t.Fatalf("skipped %d", skipped)
	}
	if pr := alex.Progress(s.cave); !pr.IsAchieved() || pr.AchieveTime() != 1700 {
		t.Fatalf("restored cave: %v %d", pr.IsAchieved(), pr.AchieveTime())
	}
	if len(s.rec.granted) != granted {
		t.Fatalf("restore notified")
	}
	if !alex.Visible(s.deeper) {
		t.Fatalf("visibility not recomputed after restore")
	}
}
