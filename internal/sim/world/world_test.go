package world

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"voxelcraft.ai/advancements/internal/i18n"
	"voxelcraft.ai/advancements/internal/persistence/snapshot"
	"voxelcraft.ai/advancements/internal/protocol"
	"voxelcraft.ai/advancements/internal/sim/catalogs"
)

type auditRecorder struct{ entries []AuditEntry }

func (r *auditRecorder) WriteAudit(e AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

type sessionRecorder struct{ entries []SessionEntry }

func (r *sessionRecorder) WriteSession(e SessionEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

type testClient struct {
	name    string
	id      uuid.UUID
	session uuid.UUID
	ctx     *protocol.Context
	out     chan []byte
}

type harness struct {
	w        *World
	cats     *catalogs.Catalogs
	audits   *auditRecorder
	sessions *sessionRecorder
}

func newHarness(t *testing.T, cfg WorldConfig) *harness {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := New(cfg, cats)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.now = func() time.Time { return time.UnixMilli(5000) }
	h := &harness{w: w, cats: cats, audits: &auditRecorder{}, sessions: &sessionRecorder{}}
	w.SetAuditLogger(h.audits)
	w.SetSessionLogger(h.sessions)
	return h
}

func (h *harness) newClient(name string, queue int) *testClient {
	ctx := protocol.NewContext(language.AmericanEnglish)
	ctx.Items = h.cats.Items
	return &testClient{
		name:    name,
		id:      uuid.NewMD5(uuid.NameSpaceOID, []byte(name)),
		session: uuid.New(),
		ctx:     ctx,
		out:     make(chan []byte, queue),
	}
}

func (h *harness) joinWith(t *testing.T, c *testClient, saved *snapshot.PlayerV1) JoinResponse {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	h.w.step([]JoinRequest{{Name: c.name, UUID: c.id, Session: c.session, Saved: saved, Ctx: c.ctx, Out: c.out, Resp: resp}}, nil, nil)
	select {
	case r := <-resp:
		return r
	default:
		t.Fatalf("join %s: no response", c.name)
	}
	return JoinResponse{}
}

func (h *harness) join(t *testing.T, name string) *testClient {
	t.Helper()
	c := h.newClient(name, 256)
	if r := h.joinWith(t, c, nil); r.Refused {
		t.Fatalf("join %s refused: %+v", name, r.Reason)
	}
	return c
}

func (h *harness) send(c *testClient, msgs ...protocol.Message) {
	envs := make([]PacketEnvelope, 0, len(msgs))
	for _, m := range msgs {
		envs = append(envs, PacketEnvelope{PlayerID: c.id, Session: c.session, Msg: m})
	}
	h.w.step(nil, nil, envs)
}

func (h *harness) leave(c *testClient) {
	h.w.step(nil, []LeaveRequest{{PlayerID: c.id, Session: c.session}}, nil)
}

// sync steps through the next sync pulse.
func (h *harness) sync() {
	for h.w.CurrentTick()%uint64(h.w.cfg.SyncEveryTicks) != 0 {
		h.w.step(nil, nil, nil)
	}
	h.w.step(nil, nil, nil)
}

// drain decodes every queued frame and reports whether the queue was closed.
func drain(t *testing.T, c *testClient) ([]protocol.Message, bool) {
	t.Helper()
	var msgs []protocol.Message
	for {
		select {
		case b, ok := <-c.out:
			if !ok {
				return msgs, true
			}
			m, err := protocol.Clientbound().Decode(c.ctx, b)
			if err != nil {
				t.Fatalf("%s: decode: %v", c.name, err)
			}
			msgs = append(msgs, m)
		default:
			return msgs, false
		}
	}
}

func advancementsIn(msgs []protocol.Message) []protocol.Advancements {
	var out []protocol.Advancements
	for _, m := range msgs {
		if a, ok := m.(protocol.Advancements); ok {
			out = append(out, a)
		}
	}
	return out
}

func chatsIn(msgs []protocol.Message) []protocol.ChatMessage {
	var out []protocol.ChatMessage
	for _, m := range msgs {
		if c, ok := m.(protocol.ChatMessage); ok {
			out = append(out, c)
		}
	}
	return out
}

func (h *harness) wireID(t *testing.T, key string) string {
	t.Helper()
	a, ok := h.w.reg.Get(key)
	if !ok {
		t.Fatalf("no advancement %s", key)
	}
	for _, tree := range h.w.reg.Trees() {
		if tree.Contains(a) {
			return tree.WireID(a)
		}
	}
	t.Fatalf("%s is in no tree", key)
	return ""
}

func added(d protocol.Advancements, id string) bool {
	for _, s := range d.Added {
		if s.ID == id {
			return true
		}
	}
	return false
}

func progressed(d protocol.Advancements, id string) bool {
	for _, p := range d.Progress {
		if p.ID == id {
			return true
		}
	}
	return false
}

var craftingTable = protocol.CreativeInventoryAction{Slot: 36, Item: protocol.Slot{Item: "crafting_table", Count: 1}}

func TestJoin_InitialSync(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	alex := h.join(t, "alex")

	msgs, closed := drain(t, alex)
	if closed || len(msgs) < 2 {
		t.Fatalf("messages after join: %d closed=%v", len(msgs), closed)
	}
	jg, ok := msgs[0].(protocol.JoinGame)
	if !ok || jg.EntityID != 1 || jg.MaxPlayers != 64 {
		t.Fatalf("first message %#v", msgs[0])
	}
	advs := advancementsIn(msgs)
	if len(advs) != 1 || !advs[0].Clear {
		t.Fatalf("initial sync: %+v", advs)
	}
	if !added(advs[0], h.wireID(t, "adventure/root")) || !added(advs[0], h.wireID(t, "adventure/sleep")) {
		t.Fatalf("vacuous root and its child should be visible: %+v", advs[0].Added)
	}
	if added(advs[0], h.wireID(t, "story/root")) || added(advs[0], h.wireID(t, "adventure/elytra")) {
		t.Fatalf("unachieved root or hidden advancement sent: %+v", advs[0].Added)
	}
	if len(h.sessions.entries) != 1 || h.sessions.entries[0].Kind != "join" || h.sessions.entries[0].Locale != "en-US" {
		t.Fatalf("sessions: %+v", h.sessions.entries)
	}
}

func TestTrigger_GrantsAndSyncs(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	alex := h.join(t, "alex")
	drain(t, alex)

	h.send(alex, craftingTable)
	h.sync()

	msgs, _ := drain(t, alex)
	advs := advancementsIn(msgs)
	if len(advs) != 1 || advs[0].Clear {
		t.Fatalf("delta: %+v", advs)
	}
	root := h.wireID(t, "story/root")
	for _, id := range []string{root, h.wireID(t, "story/mine_stone"), h.wireID(t, "story/upgrade_tools")} {
		if !added(advs[0], id) {
			t.Fatalf("%s not added: %+v", id, advs[0].Added)
		}
	}
	if !progressed(advs[0], root) {
		t.Fatalf("no progress for %s", root)
	}
	if len(h.audits.entries) != 1 {
		t.Fatalf("audits: %+v", h.audits.entries)
	}
	e := h.audits.entries[0]
	if e.Kind != "grant" || e.Advancement != "story/root" || e.Player != "alex" || e.Actor != "" || e.Time != 5000 {
		t.Fatalf("audit entry: %+v", e)
	}
	// story/root does not announce.
	if chats := chatsIn(msgs); len(chats) != 0 {
		t.Fatalf("unexpected chat: %+v", chats)
	}
	if m := h.w.Metrics(); m.GrantsTotal != 1 || m.Players != 1 {
		t.Fatalf("metrics: %+v", m)
	}

	// A second pulse without changes sends nothing.
	h.sync()
	if msgs, _ := drain(t, alex); len(advancementsIn(msgs)) != 0 {
		t.Fatalf("empty delta sent: %+v", msgs)
	}
}

func TestAnnounce_PerLocale(t *testing.T) {
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}
	h := newHarness(t, WorldConfig{AnnounceAdvancements: true})
	alex := h.join(t, "alex")
	hans := h.join(t, "hans")
	alex.ctx.Localizer = bundle
	hans.ctx.Localizer = bundle
	h.send(hans, protocol.ClientSettings{Locale: "de-DE", ViewDistance: 8})
	drain(t, alex)
	drain(t, hans)

	h.send(alex, protocol.CreativeInventoryAction{Slot: 36, Item: protocol.Slot{Item: "cobblestone", Count: 1}})

	wants := map[*testClient]string{
		alex: "alex has made the advancement Stone Age",
		hans: "alex hat den Fortschritt Steinzeit erzielt",
	}
	for c, want := range wants {
		msgs, _ := drain(t, c)
		chats := chatsIn(msgs)
		if len(chats) != 1 || chats[0].Text.Text != want || chats[0].Position != protocol.ChatPositionChat {
			t.Fatalf("%s chats: %+v", c.name, chats)
		}
	}
}

func TestAnnounce_Disabled(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	alex := h.join(t, "alex")
	drain(t, alex)
	h.send(alex, protocol.CreativeInventoryAction{Slot: 36, Item: protocol.Slot{Item: "cobblestone", Count: 1}})
	msgs, _ := drain(t, alex)
	if chats := chatsIn(msgs); len(chats) != 0 {
		t.Fatalf("announced with announcements off: %+v", chats)
	}
	if len(h.audits.entries) != 1 {
		t.Fatalf("grant not audited: %+v", h.audits.entries)
	}
}

func TestCommand_GrantRevoke(t *testing.T) {
	h := newHarness(t, WorldConfig{Operators: []string{"Notch"}})
	notch := h.join(t, "Notch")
	alex := h.join(t, "alex")
	drain(t, notch)
	drain(t, alex)

	cases := []struct {
		from *testClient
		line string
		want string
	}{
		{alex, "/advancement grant alex everything", "commands.advancement.denied"},
		{notch, "/advancement grant", "commands.advancement.usage"},
		{notch, "/advancement grant bob story/root", "commands.advancement.unknown_player"},
		{notch, "/advancement grant alex story/nope", "commands.advancement.unknown"},
		{notch, "/advancement grant alex story/root nope", "commands.advancement.unknown_criterion"},
		{notch, "/advancement grant alex everything walk", "commands.advancement.usage"},
		{notch, "/advancement grant alex story/sprint_far walk", "commands.advancement.grant.success"},
	}
	for _, c := range cases {
		h.send(c.from, protocol.ClientChat{Message: c.line})
		msgs, _ := drain(t, c.from)
		chats := chatsIn(msgs)
		if len(chats) == 0 || chats[len(chats)-1].Text.Translate != c.want {
			t.Fatalf("%q: chats %+v", c.line, chats)
		}
		// Stay under the chat rate limit.
		for i := 0; i < h.w.cfg.RateLimits.ChatWindowTicks; i++ {
			h.w.step(nil, nil, nil)
		}
	}

	p, _ := h.w.reg.Player(alex.id)
	sprint, _ := h.w.reg.Get("story/sprint_far")
	if !p.IsAchieved(sprint) || p.Progress(sprint).Score("walk") != 5 {
		t.Fatalf("walk not granted: score %d", p.Progress(sprint).Score("walk"))
	}
	e := h.audits.entries[len(h.audits.entries)-1]
	if e.Actor != "Notch" || e.Criterion != "walk" || e.Advancement != "story/sprint_far" {
		t.Fatalf("audit: %+v", e)
	}

	h.send(notch, protocol.ClientChat{Message: "/advancement revoke alex everything"})
	if p.IsAchieved(sprint) {
		t.Fatalf("still achieved after revoke everything")
	}
	last := h.audits.entries[len(h.audits.entries)-1]
	if last.Kind != "revoke" || last.Actor != "Notch" {
		t.Fatalf("revoke audit: %+v", last)
	}
	if h.w.actor != "" {
		t.Fatalf("actor left set: %q", h.w.actor)
	}
}

func TestChat_BroadcastAndRateLimit(t *testing.T) {
	h := newHarness(t, WorldConfig{RateLimits: RateLimitConfig{ChatWindowTicks: 100, ChatMax: 2}})
	alex := h.join(t, "alex")
	steve := h.join(t, "steve")
	drain(t, alex)
	drain(t, steve)

	h.send(alex, protocol.ClientChat{Message: "hello"})
	msgs, _ := drain(t, steve)
	chats := chatsIn(msgs)
	if len(chats) != 1 || chats[0].Text.Translate != "chat.type.text" || len(chats[0].Text.With) != 2 || chats[0].Text.With[1].Text != "hello" {
		t.Fatalf("broadcast: %+v", chats)
	}

	h.send(alex, protocol.ClientChat{Message: "two"}, protocol.ClientChat{Message: "three"})
	msgs, _ = drain(t, alex)
	chats = chatsIn(msgs)
	if len(chats) != 3 || chats[2].Text.Translate != "chat.rate_limited" {
		t.Fatalf("rate limit: %+v", chats)
	}
}

func TestMove_Travelled(t *testing.T) {
	h := newHarness(t, WorldConfig{TravelStepBlocks: 10, MaxMoveBlocks: 100})
	alex := h.join(t, "alex")
	sprint, _ := h.w.reg.Get("story/sprint_far")
	p, _ := h.w.reg.Player(alex.id)

	h.send(alex,
		protocol.PlayerPosition{X: 0, Z: 0, OnGround: true},
		protocol.PlayerPosition{X: 1000, Z: 0, OnGround: true},
		protocol.PlayerPosition{X: 1025, Z: 0, OnGround: true},
	)
	if got := p.Progress(sprint).Score("walk"); got != 2 || p.IsAchieved(sprint) {
		t.Fatalf("after 25 blocks: score %d", got)
	}
	h.send(alex, protocol.PlayerPosition{X: 1050, Z: 0, OnGround: true})
	if got := p.Progress(sprint).Score("walk"); got != 5 || !p.IsAchieved(sprint) {
		t.Fatalf("after 50 blocks: score %d", got)
	}
}

func TestRespawn_KeepsClientEntityID(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	alex := h.join(t, "alex")
	h.send(alex, protocol.PerformRespawn{})
	if alex.ctx.ClientEntityID() != 1 || alex.ctx.SelfEntityID() != 2 {
		t.Fatalf("ids client=%d self=%d", alex.ctx.ClientEntityID(), alex.ctx.SelfEntityID())
	}
}

func TestSlowClient_Kicked(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	slow := h.newClient("slow", 1)
	if r := h.joinWith(t, slow, nil); r.Refused {
		t.Fatalf("refused: %+v", r)
	}
	msgs, closed := drain(t, slow)
	if !closed || len(msgs) != 1 {
		t.Fatalf("slow client: %d messages closed=%v", len(msgs), closed)
	}
	if _, ok := h.w.reg.Player(slow.id); ok {
		t.Fatalf("kicked player still registered")
	}
	last := h.sessions.entries[len(h.sessions.entries)-1]
	if last.Kind != "kick" || !strings.Contains(last.Reason, "multiplayer.disconnect.slow") {
		t.Fatalf("session: %+v", last)
	}
	if m := h.w.Metrics(); m.KicksTotal != 1 || m.Players != 0 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestJoin_ServerFull(t *testing.T) {
	h := newHarness(t, WorldConfig{MaxPlayers: 1})
	h.join(t, "alex")
	steve := h.newClient("steve", 16)
	r := h.joinWith(t, steve, nil)
	if !r.Refused || r.Reason.Translate != "multiplayer.disconnect.server_full" {
		t.Fatalf("second join: %+v", r)
	}
	if msgs, _ := drain(t, steve); len(msgs) != 0 {
		t.Fatalf("refused client got %d messages", len(msgs))
	}
}

func TestJoin_DuplicateKicksOld(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	first := h.join(t, "alex")
	drain(t, first)
	second := h.newClient("alex", 64)
	if r := h.joinWith(t, second, nil); r.Refused {
		t.Fatalf("refused: %+v", r)
	}
	msgs, closed := drain(t, first)
	if !closed || len(msgs) != 1 {
		t.Fatalf("old session: %d messages closed=%v", len(msgs), closed)
	}
	if d, ok := msgs[0].(protocol.Disconnect); !ok || d.Reason.Translate != "multiplayer.disconnect.duplicate_login" {
		t.Fatalf("old session got %#v", msgs[0])
	}
	p, ok := h.w.reg.Player(second.id)
	if !ok || p.Connection() != h.w.clients[second.id] {
		t.Fatalf("new session not registered")
	}
}

func TestJoin_DuplicateIgnoresOldConnection(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	first := h.join(t, "alex")
	second := h.newClient("alex", 64)
	if r := h.joinWith(t, second, nil); r.Refused {
		t.Fatalf("refused: %+v", r)
	}
	drain(t, second)

	// The old connection's late packets and its leave arrive after the
	// replacement joined.
	h.send(first, craftingTable)
	h.leave(first)

	if _, closed := drain(t, second); closed {
		t.Fatalf("new session dropped by the old connection's leave")
	}
	p, ok := h.w.reg.Player(second.id)
	if !ok {
		t.Fatalf("new session unregistered")
	}
	root, _ := h.w.reg.Get("story/root")
	if p.IsAchieved(root) {
		t.Fatalf("old connection's packet applied to the new session")
	}

	h.send(second, craftingTable)
	if !p.IsAchieved(root) {
		t.Fatalf("new session's packet ignored")
	}
	h.leave(second)
	if _, closed := drain(t, second); !closed {
		t.Fatalf("own leave did not close the session")
	}
}

func TestLeave_SavesAndRestores(t *testing.T) {
	h := newHarness(t, WorldConfig{})
	sink := make(chan snapshot.PlayerV1, 4)
	h.w.SetSnapshotSink(sink)

	alex := h.join(t, "alex")
	h.send(alex, craftingTable)
	h.sync()
	storyTab := h.wireID(t, "story/root")
	h.send(alex, protocol.OpenAdvancementTab{TabID: storyTab})

	h.leave(alex)
	if _, closed := drain(t, alex); !closed {
		t.Fatalf("out not closed on leave")
	}
	var saved snapshot.PlayerV1
	select {
	case saved = <-sink:
	default:
		t.Fatalf("nothing saved on leave")
	}
	if saved.Header.PlayerID != alex.id.String() || saved.Header.Name != "alex" || saved.SelectedTab != storyTab {
		t.Fatalf("saved header: %+v tab=%q", saved.Header, saved.SelectedTab)
	}
	if saved.Progress["story/root"]["crafting_table"] != 5000 {
		t.Fatalf("saved progress: %+v", saved.Progress)
	}
	if last := h.sessions.entries[len(h.sessions.entries)-1]; last.Kind != "leave" {
		t.Fatalf("session: %+v", last)
	}

	// A leave for a gone session is ignored.
	h.leave(alex)

	grants := len(h.audits.entries)
	again := h.newClient("alex", 64)
	if r := h.joinWith(t, again, &saved); r.Refused {
		t.Fatalf("rejoin refused: %+v", r)
	}
	h.sync()
	msgs, _ := drain(t, again)
	advs := advancementsIn(msgs)
	if len(advs) != 1 || !advs[0].Clear || !added(advs[0], storyTab) {
		t.Fatalf("restored sync: %+v", advs)
	}
	var tab *protocol.SelectAdvancementTab
	for _, m := range msgs {
		if s, ok := m.(protocol.SelectAdvancementTab); ok {
			tab = &s
		}
	}
	if tab == nil || tab.TabID != storyTab {
		t.Fatalf("saved tab not selected: %+v", tab)
	}
	if len(h.audits.entries) != grants {
		t.Fatalf("restore notified: %+v", h.audits.entries[grants:])
	}
}

func TestKeepAlive_Timeout(t *testing.T) {
	h := newHarness(t, WorldConfig{KeepAliveEveryTicks: 2, KeepAliveTimeoutTicks: 4})
	a := h.newClient("alex", 64)
	b := h.newClient("steve", 64)
	respA := make(chan JoinResponse, 1)
	respB := make(chan JoinResponse, 1)
	h.w.step([]JoinRequest{
		{Name: a.name, UUID: a.id, Session: a.session, Ctx: a.ctx, Out: a.out, Resp: respA},
		{Name: b.name, UUID: b.id, Session: b.session, Ctx: b.ctx, Out: b.out, Resp: respB},
	}, nil, nil)
	h.w.step(nil, nil, nil) // tick 1
	h.w.step(nil, nil, nil) // tick 2: keepalive 2
	h.send(b, protocol.KeepAlive{ID: 2})
	for i := 0; i < 3; i++ {
		h.w.step(nil, nil, nil) // ticks 4..6
	}

	msgs, closed := drain(t, a)
	if !closed {
		t.Fatalf("silent client not dropped")
	}
	d, ok := msgs[len(msgs)-1].(protocol.Disconnect)
	if !ok || d.Reason.Translate != "multiplayer.disconnect.timeout" {
		t.Fatalf("last message %#v", msgs[len(msgs)-1])
	}
	msgs, closed = drain(t, b)
	if closed {
		t.Fatalf("responsive client dropped")
	}
	var ids []int64
	for _, m := range msgs {
		if k, ok := m.(protocol.KeepAlive); ok {
			ids = append(ids, k.ID)
		}
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 4 {
		t.Fatalf("keepalives %v", ids)
	}
}

func TestRun_ShutdownDisconnects(t *testing.T) {
	h := newHarness(t, WorldConfig{TickRateHz: 50})
	sink := make(chan snapshot.PlayerV1, 1)
	h.w.SetSnapshotSink(sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.w.Run(ctx) }()

	c := h.newClient("alex", 64)
	resp := make(chan JoinResponse, 1)
	h.w.Join() <- JoinRequest{Name: c.name, UUID: c.id, Ctx: c.ctx, Out: c.out, Resp: resp}
	select {
	case <-resp:
	case <-time.After(2 * time.Second):
		t.Fatalf("join timed out")
	}
	h.w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}

	var last []byte
	for b := range c.out {
		last = b
	}
	m, err := protocol.Clientbound().Decode(c.ctx, last)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d, ok := m.(protocol.Disconnect); !ok || d.Reason.Translate != "multiplayer.disconnect.server_shutdown" {
		t.Fatalf("last message %#v", m)
	}
	if len(sink) != 1 {
		t.Fatalf("not saved on shutdown")
	}
}
