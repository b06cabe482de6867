package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Meet/internal/adapters/persistence/memory"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []map[string]any
	err    error
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) ofType(kind Kind) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		if f["type"] == string(kind) {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = f["type"].(string)
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestOrch(t *testing.T, maxParticipants int) (*Orchestrator, *memory.Store, *domain.Room) {
	t.Helper()
	store := memory.New()
	room := &domain.Room{ID: "room-1", Code: "abc1234567", Active: true, MaxParticipants: maxParticipants}
	if err := store.CreateRoom(context.Background(), room); err != nil {
		t.Fatal(err)
	}
	return New(store, nil, nil), store, room
}

func join(t *testing.T, o *Orchestrator, client domain.ClientID) (*core.Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess, err := o.Connect(context.Background(), JoinRequest{Code: "abc1234567", Client: client, IPAddress: "10.0.0.1"}, conn)
	if err != nil {
		t.Fatalf("Connect(%s) error: %v", client, err)
	}
	return sess, conn
}

func TestConnect_ConcurrentFirstJoinersElectOneHost(t *testing.T) {
	o, store, room := newTestOrch(t, 50)

	const n = 30
	var wg sync.WaitGroup
	sessions := make([]*core.Session, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := o.Connect(context.Background(), JoinRequest{
				Code:   room.Code,
				Client: domain.ClientID(fmt.Sprintf("c%d", i)),
			}, &fakeConn{})
			if err != nil {
				t.Errorf("Connect: %v", err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	hosts := 0
	for _, s := range sessions {
		if s != nil && s.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		t.Errorf("sessions with host=true: %d, want 1", hosts)
	}

	rows, _ := store.ListActiveParticipants(context.Background(), room.ID)
	dbHosts := 0
	for _, p := range rows {
		if p.IsHost {
			dbHosts++
		}
	}
	if dbHosts != 1 {
		t.Errorf("active host rows: %d, want 1", dbHosts)
	}
}

func TestScenario_ToggleThenHostLeaves(t *testing.T) {
	o, store, _ := newTestOrch(t, 10)
	ctx := context.Background()

	a, _ := join(t, o, "A")
	b, bConn := join(t, o, "B")
	if !a.IsHost || b.IsHost {
		t.Fatalf("host flags: A=%v B=%v, want A only", a.IsHost, b.IsHost)
	}

	o.ToggleMedia(ctx, a, domain.MediaAudio, false)
	toggles := bConn.ofType(KindAudioToggle)
	if len(toggles) != 1 || toggles[0]["clientId"] != "A" || toggles[0]["enabled"] != false {
		t.Fatalf("B got audio toggles %v", toggles)
	}
	p, _ := store.FindParticipant(ctx, "room-1", "A")
	if p.AudioEnabled {
		t.Errorf("audio flag not persisted")
	}

	o.Disconnect(ctx, a)
	left := bConn.ofType(KindUserLeft)
	if len(left) != 1 || left[0]["clientId"] != "A" {
		t.Fatalf("B got user-left %v", left)
	}
	if got := o.Registry.Clients("abc1234567"); len(got) != 1 || got[0] != "B" {
		t.Errorf("handles = %v, want [B]", got)
	}
	if _, err := store.FindParticipant(ctx, "room-1", "A"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Errorf("A should be inactive after disconnect, err = %v", err)
	}

	kinds := map[domain.AuditKind]int{}
	for _, ev := range store.AuditEvents() {
		kinds[ev.Kind]++
	}
	if kinds[domain.AuditJoin] != 2 || kinds[domain.AuditLeave] != 1 || kinds[domain.AuditAudioToggle] != 1 {
		t.Errorf("audit kinds = %v", kinds)
	}
}

func TestForward_AbsentTargetKeepsSenderResponsive(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	c, cConn := join(t, o, "C")
	_, dConn := join(t, o, "D")

	before := len(dConn.types())
	o.Forward(c, KindOffer, "nonexistent", json.RawMessage(`{"sdp":"v=0"}`))
	if len(dConn.types()) != before {
		t.Errorf("offer to absent target leaked to D")
	}

	o.Pong(c)
	if len(cConn.ofType(KindPong)) != 1 {
		t.Errorf("C should still be served after a dropped forward")
	}

	o.Forward(c, KindOffer, "D", json.RawMessage(`{"sdp":"v=0"}`))
	offers := dConn.ofType(KindOffer)
	if len(offers) != 1 || offers[0]["from"] != "C" {
		t.Fatalf("D got offers %v", offers)
	}
	if data, _ := offers[0]["data"].(map[string]any); data["sdp"] != "v=0" {
		t.Errorf("forwarded data altered: %v", offers[0]["data"])
	}
}

func TestConnect_LateJoinerGetsHistoryBeforeLiveChat(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	ctx := context.Background()
	a, _ := join(t, o, "A")

	for i := 0; i < 3; i++ {
		o.PostChat(ctx, a, fmt.Sprintf("m%d", i), nil)
	}

	_, lateConn := join(t, o, "L")
	o.PostChat(ctx, a, "live", nil)

	types := lateConn.types()
	if len(types) == 0 || types[0] != string(KindChatHistory) {
		t.Fatalf("first frame to late joiner = %v, want chat-history", types)
	}
	history := lateConn.ofType(KindChatHistory)[0]["messages"].([]any)
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3", len(history))
	}
	for i, m := range history {
		msg := m.(map[string]any)
		if msg["message"] != fmt.Sprintf("m%d", i) || msg["displayName"] != domain.AnonymousName {
			t.Errorf("history[%d] = %v", i, msg)
		}
	}
	live := lateConn.ofType(KindChatMessage)
	if len(live) != 1 || live[0]["message"] != "live" {
		t.Errorf("live chat = %v", live)
	}
}

func TestChat_EchoesToSenderAndUsesAnnouncedName(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	ctx := context.Background()
	a, aConn := join(t, o, "A")
	_, bConn := join(t, o, "B")

	o.Rename(ctx, a, "alice")
	if names := bConn.ofType(KindParticipantNameSync); len(names) != 1 || names[0]["displayName"] != "alice" {
		t.Errorf("B name updates = %v", names)
	}
	if len(aConn.ofType(KindParticipantNameSync)) != 0 {
		t.Errorf("rename must not echo to the sender")
	}

	o.PostChat(ctx, a, "hello", nil)
	for _, c := range []*fakeConn{aConn, bConn} {
		msgs := c.ofType(KindChatMessage)
		if len(msgs) != 1 || msgs[0]["displayName"] != "alice" || msgs[0]["from"] != "A" {
			t.Errorf("chat frames = %v", msgs)
		}
	}
}

func TestScreenShare_ExcludesSender(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	a, aConn := join(t, o, "A")
	_, bConn := join(t, o, "B")

	o.ScreenShare(a, true)
	o.ScreenShare(a, false)
	if len(aConn.ofType(KindScreenShareStart)) != 0 {
		t.Errorf("sender got its own screen-share-start")
	}
	if len(bConn.ofType(KindScreenShareStart)) != 1 || len(bConn.ofType(KindScreenShareStop)) != 1 {
		t.Errorf("B frames = %v", bConn.types())
	}
}

func TestConnect_ParticipantsUpdateCarriesFlags(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	ctx := context.Background()
	a, _ := join(t, o, "A")
	o.Rename(ctx, a, "alice")
	o.ToggleMedia(ctx, a, domain.MediaVideo, false)

	_, bConn := join(t, o, "B")
	updates := bConn.ofType(KindParticipantsUpdate)
	if len(updates) != 1 {
		t.Fatalf("participants-update frames = %d", len(updates))
	}
	ids := updates[0]["participants"].([]any)
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Errorf("participants = %v", ids)
	}
	data := updates[0]["participantsData"].([]any)
	first := data[0].(map[string]any)
	if first["displayName"] != "alice" || first["videoEnabled"] != false || first["audioEnabled"] != true {
		t.Errorf("participantsData[0] = %v", first)
	}
}

func TestDisconnect_LastLeaveDropsRoomKeepsChat(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	ctx := context.Background()
	a, _ := join(t, o, "A")
	o.PostChat(ctx, a, "bye", nil)

	o.Disconnect(ctx, a)
	if o.Registry.Has("abc1234567") {
		t.Errorf("room should leave the registry with its last handle")
	}
	if len(o.Registry.Clients("abc1234567")) != 0 {
		t.Errorf("Clients() should be empty")
	}
	if h := o.Chat.History("abc1234567"); len(h) != 1 || h[0].Message != "bye" {
		t.Errorf("chat history = %v, want kept", h)
	}
}

func TestDisconnect_StaleConnectionAfterReconnect(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	ctx := context.Background()
	_, bConn := join(t, o, "B")
	old, _ := join(t, o, "A")
	_, _ = join(t, o, "A")

	o.Disconnect(ctx, old)
	if len(bConn.ofType(KindUserLeft)) != 0 {
		t.Errorf("closing a replaced connection must not announce a departure")
	}
	if got := o.Registry.Clients("abc1234567"); len(got) != 2 {
		t.Errorf("handles = %v, want B and the new A", got)
	}
}

func TestConnect_Refusals(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		setup  func(*memory.Store)
		code   domain.RoomCode
		client domain.ClientID
		reason string
	}{
		{name: "unknown room", code: "zzzzzzzzzz", client: "A", reason: ReasonNotFound},
		{name: "empty client", code: "abc1234567", client: "", reason: ReasonClientID},
		{
			name: "ended",
			setup: func(s *memory.Store) {
				_ = s.CreateRoom(ctx, &domain.Room{ID: "room-1", Code: "abc1234567", Active: false, MaxParticipants: 10})
			},
			code: "abc1234567", client: "A", reason: ReasonEnded,
		},
		{
			name: "full",
			setup: func(s *memory.Store) {
				_ = s.CreateRoom(ctx, &domain.Room{ID: "room-1", Code: "abc1234567", Active: true, MaxParticipants: 2})
				_ = s.CreateParticipant(ctx, domain.NewParticipant("p1", "room-1", "X", true))
				_ = s.CreateParticipant(ctx, domain.NewParticipant("p2", "room-1", "Y", false))
			},
			code: "abc1234567", client: "A", reason: ReasonFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, store, _ := newTestOrch(t, 10)
			if tt.setup != nil {
				tt.setup(store)
			}
			conn := &fakeConn{}
			_, err := o.Connect(ctx, JoinRequest{Code: tt.code, Client: tt.client}, conn)

			var se *SetupError
			if !errors.As(err, &se) || !errors.Is(err, ErrSetup) {
				t.Fatalf("Connect err = %v, want SetupError", err)
			}
			if se.Internal || se.Reason != tt.reason {
				t.Errorf("SetupError = %+v, want policy refusal %q", se, tt.reason)
			}
			if o.Registry.Count(tt.code) != 0 || len(conn.types()) != 0 {
				t.Errorf("refused client must not be registered or messaged")
			}
		})
	}
}

type flakyStore struct {
	*memory.Store
	failCreate bool
	failUpdate bool
	failAudit  bool
	failCount  bool
}

var errStoreDown = errors.New("store down")

func (s *flakyStore) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	if s.failCreate {
		return errStoreDown
	}
	return s.Store.CreateParticipant(ctx, p)
}

func (s *flakyStore) UpdateParticipant(ctx context.Context, p *domain.Participant) error {
	if s.failUpdate {
		return errStoreDown
	}
	return s.Store.UpdateParticipant(ctx, p)
}

func (s *flakyStore) AppendAuditEvent(ctx context.Context, ev *domain.AuditEvent) error {
	if s.failAudit {
		return errStoreDown
	}
	return s.Store.AppendAuditEvent(ctx, ev)
}

func (s *flakyStore) CountActiveParticipants(ctx context.Context, room domain.RoomID) (int, error) {
	if s.failCount {
		return 0, errStoreDown
	}
	return s.Store.CountActiveParticipants(ctx, room)
}

func TestConnect_CreateFailureIsInternal(t *testing.T) {
	base, _, _ := newTestOrch(t, 10)
	store := &flakyStore{Store: base.Store.(*memory.Store), failCreate: true}
	o := New(store, nil, nil)

	_, err := o.Connect(context.Background(), JoinRequest{Code: "abc1234567", Client: "A"}, &fakeConn{})
	var se *SetupError
	if !errors.As(err, &se) || !se.Internal || se.Reason != ReasonInternal {
		t.Fatalf("Connect err = %v, want internal SetupError", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Errorf("cause should be wrapped: %v", err)
	}
	if o.Registry.Has("abc1234567") {
		t.Errorf("nothing should be registered")
	}
}

func TestInSessionStoreFailuresStillBroadcast(t *testing.T) {
	base, _, _ := newTestOrch(t, 10)
	store := &flakyStore{Store: base.Store.(*memory.Store)}
	o := New(store, nil, nil)
	ctx := context.Background()

	a, _ := join(t, o, "A")
	b, bConn := join(t, o, "B")

	store.failUpdate, store.failAudit, store.failCount = true, true, true

	o.ToggleMedia(ctx, a, domain.MediaVideo, false)
	o.Rename(ctx, a, "alice")
	o.PostChat(ctx, a, "still here", nil)
	_, cConn := join(t, o, "C")

	if len(bConn.ofType(KindVideoToggle)) != 1 {
		t.Errorf("toggle broadcast lost on store failure")
	}
	if len(bConn.ofType(KindParticipantNameSync)) != 1 {
		t.Errorf("rename broadcast lost on store failure")
	}
	if len(bConn.ofType(KindChatMessage)) != 1 {
		t.Errorf("chat broadcast lost on audit failure")
	}
	if len(cConn.ofType(KindChatHistory)) != 1 {
		t.Errorf("join should survive a failed count")
	}

	o.Disconnect(ctx, b)
	if o.Registry.Count("abc1234567") != 2 {
		t.Errorf("disconnect cleanup must run despite store failures")
	}
}

func TestBroadcast_DeadHandleIsPrunedAndClosed(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	a, _ := join(t, o, "A")
	_, bConn := join(t, o, "B")

	bConn.mu.Lock()
	bConn.err = core.ErrBackpressure
	bConn.mu.Unlock()

	o.ScreenShare(a, true)
	if !bConn.isClosed() {
		t.Errorf("dropped handle should be closed")
	}
	if got := o.Registry.Clients("abc1234567"); len(got) != 1 || got[0] != "A" {
		t.Errorf("handles = %v, want [A]", got)
	}
}
