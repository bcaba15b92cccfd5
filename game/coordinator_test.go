package game

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/blockduel/gameserver/models"
	"github.com/blockduel/gameserver/network"
	"github.com/blockduel/gameserver/piece"
	"github.com/blockduel/gameserver/room"
	"github.com/blockduel/gameserver/services"
	"github.com/blockduel/gameserver/state"
)

// MockBroadcaster records every delivery, keyed by recipient.
type MockBroadcaster struct {
	mutex sync.Mutex
	sent  []sentMessage
}

type sentMessage struct {
	SessionID string
	MsgID     uint16
	Data      []byte
}

func (m *MockBroadcaster) Send(sessionID string, msgID uint16, data []byte) error {
	m.Broadcast([]string{sessionID}, msgID, data)
	return nil
}

func (m *MockBroadcaster) Broadcast(sessionIDs []string, msgID uint16, data []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, id := range sessionIDs {
		m.sent = append(m.sent, sentMessage{SessionID: id, MsgID: msgID, Data: data})
	}
}

func (m *MockBroadcaster) received(sessionID string, msgID uint16) []sentMessage {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var result []sentMessage
	for _, msg := range m.sent {
		if msg.SessionID == sessionID && msg.MsgID == msgID {
			result = append(result, msg)
		}
	}
	return result
}

// fakeStore captures match records instead of hitting a database.
type fakeStore struct {
	mutex   sync.Mutex
	records []*models.MatchRecord
}

func (f *fakeStore) SaveMatchRecord(record *models.MatchRecord) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeStore) GetPlayerStats(playerName string) (*models.PlayerStats, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func newTestCoordinator(store *fakeStore) (*Coordinator, *MockBroadcaster, *room.Registry) {
	registry := room.NewRegistry()
	b := &MockBroadcaster{}
	var matches *services.MatchService
	if store != nil {
		matches = services.NewMatchService(store)
	}
	c := NewCoordinator(registry, piece.NewSequencer(), b, matches, nil, 3)
	return c, b, registry
}

// Full duel walkthrough: create, join, ready up, start, relay a
// board, then lose a player mid-match.
func TestDuelScenario(t *testing.T) {
	store := &fakeStore{}
	c, b, registry := newTestCoordinator(store)

	code, err := c.CreateRoom("alice", "Alice")
	if err != nil {
		t.Fatalf("createRoom: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("expected a 4-char code, got %q", code)
	}

	joined, err := c.JoinRoom("bob", code, "Bob")
	if err != nil {
		t.Fatalf("joinRoom: %v", err)
	}
	if joined != code {
		t.Fatalf("join returned %q, want %q", joined, code)
	}

	view, err := c.RoomInfo("bob", code)
	if err != nil {
		t.Fatalf("roomInfo: %v", err)
	}
	if len(view.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(view.Players))
	}
	if view.Players[1].ID != "bob" || view.Players[1].IsHost {
		t.Fatalf("Bob should be the non-host second player: %+v", view.Players[1])
	}

	// Bob cannot start, and the refusal leaves the room in Waiting.
	if err := c.StartGame("bob"); err != room.ErrNotHost {
		t.Fatalf("non-host start: expected ErrNotHost, got %v", err)
	}
	if err := c.StartGame("alice"); err != room.ErrNotAllReady {
		t.Fatalf("unready start: expected ErrNotAllReady, got %v", err)
	}

	for _, id := range []string{"alice", "bob"} {
		ready, err := c.ToggleReady(id)
		if err != nil || !ready {
			t.Fatalf("toggleReady(%s) = %v, %v", id, ready, err)
		}
	}

	if err := c.StartGame("alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Both players get the identical 3-piece batch.
	aliceStart := b.received("alice", network.MsgTypeGameStarted)
	bobStart := b.received("bob", network.MsgTypeGameStarted)
	if len(aliceStart) != 1 || len(bobStart) != 1 {
		t.Fatalf("expected one gameStarted each, got %d/%d", len(aliceStart), len(bobStart))
	}
	var aliceEvent, bobEvent models.GameStartedEvent
	json.Unmarshal(aliceStart[0].Data, &aliceEvent)
	json.Unmarshal(bobStart[0].Data, &bobEvent)
	if len(aliceEvent.Pieces.Pieces) != 3 {
		t.Fatalf("expected a 3-piece batch, got %d", len(aliceEvent.Pieces.Pieces))
	}
	for i, p := range aliceEvent.Pieces.Pieces {
		q := bobEvent.Pieces.Pieces[i]
		if p.ID != q.ID || p.Shape != q.Shape || p.Color != q.Color {
			t.Fatalf("piece %d differs between players: %+v vs %+v", i, p, q)
		}
	}

	// Board relay goes to Alice only.
	c.UpdateGameState("bob", json.RawMessage(`[[1]]`), 80)
	if got := b.received("alice", network.MsgTypeOpponentUpdate); len(got) != 1 {
		t.Fatalf("expected 1 opponent update for Alice, got %d", len(got))
	}
	if got := b.received("bob", network.MsgTypeOpponentUpdate); len(got) != 0 {
		t.Fatalf("opponent update echoed to the sender: %d", len(got))
	}

	// Bob drops mid-match: back to Waiting, Alice alone and host, one
	// abort broadcast naming Bob.
	c.Disconnect("bob")

	r, err := registry.Get(code)
	if err != nil {
		t.Fatalf("room gone after one player left: %v", err)
	}
	if r.State() != state.Waiting {
		t.Fatalf("expected Waiting after abort, got %v", r.State())
	}
	view = r.View()
	if len(view.Players) != 1 || view.Players[0].ID != "alice" || !view.Players[0].IsHost {
		t.Fatalf("Alice should remain as sole host: %+v", view.Players)
	}

	aborts := b.received("alice", network.MsgTypeGameAborted)
	if len(aborts) != 1 {
		t.Fatalf("expected exactly 1 gameAborted, got %d", len(aborts))
	}
	var abort models.GameAbortedEvent
	json.Unmarshal(aborts[0].Data, &abort)
	if !strings.Contains(abort.Reason, "Bob") {
		t.Errorf("abort reason should name Bob, got %q", abort.Reason)
	}

	// Aborted matches never reach storage.
	if len(store.records) != 0 {
		t.Errorf("abort produced %d match records", len(store.records))
	}
}

func TestThirdJoinRejected(t *testing.T) {
	c, _, registry := newTestCoordinator(nil)

	code, _ := c.CreateRoom("p1", "One")
	if _, err := c.JoinRoom("p2", code, "Two"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.JoinRoom("p3", code, "Three"); err != room.ErrRoomFull {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}

	r, _ := registry.Get(code)
	if r.PlayerCount() != 2 {
		t.Errorf("rejected join mutated the room: %d players", r.PlayerCount())
	}
	// The rejected session holds no membership either.
	if _, bound := registry.RoomOf("p3"); bound {
		t.Error("rejected joiner left bound to the room")
	}
}

func TestJoinUnknownOrInvalidCode(t *testing.T) {
	c, _, _ := newTestCoordinator(nil)

	if _, err := c.JoinRoom("p1", "QQQQ", "One"); err != room.ErrRoomNotFound {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := c.JoinRoom("p1", "nope!", "One"); err != room.ErrInvalidRoomCode {
		t.Errorf("expected ErrInvalidRoomCode, got %v", err)
	}
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	c, _, _ := newTestCoordinator(nil)

	code, _ := c.CreateRoom("p1", "One")
	c.JoinRoom("p2", code, "Two")

	c.LeaveRoom("p1")
	if _, err := c.RoomInfo("p2", code); err != nil {
		t.Fatalf("room should survive with one member: %v", err)
	}

	c.LeaveRoom("p2")
	if _, err := c.RoomInfo("p2", code); err != room.ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound for a deleted room, got %v", err)
	}
}

// A join racing the last leave must not land a player in a deleted
// room. The joiner's lookup happens first, then the creator leaves
// (which empties the room and removes it from the registry), then the
// join runs against the stale pointer: it must fail, leave the joiner
// unbound, and keep the code resolvable only as RoomNotFound.
func TestJoinRacingLastLeave(t *testing.T) {
	c, _, registry := newTestCoordinator(nil)

	code, _ := c.CreateRoom("p1", "One")
	r, err := registry.Get(code)
	if err != nil {
		t.Fatal(err)
	}

	c.LeaveRoom("p1")

	if err := r.Join("p2", "Two"); err != room.ErrRoomNotFound {
		t.Fatalf("stale join: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := c.JoinRoom("p2", code, "Two"); err != room.ErrRoomNotFound {
		t.Fatalf("join after delete: expected ErrRoomNotFound, got %v", err)
	}
	if _, bound := registry.RoomOf("p2"); bound {
		t.Error("failed join left the session bound to a dead code")
	}
}

func TestDisconnectTwiceIsNoop(t *testing.T) {
	c, b, _ := newTestCoordinator(nil)

	code, _ := c.CreateRoom("p1", "One")
	c.JoinRoom("p2", code, "Two")

	c.Disconnect("p2")
	before := len(b.received("p1", network.MsgTypePlayerLeft))

	c.Disconnect("p2")
	after := len(b.received("p1", network.MsgTypePlayerLeft))
	if before != after {
		t.Errorf("second disconnect produced broadcasts: %d -> %d", before, after)
	}
}

func TestFinishedMatchIsRecorded(t *testing.T) {
	store := &fakeStore{}
	c, _, _ := newTestCoordinator(store)

	code, _ := c.CreateRoom("p1", "One")
	c.JoinRoom("p2", code, "Two")
	c.ToggleReady("p1")
	c.ToggleReady("p2")
	if err := c.StartGame("p1"); err != nil {
		t.Fatal(err)
	}

	c.UpdateGameState("p1", nil, 500)
	c.UpdateGameState("p2", nil, 200)
	c.GameOver("p1")
	c.GameOver("p2")

	if len(store.records) != 1 {
		t.Fatalf("expected 1 recorded match, got %d", len(store.records))
	}
	record := store.records[0]
	if record.WinnerID != "p1" || record.RoomCode != code {
		t.Errorf("unexpected record: %+v", record)
	}
	if len(record.Players) != 2 {
		t.Errorf("expected both players in the record, got %d", len(record.Players))
	}
}

func TestRoomInfoRequiresMembership(t *testing.T) {
	c, _, _ := newTestCoordinator(nil)

	code, _ := c.CreateRoom("p1", "One")
	if _, err := c.RoomInfo("stranger", code); err != room.ErrPlayerNotFound {
		t.Fatalf("expected ErrPlayerNotFound for non-members, got %v", err)
	}
}

// Concurrent ready toggles against one room must serialize into a
// consistent final state. Run with -race.
func TestConcurrentReadyToggles(t *testing.T) {
	c, _, registry := newTestCoordinator(nil)

	code, _ := c.CreateRoom("p1", "One")
	c.JoinRoom("p2", code, "Two")

	const toggles = 25 // odd, so both end up ready
	var wg sync.WaitGroup
	for _, id := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for i := 0; i < toggles; i++ {
				if _, err := c.ToggleReady(sessionID); err != nil {
					t.Errorf("toggle %s: %v", sessionID, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	r, _ := registry.Get(code)
	for _, p := range r.View().Players {
		if !p.IsReady {
			t.Errorf("player %s should be ready after an odd toggle count", p.ID)
		}
	}

	if err := c.StartGame("p1"); err != nil {
		t.Fatalf("start after concurrent toggles: %v", err)
	}
}

// A disconnect racing a start must serialize: either the start wins
// and the disconnect aborts the fresh match, or the disconnect wins
// and the start is refused. Both orders end in the same place, a
// Waiting room with the creator alone. Run with -race.
func TestDisconnectRacingStart(t *testing.T) {
	c, _, registry := newTestCoordinator(nil)

	code, _ := c.CreateRoom("p1", "One")
	c.JoinRoom("p2", code, "Two")
	c.ToggleReady("p1")
	c.ToggleReady("p2")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.StartGame("p1")
	}()
	go func() {
		defer wg.Done()
		c.Disconnect("p2")
	}()
	wg.Wait()

	r, err := registry.Get(code)
	if err != nil {
		t.Fatalf("room disappeared: %v", err)
	}
	if r.State() != state.Waiting {
		t.Fatalf("expected Waiting after both events settled, got %v", r.State())
	}
	view := r.View()
	if len(view.Players) != 1 || view.Players[0].ID != "p1" {
		t.Fatalf("expected p1 alone in Waiting, got %+v", view.Players)
	}
}
