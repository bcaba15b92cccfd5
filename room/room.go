// room/room.go
package room

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/blockduel/gameserver/logger"
	"github.com/blockduel/gameserver/models"
	"github.com/blockduel/gameserver/network"
	"github.com/blockduel/gameserver/piece"
	"github.com/blockduel/gameserver/state"
)

// Capacity is fixed at two players. The win, host and ready rules
// below all assume it; a bigger room needs those revisited first.
const Capacity = 2

// Player is a room's view of one connected player. The connection
// itself is owned by the session layer and only referenced by ID here.
type Player struct {
	SessionID   string
	Name        string
	IsHost      bool
	IsReady     bool
	HasFinished bool
	Score       int
	Board       json.RawMessage
}

// Room is one duel session. Every mutating method takes the room
// mutex for the whole read-decide-write-broadcast span, so concurrent
// events against the same room serialize into a consistent state and
// members observe broadcasts in mutation order.
type Room struct {
	Code        string
	CreatedAt   time.Time
	players     []*Player // join order; host reassignment and tie-breaks use it
	machine     *state.Machine
	pieces      piece.Batch
	matchStart  time.Time
	broadcaster Broadcaster
	closed      bool // set when the last player leaves; the registry entry is gone
	mutex       sync.Mutex
}

func NewRoom(code string, broadcaster Broadcaster) *Room {
	return &Room{
		Code:        code,
		CreatedAt:   time.Now(),
		machine:     state.NewMachine(),
		broadcaster: broadcaster,
	}
}

// Join appends a player. The first player in is the host. Fails with
// ErrGameInProgress outside Waiting and ErrRoomFull at capacity; a
// rejected join never mutates the room. A closed room (emptied and
// deleted from the registry) rejects joins with ErrRoomNotFound, so a
// pointer resolved before a concurrent last leave cannot revive it.
func (r *Room) Join(sessionID, name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if !r.machine.Is(state.Waiting) {
		return ErrGameInProgress
	}
	if len(r.players) >= Capacity {
		if len(r.players) > Capacity {
			logger.Log.Errorf("room %s holds %d players, refusing mutation", r.Code, len(r.players))
		}
		return ErrRoomFull
	}

	r.players = append(r.players, &Player{
		SessionID: sessionID,
		Name:      name,
		IsHost:    len(r.players) == 0,
	})

	r.broadcastLocked(network.MsgTypeRoomUpdated, r.viewLocked())
	return nil
}

// LeaveResult reports what a Leave call actually did.
type LeaveResult struct {
	Removed bool // the session was a member and is now gone
	Empty   bool // the room has no players left and must be destroyed
	Aborted bool // a running match was aborted by this departure
}

// Leave removes a player, reassigning the host role to the first
// remaining player in join order. A mid-match departure aborts the
// match: the room drops back to Waiting (not Finished) and the
// remaining members get exactly one gameAborted naming the leaver.
// Ready flags deliberately survive the abort so the survivors do not
// have to re-ready. A second call for the same session is a safe
// no-op.
func (r *Room) Leave(sessionID string) LeaveResult {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	idx := -1
	for i, p := range r.players {
		if p.SessionID == sessionID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return LeaveResult{Empty: len(r.players) == 0}
	}

	leaver := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)

	if len(r.players) == 0 {
		// Emptying closes the room for good; the registry entry is
		// about to be removed and stale pointers must not readmit.
		r.closed = true
		return LeaveResult{Removed: true, Empty: true}
	}

	if leaver.IsHost {
		r.players[0].IsHost = true
	}

	aborted := false
	if r.machine.Is(state.Playing) {
		if err := r.machine.Transition(state.Waiting); err == nil {
			aborted = true
		}
	}

	r.broadcastLocked(network.MsgTypePlayerLeft, models.PlayerLeftEvent{
		PlayerID: leaver.SessionID,
		Room:     r.viewLocked(),
	})
	if aborted {
		r.broadcastLocked(network.MsgTypeGameAborted, models.GameAbortedEvent{
			Reason: leaver.Name + " disconnected",
		})
	}
	return LeaveResult{Removed: true, Aborted: aborted}
}

// ToggleReady flips the caller's ready flag and reports the new value.
func (r *Room) ToggleReady(sessionID string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p := r.playerLocked(sessionID)
	if p == nil {
		return false, ErrPlayerNotFound
	}

	p.IsReady = !p.IsReady
	r.broadcastLocked(network.MsgTypeRoomUpdated, r.viewLocked())
	return p.IsReady, nil
}

// Start moves the room to Playing. Only the host may start, only with
// a full room where everyone is ready. The generator runs after the
// guards pass, so the shared batch is produced exactly once per match
// and every member receives the identical sequence.
func (r *Room) Start(sessionID string, generate func() piece.Batch) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p := r.playerLocked(sessionID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if !p.IsHost {
		return ErrNotHost
	}
	if len(r.players) != Capacity {
		return ErrNotAllReady
	}
	for _, member := range r.players {
		if !member.IsReady {
			return ErrNotAllReady
		}
	}
	if err := r.machine.Transition(state.Playing); err != nil {
		return ErrGameInProgress
	}

	r.pieces = generate()
	r.matchStart = time.Now()
	for _, member := range r.players {
		member.HasFinished = false
		member.Score = 0
		member.Board = nil
	}

	r.broadcastLocked(network.MsgTypeGameStarted, models.GameStartedEvent{
		Room:   r.viewLocked(),
		Pieces: r.pieces,
	})
	return nil
}

// UpdateState stores a player's board/score snapshot and relays it to
// the other members only, never back to the sender. Outside Playing
// it is a silent no-op. Scores never go backwards mid-match.
func (r *Room) UpdateState(sessionID string, board json.RawMessage, score int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.machine.Is(state.Playing) {
		return
	}
	p := r.playerLocked(sessionID)
	if p == nil {
		return
	}

	if score >= p.Score {
		p.Score = score
	} else {
		logger.Log.Warnf("player %s in room %s reported score %d below %d, keeping old",
			sessionID, r.Code, score, p.Score)
	}
	p.Board = board

	data, _ := json.Marshal(models.OpponentUpdateEvent{
		PlayerID: sessionID,
		Board:    board,
		Score:    p.Score,
	})
	r.broadcaster.Broadcast(r.memberIDsLocked(sessionID), network.MsgTypeOpponentUpdate, data)
}

// GameOver marks the caller as out of legal moves (idempotent). Once
// every player has finished the room transitions to Finished exactly
// once, picks the winner and returns the match record for storage.
// All other calls return nil.
func (r *Room) GameOver(sessionID string) *models.MatchRecord {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.machine.Is(state.Playing) {
		return nil
	}
	p := r.playerLocked(sessionID)
	if p == nil {
		return nil
	}

	p.HasFinished = true

	for _, member := range r.players {
		if !member.HasFinished {
			r.broadcastLocked(network.MsgTypeRoomUpdated, r.viewLocked())
			return nil
		}
	}

	if err := r.machine.Transition(state.Finished); err != nil {
		return nil
	}

	winner := r.winnerLocked()
	event := models.GameFinishedEvent{
		WinnerID:   winner.SessionID,
		WinnerName: winner.Name,
	}
	record := &models.MatchRecord{
		RoomCode:   r.Code,
		WinnerID:   winner.SessionID,
		WinnerName: winner.Name,
		StartedAt:  r.matchStart,
		FinishedAt: time.Now(),
	}
	for _, member := range r.players {
		event.Scores = append(event.Scores, models.PlayerScore{
			PlayerID: member.SessionID,
			Name:     member.Name,
			Score:    member.Score,
		})
		record.Players = append(record.Players, models.PlayerResult{
			PlayerID: member.SessionID,
			Name:     member.Name,
			Score:    member.Score,
			Winner:   member == winner,
		})
	}

	r.broadcastLocked(network.MsgTypeGameFinished, event)
	return record
}

// InfoFor returns the room view, but only to members.
func (r *Room) InfoFor(sessionID string) (models.RoomView, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return models.RoomView{}, ErrRoomNotFound
	}
	if r.playerLocked(sessionID) == nil {
		return models.RoomView{}, ErrPlayerNotFound
	}
	return r.viewLocked(), nil
}

func (r *Room) View() models.RoomView {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.viewLocked()
}

func (r *Room) State() state.GameState {
	return r.machine.Current()
}

func (r *Room) PlayerCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.players)
}

func (r *Room) Pieces() piece.Batch {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.pieces
}

// --- helpers, caller must hold r.mutex ---

func (r *Room) playerLocked(sessionID string) *Player {
	for _, p := range r.players {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

// winnerLocked picks the strictly greatest score; on a tie the first
// player in join order wins.
func (r *Room) winnerLocked() *Player {
	winner := r.players[0]
	for _, p := range r.players[1:] {
		if p.Score > winner.Score {
			winner = p
		}
	}
	return winner
}

// memberIDsLocked lists member session IDs, skipping exclude if set.
func (r *Room) memberIDsLocked(exclude string) []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if p.SessionID == exclude {
			continue
		}
		ids = append(ids, p.SessionID)
	}
	return ids
}

func (r *Room) viewLocked() models.RoomView {
	view := models.RoomView{
		Code:      r.Code,
		GameState: string(r.machine.Current()),
		Players:   make([]models.PlayerView, 0, len(r.players)),
		CreatedAt: r.CreatedAt,
	}
	for _, p := range r.players {
		view.Players = append(view.Players, models.PlayerView{
			ID:          p.SessionID,
			Name:        p.Name,
			IsHost:      p.IsHost,
			IsReady:     p.IsReady,
			HasFinished: p.HasFinished,
			Score:       p.Score,
		})
	}
	return view
}

func (r *Room) broadcastLocked(msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("marshal broadcast %d for room %s: %v", msgID, r.Code, err)
		return
	}
	r.broadcaster.Broadcast(r.memberIDsLocked(""), msgID, data)
}
