package game

import (
	"encoding/json"

	"github.com/blockduel/gameserver/logger"
	"github.com/blockduel/gameserver/models"
	"github.com/blockduel/gameserver/monitor"
	"github.com/blockduel/gameserver/piece"
	"github.com/blockduel/gameserver/room"
	"github.com/blockduel/gameserver/services"
)

// DefaultBatchSize is the number of pieces in the shared opening
// batch. Clients regenerate their own queues after it runs out; only
// this first batch must be identical for both players.
const DefaultBatchSize = 3

// Coordinator implements the duel operations on top of the room
// registry. It resolves which room a connection event belongs to,
// applies the mutation (the room serializes it) and handles the side
// effects that do not belong in a room: presence bookkeeping, match
// recording and metrics.
type Coordinator struct {
	registry    *room.Registry
	sequencer   *piece.Sequencer
	broadcaster room.Broadcaster
	matches     *services.MatchService
	monitor     *monitor.Monitor
	batchSize   int
}

func NewCoordinator(registry *room.Registry, sequencer *piece.Sequencer, broadcaster room.Broadcaster,
	matches *services.MatchService, mon *monitor.Monitor, batchSize int) *Coordinator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Coordinator{
		registry:    registry,
		sequencer:   sequencer,
		broadcaster: broadcaster,
		matches:     matches,
		monitor:     mon,
		batchSize:   batchSize,
	}
}

// CreateRoom opens a fresh room with the caller as host. A session
// that is somehow still bound to another room leaves it first.
func (c *Coordinator) CreateRoom(sessionID, username string) (string, error) {
	c.LeaveRoom(sessionID)

	r, err := c.registry.Create(c.broadcaster)
	if err != nil {
		return "", err
	}
	if err := r.Join(sessionID, username); err != nil {
		c.registry.Remove(r.Code)
		return "", err
	}
	c.registry.Bind(sessionID, r.Code)
	c.syncRoomGauge()

	logger.Log.Infof("session %s created room %s as %q", sessionID, r.Code, username)
	return r.Code, nil
}

// JoinRoom adds the caller to an existing room by code.
func (c *Coordinator) JoinRoom(sessionID, code, username string) (string, error) {
	c.LeaveRoom(sessionID)

	r, err := c.registry.Get(code)
	if err != nil {
		return "", err
	}
	if err := r.Join(sessionID, username); err != nil {
		return "", err
	}
	c.registry.Bind(sessionID, r.Code)

	logger.Log.Infof("session %s joined room %s as %q", sessionID, r.Code, username)
	return r.Code, nil
}

func (c *Coordinator) ToggleReady(sessionID string) (bool, error) {
	r, err := c.registry.RoomFor(sessionID)
	if err != nil {
		return false, err
	}
	return r.ToggleReady(sessionID)
}

// StartGame tries to move the caller's room into Playing. Callers
// treat the guard failures (not host, not all ready) as silent no-ops
// on the wire; they are still returned here for logging.
func (c *Coordinator) StartGame(sessionID string) error {
	r, err := c.registry.RoomFor(sessionID)
	if err != nil {
		return err
	}
	if err := r.Start(sessionID, func() piece.Batch {
		return c.sequencer.Generate(c.batchSize)
	}); err != nil {
		return err
	}

	if c.monitor != nil {
		c.monitor.IncMatchesStarted()
	}
	logger.Log.Infof("room %s started a match", r.Code)
	return nil
}

// UpdateGameState relays a board/score snapshot to the opponent.
// Silently no-ops when the caller has no room or it is not Playing.
func (c *Coordinator) UpdateGameState(sessionID string, board json.RawMessage, score int) {
	r, err := c.registry.RoomFor(sessionID)
	if err != nil {
		return
	}
	r.UpdateState(sessionID, board, score)
}

// GameOver records that the caller has no legal moves left. When the
// last player reports, the room settles and the result goes to
// storage.
func (c *Coordinator) GameOver(sessionID string) {
	r, err := c.registry.RoomFor(sessionID)
	if err != nil {
		return
	}

	record := r.GameOver(sessionID)
	if record == nil {
		return
	}

	if c.monitor != nil {
		c.monitor.IncMatchesFinished()
	}
	logger.Log.Infof("room %s finished, winner %q", record.RoomCode, record.WinnerName)

	if c.matches != nil {
		if err := c.matches.RecordMatch(record); err != nil {
			logger.Log.Warnf("recording match for room %s: %v", record.RoomCode, err)
		}
	}
}

// LeaveRoom is the single departure path for both explicit leaves and
// transport-level disconnects. Calling it for a session that is not
// in a room, or twice for the same session, is a no-op.
func (c *Coordinator) LeaveRoom(sessionID string) {
	code, bound := c.registry.RoomOf(sessionID)
	if !bound {
		return
	}
	c.registry.Unbind(sessionID)

	r, err := c.registry.Get(code)
	if err != nil {
		return
	}

	result := r.Leave(sessionID)
	if result.Empty {
		c.registry.Remove(code)
	}
	if result.Aborted && c.monitor != nil {
		c.monitor.IncMatchesAborted()
	}
	if result.Removed {
		logger.Log.Infof("session %s left room %s (empty=%v aborted=%v)",
			sessionID, code, result.Empty, result.Aborted)
	}
	c.syncRoomGauge()
}

// Disconnect is the transport cleanup hook; it goes through the same
// idempotent leave path.
func (c *Coordinator) Disconnect(sessionID string) {
	c.LeaveRoom(sessionID)
}

// RoomInfo returns the room view by code, members only.
func (c *Coordinator) RoomInfo(sessionID, code string) (models.RoomView, error) {
	r, err := c.registry.Get(code)
	if err != nil {
		return models.RoomView{}, err
	}
	return r.InfoFor(sessionID)
}

// ActiveRooms is exposed for the admin RPC surface.
func (c *Coordinator) ActiveRooms() int {
	return c.registry.Count()
}

func (c *Coordinator) syncRoomGauge() {
	if c.monitor != nil {
		c.monitor.SetActiveRooms(c.registry.Count())
	}
}
