package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/blockduel/gameserver/broadcast"
	"github.com/blockduel/gameserver/config"
	"github.com/blockduel/gameserver/game"
	"github.com/blockduel/gameserver/logger"
	"github.com/blockduel/gameserver/models"
	"github.com/blockduel/gameserver/monitor"
	"github.com/blockduel/gameserver/network"
	"github.com/blockduel/gameserver/persistence"
	"github.com/blockduel/gameserver/piece"
	"github.com/blockduel/gameserver/room"
	gameserver_rpc "github.com/blockduel/gameserver/rpc"
	"github.com/blockduel/gameserver/services"
	"github.com/blockduel/gameserver/session"
	"github.com/blockduel/gameserver/timer"
)

type GameServer struct {
	addr           string
	metricsAddr    string
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	coordinator    *game.Coordinator
	monitor        *monitor.Monitor
	timers         *timer.Manager
	rpcServer      *gameserver_rpc.Server
	heartbeat      time.Duration
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, store persistence.Store) *GameServer {
	sessionManager := session.NewManager()
	broadcaster := broadcast.NewSessionBroadcaster(sessionManager)
	mon := monitor.NewMonitor("blockduel")
	matches := services.NewMatchService(store)
	coordinator := game.NewCoordinator(
		room.NewRegistry(),
		piece.NewSequencer(),
		broadcaster,
		matches,
		mon,
		cfg.Game.PieceBatchSize,
	)

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		sessionManager: sessionManager,
		coordinator:    coordinator,
		monitor:        mon,
		timers:         timer.NewManager(),
		heartbeat:      time.Duration(cfg.Game.HeartbeatSeconds) * time.Second,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // allow all origins
			},
		},
	}

	rpcServer, err := gameserver_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(gameserver_rpc.NewAdminService(coordinator, sessionManager, matches))

	// Stale connections never send leaveRoom; the sweep closes them so
	// the disconnect path still runs exactly once per connection.
	s.timers.Add(s.heartbeat, s.heartbeat, s.sweepSessions)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.metricsAddr)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.heartbeat)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.coordinator.Disconnect(sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			sess.Touch()

			start := time.Now()
			s.handlePacket(sess, packet)
			s.monitor.IncMessagesReceived()
			s.monitor.ObserveMessageLatency(time.Since(start))
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		// Touch already happened in the read loop.
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeToggleReady:
		s.handleToggleReady(sess)
	case network.MsgTypeStartGame:
		s.handleStartGame(sess)
	case network.MsgTypeUpdateGameState:
		s.handleUpdateGameState(sess, packet)
	case network.MsgTypeGameOver:
		s.coordinator.GameOver(sess.GetID())
	case network.MsgTypeLeaveRoom:
		s.coordinator.LeaveRoom(sess.GetID())
	case network.MsgTypeRoomInfo:
		s.handleRoomInfo(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req models.CreateRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	code, err := s.coordinator.CreateRoom(sess.GetID(), req.Username)
	if err != nil {
		s.sendError(sess, err)
		return
	}

	data, _ := json.Marshal(models.CreateRoomResponse{RoomCode: code})
	sess.Send(network.MsgTypeCreateRoom, data)
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req models.JoinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	code, err := s.coordinator.JoinRoom(sess.GetID(), req.RoomCode, req.Username)
	if err != nil {
		s.sendError(sess, err)
		return
	}

	data, _ := json.Marshal(models.JoinRoomResponse{RoomCode: code})
	sess.Send(network.MsgTypeJoinRoom, data)
}

func (s *GameServer) handleToggleReady(sess *session.Session) {
	ready, err := s.coordinator.ToggleReady(sess.GetID())
	if err != nil {
		s.sendError(sess, err)
		return
	}

	data, _ := json.Marshal(models.ToggleReadyResponse{IsReady: ready})
	sess.Send(network.MsgTypeToggleReady, data)
}

// Start-game guard failures are deliberately silent on the wire; the
// broadcast is the only success signal.
func (s *GameServer) handleStartGame(sess *session.Session) {
	if err := s.coordinator.StartGame(sess.GetID()); err != nil {
		logger.Log.Debugf("start game by session %s refused: %v", sess.GetID(), err)
	}
}

func (s *GameServer) handleUpdateGameState(sess *session.Session, packet *network.Packet) {
	var req models.UpdateGameStateRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	s.coordinator.UpdateGameState(sess.GetID(), req.Board, req.Score)
}

func (s *GameServer) handleRoomInfo(sess *session.Session, packet *network.Packet) {
	var req models.RoomInfoRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	view, err := s.coordinator.RoomInfo(sess.GetID(), req.RoomCode)
	if err != nil {
		s.sendError(sess, err)
		return
	}

	data, _ := json.Marshal(view)
	sess.Send(network.MsgTypeRoomInfo, data)
}

// sendError answers only the requesting connection; errors never
// reach the rest of the room.
func (s *GameServer) sendError(sess *session.Session, err error) {
	data, _ := json.Marshal(models.ErrorResponse{
		Code:    errorCode(err),
		Message: err.Error(),
	})
	sess.Send(network.MsgTypeError, data)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "RoomNotFound"
	case errors.Is(err, room.ErrRoomFull):
		return "RoomFull"
	case errors.Is(err, room.ErrGameInProgress):
		return "GameInProgress"
	case errors.Is(err, room.ErrPlayerNotFound):
		return "PlayerNotFound"
	case errors.Is(err, room.ErrNotHost):
		return "NotHost"
	case errors.Is(err, room.ErrNotAllReady):
		return "NotAllReady"
	case errors.Is(err, room.ErrInvalidRoomCode):
		return "InvalidRoomCode"
	default:
		return "Internal"
	}
}

func (s *GameServer) sweepSessions() {
	cutoff := 2 * s.heartbeat
	for _, sess := range s.sessionManager.All() {
		if sess.IdleFor() > cutoff {
			logger.Log.Warnf("session %s idle for over %v, closing", sess.GetID(), cutoff)
			sess.Close()
		}
	}
}
