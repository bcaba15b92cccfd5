package rpc

import (
	"net"
	"net/rpc"

	"github.com/blockduel/gameserver/logger"
	"github.com/blockduel/gameserver/models"
	"github.com/blockduel/gameserver/services"
)

// Server manages the RPC listener for the admin surface.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// RoomCounter and SessionCounter keep AdminService decoupled from the
// concrete game and session types.
type RoomCounter interface {
	ActiveRooms() int
}

type SessionCounter interface {
	Count() int
}

// AdminService exposes operational queries over net/rpc.
type AdminService struct {
	rooms    RoomCounter
	sessions SessionCounter
	matches  *services.MatchService
}

func NewAdminService(rooms RoomCounter, sessions SessionCounter, matches *services.MatchService) *AdminService {
	return &AdminService{rooms: rooms, sessions: sessions, matches: matches}
}

type StatsArgs struct{}

type StatsReply struct {
	ActiveRooms    int
	OnlineSessions int
}

func (a *AdminService) GetStats(args *StatsArgs, reply *StatsReply) error {
	reply.ActiveRooms = a.rooms.ActiveRooms()
	reply.OnlineSessions = a.sessions.Count()
	return nil
}

type PlayerStatsArgs struct {
	PlayerName string
}

type PlayerStatsReply struct {
	Stats *models.PlayerStats
}

func (a *AdminService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := a.matches.PlayerStats(args.PlayerName)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}
