package network

// Message IDs. Requests are 1xx, in-match traffic is 2xx, server
// pushes are 3xx.
const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateRoom  = 101
	MsgTypeJoinRoom    = 102
	MsgTypeLeaveRoom   = 103
	MsgTypeToggleReady = 104
	MsgTypeStartGame   = 105
	MsgTypeRoomInfo    = 106

	MsgTypeUpdateGameState = 201
	MsgTypeGameOver        = 202

	MsgTypeRoomUpdated    = 301
	MsgTypePlayerLeft     = 302
	MsgTypeGameStarted    = 303
	MsgTypeOpponentUpdate = 304
	MsgTypeGameFinished   = 305
	MsgTypeGameAborted    = 306

	MsgTypeError = 399
)
