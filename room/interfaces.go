package room

// Broadcaster defines the interface for delivering messages to a set
// of sessions. This is defined here to break the import cycle between
// room and broadcast. Recipients are passed explicitly so the sender
// never has to call back into the room while its lock is held.
type Broadcaster interface {
	Send(sessionID string, msgID uint16, data []byte) error
	Broadcast(sessionIDs []string, msgID uint16, data []byte)
}
