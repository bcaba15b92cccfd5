// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/blockduel/gameserver/logger"
	"github.com/blockduel/gameserver/session"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionBroadcaster delivers packets by session ID. Recipient lists
// come from the caller (the room, which knows its members), so this
// type never reaches back into room state. It implements
// room.Broadcaster.
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{sessionManager: sessionManager}
}

func (b *SessionBroadcaster) Send(sessionID string, msgID uint16, data []byte) error {
	s, exists := b.sessionManager.Get(sessionID)
	if !exists {
		return ErrSessionNotFound
	}
	return s.Send(msgID, data)
}

// Broadcast is fire-and-forget: a dead member's send failure must not
// keep the rest of the room from hearing the event.
func (b *SessionBroadcaster) Broadcast(sessionIDs []string, msgID uint16, data []byte) {
	for _, id := range sessionIDs {
		s, exists := b.sessionManager.Get(id)
		if !exists {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Warnf("broadcast %d to session %s failed: %v", msgID, id, err)
		}
	}
}
