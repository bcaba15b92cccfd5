// room/registry.go
package room

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	codeLength   = 4
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// 26^4 codes; well before exhaustion something else is wrong.
	maxCodeAttempts = 64
)

// Registry owns the code→room map and the connection→room presence
// map. The registry lock covers only map membership; per-room state
// is serialized by each room's own mutex so unrelated rooms never
// contend with each other.
type Registry struct {
	rooms      map[string]*Room
	membership map[string]string // sessionID -> room code
	rnd        *rand.Rand
	mutex      sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		membership: make(map[string]string),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create allocates a room under a fresh code. Collisions are unlikely
// but checked, never assumed away.
func (g *Registry) Create(broadcaster Broadcaster) (*Room, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := g.randomCodeLocked()
		if _, taken := g.rooms[code]; taken {
			continue
		}
		r := NewRoom(code, broadcaster)
		g.rooms[code] = r
		return r, nil
	}
	return nil, fmt.Errorf("could not allocate a room code after %d attempts", maxCodeAttempts)
}

// Get resolves a code, case-insensitively. Malformed codes fail with
// ErrInvalidRoomCode, well-formed but unknown ones with ErrRoomNotFound.
func (g *Registry) Get(code string) (*Room, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	r, exists := g.rooms[normalized]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (g *Registry) Remove(code string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.rooms, code)
}

func (g *Registry) Count() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.rooms)
}

// Bind records which room a connection belongs to. Membership lives
// here, queried on every event, rather than being glued onto the
// connection object.
func (g *Registry) Bind(sessionID, code string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.membership[sessionID] = code
}

func (g *Registry) Unbind(sessionID string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.membership, sessionID)
}

func (g *Registry) RoomOf(sessionID string) (string, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	code, exists := g.membership[sessionID]
	return code, exists
}

// RoomFor resolves a session straight to its current room.
func (g *Registry) RoomFor(sessionID string) (*Room, error) {
	code, exists := g.RoomOf(sessionID)
	if !exists {
		return nil, ErrRoomNotFound
	}
	return g.Get(code)
}

// NormalizeCode upper-cases a code and validates shape: exactly four
// characters, A-Z only.
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != codeLength {
		return "", ErrInvalidRoomCode
	}
	for i := 0; i < len(normalized); i++ {
		if normalized[i] < 'A' || normalized[i] > 'Z' {
			return "", ErrInvalidRoomCode
		}
	}
	return normalized, nil
}

func (g *Registry) randomCodeLocked() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[g.rnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}
