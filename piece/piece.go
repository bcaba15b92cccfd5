// piece/piece.go
package piece

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Shape names the seven classic tetromino forms. The client owns the
// actual cell layouts; the server only deals in identities.
type Shape string

const (
	ShapeI Shape = "I"
	ShapeO Shape = "O"
	ShapeT Shape = "T"
	ShapeS Shape = "S"
	ShapeZ Shape = "Z"
	ShapeJ Shape = "J"
	ShapeL Shape = "L"
)

var Shapes = []Shape{ShapeI, ShapeO, ShapeT, ShapeS, ShapeZ, ShapeJ, ShapeL}

var Colors = []string{"cyan", "yellow", "purple", "green", "red", "blue", "orange"}

type Piece struct {
	ID    string `json:"id"`
	Shape Shape  `json:"shape"`
	Color string `json:"color"`
}

// Batch is the shared piece sequence handed to every player when a
// match starts. Treated as read-only once generated.
type Batch struct {
	Pieces []Piece `json:"pieces"`
}

type Sequencer struct {
	mutex    sync.Mutex
	rnd      *rand.Rand
	fallback uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate draws n pieces uniformly from the shape and color catalogs.
// Piece IDs only need to be unique within the batch. If random ID
// generation fails we hand out a fixed default batch instead; a match
// start must never fail on the sequencer.
func (s *Sequencer) Generate(n int) Batch {
	if n <= 0 {
		return Batch{Pieces: []Piece{}}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	pieces := make([]Piece, 0, n)
	for i := 0; i < n; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return s.defaultBatch(n)
		}
		pieces = append(pieces, Piece{
			ID:    id.String(),
			Shape: Shapes[s.rnd.Intn(len(Shapes))],
			Color: Colors[s.rnd.Intn(len(Colors))],
		})
	}
	return Batch{Pieces: pieces}
}

// defaultBatch cycles the catalogs deterministically. IDs come from a
// process-wide counter so concurrent fallbacks stay unique.
func (s *Sequencer) defaultBatch(n int) Batch {
	pieces := make([]Piece, 0, n)
	for i := 0; i < n; i++ {
		seq := atomic.AddUint64(&s.fallback, 1)
		pieces = append(pieces, Piece{
			ID:    fmt.Sprintf("piece-%d", seq),
			Shape: Shapes[i%len(Shapes)],
			Color: Colors[i%len(Colors)],
		})
	}
	return Batch{Pieces: pieces}
}
