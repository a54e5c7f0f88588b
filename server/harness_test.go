package server

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kyagmur/dicewars/game"
	"github.com/kyagmur/dicewars/store"
)

// newTestServer builds a server on a throwaway SQLite file with zeroed
// animation delays and a deterministic starter pick (always index 0).
func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.EnsureGameKind(&store.GameKind{
		Slug:       "dicewars",
		Name:       "DiceWars",
		MinPlayers: 2,
		MaxPlayers: 7,
	}))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	s := NewServer(Config{Store: st, Logger: log, Timing: Timing{}})
	s.randIntn = func(n int) int { return 0 }
	return s, st
}

// seedRoom creates the players and a waiting room hosted by the first.
func seedRoom(t *testing.T, st *store.Store, id string, players ...string) *store.Room {
	t.Helper()
	for _, p := range players {
		require.NoError(t, st.EnsurePlayer(p))
	}
	room := &store.Room{
		ID:           id,
		GameTypeSlug: "dicewars",
		Host:         players[0],
		Players:      store.StringList(players),
		Status:       store.StatusWaiting,
	}
	require.NoError(t, st.CreateRoom(room))
	return room
}

// startGame flips the seeded room into play with the given turn, board
// and move count, bypassing the StartGame handler.
func startGame(t *testing.T, st *store.Store, id, turn string, boardSize, moveCount int, board game.Board) {
	t.Helper()
	err := st.WithRoomLock(id, func(tx *gorm.DB, room *store.Room) error {
		room.Status = store.StatusInProgress
		room.CurrentTurn = &turn
		room.BoardSize = boardSize
		room.MoveCount = moveCount
		room.Board = board
		return nil
	})
	require.NoError(t, err)
}

// recordingSession captures broadcast frames for assertions.
type recordingSession struct {
	mu     sync.Mutex
	frames []any
	full   bool
	killed bool
}

func (r *recordingSession) Enqueue(frame any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.frames = append(r.frames, frame)
	return true
}

func (r *recordingSession) Kill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.killed = true
}

// Frames returns everything received so far.
func (r *recordingSession) Frames() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.frames...)
}

// States returns only the game_state frames, in receive order.
func (r *recordingSession) States() []GameStateFrame {
	var states []GameStateFrame
	for _, f := range r.Frames() {
		if gs, ok := f.(GameStateFrame); ok {
			states = append(states, gs)
		}
	}
	return states
}

// watch attaches a recording session to the room group.
func watch(s *Server, roomID string) *recordingSession {
	rec := &recordingSession{}
	s.hub.Join(roomID, rec)
	return rec
}

func requireValidation(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok, "expected ValidationError, got %T: %v", err, err)
	require.Equal(t, code, ve.Code)
}

func cellAt(t *testing.T, st *store.Store, roomID string, r, c int) (game.Cell, bool) {
	t.Helper()
	room, err := st.GetRoom(roomID)
	require.NoError(t, err)
	return room.Board.At(r, c)
}
