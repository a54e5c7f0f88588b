package server

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/kyagmur/dicewars/game"
	"github.com/kyagmur/dicewars/store"
)

// initialPlacementCount is the piece count a first-round placement on
// an empty cell starts with.
const initialPlacementCount = 3

// MakeMove runs one full move: the initial click, the chain-reaction
// wave loop, and the elimination/winner resolution. It is deliberately
// not one transaction — each step takes a short room lock and releases
// it before sleeping, so frames pace the client animation while other
// rooms stay unaffected. Concurrent moves on the same room serialize
// on the row lock; the loser sees not_your_turn.
func (s *Server) MakeMove(username, roomID string, row, col int) error {
	boardSize, err := s.initialClick(username, roomID, row, col)
	if err != nil {
		return err
	}
	s.sleep(s.timing.ClickDelay)

	done, err := s.runWaves(username, roomID, boardSize)
	if err != nil || done {
		return err
	}

	return s.resolveMove(username, roomID)
}

// initialClick validates and applies the single cell mutation that
// begins a move. First round: place on an empty cell at count 3.
// Afterwards: only upgrade your own cell by one.
func (s *Server) initialClick(username, roomID string, row, col int) (int, error) {
	var frame GameStateFrame
	var boardSize int

	err := s.store.WithRoomLock(roomID, func(tx *gorm.DB, room *store.Room) error {
		if room.Status != store.StatusInProgress {
			return reject(ErrGameNotStarted)
		}
		if room.CurrentTurn == nil || *room.CurrentTurn != username {
			return reject(ErrNotYourTurn)
		}
		if row < 0 || row >= room.BoardSize || col < 0 || col >= room.BoardSize {
			return reject(ErrInvalidCell)
		}

		if room.Board == nil {
			room.Board = game.NewBoard()
		}

		firstRound := room.MoveCount < len(room.Players)
		cell, occupied := room.Board.At(row, col)
		switch {
		case !occupied && firstRound:
			room.Board.Set(row, col, game.Cell{Owner: username, Count: initialPlacementCount})
		case !occupied:
			return reject(ErrEmptyNotAllowed)
		case cell.Owner != username:
			return reject(ErrNotYourCell)
		default:
			cell.Count++
			room.Board.Set(row, col, cell)
		}

		room.MoveCount++
		boardSize = room.BoardSize

		frame = stateFrame(room)
		frame.MoveCell = &[2]int{row, col}
		frame.Message = fmt.Sprintf("%s moved", username)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.hub.Broadcast(roomID, frame)
	return boardSize, nil
}

// runWaves detonates critical cells wave by wave until the board is
// stable. Each wave broadcasts the pre-explosion board with the
// critical set (clients animate on it), applies all explosions in one
// transaction, then broadcasts the settled board. Returns done=true
// when the wave cap tripped and the room was aborted.
func (s *Server) runWaves(username, roomID string, boardSize int) (done bool, err error) {
	waves := 0
	for {
		room, err := s.store.GetRoom(roomID)
		if err != nil {
			return false, err
		}

		criticals := room.Board.CriticalCells()
		if len(criticals) == 0 {
			return false, nil
		}

		waves++
		if waves > game.MaxWaves(boardSize) {
			// Pathological board that never settles. Should be
			// unreachable: each wave bleeds potential off the board
			// unless every critical is boxed in by other criticals.
			return true, s.abortUnstableRoom(roomID)
		}

		pending := stateFrame(room)
		pending.ExplodedCells = coordPairs(criticals)
		s.hub.Broadcast(roomID, pending)
		s.sleep(s.timing.WaveDelay)

		var settled GameStateFrame
		err = s.store.WithRoomLock(roomID, func(tx *gorm.DB, room *store.Room) error {
			// Recompute under the lock; the set is identical because
			// only the mover touches the board mid-move.
			wave := room.Board.CriticalCells()
			for _, c := range wave {
				room.Board.Explode(c.Row, c.Col, username, room.BoardSize)
			}
			settled = stateFrame(room)
			return nil
		})
		if err != nil {
			return false, err
		}

		s.hub.Broadcast(roomID, settled)
		s.sleep(s.timing.SettleDelay)
	}
}

// resolveMove records new eliminations, finishes the game or rotates
// the turn, and broadcasts the final frame of the move.
func (s *Server) resolveMove(username, roomID string) error {
	var frame GameStateFrame
	var gameOver bool

	err := s.store.WithRoomLock(roomID, func(tx *gorm.DB, room *store.Room) error {
		var newly []string
		for _, p := range game.DetectEliminated(room.Board, room.Players, room.MoveCount) {
			if !room.IsEliminated(p) {
				newly = append(newly, p)
				room.Eliminated = append(room.Eliminated, p)
			}
		}

		// Until everyone has placed once, a single owner on the board
		// is the normal state, not a victory.
		finished, winner := false, ""
		if room.MoveCount >= len(room.Players) {
			finished, winner = game.ResolveWinner(room.Board, room.Players, username)
		}
		if finished {
			if err := s.store.FinishRoom(tx, room, &winner); err != nil {
				return err
			}
			gameOver = true
			frame = stateFrame(room)
			frame.Message = "Game over"
		} else {
			next := game.NextTurn(room.Players, username, room.EliminatedSet())
			room.CurrentTurn = &next
			frame = stateFrame(room)
			frame.Message = fmt.Sprintf("Turn: %s", next)
		}
		frame.NewlyEliminated = newly
		return nil
	})
	if err != nil {
		return err
	}

	if gameOver {
		s.log.WithFields(map[string]any{"room_id": roomID, "winner": frame.Winner}).Info("game finished")
	}
	s.hub.Broadcast(roomID, frame)
	return nil
}

// abortUnstableRoom force-finishes a room whose chain reaction hit the
// wave cap. Winner stays null; everyone records a loss.
func (s *Server) abortUnstableRoom(roomID string) error {
	var frame GameStateFrame
	err := s.store.WithRoomLock(roomID, func(tx *gorm.DB, room *store.Room) error {
		if err := s.store.FinishRoom(tx, room, nil); err != nil {
			return err
		}
		frame = stateFrame(room)
		frame.Message = ErrExplosionLimit
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("room_id", roomID).Error("wave cap exceeded, room aborted")
	s.hub.Broadcast(roomID, frame)
	return nil
}
