package server

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kyagmur/dicewars/game"
	"github.com/kyagmur/dicewars/store"
)

// JoinRoom seats the user in a waiting room and announces it. Private
// rooms admit only the host and invited players; accepting an invite
// consumes it.
func (s *Server) JoinRoom(username, roomID string) error {
	var frame GameStateFrame
	err := s.store.WithRoomLock(roomID, func(tx *gorm.DB, room *store.Room) error {
		if room.Status != store.StatusWaiting {
			return reject(ErrAlreadyStarted)
		}
		if room.HasPlayer(username) {
			return reject(ErrAlreadyJoined)
		}
		if room.IsFull() {
			return reject(ErrRoomFull)
		}
		if room.IsPrivate && username != room.Host && !room.Invited.Contains(username) {
			return reject(ErrNotInvited)
		}

		room.Players = append(room.Players, username)
		room.Invited = room.Invited.Without(username)

		frame = stateFrame(room)
		frame.Message = fmt.Sprintf("%s joined", username)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(map[string]any{"room_id": roomID, "user": username}).Info("player joined")
	s.hub.Broadcast(roomID, frame)
	return nil
}

// StartGame moves a waiting room into play: the host starts it once
// enough players are seated, a starter is drawn at random, and the
// board size is frozen from the player count.
func (s *Server) StartGame(username, roomID string) error {
	var frame GameStateFrame
	err := s.store.WithRoomLock(roomID, func(tx *gorm.DB, room *store.Room) error {
		if username != room.Host {
			return reject(ErrNotHost)
		}
		if room.Status != store.StatusWaiting {
			return reject(ErrAlreadyStarted)
		}
		if !room.ReadyToStart() {
			return reject(ErrTooFewPlayers)
		}

		starter := room.Players[s.randIntn(len(room.Players))]
		room.Status = store.StatusInProgress
		room.CurrentTurn = &starter
		room.BoardSize = game.BoardSizeFor(len(room.Players))
		room.Board = game.NewBoard()
		room.Eliminated = nil
		room.MoveCount = 0

		frame = stateFrame(room)
		frame.SpecialEvent = EventGameStartRoll
		frame.Message = fmt.Sprintf("Game started, %s goes first", starter)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(map[string]any{"room_id": roomID, "turn": *frame.Turn}).Info("game started")
	s.hub.Broadcast(roomID, frame)
	return nil
}

// KickPlayer lets the host remove someone from a room that has not
// started yet.
func (s *Server) KickPlayer(username, roomID, target string) error {
	var frame GameStateFrame
	err := s.store.WithRoomLock(roomID, func(tx *gorm.DB, room *store.Room) error {
		if username != room.Host {
			return reject(ErrNotHost)
		}
		if room.Status != store.StatusWaiting {
			return reject(ErrAlreadyStarted)
		}
		if target == username {
			return reject(ErrSelfKick)
		}
		if !room.HasPlayer(target) {
			return reject(ErrNotInRoom)
		}

		room.Players = room.Players.Without(target)

		frame = stateFrame(room)
		frame.Message = fmt.Sprintf("%s kicked", target)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(map[string]any{"room_id": roomID, "user": target}).Info("player kicked")
	s.hub.Broadcast(roomID, frame)
	return nil
}

// RequestRematch spins up a private invite-only room for the finished
// game's participants and announces it to the old room's group. Asking
// twice reuses the waiting rematch instead of creating another.
func (s *Server) RequestRematch(username, roomID string) error {
	room, err := s.store.GetRoom(roomID)
	if err != nil {
		return err
	}
	if room.Status != store.StatusFinished {
		return reject(ErrGameNotFinished)
	}
	if !room.HasPlayer(username) {
		return reject(ErrNotInRoom)
	}

	rematch, err := s.store.FindWaitingRematch(username, room.GameTypeSlug, room.ID)
	if err != nil {
		return err
	}
	if rematch == nil {
		rematch = &store.Room{
			ID:            uuid.NewString(),
			GameTypeSlug:  room.GameTypeSlug,
			Host:          username,
			Players:       store.StringList{username},
			Status:        store.StatusWaiting,
			BoardSize:     room.BoardSize,
			IsPrivate:     true,
			Invited:       room.Players.Without(username),
			RematchParent: &room.ID,
		}
		if err := s.store.CreateRoom(rematch); err != nil {
			return err
		}
		s.log.WithFields(map[string]any{
			"room_id":     roomID,
			"new_room_id": rematch.ID,
			"user":        username,
		}).Info("rematch created")
	}

	s.hub.Broadcast(roomID, RematchInviteFrame{
		Type:           FrameTypeRematchInvite,
		NewGameID:      rematch.ID,
		Host:           username,
		InvitedPlayers: rematch.Invited,
		GameRoomURL:    fmt.Sprintf("/game/%s/", rematch.ID),
		JoinURL:        fmt.Sprintf("/game/%s/join/", rematch.ID),
		Message:        fmt.Sprintf("%s wants a rematch", username),
	})
	return nil
}
