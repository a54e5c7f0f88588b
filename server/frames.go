package server

import (
	"github.com/kyagmur/dicewars/game"
	"github.com/kyagmur/dicewars/store"
)

// Inbound message types
const (
	MsgTypeMakeMove       = "make_move"
	MsgTypeStartGame      = "start_game"
	MsgTypeKickPlayer     = "kick_player"
	MsgTypeRequestRematch = "request_rematch"
)

// Outbound frame types
const (
	FrameTypeGameState     = "game_state"
	FrameTypeError         = "error"
	FrameTypeRematchInvite = "rematch_invite"
)

// Special events carried on a state frame
const (
	EventGameStartRoll = "game_start_roll"
)

// ClientMessage is one inbound WebSocket text frame. Payload fields
// arrive flat alongside the type.
type ClientMessage struct {
	Type       string `json:"type"`
	Row        *int   `json:"row,omitempty"`
	Col        *int   `json:"col,omitempty"`
	KickTarget string `json:"username_to_kick,omitempty"`
}

// GameStateFrame is the canonical room snapshot. Every frame carries
// the complete authoritative state, never a diff.
type GameStateFrame struct {
	Type            string     `json:"type"`
	State           game.Board `json:"state"`
	Turn            *string    `json:"turn"`
	Players         []string   `json:"players"`
	Status          string     `json:"status"`
	Winner          *string    `json:"winner"`
	BoardSize       int        `json:"board_size"`
	Eliminated      []string   `json:"eliminated_players"`
	Message         string     `json:"message,omitempty"`
	ExplodedCells   [][2]int   `json:"exploded_cells"`
	MoveCell        *[2]int    `json:"move_cell,omitempty"`
	SpecialEvent    string     `json:"special_event,omitempty"`
	NewlyEliminated []string   `json:"newly_eliminated,omitempty"`
}

// ErrorFrame is a handler rejection, sent to the originator only.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RematchInviteFrame announces a freshly created rematch room to the
// finished room's group.
type RematchInviteFrame struct {
	Type           string   `json:"type"`
	NewGameID      string   `json:"new_game_id"`
	Host           string   `json:"host"`
	InvitedPlayers []string `json:"invited_players"`
	GameRoomURL    string   `json:"game_room_url"`
	JoinURL        string   `json:"join_url"`
	Message        string   `json:"message"`
}

func errorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameTypeError, Message: message}
}

// stateFrame builds a snapshot frame from the room record. The board is
// cloned so later transactions cannot mutate an already-queued frame.
func stateFrame(room *store.Room) GameStateFrame {
	frame := GameStateFrame{
		Type:          FrameTypeGameState,
		State:         room.Board.Clone(),
		Turn:          room.CurrentTurn,
		Players:       room.Players,
		Status:        room.Status,
		Winner:        room.Winner,
		BoardSize:     room.BoardSize,
		Eliminated:    room.Eliminated,
		ExplodedCells: [][2]int{},
	}
	if frame.State == nil {
		frame.State = game.NewBoard()
	}
	if frame.Eliminated == nil {
		frame.Eliminated = []string{}
	}
	if frame.Players == nil {
		frame.Players = []string{}
	}
	return frame
}

func coordPairs(coords []game.Coord) [][2]int {
	pairs := make([][2]int, len(coords))
	for i, c := range coords {
		pairs[i] = [2]int{c.Row, c.Col}
	}
	return pairs
}
