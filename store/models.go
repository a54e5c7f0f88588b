package store

import (
	"time"

	"github.com/kyagmur/dicewars/game"
)

// Room lifecycle states.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// GameKind describes one playable game type and its player limits.
type GameKind struct {
	Slug       string `gorm:"primaryKey" json:"slug"`
	Name       string `json:"name"`
	MinPlayers int    `json:"min_players"`
	MaxPlayers int    `json:"max_players"`
}

// StringList is a JSON-column list of usernames. Order is significant
// for Room.Players: it defines turn rotation.
type StringList []string

// Contains reports whether name is in the list.
func (l StringList) Contains(name string) bool {
	for _, v := range l {
		if v == name {
			return true
		}
	}
	return false
}

// Without returns a copy of the list with name removed.
func (l StringList) Without(name string) StringList {
	out := make(StringList, 0, len(l))
	for _, v := range l {
		if v != name {
			out = append(out, v)
		}
	}
	return out
}

// GameStat is one player's record for a single game kind.
type GameStat struct {
	RankPoint int `json:"rank_point"`
	Wins      int `json:"wins"`
	Losses    int `json:"losses"`
	Games     int `json:"games"`
}

// Player is the durable per-player statistics row. The engine only
// ever touches these fields; identity and profile live elsewhere.
type Player struct {
	Username     string              `gorm:"primaryKey"`
	RankPoint    int                 `gorm:"not null;default:0"`
	TotalGames   int                 `gorm:"not null;default:0"`
	TotalWins    int                 `gorm:"not null;default:0"`
	TotalLosses  int                 `gorm:"not null;default:0"`
	PerGameStats map[string]GameStat `gorm:"serializer:json"`
}

// Room is the authoritative record of one game session. Board and the
// player lists are JSON columns; the (status, created_at) index backs
// the janitor sweep.
type Room struct {
	ID            string     `gorm:"primaryKey;column:game_id"`
	GameTypeSlug  string     `gorm:"index;not null"`
	GameType      GameKind   `gorm:"foreignKey:GameTypeSlug;references:Slug"`
	Host          string     `gorm:"not null"`
	Players       StringList `gorm:"serializer:json"`
	Status        string     `gorm:"index:idx_rooms_status_created;not null;default:waiting"`
	Board         game.Board `gorm:"serializer:json"`
	BoardSize     int
	CurrentTurn   *string
	Winner        *string
	Eliminated    StringList `gorm:"serializer:json;column:eliminated_players"`
	MoveCount     int        `gorm:"not null;default:0"`
	IsPrivate     bool       `gorm:"not null;default:false"`
	Invited       StringList `gorm:"serializer:json;column:invited_players"`
	RematchParent *string
	CreatedAt     time.Time `gorm:"index:idx_rooms_status_created"`
	FinishedAt    *time.Time
}

// HasPlayer reports whether the user has a seat in the room.
func (r *Room) HasPlayer(username string) bool {
	return r.Players.Contains(username)
}

// IsFull reports whether the room is at its kind's player cap.
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.GameType.MaxPlayers
}

// ReadyToStart reports whether enough players have joined.
func (r *Room) ReadyToStart() bool {
	return len(r.Players) >= r.GameType.MinPlayers
}

// IsEliminated reports whether the player has been knocked out.
func (r *Room) IsEliminated(username string) bool {
	return r.Eliminated.Contains(username)
}

// EliminatedSet returns the eliminated players as a lookup set.
func (r *Room) EliminatedSet() map[string]bool {
	set := make(map[string]bool, len(r.Eliminated))
	for _, p := range r.Eliminated {
		set[p] = true
	}
	return set
}
