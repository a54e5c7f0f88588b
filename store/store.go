package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrRoomNotFound is returned when a room id does not resolve to a row.
var ErrRoomNotFound = errors.New("room not found")

// DefaultTxTimeout bounds one room transaction.
const DefaultTxTimeout = 5 * time.Second

// clientVisible is implemented by handler rejections; they must pass
// through WithRoomLock untouched, without triggering the storage retry.
type clientVisible interface {
	ClientVisible() bool
}

func isClientError(err error) bool {
	var cv clientVisible
	return errors.As(err, &cv) && cv.ClientVisible()
}

// Store is the persistence adapter for rooms and player statistics.
// The engine treats the database as an opaque row store with row-level
// locking; every state mutation goes through WithRoomLock.
type Store struct {
	db *gorm.DB

	// TxTimeout bounds each locked transaction. Zero means no bound.
	TxTimeout time.Duration
}

// Open opens (or creates) the SQLite database at dsn and migrates the
// engine's tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the engine's tables.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&GameKind{}, &Player{}, &Room{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, TxTimeout: DefaultTxTimeout}, nil
}

// WithRoomLock loads the room under a row-level lock, invokes fn
// inside the transaction, and persists the mutated room on success.
// A storage-level failure is retried once; handler rejections and
// missing rooms are not.
func (s *Store) WithRoomLock(id string, fn func(tx *gorm.DB, room *Room) error) error {
	run := func() error {
		ctx := context.Background()
		if s.TxTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.TxTimeout)
			defer cancel()
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var room Room
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Preload("GameType").
				First(&room, "game_id = ?", id).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			if err != nil {
				return fmt.Errorf("lock room %s: %w", id, err)
			}

			if err := fn(tx, &room); err != nil {
				return err
			}
			return tx.Omit(clause.Associations).Save(&room).Error
		})
	}

	err := run()
	if err == nil || errors.Is(err, ErrRoomNotFound) || isClientError(err) {
		return err
	}
	// Transient conflict: one retry, then surface the failure.
	return run()
}

// GetRoom returns the room without taking a lock. Snapshot reads only.
func (s *Store) GetRoom(id string) (*Room, error) {
	var room Room
	err := s.db.Preload("GameType").First(&room, "game_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", id, err)
	}
	return &room, nil
}

// CreateRoom inserts a new room row.
func (s *Store) CreateRoom(room *Room) error {
	if err := s.db.Omit(clause.Associations).Create(room).Error; err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// GetPlayer returns the stats row for username.
func (s *Store) GetPlayer(username string) (*Player, error) {
	var p Player
	if err := s.db.First(&p, "username = ?", username).Error; err != nil {
		return nil, fmt.Errorf("load player %s: %w", username, err)
	}
	return &p, nil
}

// PlayerExists reports whether a stats row exists for username.
func (s *Store) PlayerExists(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&Player{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check player %s: %w", username, err)
	}
	return count > 0, nil
}

// EnsurePlayer creates the stats row for username if it is missing.
func (s *Store) EnsurePlayer(username string) error {
	p := Player{Username: username}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error
}

// EnsureGameKind upserts a game kind definition.
func (s *Store) EnsureGameKind(kind *GameKind) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		UpdateAll: true,
	}).Create(kind).Error
}

// FindWaitingRematch returns the waiting rematch room the host already
// created from parentID, if one exists. Keeps RequestRematch idempotent.
func (s *Store) FindWaitingRematch(host, kindSlug, parentID string) (*Room, error) {
	var room Room
	err := s.db.Preload("GameType").
		Where("host = ? AND game_type_slug = ? AND status = ? AND rematch_parent = ?",
			host, kindSlug, StatusWaiting, parentID).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find rematch: %w", err)
	}
	return &room, nil
}

// FinishRoom marks the room finished and applies the end-of-game stats
// deltas to every participant inside the caller's transaction. Calling
// it on an already-finished room is a no-op so stats never double-count.
func (s *Store) FinishRoom(tx *gorm.DB, room *Room, winner *string) error {
	if room.Status == StatusFinished {
		return nil
	}

	now := time.Now().UTC()
	room.Status = StatusFinished
	room.Winner = winner
	room.CurrentTurn = nil
	room.FinishedAt = &now

	for _, username := range room.Players {
		var p Player
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "username = ?", username).Error
		if err != nil {
			return fmt.Errorf("lock player %s: %w", username, err)
		}

		p.TotalGames++
		if winner != nil && *winner == username {
			p.TotalWins++
			p.RankPoint += 10 * len(room.Players)
		} else {
			p.TotalLosses++
			p.RankPoint += 5
		}

		if p.PerGameStats == nil {
			p.PerGameStats = make(map[string]GameStat)
		}
		gs := p.PerGameStats[room.GameTypeSlug]
		gs.Games++
		if winner != nil && *winner == username {
			gs.Wins++
			gs.RankPoint += 10 * len(room.Players)
		} else {
			gs.Losses++
			gs.RankPoint += 5
		}
		p.PerGameStats[room.GameTypeSlug] = gs

		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("save player %s: %w", username, err)
		}
	}
	return nil
}

// DeleteStaleWaiting removes rooms still waiting that were created
// before cutoff, returning how many were swept.
func (s *Store) DeleteStaleWaiting(cutoff time.Time) (int64, error) {
	res := s.db.Where("status = ? AND created_at < ?", StatusWaiting, cutoff).Delete(&Room{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale rooms: %w", res.Error)
	}
	return res.RowsAffected, nil
}
