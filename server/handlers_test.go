package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kyagmur/dicewars/game"
	"github.com/kyagmur/dicewars/store"
)

func TestJoinRoom(t *testing.T) {
	t.Run("AppendsPlayerAndBroadcasts", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice")
		require.NoError(t, st.EnsurePlayer("bob"))
		rec := watch(s, "r1")

		require.NoError(t, s.JoinRoom("bob", "r1"))

		room, err := st.GetRoom("r1")
		require.NoError(t, err)
		assert.Equal(t, store.StringList{"alice", "bob"}, room.Players)

		states := rec.States()
		require.Len(t, states, 1)
		assert.Equal(t, "bob joined", states[0].Message)
		assert.Equal(t, []string{"alice", "bob"}, states[0].Players)
	})

	t.Run("RejectsDuplicateJoin", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		requireValidation(t, s.JoinRoom("bob", "r1"), ErrAlreadyJoined)
	})

	t.Run("RejectsFullRoom", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "p1", "p2", "p3", "p4", "p5", "p6", "p7")
		require.NoError(t, st.EnsurePlayer("late"))
		requireValidation(t, s.JoinRoom("late", "r1"), ErrRoomFull)
	})

	t.Run("RejectsAfterStart", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		startGame(t, st, "r1", "alice", 5, 0, game.NewBoard())
		require.NoError(t, st.EnsurePlayer("carol"))
		requireValidation(t, s.JoinRoom("carol", "r1"), ErrAlreadyStarted)
	})

	t.Run("PrivateRoomNeedsInvite", func(t *testing.T) {
		s, st := newTestServer(t)
		room := seedRoom(t, st, "r1", "alice")
		require.NoError(t, st.EnsurePlayer("bob"))
		require.NoError(t, st.EnsurePlayer("carol"))

		err := st.WithRoomLock(room.ID, func(tx *gorm.DB, r *store.Room) error {
			r.IsPrivate = true
			r.Invited = store.StringList{"bob"}
			return nil
		})
		require.NoError(t, err)

		requireValidation(t, s.JoinRoom("carol", "r1"), ErrNotInvited)
		require.NoError(t, s.JoinRoom("bob", "r1"))

		got, err := st.GetRoom("r1")
		require.NoError(t, err)
		assert.False(t, got.Invited.Contains("bob"), "accepted invite is consumed")
	})

	t.Run("MissingRoom", func(t *testing.T) {
		s, st := newTestServer(t)
		require.NoError(t, st.EnsurePlayer("alice"))
		assert.ErrorIs(t, s.JoinRoom("alice", "ghost"), store.ErrRoomNotFound)
	})
}

func TestStartGame(t *testing.T) {
	t.Run("HostStartsWithEnoughPlayers", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob", "carol")
		rec := watch(s, "r1")

		require.NoError(t, s.StartGame("alice", "r1"))

		room, err := st.GetRoom("r1")
		require.NoError(t, err)
		assert.Equal(t, store.StatusInProgress, room.Status)
		assert.Equal(t, "alice", *room.CurrentTurn, "deterministic pick in tests")
		assert.Equal(t, 6, room.BoardSize, "three players play on 6x6")
		assert.Equal(t, 0, room.MoveCount)

		states := rec.States()
		require.Len(t, states, 1)
		assert.Equal(t, EventGameStartRoll, states[0].SpecialEvent)
	})

	t.Run("OnlyHostMayStart", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		requireValidation(t, s.StartGame("bob", "r1"), ErrNotHost)
	})

	t.Run("NeedsMinimumPlayers", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice")
		requireValidation(t, s.StartGame("alice", "r1"), ErrTooFewPlayers)
	})

	t.Run("CannotStartTwice", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		require.NoError(t, s.StartGame("alice", "r1"))
		requireValidation(t, s.StartGame("alice", "r1"), ErrAlreadyStarted)
	})
}

func TestKickPlayer(t *testing.T) {
	t.Run("HostKicksWaitingPlayer", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		rec := watch(s, "r1")

		require.NoError(t, s.KickPlayer("alice", "r1", "bob"))

		room, err := st.GetRoom("r1")
		require.NoError(t, err)
		assert.Equal(t, store.StringList{"alice"}, room.Players)

		states := rec.States()
		require.Len(t, states, 1)
		assert.Equal(t, "bob kicked", states[0].Message)
	})

	t.Run("NonHostCannotKick", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		requireValidation(t, s.KickPlayer("bob", "r1", "alice"), ErrNotHost)
	})

	t.Run("NoSelfKick", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		requireValidation(t, s.KickPlayer("alice", "r1", "alice"), ErrSelfKick)
	})

	t.Run("TargetMustBeSeated", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		requireValidation(t, s.KickPlayer("alice", "r1", "ghost"), ErrNotInRoom)
	})

	t.Run("NoKickAfterStart", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		startGame(t, st, "r1", "alice", 5, 0, game.NewBoard())
		requireValidation(t, s.KickPlayer("alice", "r1", "bob"), ErrAlreadyStarted)
	})
}

func TestRequestRematch(t *testing.T) {
	finishRoom := func(t *testing.T, s *Server, st *store.Store, id, winner string) {
		t.Helper()
		err := st.WithRoomLock(id, func(tx *gorm.DB, r *store.Room) error {
			r.Status = store.StatusInProgress
			r.BoardSize = 5
			return st.FinishRoom(tx, r, &winner)
		})
		require.NoError(t, err)
	}

	t.Run("CreatesPrivateInviteRoom", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob", "carol")
		finishRoom(t, s, st, "r1", "bob")
		rec := watch(s, "r1")

		require.NoError(t, s.RequestRematch("carol", "r1"))

		frames := rec.Frames()
		require.Len(t, frames, 1)
		invite, ok := frames[0].(RematchInviteFrame)
		require.True(t, ok)
		assert.Equal(t, "carol", invite.Host)
		assert.ElementsMatch(t, []string{"alice", "bob"}, invite.InvitedPlayers)
		assert.Equal(t, "/game/"+invite.NewGameID+"/", invite.GameRoomURL)

		rematch, err := st.GetRoom(invite.NewGameID)
		require.NoError(t, err)
		assert.True(t, rematch.IsPrivate)
		assert.Equal(t, store.StatusWaiting, rematch.Status)
		assert.Equal(t, "carol", rematch.Host)
		assert.Equal(t, 5, rematch.BoardSize)
		require.NotNil(t, rematch.RematchParent)
		assert.Equal(t, "r1", *rematch.RematchParent)
	})

	t.Run("IdempotentPerHost", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		finishRoom(t, s, st, "r1", "alice")
		rec := watch(s, "r1")

		require.NoError(t, s.RequestRematch("alice", "r1"))
		require.NoError(t, s.RequestRematch("alice", "r1"))

		frames := rec.Frames()
		require.Len(t, frames, 2)
		first := frames[0].(RematchInviteFrame)
		second := frames[1].(RematchInviteFrame)
		assert.Equal(t, first.NewGameID, second.NewGameID, "second request reuses the waiting rematch")
	})

	t.Run("OnlyAfterFinish", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		requireValidation(t, s.RequestRematch("alice", "r1"), ErrGameNotFinished)
	})

	t.Run("OnlyParticipants", func(t *testing.T) {
		s, st := newTestServer(t)
		seedRoom(t, st, "r1", "alice", "bob")
		finishRoom(t, s, st, "r1", "alice")
		require.NoError(t, st.EnsurePlayer("mallory"))
		requireValidation(t, s.RequestRematch("mallory", "r1"), ErrNotInRoom)
	})
}

func TestCleanupStaleRooms(t *testing.T) {
	s, st := newTestServer(t)
	seedRoom(t, st, "r1", "alice", "bob")

	swept, err := s.CleanupStaleRooms(StaleRoomAge)
	require.NoError(t, err)
	assert.EqualValues(t, 0, swept, "fresh rooms survive")

	swept, err = s.CleanupStaleRooms(-time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)

	_, err = st.GetRoom("r1")
	assert.ErrorIs(t, err, store.ErrRoomNotFound)
}
