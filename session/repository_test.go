package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/snere-rewrite/event"
)

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository()

	s, err := repo.Create("room_demo", "Team Rocket", 4, []string{"p1", "p2"})
	require.NoError(t, err)

	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, "room_demo", s.RoomID)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, map[string]bool{"p1": false, "p2": false}, s.PuzzleStates)
	assert.False(t, s.CreatedAt.IsZero())

	got, err := repo.Get(s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, got.SessionID)

	byRoom, err := repo.GetByRoom("room_demo")
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, byRoom.SessionID)
}

func TestRepository_SingleActiveSessionPerRoom(t *testing.T) {
	repo := NewRepository()

	first, err := repo.Create("room_demo", "first", 2, nil)
	require.NoError(t, err)

	_, err = repo.Create("room_demo", "second", 2, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActiveSessionExists)

	// Existing session is unmodified by the rejected attempt
	got, err := repo.GetByRoom("room_demo")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, got.SessionID)
	assert.Equal(t, "first", got.TeamName)

	// A paused session still blocks creation
	require.NoError(t, repo.Mutate("room_demo", func(s *Session) error {
		s.Status = StatusPaused
		return nil
	}))
	_, err = repo.Create("room_demo", "third", 2, nil)
	assert.ErrorIs(t, err, ErrActiveSessionExists)

	// A completed session does not
	require.NoError(t, repo.Mutate("room_demo", func(s *Session) error {
		s.Status = StatusCompleted
		return nil
	}))
	_, err = repo.Create("room_demo", "fourth", 2, nil)
	assert.NoError(t, err)
}

func TestRepository_GetUnknown(t *testing.T) {
	repo := NewRepository()

	_, err := repo.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = repo.GetByRoom("nope")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRepository_MutateAtomicity(t *testing.T) {
	repo := NewRepository()
	_, err := repo.Create("room_demo", "", 0, []string{"p1"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repo.Mutate("room_demo", func(s *Session) error {
		s.MarkSolved("p1")
		s.Status = StatusCompleted
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// Failed mutation left the stored session untouched
	got, err := repo.GetByRoom("room_demo")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.False(t, got.Solved("p1"))

	require.NoError(t, repo.Mutate("room_demo", func(s *Session) error {
		s.MarkSolved("p1")
		return nil
	}))
	got, err = repo.GetByRoom("room_demo")
	require.NoError(t, err)
	assert.True(t, got.Solved("p1"))
}

func TestRepository_MutateNoActiveSession(t *testing.T) {
	repo := NewRepository()
	err := repo.Mutate("room_demo", func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRepository_Delete(t *testing.T) {
	repo := NewRepository()
	s, err := repo.Create("room_demo", "", 0, nil)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(s.SessionID))
	assert.ErrorIs(t, repo.Delete(s.SessionID), ErrSessionNotFound)

	_, err = repo.GetByRoom("room_demo")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// Room is free again
	_, err = repo.Create("room_demo", "", 0, nil)
	assert.NoError(t, err)
}

func TestRepository_List(t *testing.T) {
	repo := NewRepository()
	_, err := repo.Create("room_a", "", 0, nil)
	require.NoError(t, err)
	_, err = repo.Create("room_b", "", 0, nil)
	require.NoError(t, err)

	assert.Len(t, repo.List(), 2)
}

func TestRepository_CopiesAreIndependent(t *testing.T) {
	repo := NewRepository()
	_, err := repo.Create("room_demo", "", 0, []string{"p1"})
	require.NoError(t, err)

	got, err := repo.GetByRoom("room_demo")
	require.NoError(t, err)
	got.MarkSolved("p1")
	got.SetDeviceState("c1", "d1", event.DeviceState{"open": true}, time.Now())

	fresh, err := repo.GetByRoom("room_demo")
	require.NoError(t, err)
	assert.False(t, fresh.Solved("p1"))
	_, ok := fresh.State("c1", "d1")
	assert.False(t, ok)
}

func TestRepository_ConcurrentMutate(t *testing.T) {
	repo := NewRepository()
	_, err := repo.Create("room_demo", "", 0, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Mutate("room_demo", func(s *Session) error {
				s.PlayerCount++
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := repo.GetByRoom("room_demo")
	require.NoError(t, err)
	assert.Equal(t, 50, got.PlayerCount)
}
