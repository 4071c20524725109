package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRoomService_CreateRoom(t *testing.T) {
	f := newFixture(t)
	room, err := f.rooms.CreateRoom(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, `^[A-Z0-9]{6}$`, string(room.ID))
	assert.Equal(t, domain.RoomStatusWaiting, room.Status)
	assert.Empty(t, room.Players)
	assert.Empty(t, room.HostID)
}

func TestRoomService_CreateRoom_RetriesCollisions(t *testing.T) {
	repo := memory.NewMemoryRoomRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, domain.NewRoom("TAKEN1", time.Now())))

	codes := []string{"TAKEN1", "TAKEN1", "FRESH1"}
	calls := 0
	svc := NewRoomService(repo, nil, nil, zaptest.NewLogger(t).Sugar(), RoomServiceConfig{
		CodeAttempts: 5,
		GenerateCode: func() (string, error) {
			c := codes[calls]
			calls++
			return c, nil
		},
	})

	room, err := svc.CreateRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("FRESH1"), room.ID)
	assert.Equal(t, 3, calls)
}

func TestRoomService_CreateRoom_ExhaustedIsConflict(t *testing.T) {
	repo := memory.NewMemoryRoomRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, domain.NewRoom("TAKEN1", time.Now())))

	calls := 0
	svc := NewRoomService(repo, nil, nil, nil, RoomServiceConfig{
		CodeAttempts: 3,
		GenerateCode: func() (string, error) {
			calls++
			return "TAKEN1", nil
		},
	})

	_, err := svc.CreateRoom(ctx)
	assert.ErrorIs(t, err, domain.ErrRoomCodeConflict)
	assert.Equal(t, 3, calls)
}

func TestRoomService_CreateRoom_GeneratorFailure(t *testing.T) {
	boom := errors.New("entropy exhausted")
	svc := NewRoomService(memory.NewMemoryRoomRepository(), nil, nil, nil, RoomServiceConfig{
		GenerateCode: func() (string, error) { return "", boom },
	})
	_, err := svc.CreateRoom(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRoomService_JoinRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)

	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p1"))
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p2"))

	got, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.PlayerID{"p1", "p2"}, got.Players)
	assert.Equal(t, domain.PlayerID("p1"), got.HostID)
	assert.Len(t, f.events.ofType(domain.EventPlayerJoined), 2)

	// rejoin is a no-op and does not bump the version
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p1"))
	again, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Version, again.Version)
	assert.Len(t, f.events.ofType(domain.EventPlayerJoined), 2)

	err = f.rooms.JoinRoom(ctx, room.ID, "p3")
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	err = f.rooms.JoinRoom(ctx, "NOPE00", "p1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomService_JoinRoom_RejectedAfterStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.playingRoom(t)

	before, err := f.rooms.GetRoom(ctx, roomID)
	require.NoError(t, err)

	err = f.rooms.JoinRoom(ctx, roomID, "p3")
	assert.ErrorIs(t, err, domain.ErrGameAlreadyStarted)
	err = f.rooms.JoinRoom(ctx, roomID, "p1")
	assert.ErrorIs(t, err, domain.ErrGameAlreadyStarted)

	after, err := f.rooms.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRoomService_JoinRoom_MemberRejectedAfterCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.playingRoom(t)

	_, err := f.rooms.SubmitScore(ctx, roomID, "p1", 80)
	require.NoError(t, err)
	_, err = f.rooms.SubmitScore(ctx, roomID, "p2", 60)
	require.NoError(t, err)

	for _, p := range []domain.PlayerID{"p1", "p2", "p3"} {
		err = f.rooms.JoinRoom(ctx, roomID, p)
		assert.ErrorIs(t, err, domain.ErrGameCompleted, p)
	}
}

func TestRoomService_ConcurrentJoinsNeverOverfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)

	const joiners = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := f.rooms.JoinRoom(ctx, room.ID, domain.PlayerID(string(rune('a'+i))))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrRoomFull)
		}(i)
	}
	wg.Wait()

	got, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, succeeded)
	assert.Len(t, got.Players, 2)
}

func TestRoomService_LeaveRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p1"))
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p2"))
	require.NoError(t, f.signaling.PostOffer(ctx, room.ID, "p1", testOffer))

	require.NoError(t, f.rooms.LeaveRoom(ctx, room.ID, "p1"))
	got, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.PlayerID{"p2"}, got.Players)
	assert.Equal(t, domain.PlayerID("p2"), got.HostID)
	assert.NotContains(t, got.Signaling.Offers, domain.PlayerID("p1"))

	// leaving twice is harmless
	require.NoError(t, f.rooms.LeaveRoom(ctx, room.ID, "p1"))
	assert.Len(t, f.events.ofType(domain.EventPlayerLeft), 1)

	// the freed slot can be taken
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p3"))
}

func TestRoomService_LeaveRoom_NotWhilePlaying(t *testing.T) {
	f := newFixture(t)
	roomID := f.playingRoom(t)

	err := f.rooms.LeaveRoom(context.Background(), roomID, "p1")
	assert.ErrorIs(t, err, domain.ErrGameAlreadyStarted)
}

func TestRoomService_StartGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.rooms.StartGame(ctx, room.ID), domain.ErrNotEnoughPlayers)
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p1"))
	assert.ErrorIs(t, f.rooms.StartGame(ctx, room.ID), domain.ErrNotEnoughPlayers)
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p2"))

	require.NoError(t, f.rooms.StartGame(ctx, room.ID))
	got, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusPlaying, got.Status)
	assert.True(t, got.GameStarted)
	assert.False(t, got.StartedAt.IsZero())

	// idempotent while playing
	require.NoError(t, f.rooms.StartGame(ctx, room.ID))
	assert.Len(t, f.events.ofType(domain.EventRoomStarted), 1)

	assert.ErrorIs(t, f.rooms.StartGame(ctx, "NOPE00"), domain.ErrRoomNotFound)
}

func TestRoomService_SubmitScore_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.playingRoom(t)

	for _, bad := range []float64{-1, 100.5, math.NaN(), math.Inf(1)} {
		_, err := f.rooms.SubmitScore(ctx, roomID, "p1", bad)
		assert.ErrorIs(t, err, domain.ErrInvalidScore, "score %v", bad)
	}

	_, err := f.rooms.SubmitScore(ctx, roomID, "stranger", 50)
	assert.ErrorIs(t, err, domain.ErrNotRoomMember)

	_, err = f.rooms.SubmitScore(ctx, roomID, "p1", 80)
	require.NoError(t, err)
	_, err = f.rooms.SubmitScore(ctx, roomID, "p1", 90)
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)

	got, err := f.rooms.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.Scores["p1"])
}

func TestRoomService_SubmitScore_BeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "p1"))

	_, err = f.rooms.SubmitScore(ctx, room.ID, "p1", 50)
	assert.ErrorIs(t, err, domain.ErrGameNotStarted)
}

func TestRoomService_SubmitScore_Winner(t *testing.T) {
	tests := []struct {
		name    string
		first   domain.PlayerID
		scores  map[domain.PlayerID]float64
		wantWin domain.PlayerID
	}{
		{"first higher", "p1", map[domain.PlayerID]float64{"p1": 80, "p2": 60}, "p1"},
		{"second higher", "p1", map[domain.PlayerID]float64{"p1": 60, "p2": 80}, "p2"},
		{"tie goes to earliest submitter", "p2", map[domain.PlayerID]float64{"p1": 70, "p2": 70}, "p2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			roomID := f.playingRoom(t)

			second := domain.PlayerID("p2")
			if tt.first == "p2" {
				second = "p1"
			}
			res, err := f.rooms.SubmitScore(ctx, roomID, tt.first, tt.scores[tt.first])
			require.NoError(t, err)
			assert.False(t, res.Completed)

			res, err = f.rooms.SubmitScore(ctx, roomID, second, tt.scores[second])
			require.NoError(t, err)
			assert.True(t, res.Completed)
			assert.Equal(t, tt.wantWin, res.WinnerID)
			assert.Equal(t, tt.scores, res.Scores)

			got, err := f.rooms.GetRoom(ctx, roomID)
			require.NoError(t, err)
			assert.Equal(t, domain.RoomStatusCompleted, got.Status)
			assert.Equal(t, tt.wantWin, got.WinnerID)
			assert.False(t, got.CompletedAt.IsZero())
		})
	}
}

func TestRoomService_ConcurrentSubmissions(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		ctx := context.Background()
		roomID := f.playingRoom(t)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			completed int
		)
		for p, s := range map[domain.PlayerID]float64{"p1": 80, "p2": 60} {
			wg.Add(1)
			go func(p domain.PlayerID, s float64) {
				defer wg.Done()
				res, err := f.rooms.SubmitScore(ctx, roomID, p, s)
				if !assert.NoError(t, err) {
					return
				}
				if res.Completed {
					mu.Lock()
					completed++
					mu.Unlock()
				}
			}(p, s)
		}
		wg.Wait()

		assert.Equal(t, 1, completed, "exactly one submission completes the room")
		got, err := f.rooms.GetRoom(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, map[domain.PlayerID]float64{"p1": 80, "p2": 60}, got.Scores)
		assert.Len(t, got.Submissions, 2)
		assert.Equal(t, domain.PlayerID("p1"), got.WinnerID)
		assert.Len(t, f.events.ofType(domain.EventRoomCompleted), 1)
	}
}

func TestRoomService_ConcurrentTieIsDeterministic(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		ctx := context.Background()
		roomID := f.playingRoom(t)

		var wg sync.WaitGroup
		for _, p := range []domain.PlayerID{"p1", "p2"} {
			wg.Add(1)
			go func(p domain.PlayerID) {
				defer wg.Done()
				_, err := f.rooms.SubmitScore(ctx, roomID, p, 70)
				assert.NoError(t, err)
			}(p)
		}
		wg.Wait()

		got, err := f.rooms.GetRoom(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, got.Submissions[0], got.WinnerID)
	}
}

func TestRoomService_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "P1"))
	require.NoError(t, f.rooms.JoinRoom(ctx, room.ID, "P2"))
	require.NoError(t, f.rooms.StartGame(ctx, room.ID))

	assert.ErrorIs(t, f.rooms.JoinRoom(ctx, room.ID, "P3"), domain.ErrGameAlreadyStarted)

	res, err := f.rooms.SubmitScore(ctx, room.ID, "P1", 90)
	require.NoError(t, err)
	assert.False(t, res.Completed)

	res, err = f.rooms.SubmitScore(ctx, room.ID, "P2", 75)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, domain.PlayerID("P1"), res.WinnerID)

	events := f.events.ofType(domain.EventRoomCompleted)
	require.Len(t, events, 1)
	var result domain.GameResult
	require.NoError(t, events[0].DecodePayload(&result))
	assert.Equal(t, domain.PlayerID("P1"), result.WinnerID)
	assert.Equal(t, 90.0, result.Scores["P1"])
	assert.Equal(t, 75.0, result.Scores["P2"])

	// a completed room accepts nothing else
	_, err = f.rooms.SubmitScore(ctx, room.ID, "P1", 10)
	assert.ErrorIs(t, err, domain.ErrGameCompleted)
	assert.ErrorIs(t, f.rooms.StartGame(ctx, room.ID), domain.ErrGameCompleted)
}
