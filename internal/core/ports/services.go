package ports

import (
	"context"
	"time"

	"dancebattle/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

type RoomService interface {
	CreateRoom(ctx context.Context) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID domain.RoomID) (*domain.Room, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID) error
	LeaveRoom(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID) error
	StartGame(ctx context.Context, roomID domain.RoomID) error
	SubmitScore(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, score float64) (*domain.SubmitResult, error)
}

type SignalingService interface {
	PostOffer(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, sdp string) error
	PostAnswer(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, sdp string) error
	PostICECandidate(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, candidate webrtc.ICECandidateInit) (uint64, error)
	Snapshot(ctx context.Context, roomID domain.RoomID, since map[domain.PlayerID]uint64) (*domain.SignalingSnapshot, error)
}

// MetricsRecorder receives lifecycle events for instrumentation.
type MetricsRecorder interface {
	RoomCreated()
	RoomDeleted()
	PlayerJoined()
	GameStarted()
	ScoreSubmitted()
	RoomCompleted(playDuration time.Duration)
	SignalPosted(kind domain.SignalKind)
	PoseFrameRelayed()
	ConnectionOpened()
	ConnectionClosed()
}
