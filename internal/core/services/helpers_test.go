package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/internal/infrastructure/repositories/memory"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap/zaptest"
)

const (
	testOffer  = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"
	testAnswer = "v=0\r\no=- 1829837364 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.RoomEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev *domain.RoomEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t domain.EventType) []*domain.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.RoomEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	repo      ports.RoomRepository
	events    *recordingPublisher
	rooms     ports.RoomService
	signaling ports.SignalingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	repo := memory.NewMemoryRoomRepository()
	events := &recordingPublisher{}
	return &fixture{
		repo:      repo,
		events:    events,
		rooms:     NewRoomService(repo, events, nil, log, RoomServiceConfig{}),
		signaling: NewSignalingService(repo, events, nil, log),
	}
}

// playingRoom creates a room with p1 and p2 joined and the game started.
func (f *fixture) playingRoom(t *testing.T) domain.RoomID {
	t.Helper()
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for _, p := range []domain.PlayerID{"p1", "p2"} {
		if err := f.rooms.JoinRoom(ctx, room.ID, p); err != nil {
			t.Fatalf("JoinRoom(%s): %v", p, err)
		}
	}
	if err := f.rooms.StartGame(ctx, room.ID); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return room.ID
}

func hostCandidate(i int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate: fmt.Sprintf("candidate:%d 1 udp 2122260223 10.0.0.%d 5000%d typ host", i, i%250, i%10),
	}
}
