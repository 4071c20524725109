package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/pkg/logger"
	"dancebattle/pkg/tracing"
	"dancebattle/pkg/validation"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

type signalingService struct {
	repo    ports.RoomRepository
	events  ports.EventPublisher
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewSignalingService(
	repo ports.RoomRepository,
	events ports.EventPublisher,
	metrics ports.MetricsRecorder,
	log *zap.SugaredLogger,
) ports.SignalingService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &signalingService{
		repo:    repo,
		events:  events,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}
}

func (s *signalingService) PostOffer(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, sdp string) error {
	return s.postSession(ctx, roomID, playerID, webrtc.SDPTypeOffer, sdp)
}

func (s *signalingService) PostAnswer(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, sdp string) error {
	return s.postSession(ctx, roomID, playerID, webrtc.SDPTypeAnswer, sdp)
}

// postSession stores the latest description of the given type for the player.
func (s *signalingService) postSession(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, sdpType webrtc.SDPType, sdp string) error {
	kind := domain.SignalOffer
	if sdpType == webrtc.SDPTypeAnswer {
		kind = domain.SignalAnswer
	}
	ctx, span := tracing.TraceRoomOperation(ctx, "post_"+string(kind), string(roomID), string(playerID))
	defer span.End()

	desc, err := parseSessionDescription(sdpType, sdp)
	if err != nil {
		return err
	}

	_, err = s.repo.Update(ctx, roomID, func(room *domain.Room) error {
		if !room.HasPlayer(playerID) {
			return domain.ErrNotRoomMember
		}
		if sdpType == webrtc.SDPTypeOffer {
			room.Signaling.Offers[playerID] = desc
		} else {
			room.Signaling.Answers[playerID] = desc
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("post %s to room %s: %w", kind, roomID, err)
	}

	s.metrics.SignalPosted(kind)
	s.logger.Debugw("session description stored", "room_id", roomID, "player_id", playerID, "kind", kind)

	payload := &domain.SessionPayload{Type: desc.Type.String(), SDP: desc.SDP}
	signal := domain.SignalPayload{Kind: kind}
	if kind == domain.SignalOffer {
		signal.Offer = payload
	} else {
		signal.Answer = payload
	}
	s.publish(ctx, roomID, playerID, signal)
	return nil
}

func (s *signalingService) PostICECandidate(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, candidate webrtc.ICECandidateInit) (uint64, error) {
	ctx, span := tracing.TraceRoomOperation(ctx, "post_ice_candidate", string(roomID), string(playerID))
	defer span.End()

	if err := validateCandidate(candidate); err != nil {
		return 0, err
	}

	var entry domain.ICECandidateEntry
	_, err := s.repo.Update(ctx, roomID, func(room *domain.Room) error {
		if !room.HasPlayer(playerID) {
			return domain.ErrNotRoomMember
		}
		room.Signaling.AppendCandidate(playerID, candidate, s.now())
		list := room.Signaling.ICECandidates[playerID]
		entry = list[len(list)-1]
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return 0, fmt.Errorf("post ice candidate to room %s: %w", roomID, err)
	}

	s.metrics.SignalPosted(domain.SignalICECandidate)
	s.publish(ctx, roomID, playerID, domain.SignalPayload{
		Kind:      domain.SignalICECandidate,
		Candidate: &entry,
	})
	return entry.Seq, nil
}

func (s *signalingService) Snapshot(ctx context.Context, roomID domain.RoomID, since map[domain.PlayerID]uint64) (*domain.SignalingSnapshot, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("signaling snapshot %s: %w", roomID, err)
	}

	snap := &domain.SignalingSnapshot{
		RoomID:        room.ID,
		Version:       room.Version,
		Offers:        room.Signaling.Offers,
		Answers:       room.Signaling.Answers,
		ICECandidates: make(map[domain.PlayerID][]domain.ICECandidateEntry, len(room.Signaling.ICECandidates)),
	}
	for player := range room.Signaling.ICECandidates {
		snap.ICECandidates[player] = room.Signaling.CandidatesSince(player, since[player])
	}
	return snap, nil
}

func (s *signalingService) publish(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, payload domain.SignalPayload) {
	if s.events == nil {
		return
	}
	ev, err := domain.NewRoomEvent(domain.EventSignal, roomID, playerID, payload)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warnw("failed to publish signal event", "room_id", roomID, "kind", payload.Kind, "error", err)
	}
}

// parseSessionDescription runs the SDP through pion's parser so malformed bodies are
// rejected before they reach the other peer.
func parseSessionDescription(sdpType webrtc.SDPType, raw string) (webrtc.SessionDescription, error) {
	if err := validation.ValidateSDP(raw); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", domain.ErrInvalidSDP, err)
	}
	desc := webrtc.SessionDescription{Type: sdpType, SDP: raw}
	if _, err := desc.Unmarshal(); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", domain.ErrInvalidSDP, err)
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: raw}, nil
}

func validateCandidate(c webrtc.ICECandidateInit) error {
	line := strings.TrimPrefix(strings.TrimSpace(c.Candidate), "a=")
	if !strings.HasPrefix(line, "candidate:") {
		return fmt.Errorf("%w: expected a candidate attribute", domain.ErrInvalidICECandidate)
	}
	return nil
}
