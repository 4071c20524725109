package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/pkg/logger"
	"dancebattle/pkg/retry"
	"dancebattle/pkg/tracing"
	"dancebattle/pkg/utils"
	"dancebattle/pkg/validation"

	"go.uber.org/zap"
)

// errUnchanged aborts an Update without committing when the call is an idempotent no-op.
var errUnchanged = errors.New("room unchanged")

type RoomServiceConfig struct {
	CodeAttempts int
	Now          func() time.Time
	GenerateCode func() (string, error)
}

type roomService struct {
	repo    ports.RoomRepository
	events  ports.EventPublisher
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
	cfg     RoomServiceConfig
}

func NewRoomService(
	repo ports.RoomRepository,
	events ports.EventPublisher,
	metrics ports.MetricsRecorder,
	log *zap.SugaredLogger,
	cfg RoomServiceConfig,
) ports.RoomService {
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.GenerateCode == nil {
		cfg.GenerateCode = utils.GenerateRoomCode
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &roomService{
		repo:    repo,
		events:  events,
		metrics: metrics,
		logger:  log,
		cfg:     cfg,
	}
}

func (s *roomService) CreateRoom(ctx context.Context) (*domain.Room, error) {
	ctx, span := tracing.TraceRoomOperation(ctx, "create", "", "")
	defer span.End()

	retryCfg := retry.Config{
		MaxAttempts: s.cfg.CodeAttempts,
		Retryable:   retry.On(domain.ErrRoomCodeConflict),
	}
	room, err := retry.RetryWithResult(ctx, retryCfg, func() (*domain.Room, error) {
		code, err := s.cfg.GenerateCode()
		if err != nil {
			return nil, err
		}
		room := domain.NewRoom(domain.RoomID(code), s.cfg.Now())
		if err := s.repo.Create(ctx, room); err != nil {
			if errors.Is(err, domain.ErrRoomCodeConflict) {
				s.logger.Debugw("room code collision, retrying", "room_id", code)
			}
			return nil, err
		}
		return room, nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("create room: %w", err)
	}

	tracing.AddSpanAttributes(ctx, tracing.RoomIDKey.String(string(room.ID)))
	s.metrics.RoomCreated()
	s.logger.Infow("room created", "room_id", room.ID)
	return room, nil
}

func (s *roomService) GetRoom(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, nil
}

func (s *roomService) JoinRoom(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID) error {
	ctx, span := tracing.TraceRoomOperation(ctx, "join", string(roomID), string(playerID))
	defer span.End()

	_, err := s.repo.Update(ctx, roomID, func(room *domain.Room) error {
		// members cannot rejoin a started game either; a join would mint them a new token
		switch room.Status {
		case domain.RoomStatusPlaying:
			return domain.ErrGameAlreadyStarted
		case domain.RoomStatusCompleted:
			return domain.ErrGameCompleted
		}
		if room.HasPlayer(playerID) {
			return errUnchanged
		}
		if len(room.Players) >= domain.MaxPlayers {
			return domain.ErrRoomFull
		}
		room.Players = append(room.Players, playerID)
		if room.HostID == "" {
			room.HostID = playerID
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	s.metrics.PlayerJoined()
	s.logger.Infow("player joined room", "room_id", roomID, "player_id", playerID)
	s.publish(ctx, domain.EventPlayerJoined, roomID, playerID, nil)
	return nil
}

func (s *roomService) LeaveRoom(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID) error {
	ctx, span := tracing.TraceRoomOperation(ctx, "leave", string(roomID), string(playerID))
	defer span.End()

	_, err := s.repo.Update(ctx, roomID, func(room *domain.Room) error {
		if !room.HasPlayer(playerID) {
			return errUnchanged
		}
		switch room.Status {
		case domain.RoomStatusPlaying:
			return domain.ErrGameAlreadyStarted
		case domain.RoomStatusCompleted:
			return domain.ErrGameCompleted
		}

		remaining := room.Players[:0]
		for _, p := range room.Players {
			if p != playerID {
				remaining = append(remaining, p)
			}
		}
		room.Players = remaining
		if room.HostID == playerID {
			room.HostID = ""
			if len(remaining) > 0 {
				room.HostID = remaining[0]
			}
		}
		delete(room.Signaling.Offers, playerID)
		delete(room.Signaling.Answers, playerID)
		delete(room.Signaling.ICECandidates, playerID)
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}

	s.logger.Infow("player left room", "room_id", roomID, "player_id", playerID)
	s.publish(ctx, domain.EventPlayerLeft, roomID, playerID, nil)
	return nil
}

func (s *roomService) StartGame(ctx context.Context, roomID domain.RoomID) error {
	ctx, span := tracing.TraceRoomOperation(ctx, "start", string(roomID), "")
	defer span.End()

	_, err := s.repo.Update(ctx, roomID, func(room *domain.Room) error {
		switch room.Status {
		case domain.RoomStatusPlaying:
			return errUnchanged
		case domain.RoomStatusCompleted:
			return domain.ErrGameCompleted
		}
		if len(room.Players) != domain.MaxPlayers {
			return domain.ErrNotEnoughPlayers
		}
		room.Status = domain.RoomStatusPlaying
		room.GameStarted = true
		room.StartedAt = s.cfg.Now()
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("start game %s: %w", roomID, err)
	}

	s.metrics.GameStarted()
	s.logger.Infow("game started", "room_id", roomID)
	s.publish(ctx, domain.EventRoomStarted, roomID, "", nil)
	return nil
}

func (s *roomService) SubmitScore(ctx context.Context, roomID domain.RoomID, playerID domain.PlayerID, score float64) (*domain.SubmitResult, error) {
	ctx, span := tracing.TraceRoomOperation(ctx, "submit_score", string(roomID), string(playerID))
	defer span.End()

	if err := validation.ValidateScore(score); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidScore, err)
	}

	room, err := s.repo.Update(ctx, roomID, func(room *domain.Room) error {
		switch room.Status {
		case domain.RoomStatusWaiting:
			return domain.ErrGameNotStarted
		case domain.RoomStatusCompleted:
			return domain.ErrGameCompleted
		}
		if !room.HasPlayer(playerID) {
			return domain.ErrNotRoomMember
		}
		if room.HasSubmitted(playerID) {
			return domain.ErrAlreadySubmitted
		}

		room.Scores[playerID] = score
		room.Submissions = append(room.Submissions, playerID)

		if len(room.Submissions) == len(room.Players) {
			room.WinnerID = room.Winner()
			room.Status = domain.RoomStatusCompleted
			room.CompletedAt = s.cfg.Now()
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("submit score %s: %w", roomID, err)
	}

	s.metrics.ScoreSubmitted()
	s.logger.Infow("score submitted", "room_id", roomID, "player_id", playerID, "score", score)

	result := &domain.SubmitResult{Completed: room.Status == domain.RoomStatusCompleted}
	if result.Completed {
		result.WinnerID = room.WinnerID
		result.Scores = room.Scores

		duration := room.CompletedAt.Sub(room.StartedAt)
		s.metrics.RoomCompleted(duration)
		s.logger.Infow("game completed",
			"room_id", roomID,
			"winner_id", room.WinnerID,
			"duration", utils.FormatDuration(duration),
		)
		s.publish(ctx, domain.EventRoomCompleted, roomID, playerID, room.Result())
	}
	return result, nil
}

// publish is best effort; the room write has already been committed.
func (s *roomService) publish(ctx context.Context, t domain.EventType, roomID domain.RoomID, playerID domain.PlayerID, payload interface{}) {
	if s.events == nil {
		return
	}
	ev, err := domain.NewRoomEvent(t, roomID, playerID, payload)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warnw("failed to publish room event", "room_id", roomID, "type", t, "error", err)
	}
}
