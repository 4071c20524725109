package domain

import (
	"time"
)

type RoomID string
type PlayerID string

// MaxPlayers is the capacity of every room.
const MaxPlayers = 2

type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusPlaying   RoomStatus = "playing"
	RoomStatusCompleted RoomStatus = "completed"
)

// rank orders statuses so transitions can be checked for monotonicity.
func (s RoomStatus) rank() int {
	switch s {
	case RoomStatusWaiting:
		return 0
	case RoomStatusPlaying:
		return 1
	case RoomStatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next keeps the status monotonic.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	return next.rank() >= s.rank() && s.rank() >= 0
}

type Room struct {
	ID          RoomID               `json:"id"`
	HostID      PlayerID             `json:"host_id,omitempty"`
	Players     []PlayerID           `json:"players"`
	Status      RoomStatus           `json:"status"`
	GameStarted bool                 `json:"game_started"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   time.Time            `json:"started_at,omitempty"`
	CompletedAt time.Time            `json:"completed_at,omitempty"`
	Signaling   SignalingBox         `json:"signaling"`
	Scores      map[PlayerID]float64 `json:"scores"`
	Submissions []PlayerID           `json:"submissions"`
	WinnerID    PlayerID             `json:"winner_id,omitempty"`

	// Version increases by one on every committed write.
	Version uint64 `json:"version"`
}

func NewRoom(id RoomID, now time.Time) *Room {
	return &Room{
		ID:        id,
		Players:   []PlayerID{},
		Status:    RoomStatusWaiting,
		CreatedAt: now,
		Signaling: NewSignalingBox(),
		Scores:    make(map[PlayerID]float64),
	}
}

func (r *Room) HasPlayer(id PlayerID) bool {
	for _, p := range r.Players {
		if p == id {
			return true
		}
	}
	return false
}

func (r *Room) HasSubmitted(id PlayerID) bool {
	for _, p := range r.Submissions {
		if p == id {
			return true
		}
	}
	return false
}

// Opponent returns the other member of a two-player room.
func (r *Room) Opponent(id PlayerID) (PlayerID, bool) {
	for _, p := range r.Players {
		if p != id {
			return p, true
		}
	}
	return "", false
}

// Winner picks the highest score among submissions. Ties go to whoever submitted first,
// since Submissions is kept in arrival order and only a strictly higher score replaces
// the current leader.
func (r *Room) Winner() PlayerID {
	var (
		winner PlayerID
		best   float64
	)
	for i, p := range r.Submissions {
		score := r.Scores[p]
		if i == 0 || score > best {
			winner, best = p, score
		}
	}
	return winner
}

// Clone returns a deep copy so callers never share mutable state with a repository.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = append([]PlayerID{}, r.Players...)
	c.Submissions = append([]PlayerID(nil), r.Submissions...)
	c.Scores = make(map[PlayerID]float64, len(r.Scores))
	for k, v := range r.Scores {
		c.Scores[k] = v
	}
	c.Signaling = r.Signaling.Clone()
	return &c
}

type ScoreSubmission struct {
	RoomID   RoomID   `json:"room_id"`
	PlayerID PlayerID `json:"player_id"`
	Score    float64  `json:"score"`
}

// SubmitResult is returned to the submitting player.
type SubmitResult struct {
	Completed bool                 `json:"completed"`
	WinnerID  PlayerID             `json:"winner_id,omitempty"`
	Scores    map[PlayerID]float64 `json:"scores,omitempty"`
}

type GameResult struct {
	RoomID      RoomID               `json:"room_id"`
	WinnerID    PlayerID             `json:"winner_id"`
	Scores      map[PlayerID]float64 `json:"scores"`
	Submissions []PlayerID           `json:"submissions"`
	CompletedAt time.Time            `json:"completed_at"`
}

func (r *Room) Result() GameResult {
	c := r.Clone()
	return GameResult{
		RoomID:      c.ID,
		WinnerID:    c.WinnerID,
		Scores:      c.Scores,
		Submissions: c.Submissions,
		CompletedAt: c.CompletedAt,
	}
}
