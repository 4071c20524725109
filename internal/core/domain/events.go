package domain

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPlayerJoined  EventType = "room.player_joined"
	EventPlayerLeft    EventType = "room.player_left"
	EventRoomStarted   EventType = "room.started"
	EventRoomCompleted EventType = "room.completed"
	EventSignal        EventType = "room.signal"
)

type RoomEvent struct {
	Type       EventType       `json:"type"`
	InstanceID string          `json:"instance_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RoomID     RoomID          `json:"room_id"`
	PlayerID   PlayerID        `json:"player_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// SignalPayload is carried by EventSignal.
type SignalPayload struct {
	Kind      SignalKind         `json:"kind"`
	Offer     *SessionPayload    `json:"offer,omitempty"`
	Answer    *SessionPayload    `json:"answer,omitempty"`
	Candidate *ICECandidateEntry `json:"candidate,omitempty"`
}

type SessionPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func NewRoomEvent(t EventType, roomID RoomID, playerID PlayerID, payload interface{}) (*RoomEvent, error) {
	ev := &RoomEvent{
		Type:      t,
		Timestamp: time.Now(),
		RoomID:    roomID,
		PlayerID:  playerID,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Payload = data
	}
	return ev, nil
}

func (e *RoomEvent) DecodePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
