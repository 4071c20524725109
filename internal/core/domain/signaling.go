package domain

import (
	"time"

	"github.com/pion/webrtc/v3"
)

type ICECandidateEntry struct {
	Seq       uint64                  `json:"seq"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	PostedAt  time.Time               `json:"posted_at"`
}

// SignalingBox holds the WebRTC negotiation state of a room, keyed by the posting player.
type SignalingBox struct {
	Offers        map[PlayerID]webrtc.SessionDescription `json:"offers"`
	Answers       map[PlayerID]webrtc.SessionDescription `json:"answers"`
	ICECandidates map[PlayerID][]ICECandidateEntry       `json:"ice_candidates"`
}

func NewSignalingBox() SignalingBox {
	return SignalingBox{
		Offers:        make(map[PlayerID]webrtc.SessionDescription),
		Answers:       make(map[PlayerID]webrtc.SessionDescription),
		ICECandidates: make(map[PlayerID][]ICECandidateEntry),
	}
}

// AppendCandidate adds a candidate to the player's list and returns its sequence number.
// Duplicates are kept.
func (b *SignalingBox) AppendCandidate(player PlayerID, candidate webrtc.ICECandidateInit, now time.Time) uint64 {
	if b.ICECandidates == nil {
		b.ICECandidates = make(map[PlayerID][]ICECandidateEntry)
	}
	list := b.ICECandidates[player]
	seq := uint64(len(list)) + 1
	b.ICECandidates[player] = append(list, ICECandidateEntry{
		Seq:       seq,
		Candidate: candidate,
		PostedAt:  now,
	})
	return seq
}

// CandidatesSince returns the entries of player with Seq greater than since.
func (b *SignalingBox) CandidatesSince(player PlayerID, since uint64) []ICECandidateEntry {
	list := b.ICECandidates[player]
	if since >= uint64(len(list)) {
		return []ICECandidateEntry{}
	}
	return append([]ICECandidateEntry{}, list[since:]...)
}

func (b SignalingBox) Clone() SignalingBox {
	c := NewSignalingBox()
	for k, v := range b.Offers {
		c.Offers[k] = v
	}
	for k, v := range b.Answers {
		c.Answers[k] = v
	}
	for k, v := range b.ICECandidates {
		c.ICECandidates[k] = append([]ICECandidateEntry{}, v...)
	}
	return c
}

// SignalingSnapshot is the read side of the relay as seen by a polling peer.
type SignalingSnapshot struct {
	RoomID        RoomID                                 `json:"room_id"`
	Version       uint64                                 `json:"version"`
	Offers        map[PlayerID]webrtc.SessionDescription `json:"offers"`
	Answers       map[PlayerID]webrtc.SessionDescription `json:"answers"`
	ICECandidates map[PlayerID][]ICECandidateEntry       `json:"ice_candidates"`
}

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice_candidate"
)
