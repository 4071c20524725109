package signal

import (
	"encoding/json"
	"fmt"

	"dancebattle/internal/core/domain"
	"dancebattle/pkg/similarity"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// Inbound message types.
const (
	TypePose         = "pose"
	TypeFinish       = "finish"
	TypeStart        = "start"
	TypeLeave        = "leave"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice_candidate"
)

// Outbound message types.
const (
	TypeOpponentPose         = "opponent_pose"
	TypeScoreUpdate          = "score_update"
	TypeScoreSubmitted       = "score_submitted"
	TypeSignal               = "signal"
	TypeGameStarted          = "game_started"
	TypeGameResult           = "game_result"
	TypePlayerJoined         = "player_joined"
	TypeOpponentLeft         = "opponent_left"
	TypeOpponentDisconnected = "opponent_disconnected"
	TypeError                = "error"
)

// Encoding is the frame format of a connection. Replies follow the latest inbound frame.
type Encoding int32

const (
	EncodingJSON Encoding = iota
	EncodingMsgpack
)

func (e Encoding) frameType() int {
	if e == EncodingMsgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Candidate is the wire form of an ICE candidate, mirroring RTCIceCandidateInit.
type Candidate struct {
	Candidate        string  `json:"candidate" msgpack:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty" msgpack:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty" msgpack:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty" msgpack:"usernameFragment,omitempty"`
}

func (c Candidate) toWebRTC() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func candidateFromWebRTC(c webrtc.ICECandidateInit) *Candidate {
	return &Candidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// InboundMessage is any frame a player sends. Undetected landmarks arrive as null.
type InboundMessage struct {
	Type               string                 `json:"type" msgpack:"type"`
	Landmarks          []*similarity.Landmark `json:"landmarks,omitempty" msgpack:"landmarks,omitempty"`
	ReferenceLandmarks []*similarity.Landmark `json:"reference_landmarks,omitempty" msgpack:"reference_landmarks,omitempty"`
	SDP                string                 `json:"sdp,omitempty" msgpack:"sdp,omitempty"`
	Candidate          *Candidate             `json:"candidate,omitempty" msgpack:"candidate,omitempty"`
}

type OutboundMessage struct {
	Type               string                 `json:"type" msgpack:"type"`
	PlayerID           domain.PlayerID        `json:"player_id,omitempty" msgpack:"player_id,omitempty"`
	Landmarks          []*similarity.Landmark `json:"landmarks,omitempty" msgpack:"landmarks,omitempty"`
	ReferenceLandmarks []*similarity.Landmark `json:"reference_landmarks,omitempty" msgpack:"reference_landmarks,omitempty"`

	Score     *float64 `json:"score,omitempty" msgpack:"score,omitempty"`
	Running   *float64 `json:"running,omitempty" msgpack:"running,omitempty"`
	Completed bool     `json:"completed,omitempty" msgpack:"completed,omitempty"`

	WinnerID domain.PlayerID             `json:"winner_id,omitempty" msgpack:"winner_id,omitempty"`
	Scores   map[domain.PlayerID]float64 `json:"scores,omitempty" msgpack:"scores,omitempty"`

	Kind      domain.SignalKind `json:"kind,omitempty" msgpack:"kind,omitempty"`
	SDP       string            `json:"sdp,omitempty" msgpack:"sdp,omitempty"`
	Candidate *Candidate        `json:"candidate,omitempty" msgpack:"candidate,omitempty"`
	Seq       uint64            `json:"seq,omitempty" msgpack:"seq,omitempty"`

	Code    string `json:"code,omitempty" msgpack:"code,omitempty"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
}

// DecodeMessage parses a text frame as JSON and a binary frame as msgpack.
func DecodeMessage(frameType int, data []byte) (*InboundMessage, Encoding, error) {
	var msg InboundMessage
	switch frameType {
	case websocket.TextMessage:
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, EncodingJSON, fmt.Errorf("invalid JSON frame: %w", err)
		}
		return &msg, EncodingJSON, nil
	case websocket.BinaryMessage:
		if err := msgpack.Unmarshal(data, &msg); err != nil {
			return nil, EncodingMsgpack, fmt.Errorf("invalid msgpack frame: %w", err)
		}
		return &msg, EncodingMsgpack, nil
	default:
		return nil, EncodingJSON, fmt.Errorf("unsupported frame type %d", frameType)
	}
}

// EncodeMessage serializes msg for the given encoding.
func EncodeMessage(enc Encoding, msg *OutboundMessage) ([]byte, error) {
	if enc == EncodingMsgpack {
		return msgpack.Marshal(msg)
	}
	return json.Marshal(msg)
}

func float64Ptr(v float64) *float64 {
	return &v
}
