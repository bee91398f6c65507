package signaling

import "encoding/json"

// Wire event names. Client-originated events arrive in Frame.Event; the same
// envelope carries server-originated broadcasts back out.
const (
	EventJoin      = "join"
	EventLeave     = "leave"
	EventOffer     = "offer"
	EventAnswer    = "answer"
	EventCandidate = "candidate"
	EventMessage   = "message"

	EventJoined     = "joined"
	EventPeerJoined = "peer-joined"
	EventPeerLeft   = "peer-left"
	EventError      = "error"
)

// Frame is the envelope for every WebSocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload starts room membership. IsHost marks the participant who
// opened the room and is carried through to peer-joined broadcasts.
type JoinPayload struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	IsHost bool   `json:"is_host,omitempty"`
}

// SignalPayload carries an SDP offer or answer. The SDP body is opaque to the
// relay and forwarded verbatim.
type SignalPayload struct {
	RoomID string          `json:"room_id"`
	SDP    json.RawMessage `json:"sdp"`
}

// CandidatePayload carries one ICE candidate, forwarded verbatim.
type CandidatePayload struct {
	RoomID    string          `json:"room_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// MessagePayload is a chat message sent into a room.
type MessagePayload struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// ErrorPayload is sent to a single client when one of its events fails. The
// connection stays open.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresencePayload announces membership changes to a room. The same shape acks
// the joiner's own join.
type PresencePayload struct {
	RoomID       string   `json:"room_id"`
	UserID       string   `json:"user_id"`
	IsHost       bool     `json:"is_host"`
	Participants []string `json:"participants"`
}

// RelayPayload is a forwarded offer, answer, or candidate tagged with the
// sender's connection id so the receiving peer can address its reply.
type RelayPayload struct {
	From      string          `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ChatPayload is a broadcast chat entry, including back to the sender.
type ChatPayload struct {
	Message   string  `json:"message"`
	Sender    string  `json:"sender"`
	Timestamp int64   `json:"timestamp"`
	AudioURL  *string `json:"audio_url,omitempty"`
	VideoURL  *string `json:"video_url,omitempty"`
}
