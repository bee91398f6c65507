package model

// SessionRecord is the durable summary of one ended call, appended to the
// owning user's history exactly once when the room ends. Never mutated
// afterward.
type SessionRecord struct {
	SessionID         string `json:"session_id"`
	RoomID            string `json:"room_id"`
	CompanionID       string `json:"companion_id"`
	StartedAt         int64  `json:"started_at"`
	EndedAt           int64  `json:"ended_at"`
	DurationSeconds   int64  `json:"duration_seconds"`
	MessageCount      int    `json:"message_count"`
	TranscriptPreview string `json:"transcript_preview"`
}
