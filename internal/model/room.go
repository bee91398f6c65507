package model

type Room struct {
	RoomID       string     `json:"room_id"`
	UserID       string     `json:"user_id"`
	CompanionID  string     `json:"companion_id"`
	Status       RoomStatus `json:"status"`
	CreatedAt    int64      `json:"created_at"`
	EndedAt      *int64     `json:"ended_at,omitempty"`
	Participants []string   `json:"participants"`
}

// HasParticipant reports whether userID is already in the room's participant
// list. Insertion must stay idempotent: the list never holds duplicates.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// AddParticipant appends userID if absent and reports whether the list changed.
func (r *Room) AddParticipant(userID string) bool {
	if r.HasParticipant(userID) {
		return false
	}
	r.Participants = append(r.Participants, userID)
	return true
}

// RemoveParticipant drops userID if present and reports whether the list changed.
func (r *Room) RemoveParticipant(userID string) bool {
	for i, p := range r.Participants {
		if p == userID {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}
