package model

// Companion is a named AI tutor persona from the catalog collaborator.
type Companion struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AvatarURL   string   `json:"avatar_url"`
	VoiceID     string   `json:"voice_id"`
	Tags        []string `json:"tags"`
}
