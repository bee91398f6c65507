package model

type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active"
	RoomStatusEnded  RoomStatus = "ended"
)

type SenderRole string

const (
	SenderUser   SenderRole = "user"
	SenderAI     SenderRole = "ai"
	SenderSystem SenderRole = "system"
)

// NormalizeSender maps the loose sender strings found in stored conversation
// records (older writers used "assistant" or arbitrary casing) onto the three
// canonical roles. Unknown values default to SenderUser.
func NormalizeSender(s string) SenderRole {
	switch SenderRole(s) {
	case SenderUser, SenderAI, SenderSystem:
		return SenderRole(s)
	}
	switch s {
	case "assistant", "bot", "AI", "Ai":
		return SenderAI
	case "System", "SYSTEM":
		return SenderSystem
	}
	return SenderUser
}
