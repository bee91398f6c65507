package repository

import "fmt"

// Namespaced key schema for the state store. Every key expires independently;
// there are no cross-key transactions.
func RoomKey(roomID string) string {
	return fmt.Sprintf("room:%s", roomID)
}

func ConversationKey(roomID string) string {
	return fmt.Sprintf("conversation:%s", roomID)
}

func SessionsKey(userID string) string {
	return fmt.Sprintf("sessions:%s", userID)
}

func CacheKey(name string) string {
	return fmt.Sprintf("cache:%s", name)
}

func RateKey(clientID string) string {
	return fmt.Sprintf("rate:%s", clientID)
}

func UsageKey(service string) string {
	return fmt.Sprintf("tokens:%s", service)
}
