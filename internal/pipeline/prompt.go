package pipeline

import (
	"fmt"
	"strings"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/external"
	"github.com/holotutor/hub-server-go/internal/model"
)

// buildPrompt assembles the chat completion request: the companion's persona
// as the system turn, then the most recent conversation turns oldest first,
// then the student's new message.
func buildPrompt(companion *model.Companion, history []model.Message, userMessage string) []external.ChatMessage {
	messages := make([]external.ChatMessage, 0, len(history)+2)
	messages = append(messages, external.ChatMessage{
		Role:    "system",
		Content: personaInstructions(companion),
	})

	if len(history) > config.PromptHistoryTurns {
		history = history[len(history)-config.PromptHistoryTurns:]
	}
	for _, msg := range history {
		role := "user"
		if msg.Sender == model.SenderAI {
			role = "assistant"
		}
		messages = append(messages, external.ChatMessage{Role: role, Content: msg.Text})
	}

	return append(messages, external.ChatMessage{Role: "user", Content: userMessage})
}

func personaInstructions(companion *model.Companion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI tutor in a live video session with a student.", companion.Name)
	if companion.Description != "" {
		fmt.Fprintf(&b, " %s", companion.Description)
	}
	if len(companion.Tags) > 0 {
		fmt.Fprintf(&b, " Your subjects: %s.", strings.Join(companion.Tags, ", "))
	}
	b.WriteString(" Keep answers short and conversational, this is a spoken dialogue." +
		" Guide the student toward the answer instead of handing it over," +
		" and suggest a concrete practice exercise or resource when it helps.")
	return b.String()
}
