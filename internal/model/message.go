package model

import "encoding/json"

// Message is one entry in a room's conversation log. Messages are immutable
// once appended and ordered by insertion.
type Message struct {
	Text      string     `json:"message"`
	Sender    SenderRole `json:"sender"`
	Timestamp int64      `json:"timestamp"`
	AudioURL  *string    `json:"audio_url,omitempty"`
	VideoURL  *string    `json:"video_url,omitempty"`
}

// UnmarshalJSON normalizes the sender role on read. Conversation records may
// have been written by an older schema that stored the sender as a bare
// string, so stored shape is validated rather than trusted.
func (m *Message) UnmarshalJSON(data []byte) error {
	type raw struct {
		Text      string  `json:"message"`
		Content   string  `json:"content"`
		Sender    string  `json:"sender"`
		Timestamp int64   `json:"timestamp"`
		AudioURL  *string `json:"audio_url"`
		VideoURL  *string `json:"video_url"`
	}
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	text := r.Text
	if text == "" {
		text = r.Content
	}
	m.Text = text
	m.Sender = NormalizeSender(r.Sender)
	m.Timestamp = r.Timestamp
	m.AudioURL = r.AudioURL
	m.VideoURL = r.VideoURL
	return nil
}
