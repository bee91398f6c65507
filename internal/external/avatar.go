package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/holotutor/hub-server-go/internal/config"
)

type createTalkRequest struct {
	SourceURL string     `json:"source_url"`
	Script    talkScript `json:"script"`
}

type talkScript struct {
	Type     string `json:"type"`
	AudioURL string `json:"audio_url"`
}

type talkStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
	Error     any    `json:"error"`
}

// AvatarClient renders talking-head video clips through the D-ID API. Talk
// generation is asynchronous upstream: create, then poll until the clip is
// ready.
type AvatarClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	pollInterval time.Duration
}

func NewAvatarClient(cfg *config.Config) *AvatarClient {
	return &AvatarClient{
		baseURL:      strings.TrimSuffix(cfg.DIDURL, "/"),
		apiKey:       cfg.DIDAPIKey,
		httpClient:   &http.Client{Timeout: config.AvatarTimeout},
		pollInterval: config.AvatarPollInterval,
	}
}

// CreateTalk submits a talk for the avatar image speaking the audio and waits
// for the rendered clip URL.
func (c *AvatarClient) CreateTalk(ctx context.Context, imageURL, audioURL string) (string, error) {
	body, err := json.Marshal(createTalkRequest{
		SourceURL: imageURL,
		Script:    talkScript{Type: "audio", AudioURL: audioURL},
	})
	if err != nil {
		return "", fmt.Errorf("marshal talk request: %w", err)
	}

	var created talkStatus
	if err := c.do(ctx, http.MethodPost, "/talks", bytes.NewReader(body), &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("avatar api returned no talk id")
	}
	return c.waitForTalk(ctx, created.ID)
}

func (c *AvatarClient) waitForTalk(ctx context.Context, talkID string) (string, error) {
	for attempt := 0; attempt < config.AvatarPollAttempts; attempt++ {
		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return "", err
		}

		var status talkStatus
		if err := c.do(ctx, http.MethodGet, "/talks/"+talkID, nil, &status); err != nil {
			return "", err
		}
		switch status.Status {
		case "done":
			if status.ResultURL == "" {
				return "", fmt.Errorf("talk %s finished without a result url", talkID)
			}
			return status.ResultURL, nil
		case "error", "rejected":
			return "", fmt.Errorf("talk %s failed: %v", talkID, status.Error)
		}
	}
	return "", fmt.Errorf("talk %s not ready after %d polls", talkID, config.AvatarPollAttempts)
}

func (c *AvatarClient) do(ctx context.Context, method, path string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create avatar request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send avatar request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read avatar response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("avatar api error [%d]: %s", resp.StatusCode, string(respBody))
	}
	return json.Unmarshal(respBody, dest)
}
