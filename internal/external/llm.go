package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
)

// ErrRateLimited is returned when the LLM provider answers 429 after all
// retry attempts are spent.
var ErrRateLimited = errors.New("llm provider rate limited")

// ChatMessage is one turn of an OpenAI-compatible chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// LLMClient generates companion replies through an OpenRouter-style chat
// completion endpoint.
type LLMClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client

	sleep func(ctx context.Context, d time.Duration) error
}

func NewLLMClient(cfg *config.Config) *LLMClient {
	return &LLMClient{
		baseURL:     strings.TrimSuffix(cfg.OpenRouterURL, "/"),
		apiKey:      cfg.OpenRouterAPIKey,
		model:       cfg.LLMModel,
		temperature: cfg.LLMTemperature,
		maxTokens:   cfg.LLMMaxTokens,
		httpClient:  &http.Client{Timeout: config.LLMTimeout},
		sleep:       sleepCtx,
	}
}

// Complete runs the chat completion with bounded retries. Every failure is
// retried; only a 429 inserts an exponential backoff between attempts.
func (c *LLMClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var lastErr error
	for attempt := 0; attempt < config.LLMAttempts; attempt++ {
		if attempt > 0 && errors.Is(lastErr, ErrRateLimited) {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			log.Warn().Dur("backoff", backoff).Int("attempt", attempt).Msg("llm rate limited, retrying")
			if err := c.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}

		text, err := c.complete(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
		if !errors.Is(err, ErrRateLimited) {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("llm request failed, retrying")
		}
	}
	return "", lastErr
}

func (c *LLMClient) complete(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm api error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal completion response: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", errors.New("llm returned no completion")
	}
	return result.Choices[0].Message.Content, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
