package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	RedisURL string `env:"REDIS_URL,required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// External collaborators
	OpenRouterAPIKey string  `env:"OPENROUTER_API_KEY"`
	OpenRouterURL    string  `env:"OPENROUTER_API_URL" envDefault:"https://openrouter.ai/api/v1"`
	LLMModel         string  `env:"LLM_MODEL" envDefault:"google/gemini-2.0-flash-exp:free"`
	LLMTemperature   float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens     int     `env:"LLM_MAX_TOKENS" envDefault:"200"`

	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsURL    string `env:"ELEVENLABS_API_URL" envDefault:"https://api.elevenlabs.io"`
	ElevenLabsModel  string `env:"ELEVENLABS_MODEL" envDefault:"eleven_monolingual_v1"`
	TTSCharBudget    int64  `env:"TTS_CHAR_BUDGET" envDefault:"100000"`

	DIDAPIKey string `env:"DID_API_KEY"`
	DIDURL    string `env:"DID_API_URL" envDefault:"https://api.d-id.com"`

	PersonasAPIURL string `env:"PERSONAS_API_URL" envDefault:""`

	// Object storage
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `env:"S3_BUCKET_NAME" envDefault:"tutor-hub-media"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	// TTLs (seconds)
	RoomTTLSeconds           int `env:"ROOM_TTL_SECONDS" envDefault:"7200"`
	ConversationTTLSeconds   int `env:"CONVERSATION_TTL_SECONDS" envDefault:"7200"`
	SessionHistoryTTLSeconds int `env:"SESSION_HISTORY_TTL_SECONDS" envDefault:"2592000"`
	CompanionCacheTTLSeconds int `env:"COMPANIONS_CACHE_TTL_SECONDS" envDefault:"3600"`

	// Rate limiting
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`

	// WebRTC
	STUNServer     string `env:"STUN_SERVER" envDefault:"stun:stun.l.google.com:19302"`
	TURNServer     string `env:"TURN_SERVER" envDefault:"turn:openrelay.metered.ca:80"`
	TURNUsername   string `env:"TURN_USERNAME" envDefault:"openrelayproject"`
	TURNCredential string `env:"TURN_CREDENTIAL" envDefault:"openrelayproject"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:8080"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLSeconds) * time.Second
}

func (c *Config) ConversationTTL() time.Duration {
	return time.Duration(c.ConversationTTLSeconds) * time.Second
}

func (c *Config) SessionHistoryTTL() time.Duration {
	return time.Duration(c.SessionHistoryTTLSeconds) * time.Second
}

func (c *Config) CompanionCacheTTL() time.Duration {
	return time.Duration(c.CompanionCacheTTLSeconds) * time.Second
}

func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// ICEServer is one STUN/TURN entry handed to clients for peer negotiation.
type ICEServer struct {
	URLs       string `json:"urls"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (c *Config) ICEServers() []ICEServer {
	return []ICEServer{
		{URLs: c.STUNServer},
		{URLs: c.TURNServer, Username: c.TURNUsername, Credential: c.TURNCredential},
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
