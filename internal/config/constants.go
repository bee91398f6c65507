package config

import "time"

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// State store connection policy: bounded startup retries, short health probe.
const (
	StoreConnectAttempts = 3
	StoreConnectBackoff  = time.Second
	StorePingTimeout     = 2 * time.Second
)

// Residual TTL for an ended room. The room stays readable briefly so late
// transcript reads and in-flight pipeline writes resolve, then expires.
const EndedRoomTTL = 5 * time.Minute

// AI pipeline stage budgets
const (
	LLMAttempts        = 3
	LLMTimeout         = 20 * time.Second
	TTSTimeout         = 30 * time.Second
	AvatarTimeout      = 60 * time.Second
	AvatarPollInterval = 2 * time.Second
	AvatarPollAttempts = 30
	CatalogTimeout     = 10 * time.Second
)

// Prompt construction uses the last N conversation turns.
const PromptHistoryTurns = 5

// Pipeline worker pool
const (
	PipelineWorkers   = 8
	PipelineQueueSize = 64
)

// Fixed window for the request rate guard.
const RateLimitWindow = time.Minute

// Usage counters reset on a monthly-scale window.
const UsageResetWindow = 30 * 24 * time.Hour

// Hub sweep reconciles live connections against store-expired rooms.
const HubSweepInterval = time.Minute

// TTSService is the scope key for the speech-synthesis usage budget.
const TTSService = "elevenlabs"
