package models

import "time"

// Usage represents token usage from an LLM response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks one completed Complete call.
type UsageRecord struct {
	ID               string    `json:"id"`
	Model            string    `json:"model"`
	Fingerprint      string    `json:"fingerprint"`
	Cached           bool      `json:"cached"`
	Attempts         int       `json:"attempts"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates usage per model.
type UsageSummary struct {
	Model           string `json:"model"`
	RequestCount    int    `json:"request_count"`
	CachedCount     int    `json:"cached_count"`
	TotalAttempts   int    `json:"total_attempts"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalTokens     int    `json:"total_tokens"`
}
