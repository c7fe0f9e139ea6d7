package models

import "encoding/json"

// Turn is one role-tagged message in a chat transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single request handed to a transport.
// When Chat is set, Messages carries the transcript and Prompt is ignored.
type CompletionRequest struct {
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt,omitempty"`
	Messages    []Turn         `json:"messages,omitempty"`
	Chat        bool           `json:"-"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	TopP        float64        `json:"top_p"`
	N           int            `json:"n"`
	Stop        []string       `json:"stop,omitempty"`
	Logprobs    *int           `json:"logprobs,omitempty"`
	Echo        bool           `json:"echo,omitempty"`
	LogitBias   map[string]int `json:"logit_bias,omitempty"`
}

// Response is an OpenAI-compatible completion or chat completion response.
type Response struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a single completion choice. Chat responses carry a
// Message; plain completions carry Text.
type Choice struct {
	Index        int             `json:"index"`
	Text         string          `json:"text"`
	Message      *Turn           `json:"message,omitempty"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
}
