// Package ai implements the client for the external generative-language
// endpoint (Gemini generateContent). It owns the request/response wire types,
// the fixed sampling and safety parameters used by the chat flow, and the
// best-effort extraction of structured organ data from free-text replies.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoCandidates is returned when the provider answered 2xx but the response
// envelope carried no usable text candidate. Callers substitute a fixed
// fallback string in that case rather than failing the request.
var ErrNoCandidates = errors.New("gemini: response contains no text candidates")

// GenerateRequest is the generateContent request envelope.
type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []SafetySetting   `json:"safetySettings,omitempty"`
}

// Content is one turn of model input.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is a single text fragment.
type Part struct {
	Text string `json:"text"`
}

// GenerationConfig carries the sampling parameters for a call.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// SafetySetting is one content-safety threshold.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerateResponse is the subset of the response envelope the service reads:
// the first text part of the first candidate.
type GenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ChatGenerationConfig returns the fixed sampling parameters used by the chat
// flow.
func ChatGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

// DefaultSafetySettings blocks medium-and-above content in the four harm
// categories for every chat call.
func DefaultSafetySettings() []SafetySetting {
	const threshold = "BLOCK_MEDIUM_AND_ABOVE"
	return []SafetySetting{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: threshold},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: threshold},
		{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: threshold},
		{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: threshold},
	}
}

// Client calls the generateContent endpoint over HTTP. The zero value is not
// usable; construct with NewClient. BaseURL is overridable so tests and local
// proxies can stand in for the real endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient builds a Client for the given endpoint, key, and model.
// A nil httpClient falls back to a client with a 60s timeout; the external
// call is the slowest step of the upload flow and must not hang forever.
func NewClient(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// GenerateContent sends a single-shot prompt and returns the first text
// candidate of the response.
//
// Error semantics:
//   - network failures, non-2xx statuses, and malformed response JSON are
//     returned as ordinary errors;
//   - a well-formed response without any text candidate returns
//     ErrNoCandidates so callers can pick the appropriate fallback.
func (c *Client) GenerateContent(ctx context.Context, prompt string, genCfg *GenerationConfig, safety []SafetySetting) (string, error) {
	reqBody := GenerateRequest{
		Contents:         []Content{{Parts: []Part{{Text: prompt}}}},
		GenerationConfig: genCfg,
		SafetySettings:   safety,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini: unexpected status %d", resp.StatusCode)
	}

	var envelope GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}

	if len(envelope.Candidates) == 0 ||
		len(envelope.Candidates[0].Content.Parts) == 0 ||
		envelope.Candidates[0].Content.Parts[0].Text == "" {
		return "", ErrNoCandidates
	}
	return envelope.Candidates[0].Content.Parts[0].Text, nil
}
