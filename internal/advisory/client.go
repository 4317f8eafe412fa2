// Package advisory wraps the Gemini API as the run-time advisory
// model: contextual comment suggestions, lead scoring, and freeform
// action proposals. All vision input travels as inline base64 PNG.
package advisory

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gramnerd/internal/config"
	"gramnerd/internal/logging"
)

// Client is a Gemini REST client.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	mu         sync.Mutex
	lastRequest time.Time
}

// NewClient creates a client from the gemini config section. A client
// with an empty API key is valid but reports Available() == false.
func NewClient(cfg config.GeminiConfig) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		model:   model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// Available reports whether the client can reach the API at all.
// Modes that hard-require the advisory model check this before
// starting.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// generate sends a prompt (with an optional PNG screenshot) and
// returns the raw completion text. Rate limiting spaces requests
// 100ms apart; 429 responses are retried with exponential backoff.
func (c *Client) generate(ctx context.Context, prompt string, screenshot []byte) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.AdvisoryDebug("generate: model=%s prompt_len=%d screenshot=%d bytes", c.model, len(prompt), len(screenshot))

	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	parts := []geminiPart{{Text: prompt}}
	if len(screenshot) > 0 {
		parts = append(parts, geminiPart{
			InlineData: &geminiBlobPart{
				MimeType: "image/png",
				Data:     base64.StdEncoding.EncodeToString(screenshot),
			},
		})
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     1.0,
			MaxOutputTokens: 2048,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	// Retry loop for rate limits
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * time.Second)
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var geminiResp geminiResponse
		if err := json.Unmarshal(body, &geminiResp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if geminiResp.Error != nil {
			return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
		}
		if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		var result strings.Builder
		for _, part := range geminiResp.Candidates[0].Content.Parts {
			result.WriteString(part.Text)
		}
		response := strings.TrimSpace(result.String())

		logging.Advisory("generate: completed in %v response_len=%d", time.Since(startTime), len(response))
		return response, nil
	}

	logging.AdvisoryError("generate: max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SuggestComment asks the model for a contextual comment on a post.
// The caller validates the result against the promotional denylist and
// falls back to the fixed phrase set on any failure.
func (c *Client) SuggestComment(ctx context.Context, screenshot []byte, caption string) (string, error) {
	text, err := c.generate(ctx, commentPrompt(caption), screenshot)
	if err != nil {
		return "", err
	}
	// Strip wrapping quotes the model sometimes adds.
	text = strings.Trim(strings.TrimSpace(text), `"`)
	if text == "" {
		return "", fmt.Errorf("empty comment returned")
	}
	return text, nil
}

// ScoreProfile asks the model to rate a candidate profile as a lead.
func (c *Client) ScoreProfile(ctx context.Context, screenshot []byte, handle, bio string) (*ProfileAnalysis, error) {
	text, err := c.generate(ctx, scoringPrompt(handle, bio), screenshot)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("score profile: %w", err)
	}
	var analysis ProfileAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("score profile: parse verdict: %w", err)
	}
	return &analysis, nil
}

// ProposeAction asks the model for the next freeform step given the
// current page state and the operator's instruction.
func (c *Client) ProposeAction(ctx context.Context, screenshot []byte, pageURL, elements, instruction string) (*Action, error) {
	text, err := c.generate(ctx, actionPrompt(pageURL, elements, instruction), screenshot)
	if err != nil {
		return nil, err
	}

	raw, err := extractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("propose action: %w", err)
	}
	var action Action
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return nil, fmt.Errorf("propose action: parse: %w", err)
	}
	return &action, nil
}
