package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

	defaultVisionModel = "mistralai/mistral-small-3.2-24b-instruct"

	// noTextSentinel is what the prompt asks the model to answer when
	// the capture contains no readable text.
	noTextSentinel = "NO_TEXT_FOUND"

	visionMaxAttempts = 3
)

const visionPrompt = "Extract all text from this image. Return only the raw text, " +
	"preserving line breaks. Do not add commentary, labels or markdown fences. " +
	"If the image contains no readable text, respond with exactly " + noTextSentinel + "."

// visionEngine sends captures to an OpenRouter-hosted vision model and
// treats the reply as the recognized text.
type visionEngine struct {
	apiKey    string
	model     string
	providers []string

	endpoint   string
	client     *http.Client
	retryDelay time.Duration
}

func newVision(cfg Config) (Engine, error) {
	if cfg.APIKey == "" {
		return nil, &UnavailableError{
			Engine: KindVision,
			Hint:   "set OPENROUTER_API_KEY or store it in the system keyring",
		}
	}
	model := cfg.Model
	if model == "" {
		model = defaultVisionModel
	}
	return &visionEngine{
		apiKey:     cfg.APIKey,
		model:      model,
		providers:  cfg.Providers,
		endpoint:   openRouterURL,
		client:     &http.Client{Timeout: 45 * time.Second},
		retryDelay: 2 * time.Second,
	}, nil
}

func (v *visionEngine) Name() string { return KindVision }

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type providerPrefs struct {
	Order          []string `json:"order"`
	AllowFallbacks bool     `json:"allow_fallbacks"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Provider *providerPrefs `json:"provider,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (v *visionEngine) Recognize(ctx context.Context, req Request) (*Result, error) {
	data, err := loadRequestImage(req)
	if err != nil {
		return nil, err
	}

	payload := chatRequest{
		Model: v.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
	}
	if len(v.providers) > 0 {
		payload.Provider = &providerPrefs{Order: v.providers, AllowFallbacks: false}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	var lastErr error
	for attempt := 1; attempt <= visionMaxAttempts; attempt++ {
		if attempt > 1 {
			log.Printf("Vision request retry %d/%d after error: %v", attempt, visionMaxAttempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(v.retryDelay * time.Duration(attempt-1)):
			}
		}

		text, retryable, err := v.send(ctx, body)
		if err == nil {
			return visionResult(text), nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("vision request failed after %d attempts: %w", visionMaxAttempts, lastErr)
}

// send performs one API round trip. The second return reports whether
// the failure is worth retrying: network errors and 5xx/429 are,
// malformed responses and auth failures are not.
func (v *visionEngine) send(ctx context.Context, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %v", err)
	}
	if decoded.Error != nil {
		return "", false, fmt.Errorf("API error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", false, fmt.Errorf("API returned no choices")
	}
	return decoded.Choices[0].Message.Content, false, nil
}

func (v *visionEngine) Close() error { return nil }

// visionResult converts the model reply into a Result. The sentinel for
// an empty capture yields an empty result, not an error.
func visionResult(reply string) *Result {
	text := cleanResponseText(reply)
	if text == "" || text == noTextSentinel {
		return &Result{}
	}

	parts := strings.Split(text, "\n")
	lines := make([]Line, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, Line{Text: p})
	}
	return finalize(lines)
}

// cleanResponseText strips the markdown fences some models wrap their
// answer in despite the prompt.
func cleanResponseText(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	return text
}
