package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client is a thin REST client for the OpenAI endpoints the pipeline
// uses: audio transcription, vision-capable chat, and text chat.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	transcribeModel string
	visionModel     string
	scriptModel     string
}

type Config struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	VisionModel     string
	ScriptModel     string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-1"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4o-mini"
	}
	if cfg.ScriptModel == "" {
		cfg.ScriptModel = "gpt-4o-mini"
	}
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		httpClient:      &http.Client{Timeout: 5 * time.Minute},
		transcribeModel: cfg.TranscribeModel,
		visionModel:     cfg.VisionModel,
		scriptModel:     cfg.ScriptModel,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// chat sends a chat-completions request and returns the first choice's
// content. When jsonOutput is set, the model is constrained to emit a
// JSON object.
func (c *Client) chat(ctx context.Context, model string, messages []chatMessage, jsonOutput bool) (string, error) {
	reqBody := chatRequest{Model: model, Messages: messages}
	if jsonOutput {
		reqBody.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat request failed with status %d", resp.StatusCode)
	}

	return parsed.Choices[0].Message.Content, nil
}
