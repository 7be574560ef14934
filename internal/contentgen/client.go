package contentgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ccpq/academy-service/internal/config"
)

// ErrInvalidResponse is returned when the model output is not the expected JSON document
var ErrInvalidResponse = errors.New("failed to parse AI response as JSON")

// APIError is a non-success response from the text-generation gateway
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AI API error: %d - %s", e.StatusCode, e.Body)
}

// CourseInput is what the model is told about a course
type CourseInput struct {
	Title       string
	Description string
	Curriculum  string
	Duration    string
}

// GeneratedContent is the JSON document the model must return
type GeneratedContent struct {
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
	Curriculum       string `json:"curriculum"`
	LearningOutcomes string `json:"learning_outcomes"`
	WhoShouldTake    string `json:"who_should_take"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	cfg    config.AIConfig
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(cfg config.AIConfig, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(max(cfg.RetryWait*8, time.Second)).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Generate asks the model for the full content of one course
func (c *Client) Generate(ctx context.Context, input CourseInput) (*GeneratedContent, error) {
	if !c.Configured() {
		return nil, &config.ConfigError{Key: "AI_API_KEY"}
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(input)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var result chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.APIKey).
		SetBody(body).
		SetResult(&result).
		Post(c.cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}
	if resp.IsError() {
		c.logger.ErrorContext(ctx, "AI API error response", "status", resp.StatusCode(), "course", input.Title)
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	if len(result.Choices) == 0 {
		return nil, ErrInvalidResponse
	}

	content, err := ParseContent(result.Choices[0].Message.Content)
	if err != nil {
		c.logger.WarnContext(ctx, "Unparseable AI response", "course", input.Title, "error", err)
		return nil, err
	}
	return content, nil
}

// ParseContent decodes a model reply, tolerating a surrounding ``` or ```json fence
func ParseContent(raw string) (*GeneratedContent, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var content GeneratedContent
	if err := json.Unmarshal([]byte(text), &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &content, nil
}
