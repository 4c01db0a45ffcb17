package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"teammail/config"
	"teammail/pkg/circuitbreaker"
	"teammail/pkg/metrics"
)

// Client talks to an OpenAI-compatible chat completions endpoint. All calls
// run under a circuit breaker so a degraded provider sheds load quickly
// instead of tying up workers.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg config.AssistConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

// Annotation is what the worker writes back onto an email record.
type Annotation struct {
	Summary      string `json:"summary"`
	UrgencyScore int    `json:"urgency_score"`
}

const annotatePrompt = `Summarize the email below in two sentences and rate its urgency from 1 (ignorable) to 5 (drop everything). Respond with JSON only: {"summary": "...", "urgency_score": N}`

// Annotate produces the summary and urgency score for a newly ingested email.
func (c *Client) Annotate(ctx context.Context, subject, body string) (*Annotation, error) {
	content, err := c.complete(ctx, "annotate", annotatePrompt, emailBlock(subject, body))
	if err != nil {
		return nil, err
	}

	var a Annotation
	if err := json.Unmarshal([]byte(stripFences(content)), &a); err != nil {
		c.logger.Warn("Assist returned non-JSON annotation, using raw content",
			zap.Error(err),
		)
		// Keep the text; a missing score is better than a lost summary.
		return &Annotation{Summary: content, UrgencyScore: 3}, nil
	}

	if a.UrgencyScore < 1 {
		a.UrgencyScore = 1
	}
	if a.UrgencyScore > 5 {
		a.UrgencyScore = 5
	}

	return &a, nil
}

// DraftReply writes a reply draft, optionally steered by user instructions.
func (c *Client) DraftReply(ctx context.Context, subject, body, instructions string) (string, error) {
	prompt := "Write a reply to the email below. Match the sender's tone and keep it brief."
	if instructions != "" {
		prompt += " Instructions from the user: " + instructions
	}
	return c.complete(ctx, "draft_reply", prompt, emailBlock(subject, body))
}

// Answer answers a free-form question about an email.
func (c *Client) Answer(ctx context.Context, subject, body, question string) (string, error) {
	prompt := "Answer the question using only the email below. Question: " + question
	return c.complete(ctx, "answer", prompt, emailBlock(subject, body))
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, operation, system, user string) (string, error) {
	start := time.Now()

	var content string
	err := c.breaker.Execute(func() error {
		var innerErr error
		content, innerErr = c.doComplete(ctx, system, user)
		return innerErr
	})

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.RecordAssistCallLatency(operation, status, time.Since(start))

	return content, err
}

func (c *Client) doComplete(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call assist service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("assist service returned 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assist service error: %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("assist service returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func emailBlock(subject, body string) string {
	return fmt.Sprintf("Subject: %s\n\n%s", subject, body)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
