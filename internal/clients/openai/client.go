// Package openai is the analysis-provider client. Three request/response
// contracts are supported: one batch to one segment analysis (or an array of
// them), a today+history payload to a trend patch, and a multi-day payload
// to a range summary. Prompt wording is not contractual; the response shapes
// are.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/pkg/httpx"
	"github.com/yungbote/habitlens-backend/internal/types"
	"github.com/yungbote/habitlens-backend/internal/utils"
)

// ErrInvalidResponse marks a provider reply that does not satisfy its
// contract. Callers treat these as validation failures (no retry), distinct
// from transport errors.
var ErrInvalidResponse = errors.New("provider response does not match contract")

// Window bounds one analysis run.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DaySummary is one history entry of a trend request: the last non-empty
// daily suggestion for that day, or "".
type DaySummary struct {
	Date                string `json:"date"`
	SuggestSummaryDaily string `json:"suggest_summary_daily"`
}

// TrendRequest is contract (b): today's folded timeline plus up to seven
// days of history.
type TrendRequest struct {
	Today   types.DailyTimeline `json:"today"`
	History []DaySummary        `json:"history"`
	Window  Window              `json:"window"`
}

// RangeRequest is contract (c): the flattened multi-day payload.
type RangeRequest struct {
	UserID string              `json:"user_id"`
	From   string              `json:"from"`
	To     string              `json:"to"`
	Days   []types.DayDocument `json:"days"`
}

// Client is the analysis-provider client used by the orchestrator. It is
// stateless and safe to share.
type Client interface {
	AnalyzeBatch(ctx context.Context, batch types.Batch) ([]types.SingleSegmentAnalysis, error)
	SummarizeTrend(ctx context.Context, req TrendRequest) (*types.TrendPatch, error)
	SummarizeRange(ctx context.Context, req RangeRequest) (*types.RangeSummary, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	serviceLog := log.With("service", "OpenAIClient")
	apiKey := strings.TrimSpace(utils.GetEnv("OPENAI_API_KEY", "", log))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log), "/")
	model := utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 3, log)

	return &client{
		log:     serviceLog,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries: maxRetries,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}
func (e *httpStatusError) HTTPStatusCode() int { return e.status }

// completeJSON sends one JSON-mode chat completion and returns the raw
// content string of the first choice. Transport-level failures and retryable
// statuses are retried up to maxRetries with jittered delays; Retry-After is
// honored.
func (c *client) completeJSON(ctx context.Context, system string, payload any) (string, error) {
	userJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal provider payload: %w", err)
	}
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: string(userJSON)},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal provider request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(httpx.JitterSleep(time.Duration(attempt) * time.Second)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if httpx.IsRetryableError(err) {
				c.log.Warn("Provider request failed, retrying", "attempt", attempt, "error", err)
				continue
			}
			return "", err
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &httpStatusError{status: resp.StatusCode, body: truncate(string(body), 256)}
			lastErr = statusErr
			if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
				delay := httpx.RetryAfterDuration(resp, time.Duration(attempt+1)*time.Second, 30*time.Second)
				c.log.Warn("Provider returned retryable status", "attempt", attempt, "status", resp.StatusCode, "delay", delay)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return "", statusErr
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("decode provider response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("provider response has no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("provider request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

const (
	batchSystemPrompt = "You analyze one batch of health-monitoring events and answer with a single JSON segment analysis."
	trendSystemPrompt = "You summarize a user's daily timeline against their recent history and answer with a JSON trend summary."
	rangeSystemPrompt = "You summarize a user's multi-day analysis documents and answer with a single JSON range summary."
)

// AnalyzeBatch implements contract (a). The provider may answer with one
// analysis object or an array of them; both are accepted.
func (c *client) AnalyzeBatch(ctx context.Context, batch types.Batch) ([]types.SingleSegmentAnalysis, error) {
	content, err := c.completeJSON(ctx, batchSystemPrompt, batch)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(content)
	var analyses []types.SingleSegmentAnalysis
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &analyses); err != nil {
			return nil, fmt.Errorf("%w: batch reply: %v", ErrInvalidResponse, err)
		}
	} else {
		var single types.SingleSegmentAnalysis
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return nil, fmt.Errorf("%w: batch reply: %v", ErrInvalidResponse, err)
		}
		analyses = []types.SingleSegmentAnalysis{single}
	}
	for _, a := range analyses {
		if a.UserID == "" {
			return nil, fmt.Errorf("%w: batch reply missing user_id", ErrInvalidResponse)
		}
	}
	return analyses, nil
}

// SummarizeTrend implements contract (b). The result is only usable when it
// carries both user_id and suggest_summary_daily.
func (c *client) SummarizeTrend(ctx context.Context, req TrendRequest) (*types.TrendPatch, error) {
	content, err := c.completeJSON(ctx, trendSystemPrompt, req)
	if err != nil {
		return nil, err
	}
	var patch types.TrendPatch
	if err := json.Unmarshal([]byte(content), &patch); err != nil {
		return nil, fmt.Errorf("%w: trend reply: %v", ErrInvalidResponse, err)
	}
	if patch.UserID == "" || patch.SuggestSummaryDaily == "" {
		return nil, fmt.Errorf("%w: trend reply missing user_id or suggest_summary_daily", ErrInvalidResponse)
	}
	return &patch, nil
}

// SummarizeRange implements contract (c).
func (c *client) SummarizeRange(ctx context.Context, req RangeRequest) (*types.RangeSummary, error) {
	content, err := c.completeJSON(ctx, rangeSystemPrompt, req)
	if err != nil {
		return nil, err
	}
	var summary types.RangeSummary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return nil, fmt.Errorf("%w: range reply: %v", ErrInvalidResponse, err)
	}
	return &summary, nil
}
