// Package classifier calls the external AI moderation service and maps its
// risk scores onto comment statuses.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newsdesk/internal/middleware"
	"newsdesk/internal/models"
	"newsdesk/internal/observability"
)

// Result is the classifier's verdict for one piece of content.
type Result struct {
	Category        string               `json:"category"`
	RiskScore       float64              `json:"risk_score"`
	Confidence      float64              `json:"confidence"`
	Reasons         []string             `json:"reasons"`
	SuggestedStatus models.CommentStatus `json:"suggested_status"`
}

// Client classifies comment content. Implementations must never block longer
// than their configured timeout and must return a usable fallback result
// alongside any error.
type Client interface {
	Classify(ctx context.Context, content string) (*Result, error)
}

// Thresholds map a risk score onto a suggested status.
type Thresholds struct {
	Approve float64 // risk < Approve  => approved
	Reject  float64 // risk > Reject   => rejected
}

// StatusFor returns the suggested status for a risk score. Scores in the
// middle band go to human review.
func (t Thresholds) StatusFor(risk float64) models.CommentStatus {
	switch {
	case risk < t.Approve:
		return models.CommentStatusApproved
	case risk > t.Reject:
		return models.CommentStatusRejected
	default:
		return models.CommentStatusPending
	}
}

// HTTPClient calls a remote moderation model over HTTP.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	thresholds Thresholds
	httpClient *http.Client
}

// NewHTTPClient returns a classifier client for the given endpoint. A zero
// timeout defaults to 5 seconds.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration, thresholds Thresholds) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		timeout:    timeout,
		thresholds: thresholds,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Content string `json:"content"`
}

type classifyResponse struct {
	Category   string   `json:"category"`
	RiskScore  float64  `json:"risk_score"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// FallbackResult is returned when the classifier is unreachable, slow, or
// misbehaving. Unscorable content always lands in the review queue.
func FallbackResult() *Result {
	return &Result{
		Category:        "ai_error",
		RiskScore:       0.5,
		Confidence:      0,
		Reasons:         []string{"classifier unavailable"},
		SuggestedStatus: models.CommentStatusPending,
	}
}

// Classify sends content to the moderation endpoint. On any failure it returns
// the fallback result together with the error so callers can proceed while
// still logging the cause.
func (c *HTTPClient) Classify(ctx context.Context, content string) (*Result, error) {
	start := time.Now()
	defer observability.ObserveClassifierCall(start)

	ctx, span := observability.TraceClassifierCall(ctx, c.endpoint)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Content: content})
	if err != nil {
		observability.RecordClassifierFailure("marshal")
		return FallbackResult(), fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		observability.RecordClassifierFailure("request")
		return FallbackResult(), fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordClassifierFailure("transport")
		span.RecordError(err)
		middleware.Logger.WarnContext(ctx, "classifier call failed, defaulting to pending",
			slog.String("error", err.Error()))
		return FallbackResult(), fmt.Errorf("classifier call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordClassifierFailure(fmt.Sprintf("http_%d", resp.StatusCode))
		middleware.Logger.WarnContext(ctx, "classifier returned non-200, defaulting to pending",
			slog.Int("status", resp.StatusCode))
		return FallbackResult(), fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		observability.RecordClassifierFailure("decode")
		return FallbackResult(), fmt.Errorf("failed to decode classifier response: %w", err)
	}

	if parsed.RiskScore < 0 || parsed.RiskScore > 1 {
		observability.RecordClassifierFailure("score_range")
		return FallbackResult(), fmt.Errorf("classifier returned out-of-range risk score %f", parsed.RiskScore)
	}

	return &Result{
		Category:        parsed.Category,
		RiskScore:       parsed.RiskScore,
		Confidence:      parsed.Confidence,
		Reasons:         parsed.Reasons,
		SuggestedStatus: c.thresholds.StatusFor(parsed.RiskScore),
	}, nil
}

// Disabled is a classifier used when no moderation endpoint is configured.
// Every comment goes to human review.
type Disabled struct{}

// Classify always suggests pending review.
func (Disabled) Classify(_ context.Context, _ string) (*Result, error) {
	return &Result{
		Category:        "unclassified",
		RiskScore:       0.5,
		Confidence:      0,
		SuggestedStatus: models.CommentStatusPending,
	}, nil
}
