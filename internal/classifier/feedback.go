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
)

// TrainingReporter forwards human moderation decisions to the model training
// endpoint so the classifier can learn from corrections.
type TrainingReporter interface {
	Report(ctx context.Context, decision *models.ModerationDecision) error
}

// HTTPTrainingReporter posts decisions to a training ingest endpoint.
type HTTPTrainingReporter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPTrainingReporter returns a reporter for the given endpoint.
func NewHTTPTrainingReporter(endpoint, apiKey string, timeout time.Duration) *HTTPTrainingReporter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTrainingReporter{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type trainingPayload struct {
	Content       string  `json:"content"`
	AIPrediction  string  `json:"ai_prediction"`
	AICategory    string  `json:"ai_category"`
	AIConfidence  float64 `json:"ai_confidence"`
	HumanDecision string  `json:"human_decision"`
	FeedbackType  string  `json:"feedback_type"`
}

// Report sends one decision to the training endpoint. Failures are logged and
// returned; the decision row already persisted locally is the source of truth,
// so a lost report is recoverable by a later batch export.
func (r *HTTPTrainingReporter) Report(ctx context.Context, decision *models.ModerationDecision) error {
	body, err := json.Marshal(trainingPayload{
		Content:       decision.Content,
		AIPrediction:  string(decision.AIPrediction),
		AICategory:    decision.AICategory,
		AIConfidence:  decision.AIConfidence,
		HumanDecision: string(decision.HumanDecision),
		FeedbackType:  decision.FeedbackType,
	})
	if err != nil {
		return fmt.Errorf("failed to encode training payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build training request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "training report failed",
			slog.Uint64("decision_id", uint64(decision.ID)),
			slog.String("error", err.Error()))
		return fmt.Errorf("training report failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("training endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopTrainingReporter discards reports. Used when no training endpoint is
// configured.
type NoopTrainingReporter struct{}

// Report does nothing.
func (NoopTrainingReporter) Report(_ context.Context, _ *models.ModerationDecision) error {
	return nil
}
