package notifications

import (
	"context"
	"encoding/json"
	"time"

	"newsdesk/internal/middleware"
	"newsdesk/internal/models"
	"newsdesk/internal/repository"
	"newsdesk/internal/service"
)

// defaultTTL bounds how long undelivered notifications linger before the
// janitor removes them.
const defaultTTL = 30 * 24 * time.Hour

// janitorInterval is how often expired notifications are swept.
const janitorInterval = time.Hour

// Fanout persists one notification row per recipient and publishes the
// payload to Redis for live delivery. Persistence is the source of truth;
// a failed publish is logged and the row still stands.
type Fanout struct {
	repo     repository.NotificationRepository
	notifier *Notifier
	ttl      time.Duration
}

// NewFanout creates a Fanout. notifier may wrap a nil Redis client, in which
// case live delivery is skipped.
func NewFanout(repo repository.NotificationRepository, notifier *Notifier) *Fanout {
	return &Fanout{repo: repo, notifier: notifier, ttl: defaultTTL}
}

var _ service.Notifier = (*Fanout)(nil)

// wsEnvelope is the frame pushed over the websocket.
type wsEnvelope struct {
	Type    string               `json:"type"`
	Payload *models.Notification `json:"payload"`
}

// NotifyUser stores a notification for one recipient and publishes it.
func (f *Fanout) NotifyUser(ctx context.Context, userID uint, n service.Notice) error {
	row, err := f.store(ctx, userID, n)
	if err != nil {
		return err
	}
	f.publish(ctx, row)
	return nil
}

// NotifyAdmins stores one notification per admin and publishes each. A
// failure for one admin does not stop the rest.
func (f *Fanout) NotifyAdmins(ctx context.Context, n service.Notice) error {
	adminIDs, err := f.repo.AdminIDs(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, id := range adminIDs {
		row, err := f.store(ctx, id, n)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			middleware.Logger.Error("admin notification store failed",
				"admin_id", id, "type", n.Type, "error", err)
			continue
		}
		f.publish(ctx, row)
	}
	return firstErr
}

func (f *Fanout) store(ctx context.Context, userID uint, n service.Notice) (*models.Notification, error) {
	expires := time.Now().Add(f.ttl)
	row := &models.Notification{
		UserID:    userID,
		SenderID:  n.SenderID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Data:      n.Data,
		ExpiresAt: &expires,
	}
	if err := f.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (f *Fanout) publish(ctx context.Context, row *models.Notification) {
	if f.notifier == nil {
		return
	}
	payload, err := json.Marshal(wsEnvelope{Type: "notification", Payload: row})
	if err != nil {
		middleware.Logger.Error("notification marshal failed", "id", row.ID, "error", err)
		return
	}
	if err := f.notifier.PublishUser(ctx, row.UserID, string(payload)); err != nil {
		// Live delivery is best effort; the row is already stored.
		middleware.Logger.Warn("notification publish failed",
			"user_id", row.UserID, "type", row.Type, "error", err)
	}
}

// StartJanitor sweeps expired notifications until ctx is cancelled.
func (f *Fanout) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := f.repo.DeleteExpired(ctx, time.Now())
				if err != nil {
					middleware.Logger.Error("notification sweep failed", "error", err)
					continue
				}
				if n > 0 {
					middleware.Logger.Info("expired notifications removed", "count", n)
				}
			}
		}
	}()
}
