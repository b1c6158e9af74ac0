// Package service implements the moderation, appeal, comment, and loyalty
// business rules on top of the repository layer.
package service

import (
	"context"

	"newsdesk/internal/sideeffects"
)

// Notice is the payload handed to the notification fan-out.
type Notice struct {
	SenderID *uint
	Type     string
	Title    string
	Message  string
	Link     string
	Data     map[string]any
}

// Notifier fans a notice out to one recipient or to all admins. Implemented
// by the notifications package; stubbed in tests.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, n Notice) error
	NotifyAdmins(ctx context.Context, n Notice) error
}

// Dispatcher enqueues post-commit side effects.
type Dispatcher interface {
	Enqueue(t sideeffects.Task) bool
}

// Authorizer reports whether the user carries the moderator capability.
type Authorizer func(ctx context.Context, userID uint) (bool, error)
