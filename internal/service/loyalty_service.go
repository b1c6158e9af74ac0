package service

import (
	"context"

	"newsdesk/internal/models"
	"newsdesk/internal/repository"
)

// LoyaltyService awards engagement points when comments go live. Awards are
// idempotent per (user, action, reference), so the dispatcher may retry them
// freely.
type LoyaltyService struct {
	loyaltyRepo repository.LoyaltyRepository
}

// NewLoyaltyService creates a new LoyaltyService
func NewLoyaltyService(loyaltyRepo repository.LoyaltyRepository) *LoyaltyService {
	return &LoyaltyService{loyaltyRepo: loyaltyRepo}
}

// AwardCommentPoints awards the author of an approved comment. Replies earn
// fewer points than top-level comments.
func (s *LoyaltyService) AwardCommentPoints(ctx context.Context, comment *models.Comment) error {
	action := models.LoyaltyActionComment
	points := models.PointsComment
	if comment.ParentID != nil {
		action = models.LoyaltyActionReply
		points = models.PointsReply
	}
	_, err := s.loyaltyRepo.Award(ctx, &models.LoyaltyPoint{
		UserID:        comment.UserID,
		Action:        action,
		Points:        points,
		ReferenceID:   comment.ID,
		ReferenceType: "comment",
	})
	return err
}

// Balance returns the user's current loyalty total.
func (s *LoyaltyService) Balance(ctx context.Context, userID uint) (int, error) {
	return s.loyaltyRepo.Balance(ctx, userID)
}
