package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quizquest/internal/domain"
)

// DefaultRecentLimit is how many recent attempts the dashboard lists.
const DefaultRecentLimit = 5

// HistoryService builds dashboards from a user's stored attempts.
type HistoryService struct {
	attempts    AttemptStore
	log         *zap.Logger
	now         func() time.Time
	recentLimit int
}

func NewHistoryService(attempts AttemptStore, log *zap.Logger, recentLimit int) *HistoryService {
	if log == nil {
		log = zap.NewNop()
	}
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &HistoryService{attempts: attempts, log: log, now: time.Now, recentLimit: recentLimit}
}

// Dashboard returns stats and recent summaries for userID. A missing user or
// an unavailable store yields an empty dashboard rather than an error.
func (h *HistoryService) Dashboard(ctx context.Context, userID string) domain.Dashboard {
	dash, err := h.fetch(ctx, userID)
	if err != nil {
		return emptyDashboard(userID)
	}
	return dash
}

// fetch reports a missing user and store failures; the returned dashboard
// is always usable.
func (h *HistoryService) fetch(ctx context.Context, userID string) (domain.Dashboard, error) {
	if userID == "" {
		return emptyDashboard(""), domain.ErrMissingUser
	}
	records, err := h.attempts.QueryByUser(ctx, userID, 0)
	if err != nil {
		if ctx.Err() == nil {
			h.log.Warn("load attempt history failed", zap.String("user_id", userID), zap.Error(err))
		}
		return emptyDashboard(userID), err
	}
	recent := records
	if len(recent) > h.recentLimit {
		recent = recent[:h.recentLimit]
	}
	return domain.Dashboard{
		UserID: userID,
		Stats:  ComputeStats(records),
		Recent: ToSummaries(recent, h.now()),
	}, nil
}

func emptyDashboard(userID string) domain.Dashboard {
	return domain.Dashboard{UserID: userID, Recent: []domain.AttemptSummary{}}
}
