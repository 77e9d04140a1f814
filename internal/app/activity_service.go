package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"docchat/internal/metrics"
	"docchat/internal/model"
	"docchat/internal/repository"
)

const activityTimeout = 3 * time.Second

// ActivityPublisher hands an activity record to its sink, either the
// database directly or a queue drained by a worker.
type ActivityPublisher interface {
	Publish(ctx context.Context, activity model.Activity) error
}

type directActivityPublisher struct {
	repo *repository.ActivityRepository
}

// NewDirectActivityPublisher writes activity synchronously through repo.
func NewDirectActivityPublisher(repo *repository.ActivityRepository) ActivityPublisher {
	return directActivityPublisher{repo: repo}
}

func (p directActivityPublisher) Publish(ctx context.Context, activity model.Activity) error {
	return p.repo.Create(ctx, &activity)
}

type ActivityService struct {
	repo      *repository.ActivityRepository
	publisher ActivityPublisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

func NewActivityService(
	repo *repository.ActivityRepository,
	publisher ActivityPublisher,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ActivityService {
	if publisher == nil && repo != nil {
		publisher = NewDirectActivityPublisher(repo)
	}
	return &ActivityService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// Record is best-effort: failures are logged and counted, never returned.
// A nil *ActivityService records nothing.
func (s *ActivityService) Record(ctx context.Context, activity model.Activity) {
	if s == nil || s.publisher == nil {
		return
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activityTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, activity); err != nil {
		s.metrics.ObserveActivityDropped()
		s.log.Warn().Err(err).
			Str("workspace", activity.Workspace).
			Str("kind", activity.Kind).
			Msg("record activity failed")
	}
}

func (s *ActivityService) Recent(ctx context.Context, workspace string, limit int) ([]model.Activity, error) {
	if s == nil || s.repo == nil {
		return []model.Activity{}, nil
	}
	return s.repo.ListRecent(ctx, workspace, limit)
}
