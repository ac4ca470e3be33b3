package api

import (
	"context"
	"fmt"

	"keyart/internal/logging"
	"keyart/internal/queue"
	"keyart/internal/services"
	"keyart/internal/workflow"
)

// ForceRefresh queues a provider fetch for one entity. Urgent requests come
// from a waiting user and may dip into the limiter's reserved headroom.
func (s *Service) ForceRefresh(ctx context.Context, entityType string, entityID int64, assetTypes []string, autoSelect, urgent bool) (JobView, error) {
	key, err := parseEntity(entityType, entityID)
	if err != nil {
		return JobView{}, err
	}
	for _, name := range assetTypes {
		if _, err := parseAsset(name); err != nil {
			return JobView{}, err
		}
	}
	entity, err := s.catalog.GetEntity(ctx, key)
	if err != nil {
		return JobView{}, services.Wrap(services.ErrInfrastructure, "api", "load_entity", "", err)
	}
	if entity == nil {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "load_entity",
			fmt.Sprintf("entity %s/%d not in catalog", key.Type, key.ID), nil)
	}

	priority := queue.PriorityBackground
	if urgent {
		priority = queue.PriorityUserEnrich
	}
	job, err := s.queue.Enqueue(ctx, queue.NewJob{
		Type:     queue.TypeRefresh,
		Priority: priority,
		Payload: workflow.RefreshPayload{
			EntityType: entityType,
			EntityID:   entityID,
			AssetTypes: assetTypes,
			Select:     autoSelect,
		},
		Cancellable: true,
		DedupeKey:   fmt.Sprintf("refresh:%s:%d", key.Type, key.ID),
	})
	if err != nil {
		return JobView{}, err
	}
	s.logger.Info("refresh queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldEntity, key.ID))
	return FromJob(job), nil
}

// RunSelection queues auto-selection over already-stored candidates.
func (s *Service) RunSelection(ctx context.Context, entityType string, entityID int64, assetTypes []string) (JobView, error) {
	key, err := parseEntity(entityType, entityID)
	if err != nil {
		return JobView{}, err
	}
	for _, name := range assetTypes {
		if _, err := parseAsset(name); err != nil {
			return JobView{}, err
		}
	}
	job, err := s.queue.Enqueue(ctx, queue.NewJob{
		Type:     queue.TypeSelect,
		Priority: queue.PriorityUserSync,
		Payload: workflow.SelectPayload{
			EntityType: entityType,
			EntityID:   entityID,
			AssetTypes: assetTypes,
		},
		DedupeKey: fmt.Sprintf("select:%s:%d", key.Type, key.ID),
	})
	if err != nil {
		return JobView{}, err
	}
	return FromJob(job), nil
}

// TriggerSweep queues a full catalog sweep outside its schedule.
func (s *Service) TriggerSweep(ctx context.Context) (JobView, error) {
	job, err := s.queue.Enqueue(ctx, queue.NewJob{
		Type:        queue.TypeSweep,
		Priority:    queue.PriorityBulkScan,
		Cancellable: true,
		DedupeKey:   "scheduled:sweep",
	})
	if err != nil {
		return JobView{}, err
	}
	return FromJob(job), nil
}

// TriggerGC queues a garbage collection pass outside its schedule.
func (s *Service) TriggerGC(ctx context.Context) (JobView, error) {
	job, err := s.queue.Enqueue(ctx, queue.NewJob{
		Type:      queue.TypeGC,
		Priority:  queue.PriorityGC,
		DedupeKey: "scheduled:gc",
	})
	if err != nil {
		return JobView{}, err
	}
	return FromJob(job), nil
}

// Cancel requests cancellation of one job and reports the resulting status.
func (s *Service) Cancel(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		return "", services.Wrap(services.ErrValidation, "api", "cancel",
			fmt.Sprintf("invalid job id %d", id), nil)
	}
	status, err := s.queue.RequestCancel(ctx, id)
	if err != nil {
		return "", err
	}
	s.logger.Info("cancellation requested",
		logging.Int64(logging.FieldJobID, id),
		logging.String("status", string(status)))
	return string(status), nil
}

// Job fetches one job, or nil when it does not exist.
func (s *Service) Job(ctx context.Context, id int64) (*JobView, error) {
	job, err := s.queue.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	view := FromJob(job)
	return &view, nil
}

// Jobs lists jobs filtered by status names; unknown names are ignored.
func (s *Service) Jobs(ctx context.Context, statusNames []string) ([]JobView, error) {
	statuses := make([]queue.Status, 0, len(statusNames))
	for _, name := range statusNames {
		if status, ok := queue.ParseStatus(name); ok {
			statuses = append(statuses, status)
		}
	}
	jobs, err := s.queue.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// QueueStats returns aggregated job counts keyed by status.
func (s *Service) QueueStats(ctx context.Context) (map[string]int, error) {
	summary, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return QueueStatsMap(summary), nil
}

// RetryFailed returns failed jobs to the pending state.
func (s *Service) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	updated, err := s.queue.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	s.logger.Info("failed jobs retried", logging.Int64("updated_count", updated))
	return updated, nil
}

// ClearCompleted removes completed jobs.
func (s *Service) ClearCompleted(ctx context.Context) (int64, error) {
	return s.queue.ClearCompleted(ctx)
}

// ClearFailed removes failed jobs.
func (s *Service) ClearFailed(ctx context.Context) (int64, error) {
	return s.queue.ClearFailed(ctx)
}

// ClearCancelled removes cancelled jobs.
func (s *Service) ClearCancelled(ctx context.Context) (int64, error) {
	return s.queue.ClearCancelled(ctx)
}

// TestNotification sends a test push regardless of event toggles.
func (s *Service) TestNotification(ctx context.Context) error {
	return s.notifier.TestNotification(ctx)
}
