package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"
	"motwatch-service/pkg/logger"
	"motwatch-service/pkg/metrics"
)

// CheckScheduler walks every enabled vehicle on a fixed interval, fetches
// its history, classifies the result against the stored baseline and hands
// detected updates to the dispatcher. Vehicles are processed in ordered
// batches with a fixed delay between batches to stay under the upstream
// rate limit.
type CheckScheduler struct {
	vehicleRepo repository.VehicleRepository
	historyRepo repository.HistoryRepository
	dispatcher  *NotificationDispatcher
	logger      logger.Logger
	metrics     *metrics.Metrics

	interval   time.Duration
	batchSize  int
	batchDelay time.Duration

	running atomic.Bool
}

// RunSummary is the sole externally observable result of one run.
type RunSummary struct {
	Total   int
	Checked int
	Updated int
	Errors  int
}

// NewCheckScheduler creates a new scheduler
func NewCheckScheduler(
	vehicleRepo repository.VehicleRepository,
	historyRepo repository.HistoryRepository,
	dispatcher *NotificationDispatcher,
	logger logger.Logger,
	metrics *metrics.Metrics,
	interval time.Duration,
	batchSize int,
	batchDelay time.Duration,
) *CheckScheduler {
	return &CheckScheduler{
		vehicleRepo: vehicleRepo,
		historyRepo: historyRepo,
		dispatcher:  dispatcher,
		logger:      logger,
		metrics:     metrics,
		interval:    interval,
		batchSize:   batchSize,
		batchDelay:  batchDelay,
	}
}

// StartPolling runs the scheduler until the context is cancelled.
func (s *CheckScheduler) StartPolling(ctx context.Context) {
	s.logger.Info("Check scheduler started",
		"interval", s.interval.String(),
		"batchSize", s.batchSize,
		"batchDelay", s.batchDelay.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Check scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Check run failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single run. A run never overlaps itself: when the
// previous run is still in progress this one is skipped and returns a nil
// summary. Per-item failures are counted, logged and never abort the run.
func (s *CheckScheduler) RunOnce(ctx context.Context) (*RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous check run still in progress, skipping")
		return nil, nil
	}
	defer s.running.Store(false)

	runID := uuid.NewString()
	log := s.logger.With("runId", runID)
	started := time.Now()

	vehicles, err := s.vehicleRepo.ListEnabled(ctx)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("list_enabled").Inc()
		return nil, fmt.Errorf("failed to list enabled vehicles: %w", err)
	}

	summary := &RunSummary{Total: len(vehicles)}
	log.Info("Check run started", "total", summary.Total)

	for offset := 0; offset < len(vehicles); offset += s.batchSize {
		if offset > 0 {
			select {
			case <-ctx.Done():
				log.Warn("Check run interrupted", "checked", summary.Checked)
				return summary, ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}

		end := offset + s.batchSize
		if end > len(vehicles) {
			end = len(vehicles)
		}

		for _, vehicle := range vehicles[offset:end] {
			updated, err := s.checkVehicle(ctx, log, vehicle)
			summary.Checked++
			if err != nil {
				summary.Errors++
			}
			if updated {
				summary.Updated++
			}
		}
	}

	s.metrics.CheckDuration.Observe(time.Since(started).Seconds())
	log.Info("Check run finished",
		"total", summary.Total,
		"checked", summary.Checked,
		"updated", summary.Updated,
		"errors", summary.Errors,
		"elapsed", time.Since(started).String())

	return summary, nil
}

// checkVehicle processes one vehicle. lastCheckedAt advances whether the
// fetch succeeded or not.
func (s *CheckScheduler) checkVehicle(ctx context.Context, log logger.Logger, vehicle *entity.TrackedVehicle) (bool, error) {
	now := time.Now()

	record, err := s.historyRepo.FetchHistory(ctx, vehicle.Registration)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("fetch_history").Inc()
		log.Warn("History fetch failed",
			"registration", vehicle.Registration,
			"kind", entity.ErrorKind(err),
			"error", err)

		outcome := &entity.CheckOutcome{CheckedAt: now, CheckError: err.Error()}
		if recErr := s.vehicleRepo.RecordCheckOutcome(ctx, vehicle.Registration, outcome); recErr != nil {
			log.Error("Failed to record check failure",
				"registration", vehicle.Registration,
				"error", recErr)
		}
		return false, err
	}

	s.metrics.VehiclesChecked.Inc()

	var latestDate *time.Time
	latest := record.LatestTest()
	if latest != nil {
		latestDate = &latest.CompletedDate
	}

	classification := Detect(latestDate, vehicle.BaselineTestDate)

	outcome := &entity.CheckOutcome{CheckedAt: now}
	if classification != DetectNoChange {
		outcome.NewBaseline = latestDate
		outcome.Update = &entity.UpdateDetails{
			PreviousDate: vehicle.BaselineTestDate,
			NewDate:      latest.CompletedDate,
			TestResult:   latest.TestResult,
			ExpiryDate:   latest.ExpiryDate,
			Defects:      latest.Defects,
			Vehicle:      record.Descriptor(),
		}
	}

	if err := s.vehicleRepo.RecordCheckOutcome(ctx, vehicle.Registration, outcome); err != nil {
		s.metrics.ErrorsCount.WithLabelValues("record_outcome").Inc()
		log.Error("Failed to record check outcome",
			"registration", vehicle.Registration,
			"error", err)
		return false, err
	}

	if outcome.Update == nil {
		return false, nil
	}

	s.metrics.UpdatesDetected.Inc()
	log.Info("New test detected",
		"registration", vehicle.Registration,
		"classification", classification,
		"newDate", latest.CompletedDate.Format(time.RFC3339))

	result, err := s.dispatcher.Dispatch(ctx, vehicle.Registration, outcome.Update)
	if err != nil {
		// The update is recorded and claimable; only delivery failed
		s.metrics.ErrorsCount.WithLabelValues("dispatch").Inc()
		log.Error("Dispatch failed",
			"registration", vehicle.Registration,
			"error", err)
		return true, nil
	}

	s.metrics.NotificationsSent.Add(float64(result.Sent))
	log.Info("Dispatch finished",
		"registration", vehicle.Registration,
		"sent", result.Sent,
		"failed", result.Failed)

	return true, nil
}
