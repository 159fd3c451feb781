package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"teacherhr/internal/platform/logger"
)

const (
	JobRecalculateYear    = "appraisal_recalculate_year"
	JobComplianceSnapshot = "cpe_compliance_snapshot"
)

var ErrUnknownJob = errors.New("unknown job type")

type Options struct {
	// ComplianceCron is a standard five-field cron spec; empty disables the schedule.
	ComplianceCron string
	Concurrency    int
	Now            func() time.Time
}

type Service struct {
	runs       RunStore
	appraisals Recalculator
	compliance ComplianceReporter
	opts       Options
	log        *logger.Logger
	queue      chan job
	scheduler  *cron.Cron
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(runs RunStore, appraisals Recalculator, compliance ComplianceReporter, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		runs:       runs,
		appraisals: appraisals,
		compliance: compliance,
		opts:       opts,
		log:        log.With("service", "jobs"),
		queue:      make(chan job, 128),
	}
}

// Start runs the worker and the cron scheduler until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	go s.worker(ctx)
	if s.opts.ComplianceCron == "" {
		return nil
	}

	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.opts.ComplianceCron, func() {
		year := s.opts.Now().Year()
		s.Enqueue(JobComplianceSnapshot, func(ctx context.Context) (any, error) {
			return s.complianceSnapshot(ctx, year)
		})
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", JobComplianceSnapshot, err)
	}
	s.scheduler.Start()
	go func() {
		<-ctx.Done()
		<-s.scheduler.Stop().Done()
	}()
	return nil
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		s.log.Warn("job queue full", "jobType", jobType)
	}
}

// Trigger runs a named job synchronously and records the run.
func (s *Service) Trigger(ctx context.Context, jobType string, year int) (any, error) {
	if year == 0 {
		year = s.opts.Now().Year()
	}
	switch jobType {
	case JobRecalculateYear:
		return s.runJob(ctx, job{Type: jobType, Run: func(ctx context.Context) (any, error) {
			return s.recalculateYear(ctx, year)
		}})
	case JobComplianceSnapshot:
		return s.runJob(ctx, job{Type: jobType, Run: func(ctx context.Context) (any, error) {
			return s.complianceSnapshot(ctx, year)
		}})
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
}

func (s *Service) Runs(ctx context.Context, jobType string, limit int) ([]Run, error) {
	return s.runs.List(ctx, jobType, limit)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.log.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID, err := s.runs.Start(ctx, j.Type)
	if err != nil {
		s.log.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	started := s.opts.Now()
	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error(), "partial": details}
	}
	s.log.Info("job finished", "jobType", j.Type, "status", status, "duration", s.opts.Now().Sub(started))

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		s.log.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.runs.Finish(ctx, runID, status, detailsJSON); updErr != nil {
			s.log.Warn("job run update failed", "runId", runID, "err", updErr)
		}
	}
	return details, err
}
