package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fincast/internal/amqp"
	"fincast/internal/core"
	"fincast/internal/log"
	"fincast/internal/sheets"
)

// UserLister lists every user the batch job recomputes.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// SnapshotStore persists computed snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s core.Snapshot) error
}

// ResultPublisher announces computed reports to the insight generator.
type ResultPublisher interface {
	PublishForecastComputed(ctx context.Context, msg *amqp.ForecastComputedMessage) error
}

// BatchConfig wires the optional sinks of the batch job. Nil sinks are
// skipped.
type BatchConfig struct {
	Strategy  string
	Store     SnapshotStore
	Publisher ResultPublisher
	Exporter  sheets.ReportExporter
}

// UserFailure records why one user was skipped.
type UserFailure struct {
	UserID string `json:"user_id"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// BatchSummary reports the outcome of one batch run.
type BatchSummary struct {
	Period        string        `json:"period"`
	Users         int           `json:"users"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Failures      []UserFailure `json:"failures,omitempty"`
	Published     int           `json:"published"`
	PublishErrors int           `json:"publish_errors"`
	Exported      int           `json:"exported"`
	SheetsRef     string        `json:"sheets_ref,omitempty"`
	ExportError   string        `json:"export_error,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// BatchRecomputer rebuilds every user's report sequentially. A user's
// failure is logged and recorded and never aborts the run.
type BatchRecomputer struct {
	svc    *AnalysisService
	users  UserLister
	cfg    BatchConfig
	logger *log.Logger
}

func NewBatchRecomputer(svc *AnalysisService, users UserLister, cfg BatchConfig, logger *log.Logger) *BatchRecomputer {
	if logger == nil {
		logger = log.Discard()
	}
	return &BatchRecomputer{
		svc:    svc,
		users:  users,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentBatch),
	}
}

// Run recomputes every user as of asOf. Only a failure to list users or a
// cancelled context ends the run early.
func (b *BatchRecomputer) Run(ctx context.Context, asOf time.Time) (BatchSummary, error) {
	start := time.Now()
	summary := BatchSummary{Period: core.PeriodKey(asOf)}

	ids, err := b.users.ListUserIDs(ctx)
	if err != nil {
		return summary, fmt.Errorf("list users: %w", err)
	}
	summary.Users = len(ids)

	b.logger.InfoContext(ctx, "Batch recompute started",
		log.FieldPeriod, summary.Period,
		"users", len(ids))

	reports := make([]core.Report, 0, len(ids))
	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		report, err := b.recomputeUser(ctx, userID, asOf)
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, UserFailure{
				UserID: userID,
				Stage:  failureStage(err),
				Error:  err.Error(),
			})
			continue
		}
		summary.Succeeded++
		reports = append(reports, report)

		if b.cfg.Publisher != nil {
			if err := b.cfg.Publisher.PublishForecastComputed(ctx, amqp.NewForecastComputedMessage(report)); err != nil {
				summary.PublishErrors++
				b.logger.WarnContext(ctx, "Failed to publish result",
					log.FieldUserID, userID,
					log.FieldStage, log.StagePublish,
					log.FieldError, err)
			} else {
				summary.Published++
			}
		}
	}

	if b.cfg.Exporter != nil && len(reports) > 0 {
		ref, err := b.cfg.Exporter.ExportReports(ctx, reports)
		if err != nil {
			summary.ExportError = err.Error()
			b.logger.WarnContext(ctx, "Failed to export reports",
				log.FieldStage, log.StageExport,
				log.FieldError, err)
		} else {
			summary.Exported = len(reports)
			summary.SheetsRef = ref
		}
	}

	summary.Duration = time.Since(start)
	b.logger.InfoContext(ctx, "Batch recompute completed",
		log.FieldPeriod, summary.Period,
		log.FieldSucceeded, summary.Succeeded,
		log.FieldFailed, summary.Failed,
		log.FieldDuration, summary.Duration.Milliseconds())
	return summary, nil
}

func (b *BatchRecomputer) recomputeUser(ctx context.Context, userID string, asOf time.Time) (core.Report, error) {
	report, err := b.svc.Recompute(ctx, userID, asOf, b.cfg.Strategy)
	if err != nil {
		return core.Report{}, err
	}
	if b.cfg.Store != nil {
		err := runStage(userID, log.StagePersist, func() error {
			return b.cfg.Store.SaveSnapshot(ctx, report.Snapshot)
		})
		if err != nil {
			b.logger.ErrorContext(ctx, "Failed to persist snapshot",
				log.FieldUserID, userID,
				log.FieldStage, log.StagePersist,
				log.FieldError, err)
			return core.Report{}, err
		}
	}
	return report, nil
}

func failureStage(err error) string {
	if errors.Is(err, core.ErrUnknownStrategy) {
		return stageOf(err, log.StageAllocate)
	}
	return stageOf(err, log.StageFetch)
}
