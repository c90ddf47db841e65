// Package worker holds the long-running jobs of the worker process: the
// ingestion event handler and the scheduled batch recompute.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fincast/internal/amqp"
	"fincast/internal/core"
	"fincast/internal/log"
	"fincast/internal/services"
)

// Analyzer is the slice of the analysis service the ingestion worker uses.
type Analyzer interface {
	Invalidate(ctx context.Context, userID string) int
	Recompute(ctx context.Context, userID string, asOf time.Time, strategy string) (core.Report, error)
}

// IngestConfig tunes the ingestion worker.
type IngestConfig struct {
	// Recompute rebuilds and publishes the report after invalidating (default: false)
	Recompute bool

	// Strategy is the allocation strategy of recomputed reports, empty for the default
	Strategy string
}

// IngestWorker reacts to new transactions: it drops the user's cached
// forecasts and optionally recomputes, stores and publishes a fresh report.
type IngestWorker struct {
	analyzer  Analyzer
	store     services.SnapshotStore
	publisher services.ResultPublisher
	cfg       IngestConfig
	now       func() time.Time
	logger    *log.Logger
}

func NewIngestWorker(analyzer Analyzer, store services.SnapshotStore, publisher services.ResultPublisher, cfg IngestConfig, logger *log.Logger) *IngestWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &IngestWorker{
		analyzer:  analyzer,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleIngested processes one ingestion event. Errors that retrying cannot
// fix are logged and swallowed so the message is not requeued forever.
func (w *IngestWorker) HandleIngested(ctx context.Context, msg *amqp.TransactionsIngestedMessage) error {
	dropped := w.analyzer.Invalidate(ctx, msg.UserID)
	w.logger.InfoContext(ctx, "Transactions ingested",
		log.FieldMessageID, msg.MessageID,
		log.FieldUserID, msg.UserID,
		"transactions", msg.TransactionCount,
		"invalidated", dropped)

	if !w.cfg.Recompute {
		return nil
	}

	report, err := w.analyzer.Recompute(ctx, msg.UserID, w.now(), w.cfg.Strategy)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrInvalidContext),
		errors.Is(err, core.ErrUnknownStrategy),
		errors.Is(err, core.ErrComputationFailed):
		w.logger.WarnContext(ctx, "Skipping recompute",
			log.FieldMessageID, msg.MessageID,
			log.FieldUserID, msg.UserID,
			log.FieldError, err)
		return nil
	default:
		return fmt.Errorf("recompute %s: %w", msg.UserID, err)
	}

	if w.store != nil {
		if err := w.store.SaveSnapshot(ctx, report.Snapshot); err != nil {
			return fmt.Errorf("save snapshot %s: %w", msg.UserID, err)
		}
	}
	if w.publisher != nil {
		if err := w.publisher.PublishForecastComputed(ctx, amqp.NewForecastComputedMessage(report)); err != nil {
			// the snapshot is stored; the nightly batch publishes again
			w.logger.WarnContext(ctx, "Failed to publish result",
				log.FieldUserID, msg.UserID,
				log.FieldStage, log.StagePublish,
				log.FieldError, err)
		}
	}
	return nil
}
