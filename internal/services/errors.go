package services

import (
	"context"
	"errors"
	"fmt"

	"fincast/internal/core"
)

// StageError reports an unexpected failure inside one pipeline stage. It
// matches core.ErrComputationFailed with errors.Is.
type StageError struct {
	UserID string
	Stage  string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("computation failed for user %s at stage %s: %v", e.UserID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{core.ErrComputationFailed, e.Err}
}

// passThrough reports errors that keep their own kind at the boundary.
func passThrough(err error) bool {
	var stageErr *StageError
	return errors.As(err, &stageErr) ||
		errors.Is(err, core.ErrUserNotFound) ||
		errors.Is(err, core.ErrInvalidContext) ||
		errors.Is(err, core.ErrUnknownStrategy) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// runStage calls fn and converts its failures, panics included, into a
// StageError unless they are one of the pass-through kinds.
func runStage(userID, stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{UserID: userID, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := fn(); err != nil {
		if passThrough(err) {
			return err
		}
		return &StageError{UserID: userID, Stage: stage, Err: err}
	}
	return nil
}

// stageOf names the stage of a failure for logging.
func stageOf(err error, fallback string) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return fallback
}
