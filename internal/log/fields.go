package log

import "time"

// Common field names for structured logging
const (
	FieldComponent       = "component"
	FieldUserID          = "user_id"
	FieldStage           = "stage"
	FieldPeriod          = "period"
	FieldStrategy        = "strategy"
	FieldSimulationCount = "simulation_count"
	FieldSeed            = "seed"
	FieldDuration        = "duration_ms"
	FieldError           = "error"
	FieldOperation       = "operation"
	FieldMessageID       = "message_id"
	FieldCacheHit        = "cache_hit"
	FieldSucceeded       = "succeeded"
	FieldFailed          = "failed"
	FieldSheetsRef       = "sheets_ref"
	FieldRequestID       = "request_id"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentEngine     = "engine"
	ComponentForecast   = "forecast"
	ComponentSimulation = "simulation"
	ComponentAllocation = "allocation"
	ComponentCache      = "cache"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentBatch      = "batch"
	ComponentSheets     = "sheets"
	ComponentCLI        = "cli"
	ComponentHTTP       = "http"
)

// Stages of the analysis pipeline, used as the stage field.
const (
	StageFetch    = "fetch"
	StageValidate = "validate"
	StageOutlier  = "outlier"
	StageForecast = "forecast"
	StageBudget   = "budget"
	StageSimulate = "simulate"
	StageAllocate = "allocate"
	StagePersist  = "persist"
	StagePublish  = "publish"
	StageExport   = "export"
)

// Operations defines standard operation names
const (
	OpRead       = "read"
	OpList       = "list"
	OpAppend     = "append"
	OpSave       = "save"
	OpInvalidate = "invalidate"
	OpRecompute  = "recompute"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpMigrate    = "migrate"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithUser adds the user id field
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithStage adds the pipeline stage field
func (f LogFields) WithStage(stage string) LogFields {
	f[FieldStage] = stage
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithDuration adds the elapsed time since start in milliseconds
func (f LogFields) WithDuration(start time.Time) LogFields {
	f[FieldDuration] = time.Since(start).Milliseconds()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
