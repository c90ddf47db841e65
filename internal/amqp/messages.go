package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"fincast/internal/core"
)

var messageValidate = validator.New(validator.WithRequiredStructEnabled())

// TransactionsIngestedMessage announces that new transactions were stored
// for a user. The worker only needs the user id; it reloads everything else
// from the database.
type TransactionsIngestedMessage struct {
	MessageID        string    `json:"message_id"`
	UserID           string    `json:"user_id" validate:"required"`
	TransactionCount int       `json:"transaction_count" validate:"gte=0"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewTransactionsIngestedMessage creates an ingestion event with a fresh id
func NewTransactionsIngestedMessage(userID string, count int) *TransactionsIngestedMessage {
	return &TransactionsIngestedMessage{
		MessageID:        uuid.NewString(),
		UserID:           userID,
		TransactionCount: count,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsIngestedMessageFromJSON decodes and validates an ingestion event
func TransactionsIngestedMessageFromJSON(data []byte) (*TransactionsIngestedMessage, error) {
	var msg TransactionsIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := messageValidate.Struct(msg); err != nil {
		return nil, fmt.Errorf("invalid ingestion message: %w", err)
	}
	return &msg, nil
}

// ForecastComputedMessage carries a fresh shock assessment and the savings
// opportunities of a user to the insight generator.
type ForecastComputedMessage struct {
	MessageID     string                     `json:"message_id"`
	UserID        string                     `json:"user_id"`
	Period        string                     `json:"period"`
	Shock         core.ShockSimulationResult `json:"shock"`
	Opportunities []core.SavingsOpportunity  `json:"savings_opportunities"`
	ComputedAt    time.Time                  `json:"computed_at"`
	Timestamp     time.Time                  `json:"timestamp"`
}

// NewForecastComputedMessage builds the result event of a report.
func NewForecastComputedMessage(r core.Report) *ForecastComputedMessage {
	opps := r.Opportunities
	if opps == nil {
		opps = []core.SavingsOpportunity{}
	}
	return &ForecastComputedMessage{
		MessageID:     uuid.NewString(),
		UserID:        r.UserID,
		Period:        r.Period,
		Shock:         r.Shock,
		Opportunities: opps,
		ComputedAt:    r.ComputedAt,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ForecastComputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ForecastComputedMessageFromJSON decodes a result event
func ForecastComputedMessageFromJSON(data []byte) (*ForecastComputedMessage, error) {
	var msg ForecastComputedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
