package amqp

import (
	"encoding/json"
	"time"

	"dompet/internal/core"

	"github.com/google/uuid"
)

// Routing keys on the exchange.
const (
	RoutingWindowCreated     = "budget.window_created"
	RoutingRolloverRequested = "budget.rollover_requested"
	RoutingTransaction       = "ledger.transaction"
)

// Transaction event actions.
const (
	ActionRecorded = "recorded"
	ActionEdited   = "edited"
	ActionDeleted  = "deleted"
)

// WindowCreatedMessage announces a budget window created by the rollover.
type WindowCreatedMessage struct {
	BudgetID   uuid.UUID `json:"budget_id"`
	PeriodKind string    `json:"period_kind"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Lines      int       `json:"lines"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewWindowCreatedMessage(b core.PeriodicBudget, lines int) *WindowCreatedMessage {
	return &WindowCreatedMessage{
		BudgetID:   b.ID,
		PeriodKind: string(b.Kind),
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Lines:      lines,
		Timestamp:  time.Now(),
	}
}

// TransactionMessage carries the identity and amount of a changed transaction.
// Consumers fetch anything else from the database.
type TransactionMessage struct {
	Action        string    `json:"action"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Date          time.Time `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionMessage(action string, t core.Transaction) *TransactionMessage {
	return &TransactionMessage{
		Action:        action,
		TransactionID: t.ID,
		Amount:        t.Amount.Amount.String(),
		Currency:      t.Amount.Currency.Code,
		Date:          t.Date,
		Timestamp:     time.Now(),
	}
}

// RolloverRequestMessage asks the worker to run a rollover pass now.
type RolloverRequestMessage struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRolloverRequestMessage(reason string) *RolloverRequestMessage {
	return &RolloverRequestMessage{Reason: reason, RequestedAt: time.Now()}
}

func toJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// RolloverRequestFromJSON decodes a rollover request body.
func RolloverRequestFromJSON(data []byte) (*RolloverRequestMessage, error) {
	var msg RolloverRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
