package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys of published ledger events
const (
	EventCollectionPosted = "ledger.collection.posted"
	EventBorrowingRepaid  = "ledger.borrowing.repaid"
	EventUserDeleted      = "user.deleted"
)

// EventPublisher delivers events after their transaction committed. A failed
// publish never fails the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event interface{}) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// CollectionPostedEvent is published after a collection commits
type CollectionPostedEvent struct {
	CollectionID         uint            `json:"collection_id"`
	LoanID               uint            `json:"loan_id"`
	AgentID              uint            `json:"agent_id"`
	Amount               decimal.Decimal `json:"amount"`
	PrincipalAmount      decimal.Decimal `json:"principal_amount"`
	InterestAmount       decimal.Decimal `json:"interest_amount"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	LoanStatus           string          `json:"loan_status"`
	ReceiptNumber        string          `json:"receipt_number"`
	OccurredAt           time.Time       `json:"occurred_at"`
}

// BorrowingRepaidEvent is published after a borrowing repayment commits
type BorrowingRepaidEvent struct {
	BorrowingID uint            `json:"borrowing_id"`
	Amount      decimal.Decimal `json:"amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      string          `json:"status"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// UserDeletedEvent is published after a user or customer deletion commits
type UserDeletedEvent struct {
	UserID     uint      `json:"user_id"`
	Role       string    `json:"role"`
	DeletedBy  uint      `json:"deleted_by"`
	OccurredAt time.Time `json:"occurred_at"`
}
