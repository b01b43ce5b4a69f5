package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntityType names the kind of record an audit entry is about
type EntityType string

const (
	EntityUser       EntityType = "USER"
	EntityCustomer   EntityType = "CUSTOMER"
	EntityLoan       EntityType = "LOAN"
	EntityCollection EntityType = "COLLECTION"
	EntityBorrowing  EntityType = "BORROWING"
)

// AuditAction tags what happened
type AuditAction string

const (
	AuditGrantsUpdate   AuditAction = "GRANTS_UPDATE"
	AuditRoleChange     AuditAction = "ROLE_CHANGE"
	AuditUserDelete     AuditAction = "USER_DELETE"
	AuditCustomerDelete AuditAction = "CUSTOMER_DELETE"
	AuditCollectionPost AuditAction = "COLLECTION_POST"
	AuditBorrowingRepay AuditAction = "BORROWING_REPAY"
)

// SnapshotKind tags the concrete type behind a Snapshot
type SnapshotKind string

const (
	SnapshotUser      SnapshotKind = "user"
	SnapshotGrants    SnapshotKind = "grants"
	SnapshotCustomer  SnapshotKind = "customer"
	SnapshotLoan      SnapshotKind = "loan"
	SnapshotPosting   SnapshotKind = "posting"
	SnapshotBorrowing SnapshotKind = "borrowing"
)

// Snapshot is the typed state of an entity captured by the audit log
type Snapshot interface {
	SnapshotKind() SnapshotKind
}

type UserSnapshot struct {
	ID       uint          `json:"id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Role     Role          `json:"role"`
	IsActive bool          `json:"is_active"`
	Grants   ManagerGrants `json:"grants"`
}

// GrantsSnapshot records a manager's grants. Role is the account's role at
// that moment; grants are always empty outside MANAGER.
type GrantsSnapshot struct {
	UserID uint          `json:"user_id"`
	Role   Role          `json:"role,omitempty"`
	Grants ManagerGrants `json:"grants"`
}

type CustomerSnapshot struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	KYCStatus KYCStatus `json:"kyc_status"`
}

type LoanSnapshot struct {
	ID                   uint            `json:"id"`
	CustomerID           uint            `json:"customer_id"`
	Principal            decimal.Decimal `json:"principal"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	Status               LoanStatus      `json:"status"`
}

type CollectionSnapshot struct {
	ID              uint            `json:"id"`
	LoanID          uint            `json:"loan_id"`
	AgentID         uint            `json:"agent_id"`
	Amount          decimal.Decimal `json:"amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	ReceiptNumber   string          `json:"receipt_number"`
	CollectionDate  time.Time       `json:"collection_date"`
}

// PostingSnapshot is the state after a collection was posted
type PostingSnapshot struct {
	Loan       LoanSnapshot       `json:"loan"`
	Collection CollectionSnapshot `json:"collection"`
}

type BorrowingSnapshot struct {
	ID          uint            `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
	TotalRepaid decimal.Decimal `json:"total_repaid"`
	Status      BorrowingStatus `json:"status"`
}

func (UserSnapshot) SnapshotKind() SnapshotKind      { return SnapshotUser }
func (GrantsSnapshot) SnapshotKind() SnapshotKind    { return SnapshotGrants }
func (CustomerSnapshot) SnapshotKind() SnapshotKind  { return SnapshotCustomer }
func (LoanSnapshot) SnapshotKind() SnapshotKind      { return SnapshotLoan }
func (PostingSnapshot) SnapshotKind() SnapshotKind   { return SnapshotPosting }
func (BorrowingSnapshot) SnapshotKind() SnapshotKind { return SnapshotBorrowing }

type snapshotEnvelope struct {
	Kind SnapshotKind    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeSnapshot serializes s with its kind tag. A nil snapshot encodes to nil.
func EncodeSnapshot(s Snapshot) (*string, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(snapshotEnvelope{Kind: s.SnapshotKind(), Data: data})
	if err != nil {
		return nil, err
	}
	out := string(raw)
	return &out, nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot
func DecodeSnapshot(raw *string) (Snapshot, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var env snapshotEnvelope
	if err := json.Unmarshal([]byte(*raw), &env); err != nil {
		return nil, err
	}

	var s Snapshot
	var err error
	switch env.Kind {
	case SnapshotUser:
		var v UserSnapshot
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SnapshotGrants:
		var v GrantsSnapshot
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SnapshotCustomer:
		var v CustomerSnapshot
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SnapshotLoan:
		var v LoanSnapshot
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SnapshotPosting:
		var v PostingSnapshot
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SnapshotBorrowing:
		var v BorrowingSnapshot
		err = json.Unmarshal(env.Data, &v)
		s = v
	default:
		return nil, fmt.Errorf("unknown snapshot kind %q", env.Kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AuditEntry is one immutable record of a sensitive mutation
type AuditEntry struct {
	CorrelationID string
	ActorID       uint
	Action        AuditAction
	EntityType    EntityType
	EntityID      uint
	Before        Snapshot
	After         Snapshot
	Meta          ClientMeta
	Remark        string
	CreatedAt     time.Time
}
