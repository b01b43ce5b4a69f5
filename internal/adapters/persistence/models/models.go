package models

import (
	"time"

	"loanbook/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Users & Auth
// ============================================================

// User represents users table
type User struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Name                 string         `gorm:"size:100;not null" json:"name"`
	Email                string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Phone                string         `gorm:"size:30" json:"phone"`
	Password             string         `gorm:"size:255;not null" json:"-"`
	Role                 string         `gorm:"size:20;not null;index" json:"role"`
	IsActive             bool           `gorm:"default:true" json:"is_active"`
	CanDeleteCollections bool           `gorm:"default:false" json:"can_delete_collections"`
	CanDeleteUsers       bool           `gorm:"default:false" json:"can_delete_users"`
	CanDeleteCustomers   bool           `gorm:"default:false" json:"can_delete_customers"`
	CreatedByID          *uint          `json:"created_by_id"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Grants returns the stored delete grants. Meaningless unless Role is MANAGER.
func (u *User) Grants() domain.ManagerGrants {
	return domain.ManagerGrants{
		CanDeleteCollections: u.CanDeleteCollections,
		CanDeleteUsers:       u.CanDeleteUsers,
		CanDeleteCustomers:   u.CanDeleteCustomers,
	}
}

// SetGrants overwrites the stored delete grants
func (u *User) SetGrants(g domain.ManagerGrants) {
	u.CanDeleteCollections = g.CanDeleteCollections
	u.CanDeleteUsers = g.CanDeleteUsers
	u.CanDeleteCustomers = g.CanDeleteCustomers
}

// ToActor converts the row into the authenticated actor view
func (u *User) ToActor() *domain.Actor {
	return domain.NewActor(u.ID, u.Name, domain.Role(u.Role), u.IsActive, u.Grants())
}

// Snapshot captures the audit view of the user
func (u *User) Snapshot() domain.UserSnapshot {
	s := domain.UserSnapshot{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     domain.Role(u.Role),
		IsActive: u.IsActive,
	}
	if s.Role == domain.RoleManager {
		s.Grants = u.Grants()
	}
	return s
}

// UserResponse DTO
type UserResponse struct {
	ID        uint                  `json:"id"`
	Name      string                `json:"name"`
	Email     string                `json:"email"`
	Phone     string                `json:"phone"`
	Role      string                `json:"role"`
	IsActive  bool                  `json:"is_active"`
	Grants    *domain.ManagerGrants `json:"grants,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	resp := &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
	if domain.Role(u.Role) == domain.RoleManager {
		g := u.Grants()
		resp.Grants = &g
	}
	return resp
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpiredAt(now time.Time) bool {
	return now.After(rt.ExpiresAt)
}

// ============================================================
// Customers
// ============================================================

// Customer extends a CUSTOMER user with KYC data
type Customer struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	KYCStatus  string         `gorm:"size:20;not null;default:'PENDING'" json:"kyc_status"`
	Address    string         `gorm:"type:text" json:"address"`
	NationalID string         `gorm:"size:50" json:"national_id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) Snapshot() domain.CustomerSnapshot {
	return domain.CustomerSnapshot{
		ID:        c.ID,
		UserID:    c.UserID,
		KYCStatus: domain.KYCStatus(c.KYCStatus),
	}
}

// CustomerAgent assigns an agent to a customer
type CustomerAgent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"not null;uniqueIndex:idx_customer_agent" json:"customer_id"`
	AgentID    uint      `gorm:"not null;uniqueIndex:idx_customer_agent;index" json:"agent_id"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	AssignedBy uint      `gorm:"not null" json:"assigned_by"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CustomerAgent) TableName() string {
	return "customer_agents"
}

// ============================================================
// Ledger
// ============================================================

// Loan represents loans table
type Loan struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	CustomerID           uint            `gorm:"not null;index" json:"customer_id"`
	CreatedByID          uint            `gorm:"not null;index" json:"created_by_id"`
	Principal            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"principal"`
	InterestRate         decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"interest_rate"`
	Frequency            string          `gorm:"size:20;not null" json:"frequency"`
	OutstandingPrincipal decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"outstanding_principal"`
	Status               string          `gorm:"size:20;not null;index;default:'PENDING'" json:"status"`
	StartDate            time.Time       `gorm:"not null" json:"start_date"`
	LastPaymentAt        *time.Time      `json:"last_payment_at"`
	AccruedPeriods       int             `gorm:"not null;default:0" json:"accrued_periods"`
	InterestArrears      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"interest_arrears"`
	Purpose              string          `gorm:"type:text" json:"purpose"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string {
	return "loans"
}

func (l *Loan) Snapshot() domain.LoanSnapshot {
	return domain.LoanSnapshot{
		ID:                   l.ID,
		CustomerID:           l.CustomerID,
		Principal:            l.Principal,
		OutstandingPrincipal: l.OutstandingPrincipal,
		Status:               domain.LoanStatus(l.Status),
	}
}

// Collection is an immutable repayment event
type Collection struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	LoanID          uint            `gorm:"not null;index" json:"loan_id"`
	AgentID         uint            `gorm:"not null;index" json:"agent_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	PrincipalAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"principal_amount"`
	InterestAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"interest_amount"`
	PaymentMethod   string          `gorm:"size:20;not null" json:"payment_method"`
	ReceiptNumber   string          `gorm:"size:64;uniqueIndex;not null" json:"receipt_number"`
	CollectionDate  time.Time       `gorm:"not null" json:"collection_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Collection) TableName() string {
	return "collections"
}

func (c *Collection) Snapshot() domain.CollectionSnapshot {
	return domain.CollectionSnapshot{
		ID:              c.ID,
		LoanID:          c.LoanID,
		AgentID:         c.AgentID,
		Amount:          c.Amount,
		PrincipalAmount: c.PrincipalAmount,
		InterestAmount:  c.InterestAmount,
		PaymentMethod:   domain.PaymentMethod(c.PaymentMethod),
		ReceiptNumber:   c.ReceiptNumber,
		CollectionDate:  c.CollectionDate,
	}
}

// Borrowing represents funds raised from a lender
type Borrowing struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	LenderName    string          `gorm:"size:150;not null" json:"lender_name"`
	LenderContact string          `gorm:"size:150" json:"lender_contact"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	InterestRate  decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"interest_rate"`
	StartDate     time.Time       `gorm:"not null" json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	Status        string          `gorm:"size:20;not null;index;default:'ACTIVE'" json:"status"`
	Outstanding   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"outstanding"`
	TotalRepaid   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_repaid"`
	CreatedByID   uint            `gorm:"not null" json:"created_by_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Borrowing) TableName() string {
	return "borrowings"
}

func (b *Borrowing) Snapshot() domain.BorrowingSnapshot {
	return domain.BorrowingSnapshot{
		ID:          b.ID,
		Amount:      b.Amount,
		Outstanding: b.Outstanding,
		TotalRepaid: b.TotalRepaid,
		Status:      domain.BorrowingStatus(b.Status),
	}
}

// ============================================================
// Audit
// ============================================================

// AuditLog is append-only; no code path updates or deletes rows
type AuditLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CorrelationID string    `gorm:"size:36;uniqueIndex;not null" json:"correlation_id"`
	ActorID       uint      `gorm:"not null;index" json:"actor_id"`
	Action        string    `gorm:"size:50;not null" json:"action"`
	EntityType    string    `gorm:"size:30;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID      uint      `gorm:"not null;index:idx_audit_entity" json:"entity_id"`
	BeforeData    *string   `gorm:"type:text" json:"before_data"`
	AfterData     *string   `gorm:"type:text" json:"after_data"`
	IPAddress     string    `gorm:"size:50" json:"ip_address"`
	UserAgent     string    `gorm:"size:255" json:"user_agent"`
	Remark        string    `gorm:"type:text" json:"remark"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate creates or updates every table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Customer{},
		&CustomerAgent{},
		&Loan{},
		&Collection{},
		&Borrowing{},
		&AuditLog{},
	)
}
