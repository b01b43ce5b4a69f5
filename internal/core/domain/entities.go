package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role represents user role in the system
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleAgent    Role = "AGENT"
	RoleCustomer Role = "CUSTOMER"
)

// ParseRole converts a raw role string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent, RoleCustomer:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to back-office staff
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleAgent
}

// ManagerGrants are the delete permissions an ADMIN can hand to a MANAGER
type ManagerGrants struct {
	CanDeleteCollections bool `json:"can_delete_collections"`
	CanDeleteUsers       bool `json:"can_delete_users"`
	CanDeleteCustomers   bool `json:"can_delete_customers"`
}

// Actor is the authenticated caller of an operation.
// Grants is non-nil only when Role is RoleManager.
type Actor struct {
	ID     uint
	Name   string
	Role   Role
	Active bool
	Grants *ManagerGrants
}

// NewActor builds an Actor, dropping grants for every role other than MANAGER
func NewActor(id uint, name string, role Role, active bool, grants ManagerGrants) *Actor {
	a := &Actor{ID: id, Name: name, Role: role, Active: active}
	if role == RoleManager {
		g := grants
		a.Grants = &g
	}
	return a
}

// ClientMeta describes the requester for audit entries
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// KYCStatus of a customer
type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCVerified KYCStatus = "VERIFIED"
	KYCRejected KYCStatus = "REJECTED"
)

// Valid reports whether s is a known KYC status
func (s KYCStatus) Valid() bool {
	return s == KYCPending || s == KYCVerified || s == KYCRejected
}

// LoanStatus is the lifecycle state of a loan
type LoanStatus string

const (
	LoanPending LoanStatus = "PENDING"
	LoanActive  LoanStatus = "ACTIVE"
	LoanClosed  LoanStatus = "CLOSED"
)

// Protected loans block deletion of their owner
func (s LoanStatus) Protected() bool {
	return s == LoanPending || s == LoanActive
}

// Frequency is how often a loan expects repayments
type Frequency string

const (
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// PeriodsPerYear returns the number of repayment periods in a year, 0 if unknown
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case FrequencyDaily:
		return 365
	case FrequencyWeekly:
		return 52
	case FrequencyBiweekly:
		return 26
	case FrequencyMonthly:
		return 12
	}
	return 0
}

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	return f.PeriodsPerYear() > 0
}

// PaymentMethod of a collection
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentCheque       PaymentMethod = "CHEQUE"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentBankTransfer, PaymentMobileMoney, PaymentCheque:
		return true
	}
	return false
}

// BorrowingStatus is the lifecycle state of a borrowing
type BorrowingStatus string

const (
	BorrowingActive    BorrowingStatus = "ACTIVE"
	BorrowingClosed    BorrowingStatus = "CLOSED"
	BorrowingDefaulted BorrowingStatus = "DEFAULTED"
)

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
