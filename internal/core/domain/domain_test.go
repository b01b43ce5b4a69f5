package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewActor_GrantsOnlyForManager(t *testing.T) {
	grants := ManagerGrants{CanDeleteUsers: true, CanDeleteCustomers: true}

	for _, role := range []Role{RoleAdmin, RoleAgent, RoleCustomer} {
		a := NewActor(1, "x", role, true, grants)
		if a.Grants != nil {
			t.Errorf("role %s: expected nil grants, got %+v", role, a.Grants)
		}
	}

	m := NewActor(2, "m", RoleManager, true, grants)
	if m.Grants == nil || !m.Grants.CanDeleteUsers || m.Grants.CanDeleteCollections {
		t.Errorf("manager grants not carried: %+v", m.Grants)
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" manager ")
	if err != nil || r != RoleManager {
		t.Fatalf("ParseRole: got %q, %v", r, err)
	}
	if _, err := ParseRole("OFFICER"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	when := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := PostingSnapshot{
		Loan: LoanSnapshot{
			ID:                   7,
			CustomerID:           3,
			Principal:            decimal.NewFromInt(10000),
			OutstandingPrincipal: decimal.NewFromInt(9900),
			Status:               LoanActive,
		},
		Collection: CollectionSnapshot{
			ID:              11,
			LoanID:          7,
			Amount:          decimal.NewFromInt(300),
			PrincipalAmount: decimal.NewFromInt(100),
			InterestAmount:  decimal.NewFromInt(200),
			PaymentMethod:   PaymentCash,
			ReceiptNumber:   "R-1",
			CollectionDate:  when,
		},
	}

	raw, err := EncodeSnapshot(in)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	out, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	got, ok := out.(PostingSnapshot)
	if !ok {
		t.Fatalf("expected PostingSnapshot, got %T", out)
	}
	if !got.Loan.OutstandingPrincipal.Equal(in.Loan.OutstandingPrincipal) ||
		got.Collection.ReceiptNumber != "R-1" ||
		!got.Collection.CollectionDate.Equal(when) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if raw, _ := EncodeSnapshot(nil); raw != nil {
		t.Error("nil snapshot should encode to nil")
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewOverpaymentError(decimal.NewFromInt(50)))
	if KindOf(err) != KindOverpayment {
		t.Fatalf("expected overpayment kind, got %q", KindOf(err))
	}
	if !errors.Is(err, &Error{Kind: KindOverpayment}) {
		t.Error("errors.Is should match by kind")
	}
	if IsKind(errors.New("plain"), KindConflict) {
		t.Error("plain error must not match a kind")
	}

	nf := NewNotFoundError("loan")
	if !errors.Is(nf, ErrNotFound) {
		t.Error("not found error should unwrap to ErrNotFound")
	}
}
