package services

import (
	"errors"
	"fmt"
	"testing"

	"loanbook/internal/core/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestStorageErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"mysql lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, domain.KindConflict},
		{"mysql deadlock", fmt.Errorf("save loan: %w", &mysql.MySQLError{Number: 1213}), domain.KindConflict},
		{"postgres serialization failure", &pgconn.PgError{Code: "40001"}, domain.KindConflict},
		{"postgres deadlock", fmt.Errorf("lock: %w", &pgconn.PgError{Code: "40P01"}), domain.KindConflict},
		{"duplicate key", gorm.ErrDuplicatedKey, domain.KindConflict},
		{"missing row", gorm.ErrRecordNotFound, domain.KindNotFound},
		{"mysql access denied", &mysql.MySQLError{Number: 1045}, domain.KindStorageUnavailable},
		{"postgres connection failure", &pgconn.PgError{Code: "08006"}, domain.KindStorageUnavailable},
		{"anything else", errors.New("broken pipe"), domain.KindStorageUnavailable},
		{"domain error passes through", domain.NewOverpaymentError(dec("5")), domain.KindOverpayment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantKind(t, storageError(tt.err, "loan"), tt.want)
		})
	}

	if storageError(nil, "loan") != nil {
		t.Error("nil error must stay nil")
	}
}
