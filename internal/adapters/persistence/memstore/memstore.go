// Package memstore is an in-memory repositories.Store used by tests and the
// local demo mode. Transactions are fully serialized and roll back by
// restoring a snapshot of every table.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"

	"gorm.io/gorm"
)

// ErrAuditWriteFailed is returned by audit inserts while SetFailAuditWrites(true)
var ErrAuditWriteFailed = errors.New("memstore: audit write failed")

type tables struct {
	users       map[uint]models.User
	tokens      map[uint]models.RefreshToken
	customers   map[uint]models.Customer
	assignments map[uint]models.CustomerAgent
	loans       map[uint]models.Loan
	collections map[uint]models.Collection
	borrowings  map[uint]models.Borrowing
	audits      map[uint]models.AuditLog
	seq         map[string]uint
}

func newTables() *tables {
	return &tables{
		users:       map[uint]models.User{},
		tokens:      map[uint]models.RefreshToken{},
		customers:   map[uint]models.Customer{},
		assignments: map[uint]models.CustomerAgent{},
		loans:       map[uint]models.Loan{},
		collections: map[uint]models.Collection{},
		borrowings:  map[uint]models.Borrowing{},
		audits:      map[uint]models.AuditLog{},
		seq:         map[string]uint{},
	}
}

func cloneMap[T any](m map[uint]T) map[uint]T {
	out := make(map[uint]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	seq := make(map[string]uint, len(t.seq))
	for k, v := range t.seq {
		seq[k] = v
	}
	return &tables{
		users:       cloneMap(t.users),
		tokens:      cloneMap(t.tokens),
		customers:   cloneMap(t.customers),
		assignments: cloneMap(t.assignments),
		loans:       cloneMap(t.loans),
		collections: cloneMap(t.collections),
		borrowings:  cloneMap(t.borrowings),
		audits:      cloneMap(t.audits),
		seq:         seq,
	}
}

func (t *tables) next(table string) uint {
	t.seq[table]++
	return t.seq[table]
}

type shared struct {
	txMu      sync.Mutex
	mu        sync.RWMutex
	t         *tables
	failAudit atomic.Bool
	now       func() time.Time
}

// Store implements repositories.Store in memory
type Store struct {
	sh   *shared
	inTx bool
}

// New creates an empty store
func New() *Store {
	return &Store{sh: &shared{t: newTables(), now: time.Now}}
}

// SetFailAuditWrites makes every audit insert fail, to exercise audit failure paths
func (s *Store) SetFailAuditWrites(fail bool) {
	s.sh.failAudit.Store(fail)
}

func (s *Store) Users() repositories.UserRepository                 { return &userRepo{s} }
func (s *Store) Customers() repositories.CustomerRepository         { return &customerRepo{s} }
func (s *Store) Loans() repositories.LoanRepository                 { return &loanRepo{s} }
func (s *Store) Collections() repositories.CollectionRepository     { return &collectionRepo{s} }
func (s *Store) Borrowings() repositories.BorrowingRepository       { return &borrowingRepo{s} }
func (s *Store) AuditLogs() repositories.AuditLogRepository         { return &auditRepo{s} }
func (s *Store) RefreshTokens() repositories.RefreshTokenRepository { return &tokenRepo{s} }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Transaction serializes fn against every other transaction. Any error, panic
// or cancelled ctx restores the tables as they were before fn ran.
func (s *Store) Transaction(ctx context.Context, fn func(tx repositories.Store) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.sh.txMu.Lock()
		defer s.sh.txMu.Unlock()
	}

	s.sh.mu.RLock()
	saved := s.sh.t.clone()
	s.sh.mu.RUnlock()

	rollback := func() {
		s.sh.mu.Lock()
		s.sh.t = saved
		s.sh.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err = fn(&Store{sh: s.sh, inTx: true}); err == nil {
		err = ctx.Err()
	}
	if err != nil {
		rollback()
	}
	return err
}

// read runs f under the shared read lock
func (s *Store) read(ctx context.Context, f func(t *tables) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sh.mu.RLock()
	defer s.sh.mu.RUnlock()
	return f(s.sh.t)
}

// write runs f under the write lock. Outside a transaction it also waits for
// running transactions so their rollback cannot discard f's effect.
func (s *Store) write(ctx context.Context, f func(t *tables) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.sh.txMu.Lock()
		defer s.sh.txMu.Unlock()
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	return f(s.sh.t)
}

func sortedIDs[T any](m map[uint]T, keep func(T) bool) []uint {
	ids := make([]uint, 0, len(m))
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func reverse(ids []uint) []uint {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

func page(ids []uint, offset, limit int) []uint {
	if offset >= len(ids) {
		return nil
	}
	if offset > 0 {
		ids = ids[offset:]
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

func live(d gorm.DeletedAt) bool {
	return !d.Valid
}
