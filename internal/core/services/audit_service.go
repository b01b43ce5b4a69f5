package services

import (
	"context"
	"errors"
	"log"
	"time"

	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/adapters/persistence/repositories"
	"loanbook/internal/core/domain"

	"github.com/google/uuid"
)

// ============================================================
// Recorder
// ============================================================

// AuditRecorder appends audit entries. Its contract has no update or delete.
type AuditRecorder struct {
	now func() time.Time
}

// NewAuditRecorder creates a recorder stamping entries with now
func NewAuditRecorder(now func() time.Time) *AuditRecorder {
	if now == nil {
		now = time.Now
	}
	return &AuditRecorder{now: now}
}

// Prepare fills in the correlation id and timestamp and serializes the entry
func (r *AuditRecorder) Prepare(entry *domain.AuditEntry) (*models.AuditLog, error) {
	if entry.CorrelationID == "" {
		entry.CorrelationID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	return EntryToModel(entry)
}

// Record appends one entry through repo
func (r *AuditRecorder) Record(ctx context.Context, repo repositories.AuditLogRepository, entry *domain.AuditEntry) error {
	row, err := r.Prepare(entry)
	if err != nil {
		return err
	}
	return repo.Create(ctx, row)
}

// EntryToModel serializes an entry into its table row
func EntryToModel(entry *domain.AuditEntry) (*models.AuditLog, error) {
	before, err := domain.EncodeSnapshot(entry.Before)
	if err != nil {
		return nil, err
	}
	after, err := domain.EncodeSnapshot(entry.After)
	if err != nil {
		return nil, err
	}
	return &models.AuditLog{
		CorrelationID: entry.CorrelationID,
		ActorID:       entry.ActorID,
		Action:        string(entry.Action),
		EntityType:    string(entry.EntityType),
		EntityID:      entry.EntityID,
		BeforeData:    before,
		AfterData:     after,
		IPAddress:     entry.Meta.IPAddress,
		UserAgent:     entry.Meta.UserAgent,
		Remark:        entry.Remark,
		CreatedAt:     entry.CreatedAt,
	}, nil
}

// EntryFromModel decodes a stored row back into its typed entry
func EntryFromModel(row *models.AuditLog) (*domain.AuditEntry, error) {
	before, err := domain.DecodeSnapshot(row.BeforeData)
	if err != nil {
		return nil, err
	}
	after, err := domain.DecodeSnapshot(row.AfterData)
	if err != nil {
		return nil, err
	}
	return &domain.AuditEntry{
		CorrelationID: row.CorrelationID,
		ActorID:       row.ActorID,
		Action:        domain.AuditAction(row.Action),
		EntityType:    domain.EntityType(row.EntityType),
		EntityID:      row.EntityID,
		Before:        before,
		After:         after,
		Meta:          domain.ClientMeta{IPAddress: row.IPAddress, UserAgent: row.UserAgent},
		Remark:        row.Remark,
		CreatedAt:     row.CreatedAt,
	}, nil
}

// ============================================================
// Outbox
// ============================================================

// PendingAudit is an audit row whose write failed after its effect committed
type PendingAudit struct {
	Entry     *models.AuditLog `json:"entry"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"last_error"`
	Escalated bool             `json:"escalated"`
}

// AuditOutbox keeps pending audit rows until they are written. Implementations
// must never drop an entry on their own.
type AuditOutbox interface {
	Push(ctx context.Context, p *PendingAudit) error
	Pending(ctx context.Context) ([]*PendingAudit, error)
	Update(ctx context.Context, p *PendingAudit) error
	Remove(ctx context.Context, correlationID string) error
}

// ErrOutboxEntryNotFound is returned by Update for unknown correlation ids
var ErrOutboxEntryNotFound = errors.New("audit outbox entry not found")

// ============================================================
// Service
// ============================================================

// AuditService lists the audit log and drains the outbox
type AuditService struct {
	store       repositories.Store
	outbox      AuditOutbox
	maxAttempts int
}

// NewAuditService creates a new audit service
func NewAuditService(store repositories.Store, outbox AuditOutbox, maxAttempts int) *AuditService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &AuditService{store: store, outbox: outbox, maxAttempts: maxAttempts}
}

// AuditEntryResponse is an audit row with decoded snapshots
type AuditEntryResponse struct {
	ID            uint            `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	ActorID       uint            `json:"actor_id"`
	Action        string          `json:"action"`
	EntityType    string          `json:"entity_type"`
	EntityID      uint            `json:"entity_id"`
	Before        domain.Snapshot `json:"before"`
	After         domain.Snapshot `json:"after"`
	IPAddress     string          `json:"ip_address"`
	UserAgent     string          `json:"user_agent"`
	Remark        string          `json:"remark"`
	CreatedAt     time.Time       `json:"created_at"`
}

// List lists audit entries. ADMIN only.
func (s *AuditService) List(ctx context.Context, actor *domain.Actor, filter repositories.AuditFilter, offset, limit int) ([]*AuditEntryResponse, int64, error) {
	if err := authorize(actor, domain.ActionReadAudit, nil); err != nil {
		return nil, 0, err
	}

	offset, limit = pageBounds(offset, limit)
	rows, total, err := s.store.AuditLogs().List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, storageError(err, "audit log")
	}

	out := make([]*AuditEntryResponse, 0, len(rows))
	for _, row := range rows {
		entry, err := EntryFromModel(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, &AuditEntryResponse{
			ID:            row.ID,
			CorrelationID: entry.CorrelationID,
			ActorID:       entry.ActorID,
			Action:        row.Action,
			EntityType:    row.EntityType,
			EntityID:      row.EntityID,
			Before:        entry.Before,
			After:         entry.After,
			IPAddress:     row.IPAddress,
			UserAgent:     row.UserAgent,
			Remark:        row.Remark,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, total, nil
}

// RetryPending writes every pending outbox entry. Entries that already landed
// are removed; failures are counted and escalated once they reach maxAttempts,
// but stay in the outbox. It returns the number of entries written.
func (s *AuditService) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.outbox.Pending(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		exists, err := s.store.AuditLogs().ExistsByCorrelationID(ctx, p.Entry.CorrelationID)
		if err == nil && !exists {
			row := *p.Entry
			row.ID = 0
			err = s.store.AuditLogs().Create(ctx, &row)
		}
		if err == nil {
			if rmErr := s.outbox.Remove(ctx, p.Entry.CorrelationID); rmErr != nil {
				log.Printf("❌ Audit outbox remove %s failed: %v", p.Entry.CorrelationID, rmErr)
			}
			written++
			log.Printf("✅ Pending audit entry written: %s (%s)", p.Entry.CorrelationID, p.Entry.Action)
			continue
		}

		p.Attempts++
		p.LastError = err.Error()
		if p.Attempts >= s.maxAttempts && !p.Escalated {
			p.Escalated = true
			log.Printf("🚨 Audit entry %s (%s %s #%d) still unwritten after %d attempts: %v",
				p.Entry.CorrelationID, p.Entry.Action, p.Entry.EntityType, p.Entry.EntityID, p.Attempts, err)
		}
		if upErr := s.outbox.Update(ctx, p); upErr != nil {
			log.Printf("❌ Audit outbox update %s failed: %v", p.Entry.CorrelationID, upErr)
		}
	}
	return written, nil
}

// PendingCount reports how many entries wait in the outbox
func (s *AuditService) PendingCount(ctx context.Context) (int, error) {
	pending, err := s.outbox.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}
