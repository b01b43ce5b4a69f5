package repositories

import (
	"context"

	"loanbook/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// auditLogRepository implements AuditLogRepository interface.
// It exposes no Update or Delete.
type auditLogRepository struct {
	db *gorm.DB
}

// Create appends an audit entry
func (r *auditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List lists audit entries, newest first
func (r *auditLogRepository) List(ctx context.Context, filter AuditFilter, offset, limit int) ([]*models.AuditLog, int64, error) {
	var entries []*models.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query.Order("created_at DESC, id DESC"), offset, limit).Find(&entries).Error
	return entries, total, err
}

// ExistsByCorrelationID lets the outbox retry skip entries that already landed
func (r *auditLogRepository) ExistsByCorrelationID(ctx context.Context, correlationID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("correlation_id = ?", correlationID).Count(&count).Error
	return count > 0, err
}
