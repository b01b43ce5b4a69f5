package repositories

import (
	"context"

	"loanbook/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// collectionRepository implements CollectionRepository interface
type collectionRepository struct {
	db *gorm.DB
}

// Create inserts a collection. Duplicate receipts surface as gorm.ErrDuplicatedKey.
func (r *collectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

// GetByID gets a collection by ID
func (r *collectionRepository) GetByID(ctx context.Context, id uint) (*models.Collection, error) {
	var c models.Collection
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ExistsByReceiptNumber checks if a receipt was already used
func (r *collectionRepository) ExistsByReceiptNumber(ctx context.Context, receipt string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Collection{}).Where("receipt_number = ?", receipt).Count(&count).Error
	return count > 0, err
}

// ListByLoan lists every collection of a loan, oldest first
func (r *collectionRepository) ListByLoan(ctx context.Context, loanID uint) ([]*models.Collection, error) {
	var collections []*models.Collection
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("collection_date ASC, id ASC").
		Find(&collections).Error
	return collections, err
}

// List lists collections with pagination, newest first
func (r *collectionRepository) List(ctx context.Context, offset, limit int) ([]*models.Collection, int64, error) {
	var collections []*models.Collection
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Collection{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query.Order("id DESC"), offset, limit).Find(&collections).Error
	return collections, total, err
}

// CountByAgent counts collections recorded by an agent
func (r *collectionRepository) CountByAgent(ctx context.Context, agentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Collection{}).Where("agent_id = ?", agentID).Count(&count).Error
	return count, err
}
