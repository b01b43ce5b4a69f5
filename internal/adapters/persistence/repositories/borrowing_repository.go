package repositories

import (
	"context"

	"loanbook/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// borrowingRepository implements BorrowingRepository interface
type borrowingRepository struct {
	db *gorm.DB
}

func (r *borrowingRepository) Create(ctx context.Context, borrowing *models.Borrowing) error {
	return r.db.WithContext(ctx).Create(borrowing).Error
}

func (r *borrowingRepository) GetByID(ctx context.Context, id uint) (*models.Borrowing, error) {
	var b models.Borrowing
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByIDForUpdate gets a borrowing and holds a row lock until the transaction ends
func (r *borrowingRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Borrowing, error) {
	var b models.Borrowing
	if err := forUpdate(r.db.WithContext(ctx)).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *borrowingRepository) Update(ctx context.Context, borrowing *models.Borrowing) error {
	return r.db.WithContext(ctx).Save(borrowing).Error
}

func (r *borrowingRepository) List(ctx context.Context, status string, offset, limit int) ([]*models.Borrowing, int64, error) {
	var borrowings []*models.Borrowing
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Borrowing{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query.Order("id DESC"), offset, limit).Find(&borrowings).Error
	return borrowings, total, err
}
