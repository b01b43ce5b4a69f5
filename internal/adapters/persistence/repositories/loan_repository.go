package repositories

import (
	"context"

	"loanbook/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// loanRepository implements LoanRepository interface
type loanRepository struct {
	db *gorm.DB
}

// Create creates a new loan
func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

// GetByID gets a loan by ID
func (r *loanRepository) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).First(&loan, id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetByIDForUpdate gets a loan and holds a row lock until the transaction ends
func (r *loanRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	if err := forUpdate(r.db.WithContext(ctx)).First(&loan, id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

// Update saves a loan
func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Save(loan).Error
}

// List lists loans with pagination
func (r *loanRepository) List(ctx context.Context, filter LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	var loans []*models.Loan
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Loan{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query.Order("id DESC"), offset, limit).Find(&loans).Error
	return loans, total, err
}

// CountByCustomerAndStatus counts a customer's loans in any of the given statuses
func (r *loanRepository) CountByCustomerAndStatus(ctx context.Context, customerID uint, statuses ...string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Loan{}).Where("customer_id = ?", customerID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Count(&count).Error
	return count, err
}

// CountByCreator counts loans originated by a user
func (r *loanRepository) CountByCreator(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).Where("created_by_id = ?", userID).Count(&count).Error
	return count, err
}
