package repositories

import (
	"context"

	"loanbook/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// customerRepository implements CustomerRepository interface
type customerRepository struct {
	db *gorm.DB
}

// Create creates a new customer profile
func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Omit("User").Create(customer).Error
}

// GetByID gets a customer with its user
func (r *customerRepository) GetByID(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Preload("User").First(&customer, id).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetByUserID gets the customer profile of a user
func (r *customerRepository) GetByUserID(ctx context.Context, userID uint) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// Update updates a customer profile
func (r *customerRepository) Update(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Omit("User").Save(customer).Error
}

// Delete soft deletes a customer profile
func (r *customerRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Customer{}, id).Error
}

// List lists customers, optionally only those actively assigned to an agent
func (r *customerRepository) List(ctx context.Context, filter CustomerFilter, offset, limit int) ([]*models.Customer, int64, error) {
	var customers []*models.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Customer{})
	if filter.AgentID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.CustomerAgent{}).
			Select("customer_id").
			Where("agent_id = ? AND is_active = ?", *filter.AgentID, true))
	}
	if filter.KYCStatus != "" {
		query = query.Where("kyc_status = ?", filter.KYCStatus)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query.Preload("User").Order("id ASC"), offset, limit).Find(&customers).Error
	return customers, total, err
}

// GetAssignment returns the assignment row of an agent on a customer
func (r *customerRepository) GetAssignment(ctx context.Context, customerID, agentID uint) (*models.CustomerAgent, error) {
	var a models.CustomerAgent
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND agent_id = ?", customerID, agentID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAssignment inserts or updates an assignment row
func (r *customerRepository) SaveAssignment(ctx context.Context, assignment *models.CustomerAgent) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

// ActiveAgentIDs lists agents currently assigned to a customer
func (r *customerRepository) ActiveAgentIDs(ctx context.Context, customerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.CustomerAgent{}).
		Where("customer_id = ? AND is_active = ?", customerID, true).
		Pluck("agent_id", &ids).Error
	return ids, err
}
