package repositories

import (
	"errors"
	"fmt"

	"spamguard/internal/models"

	"gorm.io/gorm"
)

// GORMAccountRepository is a GORM implementation of AccountRepository.
type GORMAccountRepository struct {
	db *gorm.DB
}

// NewGORMAccountRepository creates a new instance of GORMAccountRepository.
func NewGORMAccountRepository(db *gorm.DB) *GORMAccountRepository {
	return &GORMAccountRepository{
		db: db,
	}
}

// Create inserts the account and fills in its ID. Unique index violations
// are reported as ErrDuplicate.
func (r *GORMAccountRepository) Create(account *models.Account) error {
	if err := r.db.Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to create account %s: %w", account.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByUsername retrieves an account by exact username match.
func (r *GORMAccountRepository) GetByUsername(username string) (*models.Account, error) {
	return r.first("username", username)
}

// GetByEmail retrieves an account by exact email match.
func (r *GORMAccountRepository) GetByEmail(email string) (*models.Account, error) {
	return r.first("email", email)
}

func (r *GORMAccountRepository) first(column, value string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where(column+" = ?", value).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account with %s %s: %w", column, value, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by %s %s: %w", column, value, err)
	}
	return &account, nil
}
