package repositories

import (
	"errors"

	"spamguard/internal/models"
)

var (
	// ErrNotFound is returned when no account matches a lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when a unique column already holds the value.
	ErrDuplicate = errors.New("account already exists")
)

// AccountRepository defines the interface for account data access.
type AccountRepository interface {
	Create(account *models.Account) error
	GetByUsername(username string) (*models.Account, error)
	GetByEmail(email string) (*models.Account, error)
}
