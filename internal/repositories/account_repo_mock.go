package repositories

import (
	"fmt"
	"sync"

	"spamguard/internal/models"
)

// MockAccountRepository is an in-memory implementation of AccountRepository
// with the same uniqueness rules as the accounts table.
type MockAccountRepository struct {
	accounts map[uint]models.Account
	nextID   uint
	mu       sync.RWMutex
}

// NewMockAccountRepository creates a new instance of MockAccountRepository.
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[uint]models.Account),
		nextID:   1,
	}
}

// Create adds a new account, assigning the next ID.
func (r *MockAccountRepository) Create(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return fmt.Errorf("failed to create account %s: %w", account.Username, ErrDuplicate)
		}
	}
	account.ID = r.nextID
	r.nextID++
	r.accounts[account.ID] = *account
	return nil
}

// GetByUsername returns the account with the given username.
func (r *MockAccountRepository) GetByUsername(username string) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.Username == username }, "username "+username)
}

// GetByEmail returns the account with the given email.
func (r *MockAccountRepository) GetByEmail(email string) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.Email == email }, "email "+email)
}

func (r *MockAccountRepository) find(match func(models.Account) bool, desc string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("account with %s: %w", desc, ErrNotFound)
}
