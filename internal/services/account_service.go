package services

import (
	"errors"
	"fmt"

	"spamguard/internal/models"
	"spamguard/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgUsernameTaken = "An account with this username already exists."
	msgEmailTaken    = "An account with this email already exists."
	msgPasswordLong  = "Password must be at most 72 bytes."
)

// AccountService handles signup and password verification.
type AccountService struct {
	repo       repositories.AccountRepository
	events     EventPublisher
	bcryptCost int
	log        *zap.Logger
}

// NewAccountService creates a new AccountService. events may be nil.
func NewAccountService(repo repositories.AccountRepository, events EventPublisher, bcryptCost int, log *zap.Logger) *AccountService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{
		repo:       repo,
		events:     events,
		bcryptCost: bcryptCost,
		log:        log,
	}
}

// Signup hashes account.Password in place and persists the account.
// Taken usernames or emails are reported as FieldErrors.
func (s *AccountService) Signup(account *models.Account) error {
	taken, err := s.takenFields(account)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return taken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(account.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return FieldErrors{"password": msgPasswordLong}
	}
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.Password = string(hashed)

	if err := s.repo.Create(account); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Lost a race with a concurrent signup; report which field collided.
			if taken, terr := s.takenFields(account); terr == nil && len(taken) > 0 {
				return taken
			}
			return FieldErrors{"username": msgUsernameTaken}
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	s.log.Info("account created", zap.Uint("account_id", account.ID), zap.String("username", account.Username))
	s.publish(EventAccountCreated, map[string]interface{}{
		"account_id": account.ID,
		"username":   account.Username,
	})
	return nil
}

// Login verifies password against the stored hash of username. It returns
// ErrAccountNotFound or ErrInvalidPassword on failure; nothing is issued on success.
func (s *AccountService) Login(username, password string) (*models.Account, error) {
	account, err := s.repo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w for %s", ErrInvalidPassword, username)
	}

	s.publish(EventAccountLogin, map[string]interface{}{
		"account_id": account.ID,
	})
	return account, nil
}

func (s *AccountService) takenFields(account *models.Account) (FieldErrors, error) {
	fe := FieldErrors{}
	if _, err := s.repo.GetByUsername(account.Username); err == nil {
		fe["username"] = msgUsernameTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if _, err := s.repo.GetByEmail(account.Email); err == nil {
		fe["email"] = msgEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	return fe, nil
}

func (s *AccountService) publish(eventType string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(eventType, payload); err != nil {
		s.log.Warn("failed to publish event", zap.String("event", eventType), zap.Error(err))
	}
}
