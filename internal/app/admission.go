package app

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/Collab/internal/domain"
)

// Admit checks the durable meeting state for a join request. Capacity is not
// checked here: the live participant count only exists in the orchestrator.
func Admit(m domain.Meeting, password string) error {
	if m.Ended() {
		return domain.ErrMeetingEnded
	}
	if m.PasswordHash == "" {
		return nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return domain.ErrWrongPassword
	default:
		return fmt.Errorf("compare meeting password: %w", err)
	}
}

// HashPassword returns the bcrypt hash stored in meetings.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash meeting password: %w", err)
	}
	return string(b), nil
}
