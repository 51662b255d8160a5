// Package domain holds the entities every layer shares, plus the small
// parsing and validation helpers that belong to them.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxNameLen = 64

var (
	ErrNameTooLong = errors.New("name too long")
	ErrNameEmpty   = errors.New("name empty")
)

type (
	UserID string
	ConnID string
)

// NewConnID returns an opaque identifier for one live transport session.
func NewConnID() ConnID { return ConnID(uuid.NewString()) }

// Principal is the authenticated identity attached to a connection.
// Supplied by the auth oracle, read-only afterwards.
type Principal struct {
	ID    UserID `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewPrincipal is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewPrincipal(email, name string) (*Principal, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	return &Principal{
		ID:    UserID(uuid.NewString()),
		Email: strings.ToLower(strings.TrimSpace(email)),
		Name:  name,
	}, nil
}

// NormalizeName trims and validates a display name.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}

// Presence is the per-principal online record.
type Presence struct {
	UserID      UserID    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	ConnID      ConnID    `json:"connId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type OnlineUser struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}
