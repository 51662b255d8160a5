package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkeye/Collab/internal/domain"
)

// EnsureUser returns the user registered under email, creating it first if
// needed. An existing user's name is left as is.
func (s *Store) EnsureUser(ctx context.Context, email, name string) (domain.Principal, error) {
	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(strings.TrimSpace(email), "@")
	}
	p, err := domain.NewPrincipal(email, name)
	if err != nil {
		return domain.Principal{}, err
	}
	if p.Email == "" {
		return domain.Principal{}, fmt.Errorf("ensure user: %w", domain.ErrBadPayload)
	}

	var out domain.Principal
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id, email, name FROM users WHERE email = ?`, p.Email,
		).Scan(&out.ID, &out.Email, &out.Name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
			string(p.ID), p.Email, p.Name, formatTime(s.now()),
		)
		out = *p
		return err
	})
	if err != nil {
		return domain.Principal{}, fmt.Errorf("ensure user %s: %w", p.Email, err)
	}
	return out, nil
}

// IssueToken mints a bearer token for uid. Only its hash is stored.
// ttl <= 0 means the token does not expire.
func (s *Store) IssueToken(ctx context.Context, uid domain.UserID, ttl time.Duration) (string, error) {
	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	now := s.now()
	var expires sql.NullString
	if ttl > 0 {
		expires = sql.NullString{String: formatTime(now.Add(ttl)), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), string(uid), expires, formatTime(now),
	)
	if err != nil {
		return "", fmt.Errorf("issue token for %s: %w", uid, err)
	}
	return token, nil
}

// RevokeToken makes token unusable. Unknown tokens are ignored.
func (s *Store) RevokeToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE auth_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		formatTime(s.now()), hashToken(token),
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Verify implements app.Authenticator.
func (s *Store) Verify(ctx context.Context, token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	var (
		p       domain.Principal
		expires sql.NullString
		revoked sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, t.expires_at, t.revoked_at
		FROM auth_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = ?`, hashToken(token),
	).Scan(&p.ID, &p.Email, &p.Name, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.Principal{}, fmt.Errorf("verify token: %w", err)
	}
	if revoked.Valid {
		return domain.Principal{}, fmt.Errorf("token revoked: %w", domain.ErrUnauthorized)
	}
	exp, err := parseNullTime(expires)
	if err != nil {
		return domain.Principal{}, err
	}
	if exp != nil && !s.now().Before(*exp) {
		return domain.Principal{}, fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
	}
	return p, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
