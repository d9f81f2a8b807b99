package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a stored, rotating admin refresh token.
type RefreshToken struct {
	ID        string
	Token     string
	Subject   string
	ExpiresAt time.Time
}

// InsertRefreshToken stores a new token for subject and returns it.
func (s *Store) InsertRefreshToken(ctx context.Context, q Querier, subject string, ttl time.Duration) (*RefreshToken, error) {
	rt := &RefreshToken{
		ID:        uuid.New().String(),
		Token:     uuid.New().String(),
		Subject:   subject,
		ExpiresAt: time.Now().Add(ttl).UTC().Truncate(time.Second),
	}
	_, err := s.exec(ctx, q,
		"INSERT INTO _refresh_tokens (id, token, subject, expires_at) VALUES ($1, $2, $3, $4)",
		rt.ID, rt.Token, rt.Subject, rt.ExpiresAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return rt, nil
}

func (s *Store) GetRefreshToken(ctx context.Context, q Querier, token string) (*RefreshToken, error) {
	var (
		rt      RefreshToken
		expires int64
	)
	err := q.QueryRowContext(ctx,
		s.q("SELECT id, token, subject, expires_at FROM _refresh_tokens WHERE token = $1"), token).
		Scan(&rt.ID, &rt.Token, &rt.Subject, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	rt.ExpiresAt = time.Unix(expires, 0).UTC()
	return &rt, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, q Querier, token string) error {
	_, err := s.exec(ctx, q, "DELETE FROM _refresh_tokens WHERE token = $1", token)
	return err
}

// DeleteExpiredRefreshTokens removes tokens past their expiry.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, q Querier, now time.Time) (int64, error) {
	return s.exec(ctx, q, "DELETE FROM _refresh_tokens WHERE expires_at < $1", now.Unix())
}
