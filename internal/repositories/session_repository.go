package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionTTL is how long a session row stays valid after login.
const SessionTTL = 24 * time.Hour

// SessionRepository tracks server-side session validity. A signed token is
// only honored while a matching, unexpired row exists.
type SessionRepository interface {
	Create(ctx context.Context, userID int, token string) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int) error
	ExistsLive(ctx context.Context, token string) (bool, error)
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a session row expiring SessionTTL from now.
func (r *SessionRepo) Create(ctx context.Context, userID int, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, token, time.Now().Add(SessionTTL))
	return err
}

// DeleteByToken invalidates a single session.
func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token=$1`, token)
	return err
}

// DeleteByUser invalidates every session the user holds. Login calls this
// before storing the fresh session, so a new login supersedes old tokens.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id=$1`, userID)
	return err
}

// ExistsLive reports whether the token is backed by an unexpired session row.
// Expiry is checked lazily here; expired rows are swept opportunistically.
func (r *SessionRepo) ExistsLive(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE token=$1 AND expires_at > NOW())`, token)
	if err != nil {
		return false, err
	}
	if !exists {
		// Opportunistic cleanup; a failure here never blocks validation.
		_, _ = r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token=$1 AND expires_at <= NOW()`, token)
	}
	return exists, nil
}
