package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"chat-app/internal/models"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

const uniqueViolation = "23505"

// UserRepository abstracts account persistence and credential checks.
type UserRepository interface {
	Create(ctx context.Context, username, email, password string) (int, error)
	VerifyCredentials(ctx context.Context, username, password string) (models.User, error)
	GetByID(ctx context.Context, userID int) (models.User, error)
	Search(ctx context.Context, selfID int, term string) ([]models.User, error)
	ListWithStats(ctx context.Context) ([]models.UserStats, error)
	ResetPassword(ctx context.Context, userID int, newPassword string) error
	Delete(ctx context.Context, userID int) error
	IsAdmin(ctx context.Context, userID int) (bool, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create stores a new account with a bcrypt hash (cost 10) and returns its id.
func (r *UserRepo) Create(ctx context.Context, username, email, password string) (int, error) {
	if username == "" || email == "" || password == "" {
		return 0, ErrMissingFields
	}
	if len(password) < 6 {
		return 0, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	var id int
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		username, email, string(hash)).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if strings.Contains(pqErr.Constraint, "email") {
				return 0, ErrEmailTaken
			}
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return id, nil
}

// VerifyCredentials returns the user on a username/password match. The same
// error covers unknown usernames and wrong passwords.
func (r *UserRepo) VerifyCredentials(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Search returns up to 20 users matching the term on username or email,
// excluding the caller. SQL wildcards in the term are escaped.
func (r *UserRepo) Search(ctx context.Context, selfID int, term string) ([]models.User, error) {
	pattern := "%" + escapeLikeWildcards(term) + "%"
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT * FROM users WHERE id <> $1 AND (username ILIKE $2 OR email ILIKE $2) ORDER BY username LIMIT 20`,
		selfID, pattern)
	return users, err
}

// ListWithStats returns every user annotated with chat and message counts,
// newest accounts first.
func (r *UserRepo) ListWithStats(ctx context.Context) ([]models.UserStats, error) {
	users := []models.UserStats{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT u.id, u.username, u.email, u.avatar, u.created_at,
            (SELECT COUNT(*) FROM chat_participants cp WHERE cp.user_id = u.id) AS chat_count,
            (SELECT COUNT(*) FROM messages m WHERE m.sender_id = u.id) AS message_count
        FROM users u
        ORDER BY u.created_at DESC`)
	return users, err
}

// ResetPassword replaces the stored hash with one for the new password.
func (r *UserRepo) ResetPassword(ctx context.Context, userID int, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`, string(hash), userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user. Sessions, participant rows and messages cascade.
func (r *UserRepo) Delete(ctx context.Context, userID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IsAdmin reports whether the user carries the admin flag.
func (r *UserRepo) IsAdmin(ctx context.Context, userID int) (bool, error) {
	var isAdmin bool
	err := r.db.GetContext(ctx, &isAdmin, `SELECT is_admin FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrUserNotFound
	}
	return isAdmin, err
}

func escapeLikeWildcards(input string) string {
	input = strings.ReplaceAll(input, `\`, `\\`)
	input = strings.ReplaceAll(input, `%`, `\%`)
	input = strings.ReplaceAll(input, `_`, `\_`)
	return input
}
