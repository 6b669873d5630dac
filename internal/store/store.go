package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vkral/souffleur/internal/costs"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// User represents an authenticated user.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             *string    `json:"name,omitempty"`
	MinutesBalance   int        `json:"minutes_balance"`
	StripeCustomerID *string    `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Interview is one live copilot session.
type Interview struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"` // active, completed
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Turn is one persisted exchange line within an interview.
type Turn struct {
	Role       string    `json:"role"` // "interviewer" or "copilot"
	Text       string    `json:"text"`
	Sequence   int       `json:"sequence"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// InterviewDetail bundles an interview with its transcript.
type InterviewDetail struct {
	Interview
	Turns []Turn `json:"turns"`
}

// ============================================================================
// User operations
// ============================================================================

const userColumns = `id, email, name, minutes_balance, stripe_customer_id, last_login_at, created_at, updated_at`

// CreateUser inserts a new user with the given bcrypt password hash and a
// starting minute balance.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, startingMinutes int) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, minutes_balance, last_login_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING `+userColumns+`
	`, email, passwordHash, startingMinutes).Scan(
		&u.ID, &u.Email, &u.Name, &u.MinutesBalance, &u.StripeCustomerID,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail retrieves a user and their password hash for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, string, error) {
	var u User
	var passwordHash string
	err := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM users
		WHERE email = $1
	`, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.MinutesBalance, &u.StripeCustomerID,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt, &passwordHash,
	)
	if err != nil {
		return nil, "", err
	}
	return &u, passwordHash, nil
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.MinutesBalance, &u.StripeCustomerID,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLastLogin updates the last login timestamp.
func (s *Store) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET last_login_at = NOW() WHERE id = $1
	`, userID)
	return err
}

// UpdateUserName updates a user's display name.
func (s *Store) UpdateUserName(ctx context.Context, userID, name string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET name = $2 WHERE id = $1
	`, userID, name)
	return err
}

// ============================================================================
// Session operations
// ============================================================================

// CreateSession creates a new user session.
func (s *Store) CreateSession(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	return err
}

// RevokeSession revokes a session by token hash.
func (s *Store) RevokeSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_sessions SET revoked_at = NOW() WHERE token_hash = $1
	`, tokenHash)
	return err
}

// IsSessionValid checks if a session is valid (not revoked and not expired).
func (s *Store) IsSessionValid(ctx context.Context, tokenHash string) (bool, error) {
	var valid bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_sessions
			WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
		)
	`, tokenHash).Scan(&valid)
	return valid, err
}

// DeleteExpiredSessions removes sessions past their expiry. Returns the number
// of rows deleted.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM user_sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ============================================================================
// Minute balance operations
// ============================================================================

// GetMinutesBalance returns the user's prepaid minute balance.
func (s *Store) GetMinutesBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRow(ctx, `
		SELECT minutes_balance FROM users WHERE id = $1
	`, userID).Scan(&balance)
	return balance, err
}

// SetMinutesBalance overwrites the user's minute balance. Concurrent sessions
// race here; last write wins.
func (s *Store) SetMinutesBalance(ctx context.Context, userID string, minutes int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET minutes_balance = $2 WHERE id = $1
	`, userID, minutes)
	return err
}

// AddMinutes credits purchased minutes atomically.
func (s *Store) AddMinutes(ctx context.Context, userID string, minutes int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET minutes_balance = minutes_balance + $2 WHERE id = $1
	`, userID, minutes)
	return err
}

// ============================================================================
// Stripe linkage
// ============================================================================

// SetStripeCustomer stores the Stripe customer ID for a user.
func (s *Store) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET stripe_customer_id = $2 WHERE id = $1
	`, userID, customerID)
	return err
}

// GetUserIDByStripeCustomer resolves a Stripe customer ID back to a user.
func (s *Store) GetUserIDByStripeCustomer(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM users WHERE stripe_customer_id = $1
	`, customerID).Scan(&userID)
	return userID, err
}

// ============================================================================
// Interview operations
// ============================================================================

// CreateInterview opens a new active interview for a user.
func (s *Store) CreateInterview(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO interviews (user_id, status, started_at)
		VALUES ($1, 'active', NOW())
		RETURNING id
	`, userID).Scan(&id)
	return id, err
}

// EndInterview marks an interview completed. Idempotent: an already-ended
// interview keeps its original ended_at.
func (s *Store) EndInterview(ctx context.Context, interviewID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE interviews
		SET status = 'completed', ended_at = COALESCE(ended_at, $2)
		WHERE id = $1
	`, interviewID, at)
	return err
}

// MarkStaleInterviewsEnded completes interviews still marked active whose
// start predates the cutoff (e.g. the server died mid-session). Returns the
// number of rows updated.
func (s *Store) MarkStaleInterviewsEnded(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE interviews
		SET status = 'completed', ended_at = NOW()
		WHERE status = 'active' AND started_at < NOW() - $1::interval
	`, olderThan.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetInterviewUserID returns the owning user of an interview.
func (s *Store) GetInterviewUserID(ctx context.Context, interviewID string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx, `
		SELECT user_id FROM interviews WHERE id = $1
	`, interviewID).Scan(&userID)
	return userID, err
}

// InsertTurn persists one transcript line of an interview.
func (s *Store) InsertTurn(ctx context.Context, interviewID string, t Turn) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO interview_turns (interview_id, role, text, sequence, confidence)
		VALUES ($1, $2, $3, $4, $5)
	`, interviewID, t.Role, t.Text, t.Sequence, t.Confidence)
	return err
}

// ListInterviews returns a user's interviews, newest first.
func (s *Store) ListInterviews(ctx context.Context, userID string, limit int) ([]Interview, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, status, started_at, ended_at
		FROM interviews
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interviews []Interview
	for rows.Next() {
		var iv Interview
		if err := rows.Scan(&iv.ID, &iv.UserID, &iv.Status, &iv.StartedAt, &iv.EndedAt); err != nil {
			return nil, err
		}
		interviews = append(interviews, iv)
	}
	return interviews, rows.Err()
}

// GetInterviewDetail returns an interview with its full transcript in order.
func (s *Store) GetInterviewDetail(ctx context.Context, interviewID string) (*InterviewDetail, error) {
	var d InterviewDetail
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, status, started_at, ended_at
		FROM interviews
		WHERE id = $1
	`, interviewID).Scan(&d.ID, &d.UserID, &d.Status, &d.StartedAt, &d.EndedAt)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT role, text, sequence, confidence, created_at
		FROM interview_turns
		WHERE interview_id = $1
		ORDER BY sequence ASC
	`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Text, &t.Sequence, &t.Confidence, &t.CreatedAt); err != nil {
			return nil, err
		}
		d.Turns = append(d.Turns, t)
	}
	return &d, rows.Err()
}

// ErrNoRows re-exports the pgx sentinel so handlers can branch on not-found
// without importing pgx directly.
var ErrNoRows = pgx.ErrNoRows

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ============================================================================
// Cost tracking
// ============================================================================

// RecordInterviewCosts stores the estimated provider spend for an interview.
func (s *Store) RecordInterviewCosts(ctx context.Context, interviewID string, m costs.SessionMetrics, c costs.SessionCosts) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO interview_costs (interview_id, audio_seconds, llm_input_tokens, llm_output_tokens,
			stt_cost_cents, llm_cost_cents, total_cost_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (interview_id) DO UPDATE SET
			audio_seconds = EXCLUDED.audio_seconds,
			llm_input_tokens = EXCLUDED.llm_input_tokens,
			llm_output_tokens = EXCLUDED.llm_output_tokens,
			stt_cost_cents = EXCLUDED.stt_cost_cents,
			llm_cost_cents = EXCLUDED.llm_cost_cents,
			total_cost_cents = EXCLUDED.total_cost_cents
	`, interviewID, m.AudioSeconds, m.LLMInputTokens, m.LLMOutputTokens,
		c.STTCostCents, c.LLMCostCents, c.TotalCostCents)
	return err
}
