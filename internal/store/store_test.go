package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// getTestDB returns a database pool for testing.
// Skips the test if DATABASE_URL is not set.
func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, s *Store, minutes int) *User {
	t.Helper()
	email := fmt.Sprintf("test-%d@example.com", time.Now().UnixNano())
	user, err := s.CreateUser(context.Background(), email, "$2a$10$fakehashforintegrationtest", minutes)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestUserOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s, 30)
	defer db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)

	if user.ID == "" {
		t.Error("user ID should not be empty")
	}
	if user.MinutesBalance != 30 {
		t.Errorf("minutes_balance = %d, want 30", user.MinutesBalance)
	}

	retrieved, hash, err := s.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if retrieved.ID != user.ID {
		t.Errorf("retrieved user ID = %q, want %q", retrieved.ID, user.ID)
	}
	if hash == "" {
		t.Error("password hash should round-trip")
	}

	byID, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != user.Email {
		t.Errorf("user email = %q, want %q", byID.Email, user.Email)
	}
}

func TestMinuteBalanceOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s, 10)
	defer db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)

	balance, err := s.GetMinutesBalance(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetMinutesBalance failed: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}

	if err := s.SetMinutesBalance(ctx, user.ID, 7); err != nil {
		t.Fatalf("SetMinutesBalance failed: %v", err)
	}
	balance, _ = s.GetMinutesBalance(ctx, user.ID)
	if balance != 7 {
		t.Errorf("balance after set = %d, want 7", balance)
	}

	if err := s.AddMinutes(ctx, user.ID, 60); err != nil {
		t.Fatalf("AddMinutes failed: %v", err)
	}
	balance, _ = s.GetMinutesBalance(ctx, user.ID)
	if balance != 67 {
		t.Errorf("balance after credit = %d, want 67", balance)
	}
}

func TestSessionOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s, 0)
	defer db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)

	tokenHash := fmt.Sprintf("hash-%d", time.Now().UnixNano())
	if err := s.CreateSession(ctx, user.ID, tokenHash, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	defer db.Exec(ctx, "DELETE FROM user_sessions WHERE token_hash = $1", tokenHash)

	valid, err := s.IsSessionValid(ctx, tokenHash)
	if err != nil {
		t.Fatalf("IsSessionValid failed: %v", err)
	}
	if !valid {
		t.Error("fresh session should be valid")
	}

	if err := s.RevokeSession(ctx, tokenHash); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	valid, _ = s.IsSessionValid(ctx, tokenHash)
	if valid {
		t.Error("revoked session should be invalid")
	}
}

func TestInterviewOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s, 0)
	defer db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)

	interviewID, err := s.CreateInterview(ctx, user.ID)
	if err != nil {
		t.Fatalf("CreateInterview failed: %v", err)
	}
	defer db.Exec(ctx, "DELETE FROM interviews WHERE id = $1", interviewID)

	ownerID, err := s.GetInterviewUserID(ctx, interviewID)
	if err != nil {
		t.Fatalf("GetInterviewUserID failed: %v", err)
	}
	if ownerID != user.ID {
		t.Errorf("owner = %q, want %q", ownerID, user.ID)
	}

	conf := 0.93
	turns := []Turn{
		{Role: "interviewer", Text: "Tell me about yourself?", Sequence: 1, Confidence: &conf},
		{Role: "copilot", Text: "I am a backend engineer.", Sequence: 2},
	}
	for _, turn := range turns {
		if err := s.InsertTurn(ctx, interviewID, turn); err != nil {
			t.Fatalf("InsertTurn failed: %v", err)
		}
	}

	endedAt := time.Now().UTC()
	if err := s.EndInterview(ctx, interviewID, endedAt); err != nil {
		t.Fatalf("EndInterview failed: %v", err)
	}
	// Idempotent: a second end keeps the original timestamp.
	if err := s.EndInterview(ctx, interviewID, endedAt.Add(time.Hour)); err != nil {
		t.Fatalf("second EndInterview failed: %v", err)
	}

	detail, err := s.GetInterviewDetail(ctx, interviewID)
	if err != nil {
		t.Fatalf("GetInterviewDetail failed: %v", err)
	}
	if detail.Status != "completed" {
		t.Errorf("status = %q, want completed", detail.Status)
	}
	if len(detail.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(detail.Turns))
	}
	if detail.Turns[0].Role != "interviewer" || detail.Turns[1].Role != "copilot" {
		t.Errorf("turns out of order: %+v", detail.Turns)
	}

	list, err := s.ListInterviews(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("ListInterviews failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != interviewID {
		t.Errorf("ListInterviews = %+v, want the created interview", list)
	}
}
