package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of interview session event
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionRejected     EventType = "session_rejected"
	EventSTTResult           EventType = "stt_result"
	EventUtteranceDispatched EventType = "utterance_dispatched"
	EventGenerationStarted   EventType = "generation_started"
	EventGenerationCompleted EventType = "generation_completed"
	EventGenerationError     EventType = "generation_error"
	EventBalanceTick         EventType = "balance_tick"
	EventCreditsExhausted    EventType = "credits_exhausted"
	EventSessionEnded        EventType = "session_ended"
)

// Logger provides async event logging to the database
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, interviewID string, eventType EventType, data map[string]any) error {
	if l.db == nil || interviewID == "" {
		return nil // Silently skip if no DB or interview ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO interview_events (interview_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, interviewID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(interviewID string, eventType EventType, data map[string]any) {
	if l.db == nil || interviewID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, interviewID, eventType, data)
	}()
}
