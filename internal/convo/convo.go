// Package convo holds per-user conversation state for interview sessions:
// the candidate's reference material and a bounded history of question/answer
// exchanges.
package convo

import (
	"strings"
	"sync"

	"github.com/vkral/souffleur/internal/llm"
)

// maxHistoryEntries caps the stored history at 10 question/answer exchanges
// (20 entries). Older entries are dropped from the front.
const maxHistoryEntries = 20

// Turn is a single history entry.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Store holds one candidate's interview context. Safe for concurrent use;
// a REST upload may replace the material while a live session reads it.
type Store struct {
	mu             sync.Mutex
	resume         string
	jobDescription string
	history        []Turn
	maxEntries     int
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{maxEntries: maxHistoryEntries}
}

// SetContext replaces the candidate material and clears the history.
// A new resume or job description means prior exchanges no longer apply.
func (s *Store) SetContext(resume, jobDescription string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resume = strings.TrimSpace(resume)
	s.jobDescription = strings.TrimSpace(jobDescription)
	s.history = nil
}

// HasContext reports whether any candidate material has been uploaded.
func (s *Store) HasContext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resume != "" || s.jobDescription != ""
}

// BuildPrompt composes the system prompt from the stored material.
// The composition is deterministic: the same stored state always yields the
// same prompt, and empty sections are omitted entirely.
func (s *Store) BuildPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(llm.BaseSystemPrompt)

	if s.resume != "" {
		sb.WriteString("\n\nCANDIDATE RESUME:\n")
		sb.WriteString(s.resume)
	}
	if s.jobDescription != "" {
		sb.WriteString("\n\nJOB DESCRIPTION:\n")
		sb.WriteString(s.jobDescription)
	}

	sb.WriteString("\n\n")
	sb.WriteString(llm.ClosingInstruction)
	return sb.String()
}

// RecordTurn appends a question/answer exchange and trims the history to the
// cap, dropping the oldest entries.
func (s *Store) RecordTurn(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history,
		Turn{Role: "user", Content: question},
		Turn{Role: "assistant", Content: answer},
	)
	if len(s.history) > s.maxEntries {
		s.history = s.history[len(s.history)-s.maxEntries:]
	}
}

// History returns a snapshot of the bounded history as LLM messages.
func (s *Store) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]llm.Message, len(s.history))
	for i, t := range s.history {
		msgs[i] = llm.Message{Role: t.Role, Content: t.Content}
	}
	return msgs
}

// Len returns the number of stored history entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
