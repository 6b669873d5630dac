// Package segment turns a stream of final transcript fragments into dispatched
// utterances. An utterance is dispatched either immediately when a fragment
// ends with a question mark, or after a quiet interval with no transcript
// activity.
package segment

import (
	"strings"
	"sync"
	"time"
)

// Config controls segmentation behavior.
type Config struct {
	// Silence is the quiet interval after which buffered speech is dispatched.
	Silence time.Duration
	// MinWords is the minimum word count for a silence-triggered dispatch.
	// Punctuation-triggered dispatches ignore it.
	MinWords int
}

// Segmenter accumulates final transcript fragments and invokes the dispatch
// callback with complete utterances. Safe for concurrent use.
type Segmenter struct {
	cfg      Config
	dispatch func(text string)

	mu       sync.Mutex
	segments []string
	timer    *time.Timer
	closed   bool
}

// New creates a segmenter that calls dispatch for each complete utterance.
// The callback runs either on the caller's goroutine (punctuation trigger) or
// on the timer goroutine (silence trigger), never concurrently with itself
// for the same buffered utterance.
func New(cfg Config, dispatch func(text string)) *Segmenter {
	if cfg.Silence <= 0 {
		cfg.Silence = 2500 * time.Millisecond
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = 2
	}
	return &Segmenter{cfg: cfg, dispatch: dispatch}
}

// AddFinal buffers a final transcript fragment. If the fragment ends with a
// question mark the whole buffer is dispatched immediately; otherwise the
// silence timer is restarted.
func (s *Segmenter) AddFinal(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.segments = append(s.segments, trimmed)

	if strings.HasSuffix(trimmed, "?") {
		utterance := s.takeLocked()
		s.mu.Unlock()
		if utterance != "" {
			s.dispatch(utterance)
		}
		return
	}

	s.resetTimerLocked()
	s.mu.Unlock()
}

// Touch restarts the silence timer without adding text. Called for interim
// transcript activity so a still-speaking user is not cut off.
func (s *Segmenter) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.segments) == 0 {
		return
	}
	s.resetTimerLocked()
}

// Close stops the timer. Buffered text that never met a trigger is discarded.
func (s *Segmenter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.segments = nil
}

// onSilence fires when the quiet interval elapses. The buffer is dispatched
// only when it holds enough words; otherwise it keeps waiting for more speech.
func (s *Segmenter) onSilence() {
	s.mu.Lock()
	if s.closed || len(s.segments) == 0 {
		s.mu.Unlock()
		return
	}

	joined := strings.Join(s.segments, " ")
	if len(strings.Fields(joined)) < s.cfg.MinWords {
		s.mu.Unlock()
		return
	}

	utterance := s.takeLocked()
	s.mu.Unlock()
	if utterance != "" {
		s.dispatch(utterance)
	}
}

// takeLocked atomically drains the buffer and returns the joined utterance.
// Both triggers funnel through here, so whichever fires first wins and the
// other sees an empty buffer. Must be called with mu held.
func (s *Segmenter) takeLocked() string {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	joined := strings.TrimSpace(strings.Join(s.segments, " "))
	s.segments = nil

	// Sub-2-character fragments are transcription noise, not questions.
	if len(joined) < 2 {
		return ""
	}
	return joined
}

func (s *Segmenter) resetTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Silence, s.onSilence)
}
