package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vkral/souffleur/internal/convo"
	"github.com/vkral/souffleur/internal/costs"
	"github.com/vkral/souffleur/internal/eventlog"
	"github.com/vkral/souffleur/internal/meter"
	"github.com/vkral/souffleur/internal/respond"
	"github.com/vkral/souffleur/internal/segment"
	"github.com/vkral/souffleur/internal/store"
	"github.com/vkral/souffleur/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// audioBytesPerSecond converts raw linear16 mono audio at 16kHz into seconds
// for cost estimation.
const audioBytesPerSecond = 32000

const (
	outboundBufferSize = 64
	writeTimeout       = 10 * time.Second
)

// controlMessage is the only text frame clients may send.
type controlMessage struct {
	Text string `json:"text"`
}

// interviewSession manages one live copilot session over a WebSocket.
// All outbound events funnel through a single writer goroutine so clients
// observe them in the order they were produced.
type interviewSession struct {
	userID      string
	interviewID string

	conn *websocket.Conn

	sttClient *stt.DeepgramClient
	segmenter *segment.Segmenter
	generator *respond.Generator
	convo     *convo.Store

	store    *store.Store
	eventLog *eventlog.Logger
	logger   *log.Logger
	cfg      RouterConfig

	outbound   chan wsEvent
	dispatches chan string

	turnSeq int // written only by the generation worker

	// Usage counters for cost estimation, written from different goroutines.
	audioBytes  atomic.Int64
	promptChars atomic.Int64
	outputChars atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupOnce sync.Once
}

// handleSessionWS authenticates and runs a live interview session.
// Authentication failures and empty balances are reported as a rejected event
// over the socket so browser clients get a reason, not just a dropped
// connection.
func (r *Router) handleSessionWS(w http.ResponseWriter, req *http.Request) {
	if r.cfg.DeepgramAPIKey == "" || r.cfg.OpenRouterAPIKey == "" {
		r.logger.Printf("session_ws: missing API keys")
		captureError(req, fmt.Errorf("copilot not configured: missing API keys"), "session_ws: configuration error")
		http.Error(w, "copilot not configured", http.StatusServiceUnavailable)
		return
	}

	if !r.sessions.Add() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer r.sessions.Done()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("session_ws: upgrade failed: %v", err)
		return
	}

	// Browsers cannot set an Authorization header on WebSocket dials, so the
	// JWT arrives as a query parameter.
	authUser, err := r.authenticateToken(req.Context(), req.URL.Query().Get("token"))
	if err != nil {
		r.logger.Printf("session_ws: auth rejected: %v", err)
		rejectAndClose(conn, "unauthorized")
		return
	}

	balance, err := r.store.GetMinutesBalance(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("session_ws: balance check failed for %s: %v", authUser.ID, err)
		rejectAndClose(conn, "internal_error")
		return
	}
	if balance <= 0 {
		r.logger.Printf("session_ws: user %s rejected, no minutes remaining", authUser.ID)
		rejectAndClose(conn, "insufficient_credits")
		return
	}

	interviewID, err := r.store.CreateInterview(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("session_ws: failed to create interview for %s: %v", authUser.ID, err)
		rejectAndClose(conn, "internal_error")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	session := &interviewSession{
		userID:      authUser.ID,
		interviewID: interviewID,
		conn:        conn,
		generator:   respond.New(r.llmClient),
		convo:       r.convos.get(authUser.ID),
		store:       r.store,
		eventLog:    r.eventLog,
		logger:      r.logger,
		cfg:         r.cfg,
		outbound:    make(chan wsEvent, outboundBufferSize),
		dispatches:  make(chan string, 8),
		ctx:         ctx,
		cancel:      cancel,
	}

	session.segmenter = segment.New(segment.Config{
		Silence:  r.cfg.SilenceThreshold,
		MinWords: r.cfg.MinUtteranceWords,
	}, session.enqueueDispatch)

	sttClient, err := stt.NewDeepgramClient(ctx, stt.DeepgramConfig{
		APIKey:         r.cfg.DeepgramAPIKey,
		Language:       r.cfg.STTLanguage,
		Model:          "nova-3",
		SampleRate:     16000,
		Encoding:       "linear16",
		Channels:       1,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
	})
	if err != nil {
		r.logger.Printf("session_ws: Deepgram connect failed: %v", err)
		captureError(req, err, "session_ws: STT connect failed")
		cancel()
		rejectAndClose(conn, "transcription_unavailable")
		_ = r.store.EndInterview(context.Background(), interviewID, time.Now().UTC())
		return
	}
	session.sttClient = sttClient

	r.logger.Printf("session_ws: session started for user %s (interview %s, balance %d min)",
		authUser.ID, interviewID, balance)
	r.eventLog.LogAsync(interviewID, eventlog.EventSessionStarted, map[string]any{
		"user_id": authUser.ID,
		"balance": balance,
	})

	session.run()
}

// rejectAndClose delivers a rejected event and closes the socket. Used before
// the session goroutines exist, so it writes directly.
func rejectAndClose(conn *websocket.Conn, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteJSON(rejectedEvent(reason))
	_ = conn.Close()
}

func (s *interviewSession) run() {
	defer s.cleanup()

	s.wg.Add(3)
	go s.writeLoop()
	go s.drainTranscripts()
	go s.generationWorker()

	s.wg.Add(1)
	go s.runMeter()

	s.readLoop()
}

// readLoop consumes client frames until the connection drops, the client sends
// the stop control, or the session is torn down.
func (s *interviewSession) readLoop() {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("session_ws: connection closed for interview %s", s.interviewID)
			} else {
				select {
				case <-s.ctx.Done():
				default:
					s.logger.Printf("session_ws: read error for interview %s: %v", s.interviewID, err)
				}
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.audioBytes.Add(int64(len(msg)))
			if err := s.sttClient.StreamAudio(s.ctx, msg); err != nil {
				s.logger.Printf("session_ws: failed to forward audio: %v", err)
			}

		case websocket.TextMessage:
			var ctrl controlMessage
			if err := json.Unmarshal(msg, &ctrl); err != nil {
				s.logger.Printf("session_ws: unparseable control frame for interview %s", s.interviewID)
				continue
			}
			if ctrl.Text == "stop" {
				s.logger.Printf("session_ws: stop requested for interview %s", s.interviewID)
				return
			}
		}
	}
}

// writeLoop is the single writer for the connection. A failed write tears the
// session down; queued events after that point are dropped.
func (s *interviewSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.logger.Printf("session_ws: write failed for interview %s: %v", s.interviewID, err)
				s.cancel()
				_ = s.conn.Close()
				return
			}
		}
	}
}

// send queues an outbound event for the writer goroutine.
func (s *interviewSession) send(ev wsEvent) {
	select {
	case <-s.ctx.Done():
	case s.outbound <- ev:
	}
}

// drainTranscripts feeds STT results into the segmenter and relays them to the
// client. Interim results only refresh the silence timer; finals are buffered
// for dispatch.
func (s *interviewSession) drainTranscripts() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case err, ok := <-s.sttClient.Errors():
			if !ok {
				return
			}
			// The session keeps running; already-buffered speech can still
			// dispatch and the client decides whether to reconnect.
			s.logger.Printf("session_ws: STT error for interview %s: %v", s.interviewID, err)

		case result, ok := <-s.sttClient.Results():
			if !ok {
				return
			}
			if result.Text == "" {
				continue
			}

			s.send(transcriptEvent(result.Text, result.IsFinal))

			if result.IsFinal {
				s.eventLog.LogAsync(s.interviewID, eventlog.EventSTTResult, map[string]any{
					"text":       result.Text,
					"confidence": result.Confidence,
				})
				s.segmenter.AddFinal(result.Text)
			} else {
				s.segmenter.Touch()
			}
		}
	}
}

// enqueueDispatch hands a complete utterance to the generation worker. The
// worker is serial, so a question asked during generation waits its turn.
func (s *interviewSession) enqueueDispatch(utterance string) {
	select {
	case <-s.ctx.Done():
	case s.dispatches <- utterance:
	}
}

func (s *interviewSession) generationWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case utterance := <-s.dispatches:
			s.generateSuggestion(utterance)
		}
	}
}

// generateSuggestion streams one suggestion for a dispatched utterance.
// Failures arrive as diagnostic fragments: they are forwarded to the client
// but never recorded as answer text, and generation_done is always sent.
func (s *interviewSession) generateSuggestion(utterance string) {
	s.logger.Printf("session_ws: dispatching utterance for interview %s: %s", s.interviewID, utterance)
	s.eventLog.LogAsync(s.interviewID, eventlog.EventUtteranceDispatched, map[string]any{
		"text": utterance,
	})

	s.persistTurn("interviewer", utterance, nil)

	s.send(generationStartedEvent())
	s.eventLog.LogAsync(s.interviewID, eventlog.EventGenerationStarted, nil)

	systemPrompt := s.convo.BuildPrompt()
	history := s.convo.History()

	s.promptChars.Add(int64(len(systemPrompt) + len(utterance)))
	for _, m := range history {
		s.promptChars.Add(int64(len(m.Content)))
	}

	var fragments []respond.Fragment
	failed := false
	for f := range s.generator.Stream(s.ctx, systemPrompt, history, utterance) {
		s.send(generationChunkEvent(f.Text))
		fragments = append(fragments, f)
		if f.Diagnostic {
			failed = true
			s.logger.Printf("session_ws: generation failed for interview %s: %s", s.interviewID, f.Text)
			s.eventLog.LogAsync(s.interviewID, eventlog.EventGenerationError, map[string]any{
				"detail": f.Text,
			})
		}
	}

	answer := respond.Collect(fragments)
	if answer != "" && !failed {
		s.convo.RecordTurn(utterance, answer)
		s.persistTurn("copilot", answer, nil)
		s.outputChars.Add(int64(len(answer)))
		s.eventLog.LogAsync(s.interviewID, eventlog.EventGenerationCompleted, map[string]any{
			"chars": len(answer),
		})
	}

	s.send(generationDoneEvent())
}

func (s *interviewSession) persistTurn(role, text string, confidence *float64) {
	s.turnSeq++
	if err := s.store.InsertTurn(s.ctx, s.interviewID, store.Turn{
		Role:       role,
		Text:       text,
		Sequence:   s.turnSeq,
		Confidence: confidence,
	}); err != nil {
		s.logger.Printf("session_ws: failed to persist %s turn for interview %s: %v", role, s.interviewID, err)
	}
}

// runMeter burns down the prepaid balance while the session is live. On
// exhaustion the client is notified and the session is closed after a short
// flush delay so the out_of_credits event reaches the wire first.
func (s *interviewSession) runMeter() {
	defer s.wg.Done()

	m := meter.New(s.store, s.userID, s.cfg.CountdownInterval)
	err := m.Run(s.ctx,
		func(balance int) {
			s.send(balanceUpdateEvent(balance))
			s.eventLog.LogAsync(s.interviewID, eventlog.EventBalanceTick, map[string]any{
				"balance": balance,
			})
		},
		func() {
			s.logger.Printf("session_ws: credits exhausted for interview %s", s.interviewID)
			s.send(outOfCreditsEvent())
			s.eventLog.LogAsync(s.interviewID, eventlog.EventCreditsExhausted, nil)
			time.Sleep(500 * time.Millisecond)
			s.cancel()
			_ = s.conn.Close()
		},
	)
	if err != nil && s.ctx.Err() == nil {
		s.logger.Printf("session_ws: meter stopped for interview %s: %v", s.interviewID, err)
		captureError(nil, err, "session_ws: meter failure")
	}
}

// cleanup tears the session down exactly once: stop producers, close the
// transport, then persist the end state with a fresh context since s.ctx is
// already cancelled.
func (s *interviewSession) cleanup() {
	s.cleanupOnce.Do(func() {
		s.cancel()
		s.segmenter.Close()

		if s.sttClient != nil {
			_ = s.sttClient.Close()
		}
		_ = s.conn.Close()

		s.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.store.EndInterview(ctx, s.interviewID, time.Now().UTC()); err != nil {
			s.logger.Printf("session_ws: failed to end interview %s: %v", s.interviewID, err)
		}

		metrics := costs.SessionMetrics{
			AudioSeconds:    int(s.audioBytes.Load() / audioBytesPerSecond),
			LLMInputTokens:  costs.EstimateTokens(int(s.promptChars.Load())),
			LLMOutputTokens: costs.EstimateTokens(int(s.outputChars.Load())),
		}
		if err := s.store.RecordInterviewCosts(ctx, s.interviewID, metrics, costs.EstimateSessionCosts(metrics)); err != nil {
			s.logger.Printf("session_ws: failed to record costs for interview %s: %v", s.interviewID, err)
		}

		s.eventLog.LogAsync(s.interviewID, eventlog.EventSessionEnded, map[string]any{
			"audio_seconds": metrics.AudioSeconds,
		})
		s.logger.Printf("session_ws: session cleaned up for interview %s", s.interviewID)
	})
}
