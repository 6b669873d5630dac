package httpapi

// wsEvent is the outbound event envelope for the session WebSocket. The
// Event field discriminates; the remaining fields are populated per type.
type wsEvent struct {
	Event   string `json:"event"`
	Text    string `json:"text,omitempty"`
	IsFinal *bool  `json:"is_final,omitempty"`
	Balance *int   `json:"balance,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

const (
	eventTranscript        = "transcript"
	eventGenerationStarted = "generation_started"
	eventGenerationChunk   = "generation_chunk"
	eventGenerationDone    = "generation_done"
	eventBalanceUpdate     = "balance_update"
	eventOutOfCredits      = "out_of_credits"
	eventRejected          = "rejected"
)

func transcriptEvent(text string, isFinal bool) wsEvent {
	return wsEvent{Event: eventTranscript, Text: text, IsFinal: &isFinal}
}

func generationStartedEvent() wsEvent {
	return wsEvent{Event: eventGenerationStarted}
}

func generationChunkEvent(text string) wsEvent {
	return wsEvent{Event: eventGenerationChunk, Text: text}
}

func generationDoneEvent() wsEvent {
	return wsEvent{Event: eventGenerationDone}
}

func balanceUpdateEvent(balance int) wsEvent {
	return wsEvent{Event: eventBalanceUpdate, Balance: &balance}
}

func outOfCreditsEvent() wsEvent {
	return wsEvent{Event: eventOutOfCredits}
}

func rejectedEvent(reason string) wsEvent {
	return wsEvent{Event: eventRejected, Reason: reason}
}
