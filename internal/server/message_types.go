package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeHello        MessageType = "hello"
	MessageTypeStartGame    MessageType = "start_game"
	MessageTypeAttemptMatch MessageType = "attempt_match"
	MessageTypeListCards    MessageType = "list_cards"
	MessageTypeGetState     MessageType = "get_state"
	MessageTypeGetScores    MessageType = "get_scores"

	// Server to client replies
	MessageTypeWelcome     MessageType = "welcome"
	MessageTypeError       MessageType = "error"
	MessageTypeStartResult MessageType = "start_result"
	MessageTypeMatchResult MessageType = "match_result"
	MessageTypeCards       MessageType = "cards"
	MessageTypeState       MessageType = "state"
	MessageTypeScores      MessageType = "scores"

	// Server to client broadcasts, mirroring game.EventType
	MessageTypeGameStarted MessageType = "game_started"
	MessageTypeCardMatched MessageType = "card_matched"
	MessageTypeGameEnded   MessageType = "game_ended"
)

// Error codes that do not come from the engine
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeUnauthenticated  = "unauthenticated"
	ErrorCodeAuthUnavailable  = "auth_unavailable"
	ErrorCodeUnknownMessage   = "unknown_message"
	ErrorCodeAlreadyConnected = "already_authenticated"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// IsBroadcast reports whether the type is an engine signal rather than a reply.
func (mt MessageType) IsBroadcast() bool {
	switch mt {
	case MessageTypeGameStarted, MessageTypeCardMatched, MessageTypeGameEnded:
		return true
	}
	return false
}
