package model

import (
	"encoding/json"
	"time"
)

// Server-sent frame types.
const (
	TypePong         = "pong"
	TypeMessageSaved = "message_saved"
	TypeMessageError = "message_error"
)

// Auth acknowledgement statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// User-facing texts. These are the wire protocol of the original
// deployment and must stay as-is.
const (
	AuthPromptText       = "Por favor, envía tu token de autenticación."
	NotAuthenticatedText = "No autenticado"
	InvalidTokenText     = "Token inválido."
	AuthUnreachableText  = "No se pudo contactar con el servidor de autenticación."
	AuthMalformedText    = "Error en la respuesta del servidor de autenticación."
	PersistFailedText    = "No se pudo guardar el mensaje en el servidor."
)

// AuthPrompt is sent right after a connection opens.
type AuthPrompt struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewAuthPrompt() AuthPrompt {
	return AuthPrompt{Type: TypeAuth, Message: AuthPromptText}
}

// AuthResult acknowledges an authentication attempt.
type AuthResult struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func NewAuthSuccess() AuthResult {
	return AuthResult{Type: TypeAuth, Status: StatusSuccess}
}

func NewAuthFailed(message string) AuthResult {
	return AuthResult{Type: TypeAuth, Status: StatusFailed, Message: message}
}

func NewAuthError(message string) AuthResult {
	return AuthResult{Type: TypeAuth, Status: StatusError, Message: message}
}

// Pong answers a ping frame.
type Pong struct {
	Type string `json:"type"`
}

func NewPong() Pong {
	return Pong{Type: TypePong}
}

// NotAuthenticated rejects traffic from a connection that has not
// completed authentication.
type NotAuthenticated struct {
	Error string `json:"error"`
}

func NewNotAuthenticated() NotAuthenticated {
	return NotAuthenticated{Error: NotAuthenticatedText}
}

// SavedAck reports a successful persistence call back to the sender.
type SavedAck struct {
	Type      string          `json:"type"`
	MessageID string          `json:"message_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Original  json.RawMessage `json:"original_message"`
}

func NewSavedAck(messageID string, at time.Time, original []byte) SavedAck {
	return SavedAck{
		Type:      TypeMessageSaved,
		MessageID: messageID,
		Timestamp: at.Unix(),
		Original:  original,
	}
}

// ErrorAck reports that every persistence attempt failed.
type ErrorAck struct {
	Type     string          `json:"type"`
	Error    string          `json:"error"`
	Original json.RawMessage `json:"original_message"`
}

func NewErrorAck(original []byte) ErrorAck {
	return ErrorAck{
		Type:     TypeMessageError,
		Error:    PersistFailedText,
		Original: original,
	}
}
