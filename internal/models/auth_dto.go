package models

import "time"

type ErrorResponse struct {
	Reason     string `json:"reason"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

type SessionUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

type SessionResponse struct {
	User        SessionUser `json:"user"`
	TokenStatus string      `json:"token_status"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

type AdminSessionResponse struct {
	SessionResponse
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	State     string    `json:"credential_state"`
	// Directory is the user's directory record, absent if it is not there.
	Directory *User `json:"directory,omitempty"`
}

type UsersResponse struct {
	Items []User `json:"items"`
}

// SessionEvent is posted to the events webhook.
type SessionEvent struct {
	Event     string    `json:"event"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}
