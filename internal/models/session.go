package models

import "time"

// Session is the server-side state behind a session cookie.
type Session struct {
	ID         string     `json:"id"`
	UserID     int64      `json:"user_id"`
	Identity   Identity   `json:"identity"`
	Credential Credential `json:"credential"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
