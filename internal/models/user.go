package models

import "time"

type User struct {
	ID          int64     `json:"id"`
	SpotifyID   string    `json:"spotify_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}
