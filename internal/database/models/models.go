// Package models holds the database row types shared by the repositories.
package models

import "time"

// User is a registered account. Usernames are unique and serve as the
// identity everywhere else in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Message is one persisted chat message between two users.
type Message struct {
	ID        int64     `json:"-"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
