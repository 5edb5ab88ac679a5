package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	JoinedContests []string  `json:"joined_contests,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
