package auth

import "time"

// Role values accepted on signup.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// User represents an account that can authenticate.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
