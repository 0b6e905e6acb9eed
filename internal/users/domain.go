package users

import "time"

// User represents an account for administration, with its directly
// assigned role codes.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	RoleCodes []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
