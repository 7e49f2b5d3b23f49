package users

import (
	"database/sql"
	"encoding/json"
	"time"
)

// User is a system account. ManpowerID links it to an employee record.
type User struct {
	ID           int64
	Username     string
	Email        sql.NullString
	FullName     string
	PasswordHash string
	Role         string
	IsActive     bool
	ManpowerID   sql.NullInt64
	Profile      json.RawMessage
	LastLoginAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Manpower is an employee or field worker; UserID is set only when the person can log in.
type Manpower struct {
	ID        int64
	Name      string
	Position  sql.NullString
	Phone     sql.NullString
	Skills    []string
	DailyRate float64
	IsActive  bool
	UserID    sql.NullInt64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserFilter struct {
	Role     string
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}
