package users

import (
	"encoding/json"
	"time"
)

type CreateUserRequest struct {
	Username string          `json:"username" binding:"required,min=3,max=50"`
	Password string          `json:"password" binding:"required,min=8,max=72"`
	Email    string          `json:"email" binding:"omitempty,email"`
	FullName string          `json:"full_name" binding:"required,max=150"`
	Role     string          `json:"role" binding:"required,oneof=admin project_manager site_manager finance staff worker"`
	Profile  json.RawMessage `json:"profile"`
}

type UpdateUserRequest struct {
	Email    *string         `json:"email" binding:"omitempty,email"`
	FullName *string         `json:"full_name" binding:"omitempty,max=150"`
	Role     *string         `json:"role" binding:"omitempty,oneof=admin project_manager site_manager finance staff worker"`
	IsActive *bool           `json:"is_active"`
	Password *string         `json:"password" binding:"omitempty,min=8,max=72"`
	Profile  json.RawMessage `json:"profile"`
}

type ManpowerRequest struct {
	Name      string   `json:"name" binding:"required,max=150"`
	Position  string   `json:"position" binding:"omitempty,max=100"`
	Phone     string   `json:"phone" binding:"omitempty,max=30"`
	Skills    []string `json:"skills" binding:"omitempty,dive,max=50"`
	DailyRate float64  `json:"daily_rate" binding:"gte=0"`
	IsActive  *bool    `json:"is_active"`
}

type LinkManpowerRequest struct {
	ManpowerID *int64 `json:"manpower_id"` // null unlinks
}

type UserResponse struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	Email       *string         `json:"email,omitempty"`
	FullName    string          `json:"full_name"`
	Role        string          `json:"role"`
	IsActive    bool            `json:"is_active"`
	ManpowerID  *int64          `json:"manpower_id,omitempty"`
	Profile     json.RawMessage `json:"profile,omitempty"`
	LastLoginAt *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ManpowerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Position  *string   `json:"position,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Skills    []string  `json:"skills"`
	DailyRate float64   `json:"daily_rate"`
	IsActive  bool      `json:"is_active"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func toUserResponse(u *User) UserResponse {
	r := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		Profile:   u.Profile,
		CreatedAt: u.CreatedAt,
	}
	if u.Email.Valid {
		r.Email = &u.Email.String
	}
	if u.ManpowerID.Valid {
		r.ManpowerID = &u.ManpowerID.Int64
	}
	if u.LastLoginAt.Valid {
		r.LastLoginAt = &u.LastLoginAt.Time
	}
	return r
}

func toManpowerResponse(m *Manpower) ManpowerResponse {
	r := ManpowerResponse{
		ID:        m.ID,
		Name:      m.Name,
		Skills:    m.Skills,
		DailyRate: m.DailyRate,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
	if m.Position.Valid {
		r.Position = &m.Position.String
	}
	if m.Phone.Valid {
		r.Phone = &m.Phone.String
	}
	if m.UserID.Valid {
		r.UserID = &m.UserID.Int64
	}
	return r
}
