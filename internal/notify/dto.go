package notify

import "time"

type RegisterTokenRequest struct {
	Token      string `json:"token" binding:"required,max=512"`
	DeviceType string `json:"device_type" binding:"omitempty,oneof=web android ios"`
	DeviceInfo string `json:"device_info" binding:"omitempty,max=255"`
}

type UnregisterTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type TestRequest struct {
	Title string            `json:"title" binding:"omitempty,max=200"`
	Body  string            `json:"body" binding:"omitempty,max=1000"`
	Data  map[string]string `json:"data"`
}

type TokenResponse struct {
	ID         int64      `json:"id"`
	Token      string     `json:"token"`
	DeviceType string     `json:"device_type"`
	DeviceInfo *string    `json:"device_info,omitempty"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type StatusResponse struct {
	Initialized  bool            `json:"initialized"`
	ActiveTokens int             `json:"active_tokens"`
	Tokens       []TokenResponse `json:"tokens"`
}

func toTokenResponse(t Token) TokenResponse {
	r := TokenResponse{
		ID:         t.ID,
		Token:      maskToken(t.Token),
		DeviceType: t.DeviceType,
		IsActive:   t.IsActive,
		CreatedAt:  t.CreatedAt,
	}
	if t.DeviceInfo.Valid {
		v := t.DeviceInfo.String
		r.DeviceInfo = &v
	}
	if t.LastUsedAt.Valid {
		v := t.LastUsedAt.Time
		r.LastUsedAt = &v
	}
	return r
}

// maskToken keeps the first and last 6 characters.
func maskToken(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:6] + "..." + s[len(s)-6:]
}
