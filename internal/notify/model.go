package notify

import (
	"database/sql"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	DeviceWeb     = "web"
	DeviceAndroid = "android"
	DeviceIOS     = "ios"
)

// Token is one row of notification_tokens. Tokens are deactivated, never deleted.
type Token struct {
	ID         int64
	UserID     int64
	Token      string
	DeviceType string
	DeviceInfo sql.NullString
	IsActive   bool
	LastUsedAt sql.NullTime
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Message is the push payload. Data values must be strings (FCM restriction).
type Message struct {
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	ClickAction string            `json:"click_action,omitempty"`
}

// SendResult is the outcome of one user's send. A user without tokens or a dispatcher
// without a push provider yields Success=false with a message, not an error.
type SendResult struct {
	UserID        int64  `json:"user_id"`
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	SuccessCount  int    `json:"success_count"`
	FailureCount  int    `json:"failure_count"`
	InvalidTokens int    `json:"invalid_tokens"`
	Error         string `json:"error,omitempty"`

	retryable bool
}

type BatchResult struct {
	Success   bool         `json:"success"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []SendResult `json:"results"`
}

// Delivery is one push attempt for one token, kept in the delivery log.
type Delivery struct {
	ID      bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID  int64         `bson:"user_id" json:"user_id"`
	Token   string        `bson:"token" json:"token"`
	Title   string        `bson:"title" json:"title"`
	Body    string        `bson:"body" json:"body"`
	Success bool          `bson:"success" json:"success"`
	Error   string        `bson:"error,omitempty" json:"error,omitempty"`
	Invalid bool          `bson:"invalid" json:"invalid"`
	SentAt  time.Time     `bson:"sent_at" json:"sent_at"`
}
