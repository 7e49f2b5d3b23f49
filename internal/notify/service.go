package notify

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"SIKON-backend/internal/platform/i18n"
)

type Service struct {
	store TokenStore
	disp  *Dispatcher
	now   func() time.Time
}

func NewService(store TokenStore, disp *Dispatcher) *Service {
	return &Service{store: store, disp: disp, now: time.Now}
}

func (s *Service) RegisterToken(ctx context.Context, userID int64, req RegisterTokenRequest) (*TokenResponse, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, ErrInvalid("token is required")
	}
	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = DeviceWeb
	}

	now := s.now()
	t := &Token{
		UserID:     userID,
		Token:      token,
		DeviceType: deviceType,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.DeviceInfo != "" {
		t.DeviceInfo = sql.NullString{String: req.DeviceInfo, Valid: true}
	}
	if err := s.store.Upsert(ctx, t); err != nil {
		return nil, err
	}
	resp := toTokenResponse(*t)
	return &resp, nil
}

func (s *Service) UnregisterToken(ctx context.Context, userID int64, token string) error {
	n, err := s.store.Deactivate(ctx, userID, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("token not found")
	}
	return nil
}

func (s *Service) UnregisterAll(ctx context.Context, userID int64) (int64, error) {
	return s.store.DeactivateAll(ctx, userID)
}

func (s *Service) Status(ctx context.Context, userID int64) (*StatusResponse, error) {
	tokens, err := s.store.ActiveTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &StatusResponse{
		Initialized:  s.disp.Initialized(),
		ActiveTokens: len(tokens),
		Tokens:       make([]TokenResponse, 0, len(tokens)),
	}
	for _, t := range tokens {
		out.Tokens = append(out.Tokens, toTokenResponse(t))
	}
	return out, nil
}

// Test sends synchronously so the caller sees the provider's answer.
func (s *Service) Test(ctx context.Context, userID int64, req TestRequest) (SendResult, error) {
	msg := Message{
		Title: req.Title,
		Body:  req.Body,
		Data:  req.Data,
	}
	if msg.Title == "" {
		msg.Title = i18n.T(ctx, "notify.test.title")
	}
	if msg.Body == "" {
		msg.Body = i18n.T(ctx, "notify.test.body")
	}
	if msg.Data == nil {
		msg.Data = map[string]string{}
	}
	msg.Data["type"] = "test"
	return s.disp.SendToUser(ctx, userID, msg)
}

func (s *Service) History(ctx context.Context, userID int64, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.disp.deliveries.History(ctx, userID, limit)
}
