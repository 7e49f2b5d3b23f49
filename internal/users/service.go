package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"strings"
	"time"

	"SIKON-backend/internal/platform/auth"
)

type Service struct {
	store UserStore
	now   func() time.Time
	hash  func(string) (string, error)
}

func NewService(store UserStore) *Service {
	return &Service{store: store, now: time.Now, hash: auth.HashPassword}
}

// ===== users =====

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !auth.ValidRole(req.Role) {
		return nil, ErrInvalid("invalid role")
	}
	if err := validProfile(req.Profile); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := &User{
		Username:     strings.TrimSpace(req.Username),
		Email:        nullString(req.Email),
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
		Profile:      req.Profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	log.Printf("[INFO] user created id=%d username=%s role=%s", u.ID, u.Username, u.Role)
	resp := toUserResponse(u)
	return &resp, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*UserResponse, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter, page, limit int) (*UserListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	f.Limit, f.Offset = limit, (page-1)*limit

	items, total, err := s.store.ListUsers(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &UserListResponse{Items: make([]UserResponse, 0, len(items)), Total: total, Page: page, Limit: limit}
	for i := range items {
		out.Items = append(out.Items, toUserResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*UserResponse, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		u.Email = nullString(*req.Email)
	}
	if req.FullName != nil {
		if strings.TrimSpace(*req.FullName) == "" {
			return nil, ErrInvalid("full_name must not be empty")
		}
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		if !auth.ValidRole(*req.Role) {
			return nil, ErrInvalid("invalid role")
		}
		u.Role = *req.Role
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.Password != nil {
		if u.PasswordHash, err = s.hash(*req.Password); err != nil {
			return nil, err
		}
	}
	if req.Profile != nil {
		if err := validProfile(req.Profile); err != nil {
			return nil, err
		}
		u.Profile = req.Profile
	}
	u.UpdatedAt = s.now()

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

// DeactivateUser disables login; the row is kept for attendance and budget history.
func (s *Service) DeactivateUser(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrInvalid("you cannot deactivate your own account")
	}
	active := false
	_, err := s.UpdateUser(ctx, id, UpdateUserRequest{IsActive: &active})
	return err
}

func (s *Service) LinkManpower(ctx context.Context, userID int64, manpowerID *int64) (*UserResponse, error) {
	if err := s.store.Link(ctx, userID, manpowerID); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

// ===== manpower =====

func (s *Service) CreateManpower(ctx context.Context, req ManpowerRequest) (*ManpowerResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}
	if req.DailyRate < 0 {
		return nil, ErrInvalid("daily_rate must be >= 0")
	}
	now := s.now()
	m := &Manpower{
		Name:      name,
		Position:  nullString(req.Position),
		Phone:     nullString(req.Phone),
		Skills:    cleanSkills(req.Skills),
		DailyRate: req.DailyRate,
		IsActive:  req.IsActive == nil || *req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertManpower(ctx, m); err != nil {
		return nil, err
	}
	resp := toManpowerResponse(m)
	return &resp, nil
}

func (s *Service) ListManpower(ctx context.Context, activeOnly bool) ([]ManpowerResponse, error) {
	ms, err := s.store.ListManpower(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]ManpowerResponse, 0, len(ms))
	for i := range ms {
		out = append(out, toManpowerResponse(&ms[i]))
	}
	return out, nil
}

func (s *Service) UpdateManpower(ctx context.Context, id int64, req ManpowerRequest) (*ManpowerResponse, error) {
	m, err := s.store.GetManpower(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalid("name is required")
	}
	m.Name = name
	m.Position = nullString(req.Position)
	m.Phone = nullString(req.Phone)
	m.Skills = cleanSkills(req.Skills)
	m.DailyRate = req.DailyRate
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	m.UpdatedAt = s.now()
	if err := s.store.UpdateManpower(ctx, m); err != nil {
		return nil, err
	}
	resp := toManpowerResponse(m)
	return &resp, nil
}

// ---------- helpers ----------

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}

func validProfile(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ErrInvalid("profile must be a JSON object")
	}
	return nil
}

// cleanSkills trims, drops empties and removes case-insensitive duplicates.
func cleanSkills(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
