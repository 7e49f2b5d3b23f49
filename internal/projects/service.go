package projects

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	"SIKON-backend/internal/platform/auth"
)

type Service struct {
	store ProjectStore
	now   func() time.Time
}

func NewService(store ProjectStore) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID int64, req CreateProjectRequest) (*ProjectResponse, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, ErrInvalid("code and name are required")
	}

	now := s.now()
	p := &Project{
		Code:      code,
		Name:      name,
		Client:    nullString(req.Client),
		Address:   nullString(req.Address),
		Status:    req.Status,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Status == "" {
		p.Status = StatusPlanning
	}

	var err error
	if p.StartDate, err = parseDate(req.StartDate, "start_date"); err != nil {
		return nil, err
	}
	if p.EndDate, err = parseDate(req.EndDate, "end_date"); err != nil {
		return nil, err
	}
	if p.StartDate.Valid && p.EndDate.Valid && p.EndDate.Time.Before(p.StartDate.Time) {
		return nil, ErrInvalid("end_date must not be before start_date")
	}

	if err := s.store.Insert(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[INFO] project created id=%d code=%s by=%d", p.ID, p.Code, userID)
	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*ProjectResponse, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(p)
	return &resp, nil
}

// List returns every project to admins and only their own projects to everyone else.
func (s *Service) List(ctx context.Context, userID int64, role, status string, page, limit int) (*ListResponse, error) {
	page, limit = normalizePage(page, limit)
	f := ProjectFilter{Status: status, Limit: limit, Offset: (page - 1) * limit}
	if role != auth.RoleAdmin {
		f.MemberUserID = userID
	}
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &ListResponse{Items: make([]ProjectResponse, 0, len(items)), Total: total, Page: page, Limit: limit}
	for i := range items {
		out.Items = append(out.Items, toResponse(&items[i]))
	}
	return out, nil
}

func (s *Service) AddMember(ctx context.Context, projectID int64, req AddMemberRequest) (*MemberResponse, error) {
	if err := s.mustExist(ctx, projectID); err != nil {
		return nil, err
	}
	ok, err := s.store.UserExists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound("user not found")
	}

	m := &Member{ProjectID: projectID, UserID: req.UserID, Role: req.Role, JoinedAt: s.now()}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}
	return &MemberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt}, nil
}

func (s *Service) RemoveMember(ctx context.Context, projectID, userID int64) error {
	n, err := s.store.RemoveMember(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("member not found")
	}
	return nil
}

func (s *Service) ListMembers(ctx context.Context, projectID int64) ([]MemberResponse, error) {
	if err := s.mustExist(ctx, projectID); err != nil {
		return nil, err
	}
	ms, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]MemberResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, MemberResponse{UserID: m.UserID, Username: m.Username, FullName: m.FullName, Role: m.Role, JoinedAt: m.JoinedAt})
	}
	return out, nil
}

// Exists is used by other features to validate project ids.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.store.Exists(ctx, id)
}

// CanAccess reports whether userID may act on the project: admins always, others when they are members.
func (s *Service) CanAccess(ctx context.Context, projectID, userID int64, role string) (bool, error) {
	if role == auth.RoleAdmin {
		return true, nil
	}
	return s.store.IsMember(ctx, projectID, userID)
}

// ApproverIDs resolves who reviews budget items of a project: team members with a
// managing or finance role, or every active admin when the team has none.
func (s *Service) ApproverIDs(ctx context.Context, projectID int64) ([]int64, error) {
	ids, err := s.store.MemberIDsByRoles(ctx, projectID, approverRoles)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}
	return s.store.ActiveAdminIDs(ctx)
}

func (s *Service) mustExist(ctx context.Context, id int64) error {
	ok, err := s.store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound("project not found")
	}
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil || strings.TrimSpace(*p) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*p), Valid: true}
}

func parseDate(p *string, field string) (sql.NullTime, error) {
	if p == nil || *p == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse("2006-01-02", *p)
	if err != nil {
		return sql.NullTime{}, ErrInvalid("invalid " + field + " format, expected YYYY-MM-DD")
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
