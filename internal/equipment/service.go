package equipment

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ===== interfaces =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ProjectDirectory is satisfied by projects.Service.
type ProjectDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// ===== service =====

type Service struct {
	store    EquipmentStore
	projects ProjectDirectory
	clock    Clock
	id       IDGen
}

func NewService(store EquipmentStore, projects ProjectDirectory) *Service {
	return &Service{store: store, projects: projects, clock: realClock{}, id: ulidGen{}}
}

func (s *Service) CreateEquipment(ctx context.Context, req CreateEquipmentRequest) (*EquipmentResponse, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, ErrInvalid("code and name are required")
	}
	if req.TotalQuantity <= 0 {
		return nil, ErrInvalid("total_quantity must be positive")
	}
	now := s.clock.Now()
	e := &Equipment{
		Code:              code,
		Name:              name,
		Category:          strings.TrimSpace(req.Category),
		Unit:              strings.TrimSpace(req.Unit),
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.InsertEquipment(ctx, e); err != nil {
		return nil, err
	}
	resp := toEquipmentResponse(e)
	return &resp, nil
}

func (s *Service) ListEquipment(ctx context.Context, category string) ([]EquipmentResponse, error) {
	items, err := s.store.ListEquipment(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]EquipmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toEquipmentResponse(&items[i]))
	}
	return out, nil
}

// Lend hands out equipment to a project. borrowed_by defaults to the caller.
func (s *Service) Lend(ctx context.Context, userID int64, req CreateLoanRequest) (*LoanResponse, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalid("quantity must be positive")
	}
	ok, err := s.projects.Exists(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound("project not found")
	}

	id, err := s.id.New()
	if err != nil {
		return nil, err
	}
	l := &Loan{
		LoanULID:    id,
		EquipmentID: req.EquipmentID,
		ProjectID:   req.ProjectID,
		Quantity:    req.Quantity,
		BorrowedBy:  req.BorrowedBy,
		LentBy:      userID,
		LentAt:      s.clock.Now(),
		Note:        nullString(req.Note),
	}
	if l.BorrowedBy == 0 {
		l.BorrowedBy = userID
	}
	if req.DueOn != nil && *req.DueOn != "" {
		d, err := time.Parse("2006-01-02", *req.DueOn)
		if err != nil {
			return nil, ErrInvalid("invalid due_on format, expected YYYY-MM-DD")
		}
		l.DueOn = sql.NullTime{Time: d, Valid: true}
	}

	if err := s.store.ExecLend(ctx, l); err != nil {
		return nil, err
	}
	log.Printf("[INFO] equipment lent loan=%s equipment=%d project=%d qty=%d", l.LoanULID, l.EquipmentID, l.ProjectID, l.Quantity)
	resp := toLoanResponse(l)
	return &resp, nil
}

// Return accepts partial returns; the loan completes once everything is back.
func (s *Service) Return(ctx context.Context, userID int64, req CreateReturnRequest) (*ReturnResponse, error) {
	loanID := strings.TrimSpace(req.LoanULID)
	if loanID == "" {
		return nil, ErrInvalid("loan_ulid is required")
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalid("quantity must be positive")
	}
	id, err := s.id.New()
	if err != nil {
		return nil, err
	}
	r := &Return{
		ReturnULID:  id,
		Quantity:    req.Quantity,
		ProcessedBy: userID,
		ReturnedAt:  s.clock.Now(),
		Note:        nullString(req.Note),
	}
	loan, err := s.store.ExecReturn(ctx, loanID, r)
	if err != nil {
		return nil, err
	}
	resp := &ReturnResponse{
		ReturnULID:    r.ReturnULID,
		LoanULID:      loan.LoanULID,
		Quantity:      r.Quantity,
		ProcessedBy:   r.ProcessedBy,
		ReturnedAt:    r.ReturnedAt,
		LoanCompleted: loan.Returned,
	}
	if r.Note.Valid {
		n := r.Note.String
		resp.Note = &n
	}
	return resp, nil
}

func (s *Service) ListLoans(ctx context.Context, f LoanFilter) ([]LoanResponse, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	loans, err := s.store.ListLoans(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		out = append(out, toLoanResponse(&loans[i]))
	}
	return out, nil
}

func nullString(p *string) sql.NullString {
	if p == nil || strings.TrimSpace(*p) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*p), Valid: true}
}
