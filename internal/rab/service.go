package rab

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"SIKON-backend/internal/notify"
	"SIKON-backend/internal/platform/auth"
	"SIKON-backend/internal/platform/i18n"
)

// ProjectDirectory is the part of the projects feature the budget depends on.
type ProjectDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	CanAccess(ctx context.Context, projectID, userID int64, role string) (bool, error)
	ApproverIDs(ctx context.Context, projectID int64) ([]int64, error)
}

// Notifier queues push notifications; it must not block.
type Notifier interface {
	Enqueue(userIDs []int64, msg notify.Message) bool
}

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
	Role   string
}

type Service struct {
	store    RABStore
	projects ProjectDirectory
	notifier Notifier
	now      func() time.Time
}

func NewService(store RABStore, projects ProjectDirectory, notifier Notifier) *Service {
	return &Service{store: store, projects: projects, notifier: notifier, now: time.Now}
}

// ===== reads =====

func (s *Service) List(ctx context.Context, actor Actor, f Filter) (*ListResponse, error) {
	if err := s.access(ctx, actor, f.ProjectID); err != nil {
		return nil, err
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, ErrInvalid("invalid status")
	}
	if f.ItemType != "" && !slices.Contains(itemTypes, f.ItemType) {
		return nil, ErrInvalid("invalid item_type")
	}
	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &ListResponse{Items: make([]ItemResponse, 0, len(items)), Count: len(items)}
	for i := range items {
		out.Items = append(out.Items, toResponse(&items[i]))
		out.GrandTotal += items[i].TotalPrice
	}
	out.GrandTotal = round2(out.GrandTotal)
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, projectID, id int64) (*ItemResponse, error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return nil, err
	}
	it, err := s.store.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(it)
	return &resp, nil
}

// Summary totals the budget per category and per status.
func (s *Service) Summary(ctx context.Context, actor Actor, projectID int64) (*SummaryResponse, error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return nil, err
	}
	rows, err := s.store.Summary(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := &SummaryResponse{ProjectID: projectID, ByStatus: map[string]StatusTotal{}}
	idx := map[string]int{}
	for _, r := range rows {
		out.ItemCount += r.Count
		out.GrandTotal += r.Total
		if r.Status == StatusApproved {
			out.ApprovedTotal += r.Total
		}

		st := out.ByStatus[r.Status]
		st.Count += r.Count
		st.Total = round2(st.Total + r.Total)
		out.ByStatus[r.Status] = st

		i, ok := idx[r.Category]
		if !ok {
			i = len(out.ByCategory)
			idx[r.Category] = i
			out.ByCategory = append(out.ByCategory, CategoryTotal{Category: r.Category})
		}
		out.ByCategory[i].Count += r.Count
		out.ByCategory[i].Total = round2(out.ByCategory[i].Total + r.Total)
	}
	out.GrandTotal = round2(out.GrandTotal)
	out.ApprovedTotal = round2(out.ApprovedTotal)
	return out, nil
}

// ===== writes =====

func (s *Service) Create(ctx context.Context, actor Actor, projectID int64, req CreateItemRequest) (*ItemResponse, error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	if !slices.Contains(initialStatuses, status) {
		return nil, ErrInvalid("an item must be created as draft, under_review or pending_approval")
	}
	if !slices.Contains(itemTypes, req.ItemType) {
		return nil, ErrInvalid("invalid item_type")
	}
	if req.Quantity <= 0 || req.UnitPrice < 0 {
		return nil, ErrInvalid("quantity must be > 0 and unit_price >= 0")
	}

	now := s.now()
	it := &Item{
		ProjectID:   projectID,
		Category:    strings.TrimSpace(req.Category),
		ItemType:    req.ItemType,
		Description: strings.TrimSpace(req.Description),
		Unit:        strings.TrimSpace(req.Unit),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Status:      status,
		Notes:       nullString(req.Notes),
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	it.TotalPrice = TotalPrice(it.Quantity, it.UnitPrice)
	if it.Category == "" || it.Description == "" || it.Unit == "" {
		return nil, ErrInvalid("category, description and unit are required")
	}

	if err := s.store.Insert(ctx, it); err != nil {
		return nil, err
	}
	s.notifyApprovers(ctx, it, "rab.submitted.title")
	resp := toResponse(it)
	return &resp, nil
}

// Update edits the line item and recomputes its total. It never changes status.
func (s *Service) Update(ctx context.Context, actor Actor, projectID, id int64, req UpdateItemRequest) (*ItemResponse, error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return nil, err
	}
	it, err := s.store.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if it.Status == StatusApproved {
		return nil, ErrConflict("approved items cannot be edited; reject the item first")
	}

	if req.Category != nil {
		it.Category = strings.TrimSpace(*req.Category)
	}
	if req.ItemType != nil {
		if !slices.Contains(itemTypes, *req.ItemType) {
			return nil, ErrInvalid("invalid item_type")
		}
		it.ItemType = *req.ItemType
	}
	if req.Description != nil {
		it.Description = strings.TrimSpace(*req.Description)
	}
	if req.Unit != nil {
		it.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			return nil, ErrInvalid("quantity must be > 0")
		}
		it.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		if *req.UnitPrice < 0 {
			return nil, ErrInvalid("unit_price must be >= 0")
		}
		it.UnitPrice = *req.UnitPrice
	}
	if req.Notes != nil {
		it.Notes = nullString(*req.Notes)
	}
	if it.Category == "" || it.Description == "" || it.Unit == "" {
		return nil, ErrInvalid("category, description and unit cannot be empty")
	}
	it.TotalPrice = TotalPrice(it.Quantity, it.UnitPrice)
	it.UpdatedAt = s.now()

	if err := s.store.Update(ctx, it); err != nil {
		return nil, err
	}
	resp := toResponse(it)
	return &resp, nil
}

// Delete removes an item. Approved items must be rejected first.
func (s *Service) Delete(ctx context.Context, actor Actor, projectID, id int64) error {
	if err := s.access(ctx, actor, projectID); err != nil {
		return err
	}
	it, err := s.store.Get(ctx, projectID, id)
	if err != nil {
		return err
	}
	if it.Status == StatusApproved {
		return ErrConflict("approved items cannot be deleted; reject the item first")
	}
	n, err := s.store.Delete(ctx, projectID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict("item was approved in the meantime")
	}
	return nil
}

// Approve marks an item approved and notifies its creator.
func (s *Service) Approve(ctx context.Context, actor Actor, projectID, id int64) (*ItemResponse, error) {
	return s.transition(ctx, actor, projectID, id, StatusApproved, "")
}

// Reject marks an item rejected. The reason is required and kept in notes.
func (s *Service) Reject(ctx context.Context, actor Actor, projectID, id int64, reason string) (*ItemResponse, error) {
	return s.transition(ctx, actor, projectID, id, StatusRejected, reason)
}

// UpdateStatus moves an item along the transition table.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, projectID, id int64, req StatusRequest) (*ItemResponse, error) {
	if !ValidStatus(req.Status) {
		return nil, ErrInvalid("invalid status")
	}
	return s.transition(ctx, actor, projectID, id, req.Status, req.Reason)
}

// ApproveAll approves every draft item of the project and notifies their creators.
func (s *Service) ApproveAll(ctx context.Context, actor Actor, projectID int64) (*ApproveAllResponse, error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return nil, err
	}
	n, creators, err := s.store.ApproveDrafts(ctx, projectID, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] rab: project %d approve-all by user %d: %d items", projectID, actor.UserID, n)

	if n > 0 {
		if ids, err := s.projects.ApproverIDs(ctx, projectID); err != nil {
			log.Printf("[WARN] rab: project %d: resolve approvers: %v", projectID, err)
		} else {
			s.send(ids, notify.Message{
				Title: i18n.T(ctx, "rab.status_changed.title"),
				Body:  i18n.T(ctx, "rab.bulk_approved.body", map[string]any{"Count": n}),
				Data:  map[string]string{"type": "rab_bulk_approved", "project_id": fmt.Sprint(projectID)},
			})
		}
		s.send(creators, notify.Message{
			Title: i18n.T(ctx, "rab.bulk_approved.title"),
			Body:  i18n.T(ctx, "rab.bulk_approved.body", map[string]any{"Count": n}),
			Data:  map[string]string{"type": "rab_bulk_approved", "project_id": fmt.Sprint(projectID)},
		})
	}
	return &ApproveAllResponse{Approved: n}, nil
}

// ---------- helpers ----------

func (s *Service) transition(ctx context.Context, actor Actor, projectID, id int64, to, reason string) (*ItemResponse, error) {
	if err := s.access(ctx, actor, projectID); err != nil {
		return nil, err
	}
	if actor.UserID <= 0 {
		return nil, ErrInvalid("approver id is required")
	}
	it, err := s.store.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	from := it.Status
	if from == to && to == StatusApproved {
		return nil, ErrConflict("item is already approved")
	}
	if !CanTransition(from, to) {
		return nil, ErrConflict(fmt.Sprintf("cannot change status from %s to %s", from, to))
	}
	reason = strings.TrimSpace(reason)
	if to == StatusRejected && reason == "" {
		return nil, ErrInvalid("a reason is required to reject an item")
	}

	now := s.now()
	it.Status = to
	it.UpdatedAt = now
	switch to {
	case StatusApproved:
		it.IsApproved = true
		it.ApprovedBy = sql.NullInt64{Int64: actor.UserID, Valid: true}
		it.ApprovedAt = sql.NullTime{Time: now, Valid: true}
	case StatusRejected:
		it.IsApproved = false
		it.RejectedBy = sql.NullInt64{Int64: actor.UserID, Valid: true}
		it.RejectedAt = sql.NullTime{Time: now, Valid: true}
		it.Notes = sql.NullString{String: reason, Valid: true}
	default:
		it.IsApproved = false
	}

	ok, err := s.store.SetStatus(ctx, it, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict("item status changed in the meantime, reload and retry")
	}
	log.Printf("[INFO] rab: item %d %s -> %s by user %d", it.ID, from, to, actor.UserID)

	s.notifyApprovers(ctx, it, "rab.status_changed.title")
	switch to {
	case StatusApproved, StatusRejected, StatusReviewed:
		s.notifyCreator(ctx, it)
	}
	resp := toResponse(it)
	return &resp, nil
}

func (s *Service) access(ctx context.Context, actor Actor, projectID int64) error {
	if projectID <= 0 {
		return ErrInvalid("invalid project id")
	}
	ok, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound("project not found")
	}
	if auth.IsManager(actor.Role) {
		return nil
	}
	ok, err = s.projects.CanAccess(ctx, projectID, actor.UserID, actor.Role)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden("you are not a member of this project")
	}
	return nil
}

func (s *Service) notifyApprovers(ctx context.Context, it *Item, titleID string) {
	if s.notifier == nil {
		return
	}
	ids, err := s.projects.ApproverIDs(ctx, it.ProjectID)
	if err != nil {
		log.Printf("[WARN] rab: item %d: resolve approvers: %v", it.ID, err)
		return
	}
	s.send(ids, notify.Message{
		Title: i18n.T(ctx, titleID),
		Body: i18n.T(ctx, "rab.submitted.body", map[string]any{
			"Description": it.Description, "Category": it.Category, "Total": rupiah(it.TotalPrice), "Status": it.Status,
		}),
		Data: itemData(it),
	})
}

func (s *Service) notifyCreator(ctx context.Context, it *Item) {
	if s.notifier == nil || it.CreatedBy <= 0 {
		return
	}
	msg := notify.Message{Data: itemData(it)}
	if it.Status == StatusRejected {
		msg.Title = i18n.T(ctx, "rab.rejected.title")
		msg.Body = i18n.T(ctx, "rab.rejected.body", map[string]any{"Description": it.Description, "Reason": it.Notes.String})
	} else {
		msg.Title = i18n.T(ctx, "rab.approved.title")
		msg.Body = i18n.T(ctx, "rab.approved.body", map[string]any{"Description": it.Description, "Total": rupiah(it.TotalPrice)})
	}
	s.send([]int64{it.CreatedBy}, msg)
}

func (s *Service) send(ids []int64, msg notify.Message) {
	if s.notifier == nil || len(ids) == 0 {
		return
	}
	if !s.notifier.Enqueue(ids, msg) {
		log.Printf("[WARN] rab: notification %q dropped for %d users", msg.Title, len(ids))
	}
}

func itemData(it *Item) map[string]string {
	return map[string]string{
		"type":       "rab_item",
		"project_id": fmt.Sprint(it.ProjectID),
		"item_id":    fmt.Sprint(it.ID),
		"status":     it.Status,
	}
}

// TotalPrice is quantity * unit price rounded to cents.
func TotalPrice(quantity, unitPrice float64) float64 {
	return round2(quantity * unitPrice)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

var idPrinter = message.NewPrinter(language.Indonesian)

// rupiah formats an amount with Indonesian digit grouping.
func rupiah(v float64) string {
	return idPrinter.Sprintf("%.0f", v)
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}
