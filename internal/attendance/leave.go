package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"SIKON-backend/internal/notify"
	"SIKON-backend/internal/platform/i18n"
)

// leaveTransitions lists every legal leave status change.
var leaveTransitions = map[string][]string{
	LeavePending: {LeaveApproved, LeaveRejected},
}

func canTransitionLeave(from, to string) bool {
	return slices.Contains(leaveTransitions[from], to)
}

// CreateLeave stores a pending leave request and notifies the approvers.
func (s *Service) CreateLeave(ctx context.Context, in LeaveInput) (*LeaveResponse, error) {
	start, err := time.Parse(DateLayout, in.StartDate)
	if err != nil {
		return nil, ErrInvalid("startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse(DateLayout, in.EndDate)
	if err != nil {
		return nil, ErrInvalid("endDate must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, ErrInvalid("endDate must be >= startDate")
	}
	if !slices.Contains(leaveTypes, in.Type) {
		return nil, ErrInvalid("invalid leave type")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrInvalid("reason is required")
	}
	if in.ProjectID > 0 {
		if err := s.requireProject(ctx, in.ProjectID); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	l := &LeaveRequest{
		UserID:        in.UserID,
		ProjectID:     sql.NullInt64{Int64: in.ProjectID, Valid: in.ProjectID > 0},
		Type:          in.Type,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Reason:        reason,
		AttachmentKey: nullString(in.AttachmentKey),
		AttachmentURL: nullString(in.AttachmentURL),
		Status:        LeavePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertLeave(ctx, l); err != nil {
		return nil, err
	}
	if full, err := s.store.GetLeave(ctx, l.ID); err == nil {
		l = full
	}

	s.notifyApprovers(ctx, l)
	resp := toLeaveResponse(l)
	return &resp, nil
}

// ListLeave returns the caller's own requests; managers may list everyone's.
func (s *Service) ListLeave(ctx context.Context, actor Actor, f LeaveFilter, page, limit int) (*LeaveListResponse, error) {
	if !actor.isManager() {
		f.UserID = actor.UserID
	}
	if f.Status != "" && f.Status != LeavePending && f.Status != LeaveApproved && f.Status != LeaveRejected {
		return nil, ErrInvalid("invalid status")
	}
	page, limit = normalizePage(page, limit)
	f.Limit, f.Offset = limit, (page-1)*limit

	list, total, err := s.store.ListLeave(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &LeaveListResponse{Items: make([]LeaveResponse, 0, len(list)), Total: total, Page: page, Limit: limit}
	for i := range list {
		out.Items = append(out.Items, toLeaveResponse(&list[i]))
	}
	return out, nil
}

// ReviewLeave approves or rejects a pending request. Rejecting needs a reason.
func (s *Service) ReviewLeave(ctx context.Context, actor Actor, id int64, req ReviewLeaveRequest) (*LeaveResponse, error) {
	l, err := s.store.GetLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.ProjectID.Valid {
		ok, err := s.projects.CanAccess(ctx, l.ProjectID.Int64, actor.UserID, actor.Role)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden("you are not assigned to this project")
		}
	}
	if !canTransitionLeave(l.Status, req.Status) {
		return nil, ErrConflict(fmt.Sprintf("leave request is already %s", l.Status))
	}
	reason := strings.TrimSpace(req.RejectionReason)
	if req.Status == LeaveRejected && reason == "" {
		return nil, ErrInvalid("rejection_reason is required when rejecting")
	}

	from := l.Status
	now := s.clock.Now()
	l.Status = req.Status
	l.ReviewedBy = sql.NullInt64{Int64: actor.UserID, Valid: true}
	l.ReviewedAt = sql.NullTime{Time: now, Valid: true}
	l.RejectionReason = sql.NullString{}
	if req.Status == LeaveRejected {
		l.RejectionReason = sql.NullString{String: reason, Valid: true}
	}
	l.UpdatedAt = now

	ok, err := s.store.ReviewLeave(ctx, l, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict("leave request was reviewed by someone else")
	}

	s.notifyRequester(ctx, l)
	resp := toLeaveResponse(l)
	return &resp, nil
}

// ---------- notifications ----------

func (s *Service) notifyApprovers(ctx context.Context, l *LeaveRequest) {
	if s.notifier == nil {
		return
	}
	ids, err := s.projects.ApproverIDs(ctx, l.ProjectID.Int64)
	if err != nil {
		log.Printf("[WARN] leave %d: resolve approvers: %v", l.ID, err)
		return
	}
	ids = slices.DeleteFunc(ids, func(id int64) bool { return id == l.UserID })
	if len(ids) == 0 {
		return
	}
	msg := notify.Message{
		Title: i18n.T(ctx, "leave.submitted.title"),
		Body: i18n.T(ctx, "leave.submitted.body", map[string]any{
			"Name": l.FullName, "Type": l.Type, "Start": l.StartDate, "End": l.EndDate,
		}),
		Data: map[string]string{"type": "leave_request", "leave_id": fmt.Sprint(l.ID), "status": l.Status},
	}
	if !s.notifier.Enqueue(ids, msg) {
		log.Printf("[WARN] leave %d: notification dropped", l.ID)
	}
}

func (s *Service) notifyRequester(ctx context.Context, l *LeaveRequest) {
	if s.notifier == nil {
		return
	}
	msg := notify.Message{Data: map[string]string{"type": "leave_request", "leave_id": fmt.Sprint(l.ID), "status": l.Status}}
	if l.Status == LeaveApproved {
		msg.Title = i18n.T(ctx, "leave.approved.title")
		msg.Body = i18n.T(ctx, "leave.approved.body", map[string]any{"Start": l.StartDate, "End": l.EndDate})
	} else {
		msg.Title = i18n.T(ctx, "leave.rejected.title")
		msg.Body = i18n.T(ctx, "leave.rejected.body", map[string]any{"Reason": l.RejectionReason.String})
	}
	if !s.notifier.Enqueue([]int64{l.UserID}, msg) {
		log.Printf("[WARN] leave %d: notification dropped", l.ID)
	}
}

// leaveDays counts calendar days in [start, end].
func leaveDays(start, end string) int {
	a, err1 := time.Parse(DateLayout, start)
	b, err2 := time.Parse(DateLayout, end)
	if err1 != nil || err2 != nil || b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

func toLeaveResponse(l *LeaveRequest) LeaveResponse {
	out := LeaveResponse{
		ID:              l.ID,
		UserID:          l.UserID,
		FullName:        l.FullName,
		Type:            l.Type,
		StartDate:       l.StartDate,
		EndDate:         l.EndDate,
		Days:            leaveDays(l.StartDate, l.EndDate),
		Reason:          l.Reason,
		AttachmentURL:   ptrString(l.AttachmentURL),
		Status:          l.Status,
		RejectionReason: ptrString(l.RejectionReason),
		CreatedAt:       l.CreatedAt,
	}
	if l.ProjectID.Valid {
		out.ProjectID = &l.ProjectID.Int64
	}
	if l.ReviewedBy.Valid {
		out.ReviewedBy = &l.ReviewedBy.Int64
	}
	if l.ReviewedAt.Valid {
		out.ReviewedAt = &l.ReviewedAt.Time
	}
	return out
}
