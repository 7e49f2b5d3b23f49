package rab

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"SIKON-backend/internal/notify"
	"SIKON-backend/internal/platform/auth"
)

// ===== fakes =====

type fakeStore struct {
	items map[int64]*Item
	next  int64
}

func newFakeStore() *fakeStore { return &fakeStore{items: map[int64]*Item{}} }

func (f *fakeStore) List(_ context.Context, flt Filter) ([]Item, error) {
	var out []Item
	for id := int64(1); id <= f.next; id++ {
		it, ok := f.items[id]
		if !ok || it.ProjectID != flt.ProjectID {
			continue
		}
		if (flt.Status == "" || it.Status == flt.Status) && (flt.Category == "" || it.Category == flt.Category) &&
			(flt.ItemType == "" || it.ItemType == flt.ItemType) {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, projectID, id int64) (*Item, error) {
	it, ok := f.items[id]
	if !ok || it.ProjectID != projectID {
		return nil, ErrNotFound("RAB item not found")
	}
	cp := *it
	return &cp, nil
}

func (f *fakeStore) Insert(_ context.Context, it *Item) error {
	f.next++
	it.ID = f.next
	cp := *it
	f.items[it.ID] = &cp
	return nil
}

func (f *fakeStore) Update(_ context.Context, it *Item) error {
	cur := f.items[it.ID]
	cp := *it
	cp.Status, cp.IsApproved = cur.Status, cur.IsApproved
	f.items[it.ID] = &cp
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, it *Item, from string) (bool, error) {
	cur, ok := f.items[it.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	cp := *it
	f.items[it.ID] = &cp
	return true, nil
}

func (f *fakeStore) Delete(_ context.Context, projectID, id int64) (int64, error) {
	it, ok := f.items[id]
	if !ok || it.ProjectID != projectID || it.Status == StatusApproved {
		return 0, nil
	}
	delete(f.items, id)
	return 1, nil
}

func (f *fakeStore) ApproveDrafts(_ context.Context, projectID, approverID int64, at time.Time) (int64, []int64, error) {
	var n int64
	seen := map[int64]bool{}
	var creators []int64
	for _, it := range f.items {
		if it.ProjectID != projectID || it.Status != StatusDraft {
			continue
		}
		it.Status, it.IsApproved = StatusApproved, true
		it.ApprovedBy.Int64, it.ApprovedBy.Valid = approverID, true
		it.ApprovedAt.Time, it.ApprovedAt.Valid = at, true
		n++
		if !seen[it.CreatedBy] {
			seen[it.CreatedBy] = true
			creators = append(creators, it.CreatedBy)
		}
	}
	sort.Slice(creators, func(i, j int) bool { return creators[i] < creators[j] })
	return n, creators, nil
}

func (f *fakeStore) Summary(_ context.Context, projectID int64) ([]SummaryRow, error) {
	agg := map[[2]string]*SummaryRow{}
	var keys [][2]string
	for id := int64(1); id <= f.next; id++ {
		it, ok := f.items[id]
		if !ok || it.ProjectID != projectID {
			continue
		}
		k := [2]string{it.Category, it.Status}
		r, ok := agg[k]
		if !ok {
			r = &SummaryRow{Category: it.Category, Status: it.Status}
			agg[k] = r
			keys = append(keys, k)
		}
		r.Count++
		r.Total += it.TotalPrice
	}
	out := make([]SummaryRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, *agg[k])
	}
	return out, nil
}

type fakeProjects struct {
	members   map[int64]bool
	approvers []int64
}

func (p *fakeProjects) Exists(_ context.Context, id int64) (bool, error) { return id == 1, nil }

func (p *fakeProjects) CanAccess(_ context.Context, _, userID int64, _ string) (bool, error) {
	return p.members[userID], nil
}

func (p *fakeProjects) ApproverIDs(context.Context, int64) ([]int64, error) { return p.approvers, nil }

type sent struct {
	ids []int64
	msg notify.Message
}

type fakeNotifier struct{ sent []sent }

func (n *fakeNotifier) Enqueue(ids []int64, msg notify.Message) bool {
	n.sent = append(n.sent, sent{ids: ids, msg: msg})
	return true
}

func newService() (*Service, *fakeStore, *fakeNotifier) {
	st := newFakeStore()
	nt := &fakeNotifier{}
	svc := NewService(st, &fakeProjects{members: map[int64]bool{3: true, 4: true}, approvers: []int64{90, 91}}, nt)
	svc.now = func() time.Time { return time.Date(2026, 10, 5, 10, 0, 0, 0, time.UTC) }
	return svc, st, nt
}

var (
	pm    = Actor{UserID: 2, Role: auth.RoleProjectManager}
	siteA = Actor{UserID: 3, Role: auth.RoleStaff}
	siteB = Actor{UserID: 4, Role: auth.RoleStaff}
)

func item(desc string, qty, price float64) CreateItemRequest {
	return CreateItemRequest{Category: "Struktur", ItemType: TypeMaterial, Description: desc, Unit: "sak", Quantity: qty, UnitPrice: price}
}

func apiCode(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	require.ErrorAs(t, err, &api)
	return api.Code
}

// ===== tests =====

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusUnderReview))
	assert.True(t, CanTransition(StatusUnderReview, StatusReviewed))
	assert.True(t, CanTransition(StatusApproved, StatusRejected))
	assert.True(t, CanTransition(StatusRejected, StatusDraft))
	assert.False(t, CanTransition(StatusApproved, StatusApproved))
	assert.False(t, CanTransition(StatusApproved, StatusDraft))
	assert.False(t, CanTransition(StatusRejected, StatusApproved))
	assert.False(t, CanTransition("archived", StatusDraft))
}

func TestTotalPriceRecomputed(t *testing.T) {
	svc, st, nt := newService()
	ctx := context.Background()

	it, err := svc.Create(ctx, siteA, 1, item("Semen", 10, 1500))
	require.NoError(t, err)
	assert.Equal(t, 15000.0, it.TotalPrice)
	assert.Equal(t, StatusDraft, it.Status)
	require.Len(t, nt.sent, 1)
	assert.Equal(t, []int64{90, 91}, nt.sent[0].ids)

	qty := 12.5
	it, err = svc.Update(ctx, siteA, 1, it.ID, UpdateItemRequest{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 18750.0, it.TotalPrice)

	price := 1333.34
	it, err = svc.Update(ctx, siteA, 1, it.ID, UpdateItemRequest{UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, 16666.75, it.TotalPrice)
	assert.Equal(t, 16666.75, st.items[it.ID].TotalPrice)
	assert.Equal(t, StatusDraft, st.items[it.ID].Status, "update never changes status")
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	req := item("Semen", 1, 1)
	req.Status = StatusApproved
	_, err := svc.Create(ctx, siteA, 1, req)
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	_, err = svc.Create(ctx, siteA, 2, item("Semen", 1, 1))
	assert.Equal(t, CodeNotFound, apiCode(t, err))

	_, err = svc.Create(ctx, Actor{UserID: 9, Role: auth.RoleStaff}, 1, item("Semen", 1, 1))
	assert.Equal(t, CodeForbidden, apiCode(t, err))
}

func TestApproveAndReject(t *testing.T) {
	svc, st, nt := newService()
	ctx := context.Background()

	it, err := svc.Create(ctx, siteA, 1, item("Besi", 2, 100))
	require.NoError(t, err)

	before := len(nt.sent)
	approved, err := svc.Approve(ctx, pm, 1, it.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	assert.EqualValues(t, 2, *approved.ApprovedBy)
	require.Len(t, nt.sent, before+2)
	assert.Equal(t, []int64{90, 91}, nt.sent[before].ids, "approvers hear about every status change")
	assert.Equal(t, []int64{3}, nt.sent[before+1].ids, "creator is told about the approval")

	_, err = svc.Approve(ctx, pm, 1, it.ID)
	assert.Equal(t, CodeConflict, apiCode(t, err))
	assert.Contains(t, err.Error(), "already approved")

	err = svc.Delete(ctx, pm, 1, it.ID)
	assert.Equal(t, CodeConflict, apiCode(t, err))

	_, err = svc.Reject(ctx, pm, 1, it.ID, "   ")
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	before = len(nt.sent)
	rejected, err := svc.Reject(ctx, pm, 1, it.ID, "budget exceeded")
	require.NoError(t, err)
	require.Len(t, nt.sent, before+2)
	assert.Equal(t, []int64{90, 91}, nt.sent[before].ids)
	assert.Equal(t, []int64{3}, nt.sent[before+1].ids)
	assert.Contains(t, nt.sent[before+1].msg.Body, "budget exceeded")
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.False(t, rejected.IsApproved)
	require.NotNil(t, rejected.Notes)
	assert.Equal(t, "budget exceeded", *rejected.Notes)
	assert.Equal(t, "budget exceeded", st.items[it.ID].Notes.String)
	assert.EqualValues(t, 2, *rejected.RejectedBy)

	// a rejected item can be resubmitted and then deleted
	_, err = svc.UpdateStatus(ctx, pm, 1, it.ID, StatusRequest{Status: StatusDraft})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, pm, 1, it.ID))
	assert.Empty(t, st.items)
}

func TestUpdateStatusUsesTransitionTable(t *testing.T) {
	svc, _, nt := newService()
	ctx := context.Background()

	it, err := svc.Create(ctx, siteA, 1, item("Pasir", 3, 250000))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, pm, 1, it.ID, StatusRequest{Status: StatusReviewed})
	assert.Equal(t, CodeConflict, apiCode(t, err), "draft cannot skip to reviewed")

	_, err = svc.UpdateStatus(ctx, pm, 1, it.ID, StatusRequest{Status: "archived"})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	before := len(nt.sent)
	res, err := svc.UpdateStatus(ctx, siteA, 1, it.ID, StatusRequest{Status: StatusUnderReview})
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, res.Status)
	require.Len(t, nt.sent, before+1)
	assert.Equal(t, []int64{90, 91}, nt.sent[before].ids)

	_, err = svc.UpdateStatus(ctx, pm, 1, it.ID, StatusRequest{Status: StatusRejected})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err), "rejecting needs a reason")
}

func TestEditApprovedItemRefused(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	it, err := svc.Create(ctx, siteA, 1, item("Bata", 1000, 800))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, pm, 1, it.ID)
	require.NoError(t, err)

	qty := 2000.0
	_, err = svc.Update(ctx, siteA, 1, it.ID, UpdateItemRequest{Quantity: &qty})
	assert.Equal(t, CodeConflict, apiCode(t, err))
}

func TestApproveAllOnlyDrafts(t *testing.T) {
	svc, st, nt := newService()
	ctx := context.Background()

	var draftIDs []int64
	for i, who := range []Actor{siteA, siteA, siteB} {
		it, err := svc.Create(ctx, who, 1, item("Item", float64(i+1), 1000))
		require.NoError(t, err)
		draftIDs = append(draftIDs, it.ID)
	}
	review := item("Crane rental", 1, 5_000_000)
	review.Status = StatusUnderReview
	other, err := svc.Create(ctx, siteB, 1, review)
	require.NoError(t, err)
	_, err = svc.Reject(ctx, pm, 1, draftIDs[2], "duplicate")
	require.NoError(t, err)

	before := len(nt.sent)
	res, err := svc.ApproveAll(ctx, pm, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Approved)

	for _, id := range draftIDs[:2] {
		assert.Equal(t, StatusApproved, st.items[id].Status)
	}
	assert.Equal(t, StatusRejected, st.items[draftIDs[2]].Status)
	assert.Equal(t, StatusUnderReview, st.items[other.ID].Status)

	require.Len(t, nt.sent, before+2)
	assert.Equal(t, []int64{90, 91}, nt.sent[before].ids)
	assert.Equal(t, []int64{3}, nt.sent[before+1].ids)

	res, err = svc.ApproveAll(ctx, pm, 1)
	require.NoError(t, err)
	assert.Zero(t, res.Approved)
	assert.Len(t, nt.sent, before+2, "nothing approved, nobody notified")
}

func TestSummaryAndExport(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	a, err := svc.Create(ctx, siteA, 1, item("Semen", 10, 1500))
	require.NoError(t, err)
	_, err = svc.Create(ctx, siteA, 1, CreateItemRequest{Category: "Tenaga", ItemType: TypeLabor, Description: "Tukang", Unit: "OH", Quantity: 5, UnitPrice: 200000})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, pm, 1, a.ID)
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, siteA, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.ItemCount)
	assert.Equal(t, 1015000.0, sum.GrandTotal)
	assert.Equal(t, 15000.0, sum.ApprovedTotal)
	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, "Struktur", sum.ByCategory[0].Category)
	assert.EqualValues(t, 1, sum.ByStatus[StatusDraft].Count)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, siteA, Filter{ProjectID: 1}, &buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("RAB")
	require.NoError(t, err)
	require.Len(t, rows, 4) // header, two items, grand total
	assert.Equal(t, "Semen", rows[1][3])
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	svc, _, _ := newService()

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, int64(2))
		c.Set(auth.CtxRoleKey, auth.RoleProjectManager)
		c.Next()
	})
	RegisterRoutes(api, api, svc)

	body := `{"category":"Struktur","item_type":"material","description":"Semen","unit":"sak","quantity":10,"unit_price":1500}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/projects/1/rab", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data ItemResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 15000.0, created.Data.TotalPrice)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/projects/1/rab", bytes.NewBufferString(`{"category":"x","item_type":"furniture","description":"d","unit":"u","quantity":1}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown item type")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/projects/1/rab/1/reject", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/projects/1/rab/1/approve", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/projects/1/rab/1/approve", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code, "already approved is a conflict")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/projects/1/rab/summary", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/projects/1/rab/99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
