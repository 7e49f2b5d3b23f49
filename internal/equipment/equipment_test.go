package equipment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SIKON-backend/internal/platform/auth"
)

// ===== fakes =====

type fakeStore struct {
	equipment map[int64]*Equipment
	loans     map[string]*Loan
	order     []string
	returns   []Return
}

func newFakeStore() *fakeStore {
	return &fakeStore{equipment: map[int64]*Equipment{}, loans: map[string]*Loan{}}
}

func (f *fakeStore) InsertEquipment(_ context.Context, e *Equipment) error {
	for _, cur := range f.equipment {
		if cur.Code == e.Code {
			return ErrConflict("equipment code already exists")
		}
	}
	e.ID = int64(len(f.equipment) + 1)
	cp := *e
	f.equipment[e.ID] = &cp
	return nil
}

func (f *fakeStore) ListEquipment(_ context.Context, category string) ([]Equipment, error) {
	var out []Equipment
	for id := int64(1); id <= int64(len(f.equipment)); id++ {
		if e := f.equipment[id]; category == "" || e.Category == category {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) ExecLend(_ context.Context, l *Loan) error {
	e, ok := f.equipment[l.EquipmentID]
	if !ok {
		return ErrNotFound("equipment not found")
	}
	if err := checkStock(e.AvailableQuantity, l.Quantity); err != nil {
		return err
	}
	e.AvailableQuantity -= l.Quantity
	l.ID = int64(len(f.loans) + 1)
	cp := *l
	f.loans[l.LoanULID] = &cp
	f.order = append(f.order, l.LoanULID)
	return nil
}

func (f *fakeStore) ExecReturn(_ context.Context, loanULID string, r *Return) (*Loan, error) {
	l, ok := f.loans[loanULID]
	if !ok {
		return nil, ErrNotFound("loan not found")
	}
	if l.Returned {
		return nil, ErrConflict("loan already fully returned")
	}
	complete, err := checkReturn(l.Quantity, l.ReturnedQuantity, r.Quantity)
	if err != nil {
		return nil, err
	}
	r.LoanID = l.ID
	f.returns = append(f.returns, *r)
	f.equipment[l.EquipmentID].AvailableQuantity += r.Quantity
	l.ReturnedQuantity += r.Quantity
	l.Returned = complete
	cp := *l
	return &cp, nil
}

func (f *fakeStore) ListLoans(_ context.Context, flt LoanFilter) ([]Loan, error) {
	var out []Loan
	for _, id := range f.order {
		l := f.loans[id]
		if flt.ProjectID > 0 && l.ProjectID != flt.ProjectID {
			continue
		}
		if flt.OnlyOutstanding && l.Returned {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

type fakeProjects struct{}

func (fakeProjects) Exists(_ context.Context, id int64) (bool, error) { return id == 1 || id == 2, nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqID struct{ n int }

func (g *seqID) New() (string, error) {
	g.n++
	return fmt.Sprintf("LOAN%02d", g.n), nil
}

func newService() (*Service, *fakeStore) {
	st := newFakeStore()
	svc := NewService(st, fakeProjects{})
	svc.clock = fixedClock{t: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)}
	svc.id = &seqID{}
	return svc, st
}

func apiCode(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	require.ErrorAs(t, err, &api)
	return api.Code
}

func scaffolding(t *testing.T, svc *Service, total int) *EquipmentResponse {
	t.Helper()
	e, err := svc.CreateEquipment(context.Background(),
		CreateEquipmentRequest{Code: "SCF-01", Name: "Scaffolding frame", Category: "scaffold", Unit: "set", TotalQuantity: total})
	require.NoError(t, err)
	return e
}

// ===== tests =====

func TestStockRules(t *testing.T) {
	assert.NoError(t, checkStock(5, 5))
	assert.Equal(t, CodeConflict, apiCode(t, checkStock(5, 6)))
	assert.Equal(t, CodeInvalidArgument, apiCode(t, checkStock(5, 0)))

	done, err := checkReturn(10, 4, 6)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = checkReturn(10, 4, 2)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = checkReturn(10, 4, 7)
	assert.Equal(t, CodeConflict, apiCode(t, err))
	assert.Equal(t, 0, outstanding(3, 5))
}

func TestCreateEquipment(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	e := scaffolding(t, svc, 20)
	assert.Equal(t, 20, e.AvailableQuantity)

	_, err := svc.CreateEquipment(ctx, CreateEquipmentRequest{Code: "SCF-01", Name: "dup", TotalQuantity: 1})
	assert.Equal(t, CodeConflict, apiCode(t, err))

	_, err = svc.CreateEquipment(ctx, CreateEquipmentRequest{Code: " ", Name: "x", TotalQuantity: 1})
	assert.Equal(t, CodeInvalidArgument, apiCode(t, err))

	list, err := svc.ListEquipment(ctx, "scaffold")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLendAndPartialReturn(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()
	e := scaffolding(t, svc, 10)

	_, err := svc.Lend(ctx, 7, CreateLoanRequest{EquipmentID: e.ID, ProjectID: 1, Quantity: 11})
	assert.Equal(t, CodeConflict, apiCode(t, err), "more than available")

	_, err = svc.Lend(ctx, 7, CreateLoanRequest{EquipmentID: e.ID, ProjectID: 9, Quantity: 1})
	assert.Equal(t, CodeNotFound, apiCode(t, err))

	due := "2024-03-20"
	loan, err := svc.Lend(ctx, 7, CreateLoanRequest{EquipmentID: e.ID, ProjectID: 1, Quantity: 6, DueOn: &due})
	require.NoError(t, err)
	assert.NotEmpty(t, loan.LoanULID)
	assert.Equal(t, int64(7), loan.BorrowedBy, "borrower defaults to the caller")
	require.NotNil(t, loan.DueOn)
	assert.Equal(t, 4, st.equipment[e.ID].AvailableQuantity)

	ret, err := svc.Return(ctx, 3, CreateReturnRequest{LoanULID: loan.LoanULID, Quantity: 2})
	require.NoError(t, err)
	assert.False(t, ret.LoanCompleted)
	assert.Equal(t, 6, st.equipment[e.ID].AvailableQuantity)

	_, err = svc.Return(ctx, 3, CreateReturnRequest{LoanULID: loan.LoanULID, Quantity: 5})
	assert.Equal(t, CodeConflict, apiCode(t, err), "over-return refused")

	ret, err = svc.Return(ctx, 3, CreateReturnRequest{LoanULID: loan.LoanULID, Quantity: 4})
	require.NoError(t, err)
	assert.True(t, ret.LoanCompleted)
	assert.Equal(t, 10, st.equipment[e.ID].AvailableQuantity)

	_, err = svc.Return(ctx, 3, CreateReturnRequest{LoanULID: loan.LoanULID, Quantity: 1})
	assert.Equal(t, CodeConflict, apiCode(t, err))

	_, err = svc.Return(ctx, 3, CreateReturnRequest{LoanULID: "missing", Quantity: 1})
	assert.Equal(t, CodeNotFound, apiCode(t, err))
}

func TestListLoansOutstanding(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	e := scaffolding(t, svc, 10)

	a, err := svc.Lend(ctx, 7, CreateLoanRequest{EquipmentID: e.ID, ProjectID: 1, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.Lend(ctx, 7, CreateLoanRequest{EquipmentID: e.ID, ProjectID: 2, Quantity: 3})
	require.NoError(t, err)
	_, err = svc.Return(ctx, 7, CreateReturnRequest{LoanULID: a.LoanULID, Quantity: 2})
	require.NoError(t, err)

	all, err := svc.ListLoans(ctx, LoanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := svc.ListLoans(ctx, LoanFilter{OnlyOutstanding: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].ProjectID)
	assert.Equal(t, 3, open[0].OutstandingQuantity)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService()

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, int64(4))
		c.Set(auth.CtxRoleKey, auth.RoleSiteManager)
		c.Next()
	})
	RegisterRoutes(api, api, svc)

	post := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/api/equipment", `{"code":"MX-1","name":"Concrete mixer","total_quantity":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post("/api/equipment", `{"code":"MX-2","name":"Mixer"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/api/equipment/loans", `{"equipment_id":1,"project_id":1,"quantity":3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "insufficient stock")

	w = post("/api/equipment/loans", `{"equipment_id":1,"project_id":1,"quantity":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lent struct {
		Data LoanResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lent))
	assert.Equal(t, int64(4), lent.Data.LentBy)

	w = post("/api/equipment/returns", `{"loan_ulid":"`+lent.Data.LoanULID+`","quantity":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/equipment/loans?only_outstanding=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Data []LoanResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Empty(t, listed.Data)
}
