package projects

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SIKON-backend/internal/platform/auth"
)

type fakeStore struct {
	projects   map[int64]*Project
	members    []Member
	users      map[int64]bool
	admins     []int64
	lastFilter ProjectFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{projects: map[int64]*Project{}, users: map[int64]bool{}}
}

func (f *fakeStore) Insert(_ context.Context, p *Project) error {
	for _, x := range f.projects {
		if x.Code == p.Code {
			return ErrConflict("project code already exists")
		}
	}
	p.ID = int64(len(f.projects) + 1)
	f.projects[p.ID] = p
	return nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (*Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, ErrNotFound("project not found")
	}
	return p, nil
}

func (f *fakeStore) List(_ context.Context, flt ProjectFilter) ([]Project, int64, error) {
	f.lastFilter = flt
	var out []Project
	for _, p := range f.projects {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := f.projects[id]
	return ok, nil
}

func (f *fakeStore) UserExists(_ context.Context, id int64) (bool, error) { return f.users[id], nil }

func (f *fakeStore) AddMember(_ context.Context, m *Member) error {
	for _, x := range f.members {
		if x.ProjectID == m.ProjectID && x.UserID == m.UserID {
			return ErrConflict("user is already a member of this project")
		}
	}
	f.members = append(f.members, *m)
	return nil
}

func (f *fakeStore) RemoveMember(_ context.Context, projectID, userID int64) (int64, error) {
	for i, x := range f.members {
		if x.ProjectID == projectID && x.UserID == userID {
			f.members = append(f.members[:i], f.members[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) ListMembers(_ context.Context, projectID int64) ([]Member, error) {
	var out []Member
	for _, m := range f.members {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) IsMember(_ context.Context, projectID, userID int64) (bool, error) {
	for _, m := range f.members {
		if m.ProjectID == projectID && m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MemberIDsByRoles(_ context.Context, projectID int64, roles []string) ([]int64, error) {
	var ids []int64
	for _, m := range f.members {
		if m.ProjectID != projectID {
			continue
		}
		for _, r := range roles {
			if m.Role == r {
				ids = append(ids, m.UserID)
			}
		}
	}
	return ids, nil
}

func (f *fakeStore) ActiveAdminIDs(context.Context) ([]int64, error) { return f.admins, nil }

func newService() (*Service, *fakeStore) {
	st := newFakeStore()
	svc := NewService(st)
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, st
}

func TestCreateProject(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	start, end := "2025-02-01", "2025-12-31"
	p, err := svc.Create(ctx, 1, CreateProjectRequest{Code: "PRJ-001", Name: "Gedung A", StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, p.Status)
	assert.EqualValues(t, 1, p.CreatedBy)

	_, err = svc.Create(ctx, 1, CreateProjectRequest{Code: "PRJ-001", Name: "dup"})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)

	_, err = svc.Create(ctx, 1, CreateProjectRequest{Code: "PRJ-002", Name: "bad", StartDate: &end, EndDate: &start})
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

func TestApproverIDsFallsBackToAdmins(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()
	_, err := svc.Create(ctx, 1, CreateProjectRequest{Code: "P1", Name: "one"})
	require.NoError(t, err)
	st.admins = []int64{100, 101}
	st.users[5], st.users[6] = true, true

	ids, err := svc.ApproverIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101}, ids)

	_, err = svc.AddMember(ctx, 1, AddMemberRequest{UserID: 5, Role: MemberWorker})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, 1, AddMemberRequest{UserID: 6, Role: MemberFinance})
	require.NoError(t, err)

	ids, err = svc.ApproverIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, ids)
}

func TestAddMemberValidation(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	_, err := svc.AddMember(ctx, 9, AddMemberRequest{UserID: 1, Role: MemberStaff})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotFound, api.Code)

	_, err = svc.Create(ctx, 1, CreateProjectRequest{Code: "P1", Name: "one"})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, 1, AddMemberRequest{UserID: 42, Role: MemberStaff})
	require.ErrorAs(t, err, &api)
	assert.Equal(t, "user not found", api.Message)

	st.users[42] = true
	_, err = svc.AddMember(ctx, 1, AddMemberRequest{UserID: 42, Role: MemberStaff})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, 1, AddMemberRequest{UserID: 42, Role: MemberStaff})
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)

	ok, err := svc.CanAccess(ctx, 1, 42, auth.RoleStaff)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.CanAccess(ctx, 1, 43, auth.RoleStaff)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.CanAccess(ctx, 1, 43, auth.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListScopesNonAdmins(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	_, err := svc.List(ctx, 7, auth.RoleWorker, "", 0, 500)
	require.NoError(t, err)
	assert.EqualValues(t, 7, st.lastFilter.MemberUserID)
	assert.Equal(t, 100, st.lastFilter.Limit)

	_, err = svc.List(ctx, 1, auth.RoleAdmin, "active", 3, 10)
	require.NoError(t, err)
	assert.Zero(t, st.lastFilter.MemberUserID)
	assert.Equal(t, 20, st.lastFilter.Offset)
}

func TestHandlerConflictIs400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService()
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxUserIDKey, int64(1)); c.Set(auth.CtxRoleKey, auth.RoleAdmin) })
	RegisterRoutes(r, r, svc)

	body := `{"code":"P-9","name":"Jembatan"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
