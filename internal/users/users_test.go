package users

import (
	"context"
	"encoding/json"
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
	users    map[int64]*User
	manpower map[int64]*Manpower
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[int64]*User{}, manpower: map[int64]*Manpower{}}
}

func (f *fakeStore) InsertUser(_ context.Context, u *User) error {
	for _, x := range f.users {
		if x.Username == u.Username {
			return ErrConflict("username already exists")
		}
	}
	u.ID = int64(len(f.users) + 1)
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) ListUsers(_ context.Context, _ UserFilter) ([]User, int64, error) {
	var out []User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) UpdateUser(_ context.Context, u *User) error {
	if _, ok := f.users[u.ID]; !ok {
		return ErrNotFound("user not found")
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) InsertManpower(_ context.Context, m *Manpower) error {
	m.ID = int64(len(f.manpower) + 1)
	cp := *m
	f.manpower[m.ID] = &cp
	return nil
}

func (f *fakeStore) GetManpower(_ context.Context, id int64) (*Manpower, error) {
	m, ok := f.manpower[id]
	if !ok {
		return nil, ErrNotFound("manpower not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) ListManpower(_ context.Context, activeOnly bool) ([]Manpower, error) {
	var out []Manpower
	for _, m := range f.manpower {
		if activeOnly && !m.IsActive {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeStore) UpdateManpower(_ context.Context, m *Manpower) error {
	cp := *m
	f.manpower[m.ID] = &cp
	return nil
}

func (f *fakeStore) Link(_ context.Context, userID int64, manpowerID *int64) error {
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound("user not found")
	}
	if manpowerID != nil {
		if _, ok := f.manpower[*manpowerID]; !ok {
			return ErrNotFound("manpower not found")
		}
	}
	for _, m := range f.manpower {
		if m.UserID.Valid && m.UserID.Int64 == userID {
			m.UserID.Valid = false
		}
	}
	u.ManpowerID.Valid = false
	if manpowerID == nil {
		return nil
	}
	for _, other := range f.users {
		if other.ManpowerID.Valid && other.ManpowerID.Int64 == *manpowerID {
			other.ManpowerID.Valid = false
		}
	}
	u.ManpowerID.Int64, u.ManpowerID.Valid = *manpowerID, true
	m := f.manpower[*manpowerID]
	m.UserID.Int64, m.UserID.Valid = userID, true
	return nil
}

func newService() (*Service, *fakeStore) {
	st := newFakeStore()
	svc := NewService(st)
	svc.now = func() time.Time { return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC) }
	svc.hash = func(p string) (string, error) { return "hashed:" + p, nil }
	return svc, st
}

func TestCreateUser(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: " budi ", Password: "rahasia123", FullName: "Budi Santoso", Role: auth.RoleSiteManager,
		Profile: json.RawMessage(`{"nik":"123"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "budi", u.Username)
	assert.True(t, u.IsActive)
	assert.Equal(t, "hashed:rahasia123", st.users[u.ID].PasswordHash)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "budi", Password: "x", FullName: "B", Role: auth.RoleStaff})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)

	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "ani", Password: "x", FullName: "A", Role: auth.RoleStaff, Profile: json.RawMessage(`[1,2]`)})
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

func TestDeactivateUser(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, CreateUserRequest{Username: "a", Password: "p", FullName: "A", Role: auth.RoleWorker})
	require.NoError(t, err)

	var api *APIError
	require.ErrorAs(t, svc.DeactivateUser(ctx, u.ID, u.ID), &api)

	require.NoError(t, svc.DeactivateUser(ctx, 99, u.ID))
	assert.False(t, st.users[u.ID].IsActive)

	require.ErrorAs(t, svc.DeactivateUser(ctx, 1, 42), &api)
	assert.Equal(t, CodeNotFound, api.Code)
}

func TestLinkManpowerBothDirections(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	u1, err := svc.CreateUser(ctx, CreateUserRequest{Username: "u1", Password: "p", FullName: "U1", Role: auth.RoleWorker})
	require.NoError(t, err)
	u2, err := svc.CreateUser(ctx, CreateUserRequest{Username: "u2", Password: "p", FullName: "U2", Role: auth.RoleWorker})
	require.NoError(t, err)
	mp, err := svc.CreateManpower(ctx, ManpowerRequest{Name: "Tukang Batu", Skills: []string{"masonry", " Masonry ", "", "welding"}, DailyRate: 150000})
	require.NoError(t, err)
	assert.Equal(t, []string{"masonry", "welding"}, mp.Skills)
	assert.True(t, mp.IsActive)

	res, err := svc.LinkManpower(ctx, u1.ID, &mp.ID)
	require.NoError(t, err)
	require.NotNil(t, res.ManpowerID)
	assert.Equal(t, mp.ID, *res.ManpowerID)
	assert.Equal(t, u1.ID, st.manpower[mp.ID].UserID.Int64)

	// moving the record to another user clears the first link
	_, err = svc.LinkManpower(ctx, u2.ID, &mp.ID)
	require.NoError(t, err)
	assert.False(t, st.users[u1.ID].ManpowerID.Valid)
	assert.Equal(t, u2.ID, st.manpower[mp.ID].UserID.Int64)

	res, err = svc.LinkManpower(ctx, u2.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, res.ManpowerID)
	assert.False(t, st.manpower[mp.ID].UserID.Valid)
}

func TestHandlerValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService()
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxUserIDKey, int64(1)); c.Set(auth.CtxRoleKey, auth.RoleAdmin) })
	RegisterRoutes(r, svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users",
		strings.NewReader(`{"username":"sari","password":"short","full_name":"Sari","role":"admin"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code, "password too short")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users",
		strings.NewReader(`{"username":"sari","password":"longenough","full_name":"Sari","role":"boss"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown role")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users",
		strings.NewReader(`{"username":"sari","password":"longenough","full_name":"Sari","role":"finance","email":"sari@example.com"}`)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"email":"sari@example.com"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/7", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
