package auth

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
)

var testSecret = []byte("test-secret")

type fakeAccounts struct {
	byName  map[string]*Account
	touched int64
}

func (f *fakeAccounts) GetByUsername(_ context.Context, username string) (*Account, error) {
	return f.byName[username], nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id int64) (*Account, error) {
	for _, a := range f.byName {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) TouchLogin(_ context.Context, id int64, _ time.Time) error {
	f.touched = id
	return nil
}

func newFake(t *testing.T) *fakeAccounts {
	t.Helper()
	hash, err := HashPassword("rahasia")
	require.NoError(t, err)
	return &fakeAccounts{byName: map[string]*Account{
		"budi": {ID: 7, Username: "budi", PasswordHash: hash, Role: RoleSiteManager, IsActive: true},
		"off":  {ID: 8, Username: "off", PasswordHash: hash, Role: RoleWorker, IsActive: false},
	}}
}

func TestLogin(t *testing.T) {
	store := newFake(t)
	svc := NewService(store, testSecret, time.Hour)

	res, err := svc.Login(context.Background(), "budi", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.UserID)
	assert.Equal(t, RoleSiteManager, res.Role)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(7), store.touched)

	_, err = svc.Login(context.Background(), "budi", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody", "rahasia")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "off", "rahasia")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", RequireAuth(testSecret))
	g.GET("/who", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "role": Role(c)})
	})
	g.GET("/admin", RequireRole(RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRequireAuth(t *testing.T) {
	r := newRouter()
	token, err := IssueToken(testSecret, 42, RoleWorker, time.Now().Add(time.Hour))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ID   int64  `json:"id"`
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body.ID)
	assert.Equal(t, RoleWorker, body.Role)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAuthRejects(t *testing.T) {
	r := newRouter()
	expired, err := IssueToken(testSecret, 1, RoleAdmin, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other"), 1, RoleAdmin, time.Now().Add(time.Hour))
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Basic abc",
		"expired": "Bearer " + expired,
		"foreign": "Bearer " + foreign,
		"garbage": "Bearer " + strings.Repeat("x", 20),
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
