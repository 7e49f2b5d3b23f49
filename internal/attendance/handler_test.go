package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SIKON-backend/internal/platform/auth"
	"SIKON-backend/internal/platform/storage"
)

type fakeUploader struct {
	saved     []string
	discarded []string
}

func (u *fakeUploader) SavePhoto(_ context.Context, folder string, fh *multipart.FileHeader) (storage.Object, error) {
	key := folder + "/" + fh.Filename
	u.saved = append(u.saved, key)
	return storage.Object{Key: key, URL: "/uploads/" + key, ContentType: "image/jpeg", Size: fh.Size}, nil
}

func (u *fakeUploader) SaveFile(ctx context.Context, folder string, fh *multipart.FileHeader) (storage.Object, error) {
	return u.SavePhoto(ctx, folder, fh)
}

func (u *fakeUploader) Discard(_ context.Context, obj *storage.Object) error {
	if obj != nil {
		u.discarded = append(u.discarded, obj.Key)
	}
	return nil
}

func newRouter(t *testing.T, fx *fixture, up Uploader, userID int64, role string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, userID)
		c.Set(auth.CtxRoleKey, role)
		c.Next()
	})
	RegisterRoutes(api, api, fx.svc, up)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte("\xff\xd8\xff\xe0 not really a jpeg"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Warning string          `json:"warning"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func do(t *testing.T, r http.Handler, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestClockInHandler(t *testing.T) {
	fx := newFixture(t)
	fx.configure(func(st *Settings) { st.RequirePhotoIn = true })
	up := &fakeUploader{}
	r := newRouter(t, fx, up, 7, auth.RoleStaff)

	body, ct := multipartBody(t, map[string]string{"projectId": "1", "notes": "pagi"}, "photo", "selfie.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/attendance/clock-in", body)
	req.Header.Set("Content-Type", ct)
	code, env := do(t, r, req)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Message)

	var rec RecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	require.NotNil(t, rec.ClockInPhoto)
	assert.Equal(t, "/uploads/attendance/selfie.jpg", *rec.ClockInPhoto)
	assert.Empty(t, up.discarded)

	// second clock-in fails and the new photo is removed
	body, ct = multipartBody(t, map[string]string{"projectId": "1"}, "photo", "again.jpg")
	req = httptest.NewRequest(http.MethodPost, "/api/attendance/clock-in", body)
	req.Header.Set("Content-Type", ct)
	code, env = do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, string(CodeConflict), env.Error.Code)
	assert.Equal(t, []string{"attendance/again.jpg"}, up.discarded)
}

func TestClockInHandlerValidation(t *testing.T) {
	fx := newFixture(t)
	fx.configure(nil)
	r := newRouter(t, fx, &fakeUploader{}, 7, auth.RoleStaff)

	body, ct := multipartBody(t, map[string]string{"latitude": "-6.2"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/attendance/clock-in", body)
	req.Header.Set("Content-Type", ct)
	code, env := do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(CodeInvalidArgument), env.Error.Code)

	body, ct = multipartBody(t, map[string]string{"projectId": "1", "latitude": "123"}, "", "")
	req = httptest.NewRequest(http.MethodPost, "/api/attendance/clock-in", body)
	req.Header.Set("Content-Type", ct)
	code, _ = do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, code, "latitude out of range")
}

func TestClockOutAndTodayHandlers(t *testing.T) {
	fx := newFixture(t)
	fx.configure(nil)
	r := newRouter(t, fx, &fakeUploader{}, 7, auth.RoleStaff)

	code, env := do(t, r, httptest.NewRequest(http.MethodGet, "/api/attendance/today?projectId=1", nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)

	body, ct := multipartBody(t, map[string]string{"projectId": "1"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/attendance/clock-out", body)
	req.Header.Set("Content-Type", ct)
	code, env = do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "no active clock-in")

	body, ct = multipartBody(t, map[string]string{"projectId": "1"}, "", "")
	req = httptest.NewRequest(http.MethodPost, "/api/attendance/clock-in", body)
	req.Header.Set("Content-Type", ct)
	code, _ = do(t, r, req)
	require.Equal(t, http.StatusCreated, code)

	fx.at(17, 0)
	body, ct = multipartBody(t, map[string]string{"projectId": "1"}, "", "")
	req = httptest.NewRequest(http.MethodPost, "/api/attendance/clock-out", body)
	req.Header.Set("Content-Type", ct)
	code, env = do(t, r, req)
	require.Equal(t, http.StatusOK, code)
	var rec RecordResponse
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, StatusClockedOut, rec.Status)

	code, _ = do(t, r, httptest.NewRequest(http.MethodGet, "/api/attendance/today?projectId=1", nil))
	assert.Equal(t, http.StatusOK, code)
}

func TestSettingsHandlerRejectsBadTime(t *testing.T) {
	fx := newFixture(t)
	r := newRouter(t, fx, &fakeUploader{}, 1, auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodPut, "/api/attendance/settings/1", bytes.NewBufferString(`{"work_start":"25:00"}`))
	req.Header.Set("Content-Type", "application/json")
	code, _ := do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, code)

	req = httptest.NewRequest(http.MethodPut, "/api/attendance/settings/1", bytes.NewBufferString(`{"work_start":"07:00","late_threshold_minutes":10}`))
	req.Header.Set("Content-Type", "application/json")
	code, env := do(t, r, req)
	require.Equal(t, http.StatusOK, code)
	var st SettingsResponse
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "07:00", st.WorkStart)
	assert.Equal(t, 10, st.LateThresholdMinutes)
}

func TestLeaveHandlers(t *testing.T) {
	fx := newFixture(t)
	up := &fakeUploader{}
	r := newRouter(t, fx, up, 7, auth.RoleStaff)

	body, ct := multipartBody(t, map[string]string{
		"leaveType": "sick", "startDate": "2026-10-06", "endDate": "2026-10-07", "reason": "flu",
	}, "attachment", "note.pdf")
	req := httptest.NewRequest(http.MethodPost, "/api/attendance/leave-request", body)
	req.Header.Set("Content-Type", ct)
	code, env := do(t, r, req)
	require.Equal(t, http.StatusCreated, code)
	var lv LeaveResponse
	require.NoError(t, json.Unmarshal(env.Data, &lv))
	require.NotNil(t, lv.AttachmentURL)
	assert.Equal(t, "/uploads/leave/note.pdf", *lv.AttachmentURL)

	body, ct = multipartBody(t, map[string]string{
		"leaveType": "holiday", "startDate": "2026-10-06", "endDate": "2026-10-07", "reason": "x",
	}, "", "")
	req = httptest.NewRequest(http.MethodPost, "/api/attendance/leave-request", body)
	req.Header.Set("Content-Type", ct)
	code, _ = do(t, r, req)
	assert.Equal(t, http.StatusBadRequest, code, "unknown leave type")

	code, env = do(t, r, httptest.NewRequest(http.MethodGet, "/api/attendance/leave-requests", nil))
	require.Equal(t, http.StatusOK, code)
	var list LeaveListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Total)
}
