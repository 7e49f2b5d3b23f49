package attendance

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SIKON-backend/internal/platform/auth"
	"SIKON-backend/internal/platform/storage"
	"SIKON-backend/internal/platform/xlsx"
)

// Uploader stores attendance photos and leave attachments.
type Uploader interface {
	SavePhoto(ctx context.Context, folder string, fh *multipart.FileHeader) (storage.Object, error)
	SaveFile(ctx context.Context, folder string, fh *multipart.FileHeader) (storage.Object, error)
	Discard(ctx context.Context, obj *storage.Object) error
}

type Handler struct {
	svc *Service
	up  Uploader
}

// RegisterRoutes mounts employee routes on r and management routes on mgr (admin / project manager).
func RegisterRoutes(r, mgr gin.IRoutes, svc *Service, up Uploader) {
	h := &Handler{svc: svc, up: up}

	// ===== clock in / out =====

	// POST /attendance/clock-in
	r.POST("/attendance/clock-in", h.ClockIn)
	// POST /attendance/clock-out
	r.POST("/attendance/clock-out", h.ClockOut)
	// GET /attendance/today?projectId=
	r.GET("/attendance/today", h.Today)
	// GET /attendance/history?projectId&userId&startDate&endDate&status&page&limit
	r.GET("/attendance/history", h.History)
	// GET /attendance/stats?projectId&userId&startDate&endDate
	r.GET("/attendance/stats", h.Stats)
	// GET /attendance/export?projectId&userId&startDate&endDate&status
	r.GET("/attendance/export", h.Export)

	// ===== settings =====

	// GET /attendance/settings/:projectId
	r.GET("/attendance/settings/:projectId", h.GetSettings)
	// GET /attendance/settings
	mgr.GET("/attendance/settings", h.ListSettings)
	// PUT /attendance/settings/:projectId
	mgr.PUT("/attendance/settings/:projectId", h.UpdateSettings)

	// ===== leave =====

	// POST /attendance/leave-request
	r.POST("/attendance/leave-request", h.CreateLeave)
	// GET /attendance/leave-requests?status&projectId&userId&page&limit
	r.GET("/attendance/leave-requests", h.ListLeave)
	// PUT /attendance/leave-request/:id
	mgr.PUT("/attendance/leave-request/:id", h.ReviewLeave)

	// ===== project locations =====

	// GET /projects/:id/locations
	r.GET("/projects/:id/locations", h.ListLocations)
	// POST /projects/:id/locations
	mgr.POST("/projects/:id/locations", h.CreateLocation)
	// PUT /projects/:id/locations/:locationId
	mgr.PUT("/projects/:id/locations/:locationId", h.UpdateLocation)
	// DELETE /projects/:id/locations/:locationId
	mgr.DELETE("/projects/:id/locations/:locationId", h.DeleteLocation)
}

func (h *Handler) ClockIn(c *gin.Context)  { h.clock(c, true) }
func (h *Handler) ClockOut(c *gin.Context) { h.clock(c, false) }

func (h *Handler) clock(c *gin.Context, in bool) {
	var req ClockRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, ErrInvalid("projectId is required and coordinates must be valid"))
		return
	}
	ctx := c.Request.Context()

	var photo *storage.Object
	if req.Photo != nil {
		obj, err := h.up.SavePhoto(ctx, "attendance", req.Photo)
		if err != nil {
			failUpload(c, err)
			return
		}
		photo = &obj
	}

	actor := actorOf(c)
	input := req.toInput(actor.UserID, objectURL(photo))
	var (
		res *ClockResult
		err error
	)
	if in {
		res, err = h.svc.ClockIn(ctx, actor, input)
	} else {
		res, err = h.svc.ClockOut(ctx, actor, input)
	}
	if err != nil {
		h.discard(ctx, photo)
		fail(c, err)
		return
	}

	status := http.StatusOK
	if in {
		status = http.StatusCreated
	}
	body := gin.H{"success": true, "message": res.Message, "data": res.Record}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	c.JSON(status, body)
}

func (h *Handler) Today(c *gin.Context) {
	projectID, _ := strconv.ParseInt(c.Query("projectId"), 10, 64)
	res, err := h.svc.Today(c.Request.Context(), auth.UserID(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) History(c *gin.Context) {
	res, err := h.svc.History(c.Request.Context(), actorOf(c), historyQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) Stats(c *gin.Context) {
	res, err := h.svc.Stats(c.Request.Context(), actorOf(c), historyQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.svc.ExportHistory(c.Request.Context(), actorOf(c), historyQuery(c), &buf); err != nil {
		fail(c, err)
		return
	}
	name := fmt.Sprintf("attendance-%s.xlsx", h.svc.clock.Now().In(h.svc.loc).Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsx.ContentType, buf.Bytes())
}

// ===== settings =====

func (h *Handler) GetSettings(c *gin.Context) {
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	res, err := h.svc.GetSettings(c.Request.Context(), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) ListSettings(c *gin.Context) {
	res, err := h.svc.ListSettings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid settings: "+err.Error()))
		return
	}
	res, err := h.svc.UpdateSettings(c.Request.Context(), actorOf(c), projectID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Attendance settings updated", "data": res})
}

// ===== leave =====

func (h *Handler) CreateLeave(c *gin.Context) {
	var form LeaveForm
	if err := c.ShouldBind(&form); err != nil {
		fail(c, ErrInvalid("leaveType, startDate, endDate and reason are required"))
		return
	}
	ctx := c.Request.Context()

	var att *storage.Object
	if form.Attachment != nil {
		obj, err := h.up.SaveFile(ctx, "leave", form.Attachment)
		if err != nil {
			failUpload(c, err)
			return
		}
		att = &obj
	}

	in := LeaveInput{
		UserID:    auth.UserID(c),
		ProjectID: form.ProjectID,
		Type:      form.Type,
		StartDate: form.StartDate,
		EndDate:   form.EndDate,
		Reason:    form.Reason,
	}
	if att != nil {
		in.AttachmentKey, in.AttachmentURL = att.Key, att.URL
	}
	res, err := h.svc.CreateLeave(ctx, in)
	if err != nil {
		h.discard(ctx, att)
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Leave request submitted", "data": res})
}

func (h *Handler) ListLeave(c *gin.Context) {
	f := LeaveFilter{Status: c.Query("status")}
	f.ProjectID, _ = strconv.ParseInt(c.Query("projectId"), 10, 64)
	f.UserID, _ = strconv.ParseInt(c.Query("userId"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	res, err := h.svc.ListLeave(c.Request.Context(), actorOf(c), f, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) ReviewLeave(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ReviewLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("status must be approved or rejected"))
		return
	}
	res, err := h.svc.ReviewLeave(c.Request.Context(), actorOf(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Leave request " + res.Status, "data": res})
}

// ===== locations =====

func (h *Handler) ListLocations(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.ListLocations(c.Request.Context(), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) CreateLocation(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("name, latitude, longitude and radius_meters are required"))
		return
	}
	res, err := h.svc.CreateLocation(c.Request.Context(), projectID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Location created", "data": res})
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	locationID, ok := pathID(c, "locationId")
	if !ok {
		return
	}
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("name, latitude, longitude and radius_meters are required"))
		return
	}
	res, err := h.svc.UpdateLocation(c.Request.Context(), projectID, locationID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Location updated", "data": res})
}

func (h *Handler) DeleteLocation(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	locationID, ok := pathID(c, "locationId")
	if !ok {
		return
	}
	if err := h.svc.DeleteLocation(c.Request.Context(), projectID, locationID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Location deleted"})
}

// ---------- helpers ----------

func actorOf(c *gin.Context) Actor {
	return Actor{UserID: auth.UserID(c), Role: auth.Role(c)}
}

func historyQuery(c *gin.Context) HistoryQuery {
	q := HistoryQuery{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Status:    c.Query("status"),
	}
	q.ProjectID, _ = strconv.ParseInt(c.Query("projectId"), 10, 64)
	q.UserID, _ = strconv.ParseInt(c.Query("userId"), 10, 64)
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return q
}

func objectURL(obj *storage.Object) string {
	if obj == nil {
		return ""
	}
	return obj.URL
}

// discard removes an upload whose request failed.
func (h *Handler) discard(ctx context.Context, obj *storage.Object) {
	if err := h.up.Discard(ctx, obj); err != nil {
		log.Printf("[WARN] discard upload %s: %v", obj.Key, err)
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, ErrInvalid("invalid "+name))
		return 0, false
	}
	return id, true
}

func failUpload(c *gin.Context, err error) {
	if storage.IsClientError(err) {
		fail(c, ErrInvalid(err.Error()))
		return
	}
	fail(c, err)
}

func fail(c *gin.Context, err error) {
	status := toHTTPStatus(err)
	msg := "internal server error"
	code := CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	}
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"message": msg,
		"error":   gin.H{"code": code, "message": msg},
	})
}
