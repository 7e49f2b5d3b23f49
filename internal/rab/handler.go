package rab

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SIKON-backend/internal/platform/auth"
	"SIKON-backend/internal/platform/xlsx"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts read routes on r and budget management routes on mgr.
func RegisterRoutes(r, mgr gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// GET /projects/:id/rab?status&category&item_type
	r.GET("/projects/:id/rab", h.List)
	// GET /projects/:id/rab/summary
	r.GET("/projects/:id/rab/summary", h.Summary)
	// GET /projects/:id/rab/export
	r.GET("/projects/:id/rab/export", h.Export)
	// GET /projects/:id/rab/:itemId
	r.GET("/projects/:id/rab/:itemId", h.Get)

	// POST /projects/:id/rab
	mgr.POST("/projects/:id/rab", h.Create)
	// POST /projects/:id/rab/approve-all
	mgr.POST("/projects/:id/rab/approve-all", h.ApproveAll)
	// PUT /projects/:id/rab/:itemId
	mgr.PUT("/projects/:id/rab/:itemId", h.Update)
	// DELETE /projects/:id/rab/:itemId
	mgr.DELETE("/projects/:id/rab/:itemId", h.Delete)
	// PATCH /projects/:id/rab/:itemId/status
	mgr.PATCH("/projects/:id/rab/:itemId/status", h.UpdateStatus)
	// POST /projects/:id/rab/:itemId/approve
	mgr.POST("/projects/:id/rab/:itemId/approve", h.Approve)
	// POST /projects/:id/rab/:itemId/reject
	mgr.POST("/projects/:id/rab/:itemId/reject", h.Reject)
}

func (h *Handler) List(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.List(c.Request.Context(), actorOf(c), filterOf(c, projectID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) Get(c *gin.Context) {
	projectID, itemID, ok := ids(c)
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), actorOf(c), projectID, itemID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) Summary(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Summary(c.Request.Context(), actorOf(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) Export(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request.Context(), actorOf(c), filterOf(c, projectID), &buf); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="rab-project-%d.xlsx"`, projectID))
	c.Data(http.StatusOK, xlsx.ContentType, buf.Bytes())
}

func (h *Handler) Create(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("category, item_type, description, unit, quantity > 0 and unit_price >= 0 are required"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), actorOf(c), projectID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "RAB item created", "data": res})
}

func (h *Handler) Update(c *gin.Context) {
	projectID, itemID, ok := ids(c)
	if !ok {
		return
	}
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json: "+err.Error()))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), actorOf(c), projectID, itemID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "RAB item updated", "data": res})
}

func (h *Handler) Delete(c *gin.Context) {
	projectID, itemID, ok := ids(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actorOf(c), projectID, itemID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "RAB item deleted"})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	projectID, itemID, ok := ids(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("status is required"))
		return
	}
	res, err := h.svc.UpdateStatus(c.Request.Context(), actorOf(c), projectID, itemID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "RAB status updated", "data": res})
}

func (h *Handler) Approve(c *gin.Context) {
	projectID, itemID, ok := ids(c)
	if !ok {
		return
	}
	res, err := h.svc.Approve(c.Request.Context(), actorOf(c), projectID, itemID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "RAB item approved", "data": res})
}

func (h *Handler) Reject(c *gin.Context) {
	projectID, itemID, ok := ids(c)
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json"))
		return
	}
	res, err := h.svc.Reject(c.Request.Context(), actorOf(c), projectID, itemID, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "RAB item rejected", "data": res})
}

func (h *Handler) ApproveAll(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.ApproveAll(c.Request.Context(), actorOf(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("%d RAB items approved", res.Approved), "data": res})
}

// ---------- helpers ----------

func actorOf(c *gin.Context) Actor {
	return Actor{UserID: auth.UserID(c), Role: auth.Role(c)}
}

func filterOf(c *gin.Context, projectID int64) Filter {
	return Filter{
		ProjectID: projectID,
		Status:    c.Query("status"),
		Category:  c.Query("category"),
		ItemType:  c.Query("item_type"),
	}
}

func ids(c *gin.Context) (int64, int64, bool) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return 0, 0, false
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return 0, 0, false
	}
	return projectID, itemID, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, ErrInvalid("invalid "+name))
		return 0, false
	}
	return id, true
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
