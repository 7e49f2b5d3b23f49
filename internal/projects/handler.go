package projects

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SIKON-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts read routes on r and management routes on mgr (admin / project manager).
func RegisterRoutes(r, mgr gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// GET /projects
	r.GET("/projects", h.List)
	// GET /projects/:id
	r.GET("/projects/:id", h.Get)
	// GET /projects/:id/members
	r.GET("/projects/:id/members", h.ListMembers)

	// POST /projects
	mgr.POST("/projects", h.Create)
	// POST /projects/:id/members
	mgr.POST("/projects/:id/members", h.AddMember)
	// DELETE /projects/:id/members/:userId
	mgr.DELETE("/projects/:id/members/:userId", h.RemoveMember)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Project created", "data": res})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	res, err := h.svc.List(c.Request.Context(), auth.UserID(c), auth.Role(c), c.Query("status"), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) ListMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.ListMembers(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) AddMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("user_id and a valid role are required"))
		return
	}
	res, err := h.svc.AddMember(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Member added", "data": res})
}

func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), id, userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Member removed"})
}

// ---------- helpers ----------

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
