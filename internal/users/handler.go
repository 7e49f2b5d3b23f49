package users

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SIKON-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts the user administration routes; callers restrict r to admins.
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// GET /users
	r.GET("/users", h.ListUsers)
	// POST /users
	r.POST("/users", h.CreateUser)
	// GET /users/:id
	r.GET("/users/:id", h.GetUser)
	// PUT /users/:id
	r.PUT("/users/:id", h.UpdateUser)
	// DELETE /users/:id (deactivate)
	r.DELETE("/users/:id", h.DeactivateUser)
	// POST /users/:id/manpower
	r.POST("/users/:id/manpower", h.LinkManpower)

	// GET /manpower
	r.GET("/manpower", h.ListManpower)
	// POST /manpower
	r.POST("/manpower", h.CreateManpower)
	// PUT /manpower/:id
	r.PUT("/manpower/:id", h.UpdateManpower)
}

func (h *Handler) ListUsers(c *gin.Context) {
	f := UserFilter{Role: c.Query("role"), Search: c.Query("q")}
	if v := c.Query("is_active"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.IsActive = &b
		}
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	res, err := h.svc.ListUsers(c.Request.Context(), f, page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json or missing required fields: "+err.Error()))
		return
	}
	res, err := h.svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User created", "data": res})
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json: "+err.Error()))
		return
	}
	res, err := h.svc.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User updated", "data": res})
}

func (h *Handler) DeactivateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeactivateUser(c.Request.Context(), auth.UserID(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deactivated"})
}

func (h *Handler) LinkManpower(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req LinkManpowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json"))
		return
	}
	res, err := h.svc.LinkManpower(c.Request.Context(), id, req.ManpowerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Manpower link updated", "data": res})
}

func (h *Handler) ListManpower(c *gin.Context) {
	activeOnly := c.Query("active") == "true" || c.Query("active") == "1"
	res, err := h.svc.ListManpower(c.Request.Context(), activeOnly)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) CreateManpower(c *gin.Context) {
	var req ManpowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json or missing required fields: "+err.Error()))
		return
	}
	res, err := h.svc.CreateManpower(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Manpower created", "data": res})
}

func (h *Handler) UpdateManpower(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ManpowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("invalid json: "+err.Error()))
		return
	}
	res, err := h.svc.UpdateManpower(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Manpower updated", "data": res})
}

// ---------- helpers ----------

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, ErrInvalid("invalid id"))
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
