package notify

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SIKON-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// POST /fcm-notifications/register-token
	r.POST("/fcm-notifications/register-token", h.RegisterToken)
	// DELETE /fcm-notifications/unregister-token
	r.DELETE("/fcm-notifications/unregister-token", h.UnregisterToken)
	// DELETE /fcm-notifications/unregister-all
	r.DELETE("/fcm-notifications/unregister-all", h.UnregisterAll)
	// GET /fcm-notifications/status
	r.GET("/fcm-notifications/status", h.Status)
	// POST /fcm-notifications/test
	r.POST("/fcm-notifications/test", h.Test)
	// GET /fcm-notifications/history
	r.GET("/fcm-notifications/history", h.History)
}

func (h *Handler) RegisterToken(c *gin.Context) {
	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("token is required; device_type must be web, android or ios"))
		return
	}
	res, err := h.svc.RegisterToken(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Token registered", "data": res})
}

func (h *Handler) UnregisterToken(c *gin.Context) {
	var req UnregisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Token = c.Query("token")
	}
	if req.Token == "" {
		fail(c, ErrInvalid("token is required"))
		return
	}
	if err := h.svc.UnregisterToken(c.Request.Context(), auth.UserID(c), req.Token); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Token unregistered"})
}

func (h *Handler) UnregisterAll(c *gin.Context) {
	n, err := h.svc.UnregisterAll(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "All tokens unregistered", "data": gin.H{"deactivated": n}})
}

func (h *Handler) Status(c *gin.Context) {
	res, err := h.svc.Status(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) Test(c *gin.Context) {
	var req TestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, ErrInvalid("invalid json"))
			return
		}
	}
	res, err := h.svc.Test(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	msg := res.Message
	if res.Success {
		msg = "Test notification sent"
	}
	c.JSON(http.StatusOK, gin.H{"success": res.Success, "message": msg, "data": res})
}

func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	res, err := h.svc.History(c.Request.Context(), auth.UserID(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// ---------- helpers ----------

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
