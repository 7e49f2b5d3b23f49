package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc AuthService }

// RegisterRoutes mounts the public login route on pub and the session routes on priv.
func RegisterRoutes(pub, priv gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	pub.POST("/auth/login", h.Login)
	priv.GET("/auth/me", h.Me)
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "username and password are required"})
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": err.Error()})
		return
	case errors.Is(err, ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": err.Error()})
		return
	case err != nil:
		log.Printf("[ERROR] login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful", "data": res})
}

func (h *AuthHandler) Me(c *gin.Context) {
	acct, err := h.svc.Me(c.Request.Context(), UserID(c))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "user not found"})
		return
	}
	if err != nil {
		log.Printf("[ERROR] me: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"id":        acct.ID,
		"username":  acct.Username,
		"full_name": acct.FullName,
		"role":      acct.Role,
		"is_active": acct.IsActive,
	}})
}
