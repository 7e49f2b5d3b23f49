package equipment

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SIKON-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts listings on r; stock changes go on mgr.
func RegisterRoutes(r, mgr gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// GET /equipment
	r.GET("/equipment", h.ListEquipment)
	// GET /equipment/loans
	r.GET("/equipment/loans", h.ListLoans)

	// POST /equipment
	mgr.POST("/equipment", h.CreateEquipment)
	// POST /equipment/loans
	mgr.POST("/equipment/loans", h.Lend)
	// POST /equipment/returns
	mgr.POST("/equipment/returns", h.Return)
}

func (h *Handler) CreateEquipment(c *gin.Context) {
	var req CreateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("code, name and a positive total_quantity are required"))
		return
	}
	res, err := h.svc.CreateEquipment(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Equipment created", "data": res})
}

func (h *Handler) ListEquipment(c *gin.Context) {
	res, err := h.svc.ListEquipment(c.Request.Context(), c.Query("category"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

func (h *Handler) Lend(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("equipment_id, project_id and a positive quantity are required"))
		return
	}
	res, err := h.svc.Lend(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Equipment lent", "data": res})
}

func (h *Handler) Return(c *gin.Context) {
	var req CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, ErrInvalid("loan_ulid and a positive quantity are required"))
		return
	}
	res, err := h.svc.Return(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Return recorded", "data": res})
}

func (h *Handler) ListLoans(c *gin.Context) {
	f := LoanFilter{
		ProjectID:   queryInt64(c, "project_id"),
		EquipmentID: queryInt64(c, "equipment_id"),
		BorrowedBy:  queryInt64(c, "borrowed_by"),
		Limit:       int(queryInt64(c, "limit")),
		Offset:      int(queryInt64(c, "offset")),
	}
	if v := c.Query("only_outstanding"); v == "true" || v == "1" {
		f.OnlyOutstanding = true
	}
	res, err := h.svc.ListLoans(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// ---------- helpers ----------

func queryInt64(c *gin.Context, name string) int64 {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return v
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
