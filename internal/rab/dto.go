package rab

import "time"

type CreateItemRequest struct {
	Category    string  `json:"category" binding:"required,max=100"`
	ItemType    string  `json:"item_type" binding:"required,rab_item_type"`
	Description string  `json:"description" binding:"required,max=1000"`
	Unit        string  `json:"unit" binding:"required,max=30"`
	Quantity    float64 `json:"quantity" binding:"gt=0"`
	UnitPrice   float64 `json:"unit_price" binding:"gte=0"`
	Status      string  `json:"status" binding:"omitempty,oneof=draft under_review pending_approval"`
	Notes       string  `json:"notes" binding:"max=2000"`
}

// UpdateItemRequest never touches status; use the status, approve and reject endpoints.
type UpdateItemRequest struct {
	Category    *string  `json:"category" binding:"omitempty,min=1,max=100"`
	ItemType    *string  `json:"item_type" binding:"omitempty,rab_item_type"`
	Description *string  `json:"description" binding:"omitempty,min=1,max=1000"`
	Unit        *string  `json:"unit" binding:"omitempty,min=1,max=30"`
	Quantity    *float64 `json:"quantity" binding:"omitempty,gt=0"`
	UnitPrice   *float64 `json:"unit_price" binding:"omitempty,gte=0"`
	Notes       *string  `json:"notes" binding:"omitempty,max=2000"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=2000"`
}

type ItemResponse struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Category    string     `json:"category"`
	ItemType    string     `json:"item_type"`
	Description string     `json:"description"`
	Unit        string     `json:"unit"`
	Quantity    float64    `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	TotalPrice  float64    `json:"total_price"`
	Status      string     `json:"status"`
	IsApproved  bool       `json:"is_approved"`
	ApprovedBy  *int64     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedBy  *int64     `json:"rejected_by,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	CreatorName string     `json:"creator_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ListResponse struct {
	Items      []ItemResponse `json:"items"`
	Count      int            `json:"count"`
	GrandTotal float64        `json:"grand_total"`
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Count    int64   `json:"count"`
	Total    float64 `json:"total"`
}

type StatusTotal struct {
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}

type SummaryResponse struct {
	ProjectID     int64                  `json:"project_id"`
	ItemCount     int64                  `json:"item_count"`
	GrandTotal    float64                `json:"grand_total"`
	ApprovedTotal float64                `json:"approved_total"`
	ByCategory    []CategoryTotal        `json:"by_category"`
	ByStatus      map[string]StatusTotal `json:"by_status"`
}

type ApproveAllResponse struct {
	Approved int64 `json:"approved"`
}

func toResponse(it *Item) ItemResponse {
	out := ItemResponse{
		ID:          it.ID,
		ProjectID:   it.ProjectID,
		Category:    it.Category,
		ItemType:    it.ItemType,
		Description: it.Description,
		Unit:        it.Unit,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		TotalPrice:  it.TotalPrice,
		Status:      it.Status,
		IsApproved:  it.IsApproved,
		CreatedBy:   it.CreatedBy,
		CreatorName: it.CreatorName,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
	if it.ApprovedBy.Valid {
		out.ApprovedBy = &it.ApprovedBy.Int64
	}
	if it.ApprovedAt.Valid {
		out.ApprovedAt = &it.ApprovedAt.Time
	}
	if it.RejectedBy.Valid {
		out.RejectedBy = &it.RejectedBy.Int64
	}
	if it.RejectedAt.Valid {
		out.RejectedAt = &it.RejectedAt.Time
	}
	if it.Notes.Valid {
		out.Notes = &it.Notes.String
	}
	return out
}
