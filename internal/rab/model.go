package rab

import (
	"database/sql"
	"time"
)

// Item statuses.
const (
	StatusDraft           = "draft"
	StatusUnderReview     = "under_review"
	StatusPendingApproval = "pending_approval"
	StatusReviewed        = "reviewed"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
)

// Item types.
const (
	TypeMaterial  = "material"
	TypeService   = "service"
	TypeLabor     = "labor"
	TypeEquipment = "equipment"
	TypeOverhead  = "overhead"
)

var itemTypes = []string{TypeMaterial, TypeService, TypeLabor, TypeEquipment, TypeOverhead}

// Item is one budget line (project_rab row). TotalPrice is always Quantity * UnitPrice.
type Item struct {
	ID          int64
	ProjectID   int64
	Category    string
	ItemType    string
	Description string
	Unit        string
	Quantity    float64
	UnitPrice   float64
	TotalPrice  float64
	Status      string
	IsApproved  bool
	ApprovedBy  sql.NullInt64
	ApprovedAt  sql.NullTime
	RejectedBy  sql.NullInt64
	RejectedAt  sql.NullTime
	Notes       sql.NullString
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	CreatorName string
}

type Filter struct {
	ProjectID int64
	Status    string
	Category  string
	ItemType  string
}

// SummaryRow is one (category, status) aggregate.
type SummaryRow struct {
	Category string
	Status   string
	Count    int64
	Total    float64
}
