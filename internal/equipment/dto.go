package equipment

import "time"

type CreateEquipmentRequest struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Category      string `json:"category"`
	Unit          string `json:"unit"`
	TotalQuantity int    `json:"total_quantity" binding:"required,gt=0"`
}

type EquipmentResponse struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Category          string    `json:"category,omitempty"`
	Unit              string    `json:"unit,omitempty"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	CreatedAt         time.Time `json:"created_at"`
}

type CreateLoanRequest struct {
	EquipmentID int64   `json:"equipment_id" binding:"required,gt=0"`
	ProjectID   int64   `json:"project_id" binding:"required,gt=0"`
	Quantity    int     `json:"quantity" binding:"required,gt=0"`
	BorrowedBy  int64   `json:"borrowed_by"`
	DueOn       *string `json:"due_on"`
	Note        *string `json:"note"`
}

type CreateReturnRequest struct {
	LoanULID string  `json:"loan_ulid" binding:"required"`
	Quantity int     `json:"quantity" binding:"required,gt=0"`
	Note     *string `json:"note"`
}

type LoanResponse struct {
	LoanULID          string     `json:"loan_ulid"`
	EquipmentID       int64      `json:"equipment_id"`
	EquipmentCode     string     `json:"equipment_code,omitempty"`
	EquipmentName     string     `json:"equipment_name,omitempty"`
	ProjectID         int64      `json:"project_id"`
	ProjectName       string     `json:"project_name,omitempty"`
	Quantity          int        `json:"quantity"`
	ReturnedQuantity  int        `json:"returned_quantity"`
	OutstandingQuantity int        `json:"outstanding_quantity"`
	BorrowedBy        int64      `json:"borrowed_by"`
	LentBy            int64      `json:"lent_by"`
	LentAt            time.Time  `json:"lent_at"`
	DueOn             *time.Time `json:"due_on,omitempty"`
	Note              *string    `json:"note,omitempty"`
	Returned          bool       `json:"returned"`
}

type ReturnResponse struct {
	ReturnULID    string    `json:"return_ulid"`
	LoanULID      string    `json:"loan_ulid"`
	Quantity      int       `json:"quantity"`
	ProcessedBy   int64     `json:"processed_by"`
	ReturnedAt    time.Time `json:"returned_at"`
	Note          *string   `json:"note,omitempty"`
	LoanCompleted bool      `json:"loan_completed"`
}

func toEquipmentResponse(e *Equipment) EquipmentResponse {
	return EquipmentResponse{
		ID:                e.ID,
		Code:              e.Code,
		Name:              e.Name,
		Category:          e.Category,
		Unit:              e.Unit,
		TotalQuantity:     e.TotalQuantity,
		AvailableQuantity: e.AvailableQuantity,
		CreatedAt:         e.CreatedAt,
	}
}

func toLoanResponse(l *Loan) LoanResponse {
	r := LoanResponse{
		LoanULID:          l.LoanULID,
		EquipmentID:       l.EquipmentID,
		EquipmentCode:     l.EquipmentCode,
		EquipmentName:     l.EquipmentName,
		ProjectID:         l.ProjectID,
		ProjectName:       l.ProjectName,
		Quantity:          l.Quantity,
		ReturnedQuantity:  l.ReturnedQuantity,
		OutstandingQuantity: outstanding(l.Quantity, l.ReturnedQuantity),
		BorrowedBy:        l.BorrowedBy,
		LentBy:            l.LentBy,
		LentAt:            l.LentAt,
		Returned:          l.Returned,
	}
	if l.DueOn.Valid {
		t := l.DueOn.Time
		r.DueOn = &t
	}
	if l.Note.Valid {
		n := l.Note.String
		r.Note = &n
	}
	return r
}
