package equipment

import (
	"database/sql"
	"time"
)

type Equipment struct {
	ID                int64
	Code              string
	Name              string
	Category          string
	Unit              string
	TotalQuantity     int
	AvailableQuantity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Loan struct {
	ID          int64
	LoanULID    string
	EquipmentID int64
	ProjectID   int64
	Quantity    int
	BorrowedBy  int64
	LentBy      int64
	LentAt      time.Time
	DueOn       sql.NullTime
	Note        sql.NullString
	Returned    bool

	// joined columns
	EquipmentCode    string
	EquipmentName    string
	ProjectName      string
	ReturnedQuantity int
}

type Return struct {
	ID          int64
	ReturnULID  string
	LoanID      int64
	Quantity    int
	ProcessedBy int64
	ReturnedAt  time.Time
	Note        sql.NullString
}

type LoanFilter struct {
	ProjectID       int64
	EquipmentID     int64
	BorrowedBy      int64
	OnlyOutstanding bool
	Limit           int
	Offset          int
}
