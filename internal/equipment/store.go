package equipment

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"SIKON-backend/internal/platform/db"
)

type EquipmentStore interface {
	InsertEquipment(ctx context.Context, e *Equipment) error
	ListEquipment(ctx context.Context, category string) ([]Equipment, error)
	ExecLend(ctx context.Context, l *Loan) error
	ExecReturn(ctx context.Context, loanULID string, r *Return) (*Loan, error)
	ListLoans(ctx context.Context, f LoanFilter) ([]Loan, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// ===== stock rules =====

func outstanding(lent, returned int) int {
	if returned >= lent {
		return 0
	}
	return lent - returned
}

func checkStock(available, qty int) error {
	if qty <= 0 {
		return ErrInvalid("quantity must be positive")
	}
	if qty > available {
		return ErrConflict("insufficient stock")
	}
	return nil
}

// checkReturn reports whether a return of qty completes the loan.
func checkReturn(lent, returned, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalid("quantity must be positive")
	}
	if qty > outstanding(lent, returned) {
		return false, ErrConflict("return quantity exceeds outstanding quantity")
	}
	return returned+qty == lent, nil
}

// ===== equipment =====

func (s *Store) InsertEquipment(ctx context.Context, e *Equipment) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO equipment (code, name, category, unit, total_quantity, available_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Code, e.Name, e.Category, e.Unit, e.TotalQuantity, e.AvailableQuantity, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return ErrConflict("equipment code already exists")
		}
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListEquipment(ctx context.Context, category string) ([]Equipment, error) {
	q := `SELECT id, code, name, category, unit, total_quantity, available_quantity, created_at, updated_at FROM equipment`
	var args []any
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		var e Equipment
		if err := rows.Scan(&e.ID, &e.Code, &e.Name, &e.Category, &e.Unit, &e.TotalQuantity,
			&e.AvailableQuantity, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ===== loans =====

// ExecLend locks the equipment row, checks and decrements stock, then records the loan.
func (s *Store) ExecLend(ctx context.Context, l *Loan) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var available int
		err := tx.QueryRowContext(ctx,
			`SELECT available_quantity FROM equipment WHERE id = ? FOR UPDATE`, l.EquipmentID).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("equipment not found")
		}
		if err != nil {
			return err
		}
		if err := checkStock(available, l.Quantity); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE equipment SET available_quantity = available_quantity - ?, updated_at = ? WHERE id = ?`,
			l.Quantity, l.LentAt, l.EquipmentID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO equipment_loans
				(loan_ulid, equipment_id, project_id, quantity, borrowed_by, lent_by, lent_at, due_on, note, returned)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)`,
			l.LoanULID, l.EquipmentID, l.ProjectID, l.Quantity, l.BorrowedBy, l.LentBy, l.LentAt, l.DueOn, l.Note)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrInvalid("unknown project or borrower")
			}
			return err
		}
		l.ID, err = res.LastInsertId()
		return err
	})
}

// ExecReturn records a (possibly partial) return against a loan and restores stock.
// The loan is marked returned once the full quantity is back.
func (s *Store) ExecReturn(ctx context.Context, loanULID string, r *Return) (*Loan, error) {
	var loan Loan
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, loan_ulid, equipment_id, project_id, quantity, borrowed_by, lent_by, lent_at, due_on, note, returned
			FROM equipment_loans WHERE loan_ulid = ? FOR UPDATE`, loanULID).
			Scan(&loan.ID, &loan.LoanULID, &loan.EquipmentID, &loan.ProjectID, &loan.Quantity, &loan.BorrowedBy,
				&loan.LentBy, &loan.LentAt, &loan.DueOn, &loan.Note, &loan.Returned)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("loan not found")
		}
		if err != nil {
			return err
		}
		if loan.Returned {
			return ErrConflict("loan already fully returned")
		}

		var returned int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(quantity), 0) FROM equipment_returns WHERE loan_id = ?`, loan.ID).Scan(&returned); err != nil {
			return err
		}
		complete, err := checkReturn(loan.Quantity, returned, r.Quantity)
		if err != nil {
			return err
		}

		r.LoanID = loan.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO equipment_returns (return_ulid, loan_id, quantity, processed_by, returned_at, note)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ReturnULID, r.LoanID, r.Quantity, r.ProcessedBy, r.ReturnedAt, r.Note)
		if err != nil {
			return err
		}
		if r.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE equipment SET available_quantity = available_quantity + ?, updated_at = ? WHERE id = ?`,
			r.Quantity, r.ReturnedAt, loan.EquipmentID); err != nil {
			return err
		}
		if complete {
			if _, err := tx.ExecContext(ctx,
				`UPDATE equipment_loans SET returned = TRUE WHERE id = ?`, loan.ID); err != nil {
				return err
			}
		}
		loan.Returned = complete
		loan.ReturnedQuantity = returned + r.Quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (s *Store) ListLoans(ctx context.Context, f LoanFilter) ([]Loan, error) {
	var (
		where []string
		args  []any
	)
	if f.ProjectID > 0 {
		where = append(where, "l.project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.EquipmentID > 0 {
		where = append(where, "l.equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.BorrowedBy > 0 {
		where = append(where, "l.borrowed_by = ?")
		args = append(args, f.BorrowedBy)
	}
	if f.OnlyOutstanding {
		where = append(where, "l.returned = FALSE")
	}

	q := `
		SELECT l.id, l.loan_ulid, l.equipment_id, l.project_id, l.quantity, l.borrowed_by, l.lent_by, l.lent_at,
			l.due_on, l.note, l.returned, e.code, e.name, COALESCE(p.name, ''),
			COALESCE((SELECT SUM(r.quantity) FROM equipment_returns r WHERE r.loan_id = l.id), 0)
		FROM equipment_loans l
		JOIN equipment e ON e.id = l.equipment_id
		LEFT JOIN projects p ON p.id = l.project_id`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY l.lent_at DESC, l.id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.ID, &l.LoanULID, &l.EquipmentID, &l.ProjectID, &l.Quantity, &l.BorrowedBy,
			&l.LentBy, &l.LentAt, &l.DueOn, &l.Note, &l.Returned, &l.EquipmentCode, &l.EquipmentName,
			&l.ProjectName, &l.ReturnedQuantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
