package rab

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"SIKON-backend/internal/platform/db"
)

type RABStore interface {
	List(ctx context.Context, f Filter) ([]Item, error)
	Get(ctx context.Context, projectID, id int64) (*Item, error)
	Insert(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	SetStatus(ctx context.Context, it *Item, from string) (bool, error)
	Delete(ctx context.Context, projectID, id int64) (int64, error)
	ApproveDrafts(ctx context.Context, projectID, approverID int64, at time.Time) (int64, []int64, error)
	Summary(ctx context.Context, projectID int64) ([]SummaryRow, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const itemSelect = `
	SELECT r.id, r.project_id, r.category, r.item_type, r.description, r.unit, r.quantity, r.unit_price, r.total_price,
		r.status, r.is_approved, r.approved_by, r.approved_at, r.rejected_by, r.rejected_at, r.notes,
		r.created_by, r.created_at, r.updated_at, COALESCE(u.full_name, '')
	FROM project_rab r
	LEFT JOIN users u ON u.id = r.created_by`

func scanItem(sc interface{ Scan(...any) error }) (*Item, error) {
	var it Item
	err := sc.Scan(&it.ID, &it.ProjectID, &it.Category, &it.ItemType, &it.Description, &it.Unit,
		&it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.Status, &it.IsApproved, &it.ApprovedBy, &it.ApprovedAt,
		&it.RejectedBy, &it.RejectedAt, &it.Notes, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt, &it.CreatorName)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Item, error) {
	where := []string{"r.project_id = ?"}
	args := []any{f.ProjectID}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "r.category = ?")
		args = append(args, f.Category)
	}
	if f.ItemType != "" {
		where = append(where, "r.item_type = ?")
		args = append(args, f.ItemType)
	}
	q := itemSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY r.category, r.id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, projectID, id int64) (*Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx, itemSelect+` WHERE r.id = ? AND r.project_id = ?`, id, projectID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound("RAB item not found")
	}
	return it, err
}

func (s *Store) Insert(ctx context.Context, it *Item) error {
	const q = `
		INSERT INTO project_rab
		(project_id, category, item_type, description, unit, quantity, unit_price, total_price, status,
		 is_approved, notes, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, it.ProjectID, it.Category, it.ItemType, it.Description, it.Unit,
		it.Quantity, it.UnitPrice, it.TotalPrice, it.Status, it.IsApproved, it.Notes, it.CreatedBy, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrNotFound("project not found")
		}
		return err
	}
	it.ID, err = res.LastInsertId()
	return err
}

// Update writes the editable columns. Status and approval columns are left alone.
func (s *Store) Update(ctx context.Context, it *Item) error {
	const q = `
		UPDATE project_rab
		SET category = ?, item_type = ?, description = ?, unit = ?, quantity = ?, unit_price = ?,
			total_price = ?, notes = ?, updated_at = ?
		WHERE id = ? AND project_id = ?`
	_, err := s.db.ExecContext(ctx, q, it.Category, it.ItemType, it.Description, it.Unit, it.Quantity, it.UnitPrice,
		it.TotalPrice, it.Notes, it.UpdatedAt, it.ID, it.ProjectID)
	return err
}

// SetStatus persists a status change only while the row is still in status `from`.
func (s *Store) SetStatus(ctx context.Context, it *Item, from string) (bool, error) {
	const q = `
		UPDATE project_rab
		SET status = ?, is_approved = ?, approved_by = ?, approved_at = ?, rejected_by = ?, rejected_at = ?,
			notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, it.Status, it.IsApproved, it.ApprovedBy, it.ApprovedAt, it.RejectedBy, it.RejectedAt,
		it.Notes, it.UpdatedAt, it.ID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Delete removes a non-approved item and returns the number of rows deleted.
func (s *Store) Delete(ctx context.Context, projectID, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_rab WHERE id = ? AND project_id = ? AND status <> ?`,
		id, projectID, StatusApproved)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ApproveDrafts approves every draft item of a project in one transaction and returns the
// number approved plus the distinct creators of those items.
func (s *Store) ApproveDrafts(ctx context.Context, projectID, approverID int64, at time.Time) (int64, []int64, error) {
	var (
		n        int64
		creators []int64
	)
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT DISTINCT created_by FROM project_rab WHERE project_id = ? AND status = ? FOR UPDATE`,
			projectID, StatusDraft)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			creators = append(creators, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE project_rab
			SET status = ?, is_approved = 1, approved_by = ?, approved_at = ?, updated_at = ?
			WHERE project_id = ? AND status = ?`,
			StatusApproved, approverID, at, at, projectID, StatusDraft)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return n, creators, nil
}

func (s *Store) Summary(ctx context.Context, projectID int64) ([]SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, status, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM project_rab
		WHERE project_id = ?
		GROUP BY category, status
		ORDER BY category, status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.Category, &r.Status, &r.Count, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
