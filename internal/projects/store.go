package projects

import (
	"context"
	"database/sql"
	"strings"

	"SIKON-backend/internal/platform/db"
)

type ProjectStore interface {
	Insert(ctx context.Context, p *Project) error
	Get(ctx context.Context, id int64) (*Project, error)
	List(ctx context.Context, f ProjectFilter) ([]Project, int64, error)
	Exists(ctx context.Context, id int64) (bool, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	AddMember(ctx context.Context, m *Member) error
	RemoveMember(ctx context.Context, projectID, userID int64) (int64, error)
	ListMembers(ctx context.Context, projectID int64) ([]Member, error)
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	MemberIDsByRoles(ctx context.Context, projectID int64, roles []string) ([]int64, error)
	ActiveAdminIDs(ctx context.Context) ([]int64, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const projectCols = `id, code, name, client, address, status, start_date, end_date, created_by, created_at, updated_at`

func scanProject(sc interface{ Scan(...any) error }, p *Project) error {
	return sc.Scan(&p.ID, &p.Code, &p.Name, &p.Client, &p.Address, &p.Status,
		&p.StartDate, &p.EndDate, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
}

func (s *Store) Insert(ctx context.Context, p *Project) error {
	const q = `
		INSERT INTO projects (code, name, client, address, status, start_date, end_date, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, p.Code, p.Name, p.Client, p.Address, p.Status,
		p.StartDate, p.EndDate, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return ErrConflict("project code already exists")
		}
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (*Project, error) {
	q := `SELECT ` + projectCols + ` FROM projects WHERE id = ?`
	var p Project
	if err := scanProject(s.db.QueryRowContext(ctx, q, id), &p); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound("project not found")
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) List(ctx context.Context, f ProjectFilter) ([]Project, int64, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, f.Status)
	}
	if f.MemberUserID > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)")
		args = append(args, f.MemberUserID)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects p`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT p.` + strings.ReplaceAll(projectCols, ", ", ", p.") + ` FROM projects p` + cond + ` ORDER BY p.id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := scanProject(rows, &p); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ? AND is_active = 1`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) AddMember(ctx context.Context, m *Member) error {
	const q = `INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, m.ProjectID, m.UserID, m.Role, m.JoinedAt); err != nil {
		if db.IsDuplicateKey(err) {
			return ErrConflict("user is already a member of this project")
		}
		return err
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, projectID, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListMembers(ctx context.Context, projectID int64) ([]Member, error) {
	const q = `
		SELECT m.project_id, m.user_id, m.role, u.username, u.full_name, m.joined_at
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ?
		ORDER BY m.joined_at`
	rows, err := s.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.Username, &m.FullName, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) MemberIDsByRoles(ctx context.Context, projectID int64, roles []string) ([]int64, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	q := `
		SELECT DISTINCT m.user_id
		FROM project_members m
		JOIN users u ON u.id = m.user_id AND u.is_active = 1
		WHERE m.project_id = ? AND m.role IN (` + strings.TrimSuffix(strings.Repeat("?,", len(roles)), ",") + `)`
	args := []any{projectID}
	for _, r := range roles {
		args = append(args, r)
	}
	return s.queryIDs(ctx, q, args...)
}

func (s *Store) ActiveAdminIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM users WHERE role = 'admin' AND is_active = 1`)
}

func (s *Store) queryIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
