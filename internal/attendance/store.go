package attendance

import (
	"context"
	"database/sql"
	"strings"

	"SIKON-backend/internal/platform/db"
)

type AttendanceStore interface {
	// records
	FindRecord(ctx context.Context, userID, projectID int64, date string) (*Record, error)
	CreateClockIn(ctx context.Context, r *Record) error
	CompleteClockOut(ctx context.Context, r *Record) (bool, error)
	GetRecord(ctx context.Context, id int64) (*Record, error)
	ListRecords(ctx context.Context, f HistoryFilter) ([]Record, int64, error)
	StatusCounts(ctx context.Context, f HistoryFilter) (*StatusTotals, error)
	CloseIncomplete(ctx context.Context, before string) (int64, error)

	// settings
	GetSettings(ctx context.Context, projectID int64) (*Settings, error)
	CreateSettings(ctx context.Context, s *Settings) error
	SaveSettings(ctx context.Context, s *Settings) error
	ListSettings(ctx context.Context) ([]Settings, error)

	// locations
	ListLocations(ctx context.Context, projectID int64, activeOnly bool) ([]Location, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	InsertLocation(ctx context.Context, l *Location) error
	UpdateLocation(ctx context.Context, l *Location) error
	DeleteLocation(ctx context.Context, id int64) error

	// leave
	InsertLeave(ctx context.Context, l *LeaveRequest) error
	GetLeave(ctx context.Context, id int64) (*LeaveRequest, error)
	ListLeave(ctx context.Context, f LeaveFilter) ([]LeaveRequest, int64, error)
	ReviewLeave(ctx context.Context, l *LeaveRequest, from string) (bool, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

type scanner interface{ Scan(...any) error }

// ===== records =====

const recordSelect = `
	SELECT a.id, a.user_id, a.project_id, a.location_id, DATE_FORMAT(a.attendance_date, '%Y-%m-%d'),
		a.clock_in, a.clock_in_latitude, a.clock_in_longitude, a.clock_in_address, a.clock_in_photo, a.clock_in_device, a.clock_in_distance,
		a.clock_out, a.clock_out_latitude, a.clock_out_longitude, a.clock_out_address, a.clock_out_photo, a.clock_out_device, a.clock_out_distance,
		a.is_valid_location, a.notes, a.status, a.late_minutes, a.early_leave_minutes, a.work_minutes, a.created_at, a.updated_at,
		u.username, u.full_name, p.code, p.name, l.name
	FROM attendance_records a
	JOIN users u ON u.id = a.user_id
	JOIN projects p ON p.id = a.project_id
	LEFT JOIN project_locations l ON l.id = a.location_id`

func scanRecord(sc scanner) (*Record, error) {
	var r Record
	err := sc.Scan(&r.ID, &r.UserID, &r.ProjectID, &r.LocationID, &r.AttendanceDate,
		&r.ClockIn, &r.ClockInLat, &r.ClockInLon, &r.ClockInAddress, &r.ClockInPhoto, &r.ClockInDevice, &r.ClockInDistance,
		&r.ClockOut, &r.ClockOutLat, &r.ClockOutLon, &r.ClockOutAddress, &r.ClockOutPhoto, &r.ClockOutDevice, &r.ClockOutDistance,
		&r.IsValidLocation, &r.Notes, &r.Status, &r.LateMinutes, &r.EarlyLeaveMinutes, &r.WorkMinutes, &r.CreatedAt, &r.UpdatedAt,
		&r.Username, &r.FullName, &r.ProjectCode, &r.ProjectName, &r.LocationName)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FindRecord returns nil, nil when the user has no record for that day.
func (s *Store) FindRecord(ctx context.Context, userID, projectID int64, date string) (*Record, error) {
	q := recordSelect + ` WHERE a.user_id = ? AND a.project_id = ? AND a.attendance_date = ?`
	r, err := scanRecord(s.db.QueryRowContext(ctx, q, userID, projectID, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// CreateClockIn re-checks and inserts in one transaction; the unique key on
// (user_id, project_id, attendance_date) catches a concurrent insert.
func (s *Store) CreateClockIn(ctx context.Context, r *Record) error {
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM attendance_records WHERE user_id = ? AND project_id = ? AND attendance_date = ? FOR UPDATE`,
			r.UserID, r.ProjectID, r.AttendanceDate).Scan(&one)
		if err == nil {
			return errAlreadyClockedIn
		}
		if err != sql.ErrNoRows {
			return err
		}

		const q = `
			INSERT INTO attendance_records
			(user_id, project_id, location_id, attendance_date, clock_in, clock_in_latitude, clock_in_longitude,
			 clock_in_address, clock_in_photo, clock_in_device, clock_in_distance, is_valid_location, notes, status,
			 late_minutes, early_leave_minutes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
		res, err := tx.ExecContext(ctx, q,
			r.UserID, r.ProjectID, r.LocationID, r.AttendanceDate, r.ClockIn, r.ClockInLat, r.ClockInLon,
			r.ClockInAddress, r.ClockInPhoto, r.ClockInDevice, r.ClockInDistance, r.IsValidLocation, r.Notes, r.Status,
			r.LateMinutes, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return err
		}
		r.ID, err = res.LastInsertId()
		return err
	})
	if db.IsDuplicateKey(err) {
		return errAlreadyClockedIn
	}
	return err
}

// CompleteClockOut writes the clock-out columns only while the record is still open.
func (s *Store) CompleteClockOut(ctx context.Context, r *Record) (bool, error) {
	const q = `
		UPDATE attendance_records
		SET clock_out = ?, clock_out_latitude = ?, clock_out_longitude = ?, clock_out_address = ?,
			clock_out_photo = ?, clock_out_device = ?, clock_out_distance = ?, is_valid_location = ?,
			notes = ?, status = ?, early_leave_minutes = ?, work_minutes = ?, updated_at = ?
		WHERE id = ? AND clock_out IS NULL`
	res, err := s.db.ExecContext(ctx, q,
		r.ClockOut, r.ClockOutLat, r.ClockOutLon, r.ClockOutAddress,
		r.ClockOutPhoto, r.ClockOutDevice, r.ClockOutDistance, r.IsValidLocation,
		r.Notes, r.Status, r.EarlyLeaveMinutes, r.WorkMinutes, r.UpdatedAt, r.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Store) GetRecord(ctx context.Context, id int64) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, recordSelect+` WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound("attendance not found")
	}
	return r, err
}

func historyWhere(f HistoryFilter) (string, []any) {
	var where []string
	var args []any
	if f.UserID > 0 {
		where = append(where, "a.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ProjectID > 0 {
		where = append(where, "a.project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.From != "" {
		where = append(where, "a.attendance_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "a.attendance_date <= ?")
		args = append(args, f.To)
	}
	if f.Status != "" {
		where = append(where, "a.status = ?")
		args = append(args, f.Status)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (s *Store) ListRecords(ctx context.Context, f HistoryFilter) ([]Record, int64, error) {
	cond, args := historyWhere(f)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records a`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := recordSelect + cond + ` ORDER BY a.attendance_date DESC, a.clock_in DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// StatusCounts returns per-status counts, the number of closed records and
// summed work and late minutes, read from one snapshot.
func (s *Store) StatusCounts(ctx context.Context, f HistoryFilter) (*StatusTotals, error) {
	cond, args := historyWhere(f)
	q := `
		SELECT a.status, COUNT(*), COALESCE(SUM(a.clock_out IS NOT NULL), 0),
			COALESCE(SUM(a.work_minutes), 0), COALESCE(SUM(a.late_minutes), 0)
		FROM attendance_records a` + cond + `
		GROUP BY a.status`

	out := &StatusTotals{Counts: map[string]int64{}}
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var status string
			var n, closed, w, l int64
			if err := rows.Scan(&status, &n, &closed, &w, &l); err != nil {
				return err
			}
			out.Counts[status] = n
			out.Closed += closed
			out.WorkMinutes += w
			out.LateMinutes += l
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CloseIncomplete marks records of days before `before` that were never clocked out.
func (s *Store) CloseIncomplete(ctx context.Context, before string) (int64, error) {
	const q = `
		UPDATE attendance_records
		SET status = 'incomplete', updated_at = UTC_TIMESTAMP()
		WHERE clock_out IS NULL AND attendance_date < ? AND status <> 'incomplete'`
	res, err := s.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ===== settings =====

const settingsCols = `project_id, require_gps, require_photo_in, require_photo_out, allow_manual_location,
	max_distance_meters, TIME_FORMAT(work_start, '%H:%i'), TIME_FORMAT(work_end, '%H:%i'),
	late_threshold_minutes, early_leave_threshold_minutes, updated_by, created_at, updated_at`

func scanSettings(sc scanner) (*Settings, error) {
	var st Settings
	if err := sc.Scan(&st.ProjectID, &st.RequireGPS, &st.RequirePhotoIn, &st.RequirePhotoOut, &st.AllowManualLocation,
		&st.MaxDistanceMeters, &st.WorkStart, &st.WorkEnd,
		&st.LateThresholdMinutes, &st.EarlyLeaveThresholdMinutes, &st.UpdatedBy, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetSettings returns nil, nil when the project has no settings row yet.
func (s *Store) GetSettings(ctx context.Context, projectID int64) (*Settings, error) {
	st, err := scanSettings(s.db.QueryRowContext(ctx, `SELECT `+settingsCols+` FROM attendance_settings WHERE project_id = ?`, projectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// CreateSettings inserts st unless another request created the row first.
func (s *Store) CreateSettings(ctx context.Context, st *Settings) error {
	const q = `
		INSERT IGNORE INTO attendance_settings
		(project_id, require_gps, require_photo_in, require_photo_out, allow_manual_location, max_distance_meters,
		 work_start, work_end, late_threshold_minutes, early_leave_threshold_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, st.ProjectID, st.RequireGPS, st.RequirePhotoIn, st.RequirePhotoOut,
		st.AllowManualLocation, st.MaxDistanceMeters, st.WorkStart, st.WorkEnd,
		st.LateThresholdMinutes, st.EarlyLeaveThresholdMinutes, st.CreatedAt, st.UpdatedAt)
	return err
}

func (s *Store) SaveSettings(ctx context.Context, st *Settings) error {
	const q = `
		UPDATE attendance_settings
		SET require_gps = ?, require_photo_in = ?, require_photo_out = ?, allow_manual_location = ?,
			max_distance_meters = ?, work_start = ?, work_end = ?, late_threshold_minutes = ?,
			early_leave_threshold_minutes = ?, updated_by = ?, updated_at = ?
		WHERE project_id = ?`
	_, err := s.db.ExecContext(ctx, q, st.RequireGPS, st.RequirePhotoIn, st.RequirePhotoOut, st.AllowManualLocation,
		st.MaxDistanceMeters, st.WorkStart, st.WorkEnd, st.LateThresholdMinutes,
		st.EarlyLeaveThresholdMinutes, st.UpdatedBy, st.UpdatedAt, st.ProjectID)
	return err
}

func (s *Store) ListSettings(ctx context.Context) ([]Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+settingsCols+` FROM attendance_settings ORDER BY project_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Settings
	for rows.Next() {
		st, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// ===== locations =====

const locationCols = `id, project_id, name, address, latitude, longitude, radius_meters, is_active, created_at, updated_at`

func scanLocation(sc scanner) (*Location, error) {
	var l Location
	if err := sc.Scan(&l.ID, &l.ProjectID, &l.Name, &l.Address, &l.Latitude, &l.Longitude,
		&l.RadiusMeters, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLocations is ordered by id so that the first of two equidistant locations is stable.
func (s *Store) ListLocations(ctx context.Context, projectID int64, activeOnly bool) ([]Location, error) {
	q := `SELECT ` + locationCols + ` FROM project_locations WHERE project_id = ?`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *Store) GetLocation(ctx context.Context, id int64) (*Location, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, `SELECT `+locationCols+` FROM project_locations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound("location not found")
	}
	return l, err
}

func (s *Store) InsertLocation(ctx context.Context, l *Location) error {
	const q = `
		INSERT INTO project_locations (project_id, name, address, latitude, longitude, radius_meters, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, l.ProjectID, l.Name, l.Address, l.Latitude, l.Longitude,
		l.RadiusMeters, l.IsActive, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return err
	}
	l.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateLocation(ctx context.Context, l *Location) error {
	const q = `
		UPDATE project_locations
		SET name = ?, address = ?, latitude = ?, longitude = ?, radius_meters = ?, is_active = ?, updated_at = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, l.Name, l.Address, l.Latitude, l.Longitude, l.RadiusMeters, l.IsActive, l.UpdatedAt, l.ID)
	return err
}

func (s *Store) DeleteLocation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_locations WHERE id = ?`, id)
	if err != nil {
		if db.IsRowReferenced(err) {
			return ErrConflict("location is used by attendance records; deactivate it instead")
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound("location not found")
	}
	return nil
}

// ===== leave =====

const leaveSelect = `
	SELECT r.id, r.user_id, r.project_id, r.leave_type, DATE_FORMAT(r.start_date, '%Y-%m-%d'), DATE_FORMAT(r.end_date, '%Y-%m-%d'),
		r.reason, r.attachment_key, r.attachment_url, r.status, r.reviewed_by, r.reviewed_at, r.rejection_reason,
		r.created_at, r.updated_at, u.full_name
	FROM leave_requests r
	JOIN users u ON u.id = r.user_id`

func scanLeave(sc scanner) (*LeaveRequest, error) {
	var l LeaveRequest
	if err := sc.Scan(&l.ID, &l.UserID, &l.ProjectID, &l.Type, &l.StartDate, &l.EndDate,
		&l.Reason, &l.AttachmentKey, &l.AttachmentURL, &l.Status, &l.ReviewedBy, &l.ReviewedAt, &l.RejectionReason,
		&l.CreatedAt, &l.UpdatedAt, &l.FullName); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) InsertLeave(ctx context.Context, l *LeaveRequest) error {
	const q = `
		INSERT INTO leave_requests
		(user_id, project_id, leave_type, start_date, end_date, reason, attachment_key, attachment_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, l.UserID, l.ProjectID, l.Type, l.StartDate, l.EndDate, l.Reason,
		l.AttachmentKey, l.AttachmentURL, l.Status, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return err
	}
	l.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetLeave(ctx context.Context, id int64) (*LeaveRequest, error) {
	l, err := scanLeave(s.db.QueryRowContext(ctx, leaveSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound("leave request not found")
	}
	return l, err
}

func (s *Store) ListLeave(ctx context.Context, f LeaveFilter) ([]LeaveRequest, int64, error) {
	var where []string
	var args []any
	if f.UserID > 0 {
		where = append(where, "r.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ProjectID > 0 {
		where = append(where, "r.project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leave_requests r`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, leaveSelect+cond+` ORDER BY r.created_at DESC LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []LeaveRequest
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

// ReviewLeave persists a review only if the row is still in status `from`.
func (s *Store) ReviewLeave(ctx context.Context, l *LeaveRequest, from string) (bool, error) {
	const q = `
		UPDATE leave_requests
		SET status = ?, reviewed_by = ?, reviewed_at = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, q, l.Status, l.ReviewedBy, l.ReviewedAt, l.RejectionReason, l.UpdatedAt, l.ID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
