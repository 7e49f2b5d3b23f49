package attendance

import (
	"database/sql"
	"time"
)

const DateLayout = "2006-01-02"

// Attendance record statuses.
const (
	StatusClockedIn  = "clocked_in"
	StatusLate       = "late"
	StatusClockedOut = "clocked_out"
	StatusEarlyLeave = "early_leave"
	StatusIncomplete = "incomplete"
)

// Record is one attendance row per (user, project, attendance_date).
type Record struct {
	ID             int64
	UserID         int64
	ProjectID      int64
	LocationID     sql.NullInt64
	AttendanceDate string // DATE → "YYYY-MM-DD"

	ClockIn         time.Time
	ClockInLat      sql.NullFloat64
	ClockInLon      sql.NullFloat64
	ClockInAddress  sql.NullString
	ClockInPhoto    sql.NullString
	ClockInDevice   sql.NullString
	ClockInDistance sql.NullFloat64

	ClockOut         sql.NullTime
	ClockOutLat      sql.NullFloat64
	ClockOutLon      sql.NullFloat64
	ClockOutAddress  sql.NullString
	ClockOutPhoto    sql.NullString
	ClockOutDevice   sql.NullString
	ClockOutDistance sql.NullFloat64

	IsValidLocation   bool
	Notes             sql.NullString
	Status            string
	LateMinutes       int
	EarlyLeaveMinutes int
	WorkMinutes       sql.NullInt64
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// filled by joined reads
	Username     string
	FullName     string
	ProjectCode  string
	ProjectName  string
	LocationName sql.NullString
}

func (r *Record) Open() bool { return !r.ClockOut.Valid }

// Location is a named geofence of a project.
type Location struct {
	ID           int64
	ProjectID    int64
	Name         string
	Address      sql.NullString
	Latitude     float64
	Longitude    float64
	RadiusMeters int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Settings is the per-project attendance policy.
type Settings struct {
	ProjectID                  int64
	RequireGPS                 bool
	RequirePhotoIn             bool
	RequirePhotoOut            bool
	AllowManualLocation        bool
	MaxDistanceMeters          int
	WorkStart                  string // "HH:MM"
	WorkEnd                    string // "HH:MM"
	LateThresholdMinutes       int
	EarlyLeaveThresholdMinutes int
	UpdatedBy                  sql.NullInt64
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// DefaultSettings is what a project gets on first access.
func DefaultSettings(projectID int64, now time.Time) Settings {
	return Settings{
		ProjectID:                  projectID,
		RequireGPS:                 true,
		RequirePhotoIn:             true,
		RequirePhotoOut:            false,
		AllowManualLocation:        false,
		MaxDistanceMeters:          100,
		WorkStart:                  "08:00",
		WorkEnd:                    "17:00",
		LateThresholdMinutes:       15,
		EarlyLeaveThresholdMinutes: 15,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}

// Leave request statuses and types.
const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)

var leaveTypes = []string{"annual", "sick", "emergency", "unpaid", "other"}

type LeaveRequest struct {
	ID              int64
	UserID          int64
	ProjectID       sql.NullInt64
	Type            string
	StartDate       string
	EndDate         string
	Reason          string
	AttachmentKey   sql.NullString
	AttachmentURL   sql.NullString
	Status          string
	ReviewedBy      sql.NullInt64
	ReviewedAt      sql.NullTime
	RejectionReason sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time

	FullName string
}

type HistoryFilter struct {
	UserID    int64 // 0 = everyone
	ProjectID int64
	From      string
	To        string
	Status    string
	Limit     int
	Offset    int
}

// StatusTotals aggregates records matching a HistoryFilter.
type StatusTotals struct {
	Counts      map[string]int64
	Closed      int64 // records with a clock-out
	WorkMinutes int64
	LateMinutes int64
}

type LeaveFilter struct {
	UserID    int64
	ProjectID int64
	Status    string
	Limit     int
	Offset    int
}
