package attendance

import (
	"mime/multipart"
	"time"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ClockRequest is the multipart form of clock-in and clock-out.
type ClockRequest struct {
	ProjectID  int64                 `form:"projectId" binding:"required,gt=0"`
	Latitude   *float64              `form:"latitude" binding:"omitempty,latitude"`
	Longitude  *float64              `form:"longitude" binding:"omitempty,longitude"`
	Address    string                `form:"address" binding:"max=500"`
	DeviceInfo string                `form:"deviceInfo" binding:"max=255"`
	Notes      string                `form:"notes" binding:"max=1000"`
	Photo      *multipart.FileHeader `form:"photo"`
}

// ClockInput is what the service needs once the photo has been stored.
type ClockInput struct {
	UserID     int64
	ProjectID  int64
	Latitude   *float64
	Longitude  *float64
	Address    string
	DeviceInfo string
	Notes      string
	PhotoURL   string
}

func (r ClockRequest) toInput(userID int64, photoURL string) ClockInput {
	return ClockInput{
		UserID:     userID,
		ProjectID:  r.ProjectID,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Address:    r.Address,
		DeviceInfo: r.DeviceInfo,
		Notes:      r.Notes,
		PhotoURL:   photoURL,
	}
}

// ClockResult carries the record plus human-readable messages for the client.
type ClockResult struct {
	Record  RecordResponse `json:"record"`
	Message string         `json:"message"`
	Warning string         `json:"warning,omitempty"`
}

type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type ProjectSummary struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type RecordResponse struct {
	ID                int64          `json:"id"`
	AttendanceDate    string         `json:"attendance_date"`
	User              UserSummary    `json:"user"`
	Project           ProjectSummary `json:"project"`
	LocationID        *int64         `json:"location_id,omitempty"`
	LocationName      *string        `json:"location_name,omitempty"`
	ClockIn           time.Time      `json:"clock_in"`
	ClockInLatitude   *float64       `json:"clock_in_latitude,omitempty"`
	ClockInLongitude  *float64       `json:"clock_in_longitude,omitempty"`
	ClockInAddress    *string        `json:"clock_in_address,omitempty"`
	ClockInPhoto      *string        `json:"clock_in_photo,omitempty"`
	ClockInDistance   *float64       `json:"clock_in_distance,omitempty"`
	ClockOut          *time.Time     `json:"clock_out,omitempty"`
	ClockOutLatitude  *float64       `json:"clock_out_latitude,omitempty"`
	ClockOutLongitude *float64       `json:"clock_out_longitude,omitempty"`
	ClockOutAddress   *string        `json:"clock_out_address,omitempty"`
	ClockOutPhoto     *string        `json:"clock_out_photo,omitempty"`
	ClockOutDistance  *float64       `json:"clock_out_distance,omitempty"`
	IsValidLocation   bool           `json:"is_valid_location"`
	Status            string         `json:"status"`
	LateMinutes       int            `json:"late_minutes"`
	EarlyLeaveMinutes int            `json:"early_leave_minutes"`
	WorkMinutes       *int64         `json:"work_minutes,omitempty"`
	Notes             *string        `json:"notes,omitempty"`
}

type HistoryResponse struct {
	Items      []RecordResponse `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}

type StatsResponse struct {
	From              string           `json:"from"`
	To                string           `json:"to"`
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	TotalWorkMinutes  int64            `json:"total_work_minutes"`
	TotalLateMinutes  int64            `json:"total_late_minutes"`
	AverageWorkMinute float64          `json:"average_work_minutes"`
}

// ===== settings =====

type SettingsRequest struct {
	RequireGPS                 *bool   `json:"require_gps"`
	RequirePhotoIn             *bool   `json:"require_photo_in"`
	RequirePhotoOut            *bool   `json:"require_photo_out"`
	AllowManualLocation        *bool   `json:"allow_manual_location"`
	MaxDistanceMeters          *int    `json:"max_distance_meters" binding:"omitempty,gte=0,lte=100000"`
	WorkStart                  *string `json:"work_start" binding:"omitempty,hhmm"`
	WorkEnd                    *string `json:"work_end" binding:"omitempty,hhmm"`
	LateThresholdMinutes       *int    `json:"late_threshold_minutes" binding:"omitempty,gte=0,lte=600"`
	EarlyLeaveThresholdMinutes *int    `json:"early_leave_threshold_minutes" binding:"omitempty,gte=0,lte=600"`
}

type SettingsResponse struct {
	ProjectID                  int64     `json:"project_id"`
	RequireGPS                 bool      `json:"require_gps"`
	RequirePhotoIn             bool      `json:"require_photo_in"`
	RequirePhotoOut            bool      `json:"require_photo_out"`
	AllowManualLocation        bool      `json:"allow_manual_location"`
	MaxDistanceMeters          int       `json:"max_distance_meters"`
	WorkStart                  string    `json:"work_start"`
	WorkEnd                    string    `json:"work_end"`
	LateThresholdMinutes       int       `json:"late_threshold_minutes"`
	EarlyLeaveThresholdMinutes int       `json:"early_leave_threshold_minutes"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// ===== locations =====

type LocationRequest struct {
	Name         string  `json:"name" binding:"required,max=150"`
	Address      string  `json:"address" binding:"max=500"`
	Latitude     float64 `json:"latitude" binding:"latitude"`
	Longitude    float64 `json:"longitude" binding:"longitude"`
	RadiusMeters int     `json:"radius_meters" binding:"required,gt=0,lte=100000"`
	IsActive     *bool   `json:"is_active"`
}

type LocationResponse struct {
	ID           int64   `json:"id"`
	ProjectID    int64   `json:"project_id"`
	Name         string  `json:"name"`
	Address      *string `json:"address,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters int     `json:"radius_meters"`
	IsActive     bool    `json:"is_active"`
}

// ===== leave =====

type LeaveForm struct {
	ProjectID  int64                 `form:"projectId" binding:"omitempty,gt=0"`
	Type       string                `form:"leaveType" binding:"required,leave_type"`
	StartDate  string                `form:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate    string                `form:"endDate" binding:"required,datetime=2006-01-02"`
	Reason     string                `form:"reason" binding:"required,max=1000"`
	Attachment *multipart.FileHeader `form:"attachment"`
}

type LeaveInput struct {
	UserID        int64
	ProjectID     int64
	Type          string
	StartDate     string
	EndDate       string
	Reason        string
	AttachmentKey string
	AttachmentURL string
}

type ReviewLeaveRequest struct {
	Status          string `json:"status" binding:"required,oneof=approved rejected"`
	RejectionReason string `json:"rejection_reason" binding:"max=1000"`
}

type LeaveResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	FullName        string     `json:"full_name,omitempty"`
	ProjectID       *int64     `json:"project_id,omitempty"`
	Type            string     `json:"leave_type"`
	StartDate       string     `json:"start_date"`
	EndDate         string     `json:"end_date"`
	Days            int        `json:"days"`
	Reason          string     `json:"reason"`
	AttachmentURL   *string    `json:"attachment_url,omitempty"`
	Status          string     `json:"status"`
	ReviewedBy      *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type LeaveListResponse struct {
	Items []LeaveResponse `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
