package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"SIKON-backend/internal/notify"
	"SIKON-backend/internal/platform/auth"
	"SIKON-backend/internal/platform/i18n"
)

// ===== collaborators =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ProjectDirectory is the part of the projects feature attendance depends on.
type ProjectDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
	CanAccess(ctx context.Context, projectID, userID int64, role string) (bool, error)
	ApproverIDs(ctx context.Context, projectID int64) ([]int64, error)
}

// Notifier queues push notifications; it must not block.
type Notifier interface {
	Enqueue(userIDs []int64, msg notify.Message) bool
}

var (
	errAlreadyClockedIn = ErrConflict("already clocked in today")
	errNoActiveClockIn  = ErrInvalid("no active clock-in for today")
	errNotConfigured    = ErrInvalid("attendance is not configured for this project")
)

// ===== Service =====

type Service struct {
	store    AttendanceStore
	projects ProjectDirectory
	notifier Notifier
	clock    Clock
	loc      *time.Location
}

// NewService builds the attendance service. Calendar days and work hours are evaluated in loc.
func NewService(store AttendanceStore, projects ProjectDirectory, notifier Notifier, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, projects: projects, notifier: notifier, clock: realClock{}, loc: loc}
}

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) isManager() bool { return auth.IsManager(a.Role) }

// ClockIn creates today's record for (user, project).
func (s *Service) ClockIn(ctx context.Context, actor Actor, in ClockInput) (*ClockResult, error) {
	if err := s.checkProjectAccess(ctx, in.ProjectID, actor); err != nil {
		return nil, err
	}
	now := s.clock.Now().In(s.loc)
	today := now.Format(DateLayout)

	existing, err := s.store.FindRecord(ctx, in.UserID, in.ProjectID, today)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errAlreadyClockedIn
	}

	st, err := s.store.GetSettings(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errNotConfigured
	}

	rec := &Record{
		UserID:          in.UserID,
		ProjectID:       in.ProjectID,
		AttendanceDate:  today,
		ClockIn:         now,
		ClockInAddress:  nullString(in.Address),
		ClockInPhoto:    nullString(in.PhotoURL),
		ClockInDevice:   nullString(in.DeviceInfo),
		Notes:           nullString(in.Notes),
		IsValidLocation: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var warnings []string
	if in.Latitude != nil && in.Longitude != nil {
		lat, lon := *in.Latitude, *in.Longitude
		if !ValidCoordinates(lat, lon) {
			return nil, ErrInvalid("invalid coordinates")
		}
		rec.ClockInLat = sql.NullFloat64{Float64: lat, Valid: true}
		rec.ClockInLon = sql.NullFloat64{Float64: lon, Valid: true}

		if st.RequireGPS {
			locs, err := s.store.ListLocations(ctx, in.ProjectID, true)
			if err != nil {
				return nil, err
			}
			loc, geo, ok := Nearest(locs, lat, lon)
			if !ok {
				return nil, ErrInvalid("no active location is registered for this project")
			}
			warn, err := s.checkDistance(ctx, st, loc, geo)
			if err != nil {
				return nil, err
			}
			rec.LocationID = sql.NullInt64{Int64: loc.ID, Valid: true}
			rec.ClockInDistance = sql.NullFloat64{Float64: round2(geo.Distance), Valid: true}
			rec.IsValidLocation = warn == ""
			if warn != "" {
				warnings = append(warnings, warn)
			}
		}
	}

	if st.RequirePhotoIn && in.PhotoURL == "" {
		return nil, ErrInvalid("a clock-in photo is required")
	}

	rec.Status = StatusClockedIn
	start := s.at(now, st.WorkStart)
	msg := i18n.T(ctx, "attendance.on_time")
	if now.After(start.Add(time.Duration(st.LateThresholdMinutes) * time.Minute)) {
		rec.Status = StatusLate
		rec.LateMinutes = int(now.Sub(start).Minutes())
		msg = i18n.T(ctx, "attendance.late", map[string]any{"Minutes": rec.LateMinutes})
	}

	if err := s.store.CreateClockIn(ctx, rec); err != nil {
		return nil, err
	}
	log.Printf("[INFO] clock-in user=%d project=%d status=%s valid_location=%t", rec.UserID, rec.ProjectID, rec.Status, rec.IsValidLocation)

	return &ClockResult{Record: s.reload(ctx, rec), Message: msg, Warning: strings.Join(warnings, "; ")}, nil
}

// ClockOut closes today's open record for (user, project).
func (s *Service) ClockOut(ctx context.Context, actor Actor, in ClockInput) (*ClockResult, error) {
	if in.ProjectID <= 0 {
		return nil, ErrInvalid("projectId is required")
	}
	now := s.clock.Now().In(s.loc)
	today := now.Format(DateLayout)

	rec, err := s.store.FindRecord(ctx, in.UserID, in.ProjectID, today)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Open() {
		return nil, errNoActiveClockIn
	}

	st, err := s.store.GetSettings(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errNotConfigured
	}

	var warnings []string
	if in.Latitude != nil && in.Longitude != nil {
		lat, lon := *in.Latitude, *in.Longitude
		if !ValidCoordinates(lat, lon) {
			return nil, ErrInvalid("invalid coordinates")
		}
		rec.ClockOutLat = sql.NullFloat64{Float64: lat, Valid: true}
		rec.ClockOutLon = sql.NullFloat64{Float64: lon, Valid: true}

		if st.RequireGPS {
			loc, err := s.clockOutLocation(ctx, rec, lat, lon)
			if err != nil {
				return nil, err
			}
			geo := loc.Validate(lat, lon)
			warn, err := s.checkDistance(ctx, st, loc, geo)
			if err != nil {
				return nil, err
			}
			rec.ClockOutDistance = sql.NullFloat64{Float64: round2(geo.Distance), Valid: true}
			if warn != "" {
				rec.IsValidLocation = false
				warnings = append(warnings, warn)
			}
		}
	}

	if st.RequirePhotoOut && in.PhotoURL == "" {
		return nil, ErrInvalid("a clock-out photo is required")
	}

	rec.ClockOut = sql.NullTime{Time: now, Valid: true}
	rec.ClockOutAddress = nullString(in.Address)
	rec.ClockOutPhoto = nullString(in.PhotoURL)
	rec.ClockOutDevice = nullString(in.DeviceInfo)
	rec.Notes = appendNote(rec.Notes, in.Notes)
	rec.UpdatedAt = now

	work := int64(math.Max(0, math.Floor(now.Sub(rec.ClockIn).Minutes())))
	rec.WorkMinutes = sql.NullInt64{Int64: work, Valid: true}

	end := s.at(now, st.WorkEnd)
	early := now.Before(end.Add(-time.Duration(st.EarlyLeaveThresholdMinutes) * time.Minute))
	if now.Before(end) {
		rec.EarlyLeaveMinutes = int(end.Sub(now).Minutes())
	}
	switch {
	case rec.Status == StatusLate:
		// lateness outranks leaving early
	case early:
		rec.Status = StatusEarlyLeave
	default:
		rec.Status = StatusClockedOut
	}
	if early {
		warnings = append(warnings, i18n.T(ctx, "attendance.early_leave", map[string]any{"Minutes": rec.EarlyLeaveMinutes}))
	}

	ok, err := s.store.CompleteClockOut(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoActiveClockIn
	}
	log.Printf("[INFO] clock-out user=%d project=%d status=%s work_minutes=%d", rec.UserID, rec.ProjectID, rec.Status, work)

	msg := i18n.T(ctx, "attendance.clock_out", map[string]any{"Hours": work / 60, "Minutes": work % 60})
	return &ClockResult{Record: s.reload(ctx, rec), Message: msg, Warning: strings.Join(warnings, "; ")}, nil
}

// Today returns the caller's record for the current day.
func (s *Service) Today(ctx context.Context, userID, projectID int64) (*RecordResponse, error) {
	if projectID <= 0 {
		return nil, ErrInvalid("projectId is required")
	}
	rec, err := s.store.FindRecord(ctx, userID, projectID, s.clock.Now().In(s.loc).Format(DateLayout))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound("no attendance record for today")
	}
	resp := toRecordResponse(rec)
	return &resp, nil
}

// HistoryQuery are the raw query parameters of the history, stats and export endpoints.
type HistoryQuery struct {
	UserID    int64
	ProjectID int64
	StartDate string
	EndDate   string
	Status    string
	Page      int
	Limit     int
}

// History lists records. Non-managers only ever see their own.
func (s *Service) History(ctx context.Context, actor Actor, q HistoryQuery) (*HistoryResponse, error) {
	f, err := s.filter(actor, q)
	if err != nil {
		return nil, err
	}
	page, limit := normalizePage(q.Page, q.Limit)
	f.Limit, f.Offset = limit, (page-1)*limit

	recs, total, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &HistoryResponse{
		Items:      make([]RecordResponse, 0, len(recs)),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}
	for i := range recs {
		out.Items = append(out.Items, toRecordResponse(&recs[i]))
	}
	return out, nil
}

// Stats aggregates records over a date range; the range defaults to the current month.
func (s *Service) Stats(ctx context.Context, actor Actor, q HistoryQuery) (*StatsResponse, error) {
	now := s.clock.Now().In(s.loc)
	if q.StartDate == "" {
		q.StartDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc).Format(DateLayout)
	}
	if q.EndDate == "" {
		q.EndDate = now.Format(DateLayout)
	}
	f, err := s.filter(actor, q)
	if err != nil {
		return nil, err
	}

	tot, err := s.store.StatusCounts(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &StatsResponse{From: f.From, To: f.To, ByStatus: map[string]int64{}, TotalWorkMinutes: tot.WorkMinutes, TotalLateMinutes: tot.LateMinutes}
	for _, st := range []string{StatusClockedIn, StatusLate, StatusClockedOut, StatusEarlyLeave, StatusIncomplete} {
		out.ByStatus[st] = tot.Counts[st]
	}
	for _, n := range tot.Counts {
		out.Total += n
	}
	// open records have no work minutes yet
	if tot.Closed > 0 {
		out.AverageWorkMinute = math.Round(float64(tot.WorkMinutes)/float64(tot.Closed)*10) / 10
	}
	return out, nil
}

// CloseIncomplete marks open records of earlier days as incomplete.
func (s *Service) CloseIncomplete(ctx context.Context) (int64, error) {
	today := s.clock.Now().In(s.loc).Format(DateLayout)
	n, err := s.store.CloseIncomplete(ctx, today)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[INFO] attendance: marked %d records before %s as incomplete", n, today)
	}
	return n, nil
}

// ---------- helpers ----------

func (s *Service) checkProjectAccess(ctx context.Context, projectID int64, actor Actor) error {
	if projectID <= 0 {
		return ErrInvalid("projectId is required")
	}
	ok, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound("project not found")
	}
	ok, err = s.projects.CanAccess(ctx, projectID, actor.UserID, actor.Role)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden("you are not assigned to this project")
	}
	return nil
}

// checkDistance returns a warning when the point is outside but manual location is allowed,
// and an error when it is outside and not allowed.
func (s *Service) checkDistance(ctx context.Context, st *Settings, loc Location, geo GeoResult) (string, error) {
	allowed := allowedDistance(loc, st)
	if geo.Distance <= allowed {
		return "", nil
	}
	if !st.AllowManualLocation {
		return "", ErrInvalid(fmt.Sprintf("you are %.0fm from %s; the maximum allowed distance is %.0fm",
			math.Round(geo.Distance), loc.Name, allowed))
	}
	return i18n.T(ctx, "attendance.location_warning", map[string]any{
		"Distance": fmt.Sprintf("%.0f", math.Round(geo.Distance)),
		"Location": loc.Name,
		"Max":      fmt.Sprintf("%.0f", allowed),
	}), nil
}

// allowedDistance is the location radius, tightened by the project's max distance when that is smaller.
func allowedDistance(loc Location, st *Settings) float64 {
	allowed := float64(loc.RadiusMeters)
	if st.MaxDistanceMeters > 0 && float64(st.MaxDistanceMeters) < allowed {
		allowed = float64(st.MaxDistanceMeters)
	}
	return allowed
}

// clockOutLocation is the location chosen at clock-in, or the nearest active one when the
// clock-in carried no coordinates.
func (s *Service) clockOutLocation(ctx context.Context, rec *Record, lat, lon float64) (Location, error) {
	if rec.LocationID.Valid {
		loc, err := s.store.GetLocation(ctx, rec.LocationID.Int64)
		if err != nil {
			return Location{}, err
		}
		return *loc, nil
	}
	locs, err := s.store.ListLocations(ctx, rec.ProjectID, true)
	if err != nil {
		return Location{}, err
	}
	loc, _, ok := Nearest(locs, lat, lon)
	if !ok {
		return Location{}, ErrInvalid("no active location is registered for this project")
	}
	rec.LocationID = sql.NullInt64{Int64: loc.ID, Valid: true}
	return loc, nil
}

// at returns hh:mm on the calendar day of ref, in the service timezone.
func (s *Service) at(ref time.Time, hhmm string) time.Time {
	mins, err := parseHHMM(hhmm)
	if err != nil {
		log.Printf("[WARN] attendance: bad time %q in settings, using midnight", hhmm)
	}
	y, m, d := ref.In(s.loc).Date()
	return time.Date(y, m, d, mins/60, mins%60, 0, 0, s.loc)
}

func (s *Service) reload(ctx context.Context, rec *Record) RecordResponse {
	full, err := s.store.FindRecord(ctx, rec.UserID, rec.ProjectID, rec.AttendanceDate)
	if err != nil || full == nil {
		if err != nil {
			log.Printf("[WARN] attendance: reload record %d: %v", rec.ID, err)
		}
		return toRecordResponse(rec)
	}
	return toRecordResponse(full)
}

func (s *Service) filter(actor Actor, q HistoryQuery) (HistoryFilter, error) {
	f := HistoryFilter{ProjectID: q.ProjectID, Status: q.Status, UserID: actor.UserID}
	if actor.isManager() {
		f.UserID = q.UserID
	}
	if q.Status != "" && !validStatus(q.Status) {
		return f, ErrInvalid("invalid status")
	}
	if q.StartDate != "" {
		if _, err := time.Parse(DateLayout, q.StartDate); err != nil {
			return f, ErrInvalid("startDate must be YYYY-MM-DD")
		}
		f.From = q.StartDate
	}
	if q.EndDate != "" {
		if _, err := time.Parse(DateLayout, q.EndDate); err != nil {
			return f, ErrInvalid("endDate must be YYYY-MM-DD")
		}
		f.To = q.EndDate
	}
	if f.From != "" && f.To != "" && f.To < f.From {
		return f, ErrInvalid("endDate must be >= startDate")
	}
	return f, nil
}

func validStatus(s string) bool {
	switch s {
	case StatusClockedIn, StatusLate, StatusClockedOut, StatusEarlyLeave, StatusIncomplete:
		return true
	}
	return false
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}

func appendNote(existing sql.NullString, note string) sql.NullString {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if !existing.Valid || existing.String == "" {
		return sql.NullString{String: note, Valid: true}
	}
	return sql.NullString{String: existing.String + "\n" + note, Valid: true}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func toRecordResponse(r *Record) RecordResponse {
	out := RecordResponse{
		ID:                r.ID,
		AttendanceDate:    r.AttendanceDate,
		User:              UserSummary{ID: r.UserID, Username: r.Username, FullName: r.FullName},
		Project:           ProjectSummary{ID: r.ProjectID, Code: r.ProjectCode, Name: r.ProjectName},
		ClockIn:           r.ClockIn,
		IsValidLocation:   r.IsValidLocation,
		Status:            r.Status,
		LateMinutes:       r.LateMinutes,
		EarlyLeaveMinutes: r.EarlyLeaveMinutes,
	}
	if r.LocationID.Valid {
		out.LocationID = &r.LocationID.Int64
	}
	if r.LocationName.Valid {
		out.LocationName = &r.LocationName.String
	}
	out.ClockInLatitude = ptrFloat(r.ClockInLat)
	out.ClockInLongitude = ptrFloat(r.ClockInLon)
	out.ClockInAddress = ptrString(r.ClockInAddress)
	out.ClockInPhoto = ptrString(r.ClockInPhoto)
	out.ClockInDistance = ptrFloat(r.ClockInDistance)
	if r.ClockOut.Valid {
		out.ClockOut = &r.ClockOut.Time
	}
	out.ClockOutLatitude = ptrFloat(r.ClockOutLat)
	out.ClockOutLongitude = ptrFloat(r.ClockOutLon)
	out.ClockOutAddress = ptrString(r.ClockOutAddress)
	out.ClockOutPhoto = ptrString(r.ClockOutPhoto)
	out.ClockOutDistance = ptrFloat(r.ClockOutDistance)
	if r.WorkMinutes.Valid {
		out.WorkMinutes = &r.WorkMinutes.Int64
	}
	out.Notes = ptrString(r.Notes)
	return out
}

func ptrFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func ptrString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
