package attendance

import (
	"context"
	"database/sql"
)

// GetSettings returns the project's settings, creating the defaults on first access.
func (s *Service) GetSettings(ctx context.Context, projectID int64) (*SettingsResponse, error) {
	st, err := s.settings(ctx, projectID)
	if err != nil {
		return nil, err
	}
	resp := toSettingsResponse(st)
	return &resp, nil
}

// UpdateSettings applies the non-nil fields of req.
func (s *Service) UpdateSettings(ctx context.Context, actor Actor, projectID int64, req SettingsRequest) (*SettingsResponse, error) {
	st, err := s.settings(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if req.RequireGPS != nil {
		st.RequireGPS = *req.RequireGPS
	}
	if req.RequirePhotoIn != nil {
		st.RequirePhotoIn = *req.RequirePhotoIn
	}
	if req.RequirePhotoOut != nil {
		st.RequirePhotoOut = *req.RequirePhotoOut
	}
	if req.AllowManualLocation != nil {
		st.AllowManualLocation = *req.AllowManualLocation
	}
	if req.MaxDistanceMeters != nil {
		st.MaxDistanceMeters = *req.MaxDistanceMeters
	}
	if req.WorkStart != nil {
		st.WorkStart = *req.WorkStart
	}
	if req.WorkEnd != nil {
		st.WorkEnd = *req.WorkEnd
	}
	if req.LateThresholdMinutes != nil {
		st.LateThresholdMinutes = *req.LateThresholdMinutes
	}
	if req.EarlyLeaveThresholdMinutes != nil {
		st.EarlyLeaveThresholdMinutes = *req.EarlyLeaveThresholdMinutes
	}

	start, err := parseHHMM(st.WorkStart)
	if err != nil {
		return nil, ErrInvalid("work_start must be HH:MM")
	}
	end, err := parseHHMM(st.WorkEnd)
	if err != nil {
		return nil, ErrInvalid("work_end must be HH:MM")
	}
	if end <= start {
		return nil, ErrInvalid("work_end must be after work_start")
	}

	st.UpdatedBy = sql.NullInt64{Int64: actor.UserID, Valid: true}
	st.UpdatedAt = s.clock.Now()
	if err := s.store.SaveSettings(ctx, st); err != nil {
		return nil, err
	}
	resp := toSettingsResponse(st)
	return &resp, nil
}

// ListSettings returns every project that has settings.
func (s *Service) ListSettings(ctx context.Context) ([]SettingsResponse, error) {
	list, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SettingsResponse, 0, len(list))
	for i := range list {
		out = append(out, toSettingsResponse(&list[i]))
	}
	return out, nil
}

func (s *Service) settings(ctx context.Context, projectID int64) (*Settings, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	st, err := s.store.GetSettings(ctx, projectID)
	if err != nil || st != nil {
		return st, err
	}

	def := DefaultSettings(projectID, s.clock.Now())
	if err := s.store.CreateSettings(ctx, &def); err != nil {
		return nil, err
	}
	st, err = s.store.GetSettings(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &def, nil
	}
	return st, nil
}

func (s *Service) requireProject(ctx context.Context, projectID int64) error {
	if projectID <= 0 {
		return ErrInvalid("invalid project id")
	}
	ok, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound("project not found")
	}
	return nil
}

func toSettingsResponse(st *Settings) SettingsResponse {
	return SettingsResponse{
		ProjectID:                  st.ProjectID,
		RequireGPS:                 st.RequireGPS,
		RequirePhotoIn:             st.RequirePhotoIn,
		RequirePhotoOut:            st.RequirePhotoOut,
		AllowManualLocation:        st.AllowManualLocation,
		MaxDistanceMeters:          st.MaxDistanceMeters,
		WorkStart:                  st.WorkStart,
		WorkEnd:                    st.WorkEnd,
		LateThresholdMinutes:       st.LateThresholdMinutes,
		EarlyLeaveThresholdMinutes: st.EarlyLeaveThresholdMinutes,
		UpdatedAt:                  st.UpdatedAt,
	}
}
