package attendance

import (
	"context"
	"strings"
)

func (s *Service) ListLocations(ctx context.Context, projectID int64) ([]LocationResponse, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	locs, err := s.store.ListLocations(ctx, projectID, false)
	if err != nil {
		return nil, err
	}
	out := make([]LocationResponse, 0, len(locs))
	for i := range locs {
		out = append(out, toLocationResponse(&locs[i]))
	}
	return out, nil
}

func (s *Service) CreateLocation(ctx context.Context, projectID int64, req LocationRequest) (*LocationResponse, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	if !ValidCoordinates(req.Latitude, req.Longitude) {
		return nil, ErrInvalid("invalid coordinates")
	}
	now := s.clock.Now()
	l := &Location{
		ProjectID:    projectID,
		Name:         strings.TrimSpace(req.Name),
		Address:      nullString(req.Address),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
		IsActive:     req.IsActive == nil || *req.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if l.Name == "" {
		return nil, ErrInvalid("name is required")
	}
	if err := s.store.InsertLocation(ctx, l); err != nil {
		return nil, err
	}
	resp := toLocationResponse(l)
	return &resp, nil
}

func (s *Service) UpdateLocation(ctx context.Context, projectID, locationID int64, req LocationRequest) (*LocationResponse, error) {
	l, err := s.projectLocation(ctx, projectID, locationID)
	if err != nil {
		return nil, err
	}
	if !ValidCoordinates(req.Latitude, req.Longitude) {
		return nil, ErrInvalid("invalid coordinates")
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		l.Name = name
	}
	l.Address = nullString(req.Address)
	l.Latitude, l.Longitude = req.Latitude, req.Longitude
	l.RadiusMeters = req.RadiusMeters
	if req.IsActive != nil {
		l.IsActive = *req.IsActive
	}
	l.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateLocation(ctx, l); err != nil {
		return nil, err
	}
	resp := toLocationResponse(l)
	return &resp, nil
}

func (s *Service) DeleteLocation(ctx context.Context, projectID, locationID int64) error {
	if _, err := s.projectLocation(ctx, projectID, locationID); err != nil {
		return err
	}
	return s.store.DeleteLocation(ctx, locationID)
}

// projectLocation loads a location and checks that it belongs to projectID.
func (s *Service) projectLocation(ctx context.Context, projectID, locationID int64) (*Location, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	l, err := s.store.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if l.ProjectID != projectID {
		return nil, ErrNotFound("location not found")
	}
	return l, nil
}

func toLocationResponse(l *Location) LocationResponse {
	return LocationResponse{
		ID:           l.ID,
		ProjectID:    l.ProjectID,
		Name:         l.Name,
		Address:      ptrString(l.Address),
		Latitude:     l.Latitude,
		Longitude:    l.Longitude,
		RadiusMeters: l.RadiusMeters,
		IsActive:     l.IsActive,
	}
}
