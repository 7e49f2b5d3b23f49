package projects

import "time"

type CreateProjectRequest struct {
	Code      string  `json:"code" binding:"required,max=50"`
	Name      string  `json:"name" binding:"required,max=200"`
	Client    *string `json:"client" binding:"omitempty,max=200"`
	Address   *string `json:"address"`
	Status    string  `json:"status" binding:"omitempty,oneof=planning active on_hold completed"`
	StartDate *string `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

type AddMemberRequest struct {
	UserID int64  `json:"user_id" binding:"required,gt=0"`
	Role   string `json:"role" binding:"required,oneof=project_manager site_manager finance staff worker"`
}

type ProjectResponse struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Client    *string    `json:"client,omitempty"`
	Address   *string    `json:"address,omitempty"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedBy int64      `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

type MemberResponse struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type ListResponse struct {
	Items []ProjectResponse `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

func toResponse(p *Project) ProjectResponse {
	r := ProjectResponse{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Status:    p.Status,
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
	}
	if p.Client.Valid {
		r.Client = &p.Client.String
	}
	if p.Address.Valid {
		r.Address = &p.Address.String
	}
	if p.StartDate.Valid {
		r.StartDate = &p.StartDate.Time
	}
	if p.EndDate.Valid {
		r.EndDate = &p.EndDate.Time
	}
	return r
}
