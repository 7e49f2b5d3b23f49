package projects

import (
	"database/sql"
	"time"
)

const (
	StatusPlanning  = "planning"
	StatusActive    = "active"
	StatusOnHold    = "on_hold"
	StatusCompleted = "completed"
)

// Member roles inside a project team.
const (
	MemberProjectManager = "project_manager"
	MemberSiteManager    = "site_manager"
	MemberFinance        = "finance"
	MemberStaff          = "staff"
	MemberWorker         = "worker"
)

// approverRoles receive RAB review notifications.
var approverRoles = []string{MemberProjectManager, MemberSiteManager, MemberFinance}

type Project struct {
	ID        int64
	Code      string
	Name      string
	Client    sql.NullString
	Address   sql.NullString
	Status    string
	StartDate sql.NullTime
	EndDate   sql.NullTime
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	ProjectID int64
	UserID    int64
	Role      string
	Username  string
	FullName  string
	JoinedAt  time.Time
}

type ProjectFilter struct {
	Status       string
	MemberUserID int64 // 0 = all projects
	Limit        int
	Offset       int
}
