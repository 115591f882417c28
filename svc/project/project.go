package project

import (
	"slices"
	"time"
)

// Statuses accepted for projects and tasks.
var (
	Statuses     = []string{"working", "in_progress", "completed"}
	TaskStatuses = []string{"todo", "in_progress", "done"}
)

// Member grants a user access to a project or team. Access names an rbac
// role, Role is a free form title shown to other members.
type Member struct {
	UserID string `bson:"user_id" json:"user_id"`
	Role   string `bson:"role" json:"role"`
	Access string `bson:"access" json:"access"`
}

type Project struct {
	ID        string    `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Desc      string    `bson:"desc" json:"desc"`
	Img       string    `bson:"img,omitempty" json:"img,omitempty"`
	Tags      []string  `bson:"tags" json:"tags"`
	Status    string    `bson:"status" json:"status"`
	OwnerID   string    `bson:"owner_id" json:"owner_id"`
	TeamID    string    `bson:"team_id,omitempty" json:"team_id,omitempty"`
	Members   []Member  `bson:"members" json:"members"`
	Works     []string  `bson:"works" json:"works"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Member returns the membership of userID.
func (p *Project) Member(userID string) (Member, bool) {
	i := slices.IndexFunc(p.Members, func(m Member) bool { return m.UserID == userID })
	if i < 0 {
		return Member{}, false
	}
	return p.Members[i], true
}

// MemberIDs lists the user ids of all members.
func (p *Project) MemberIDs() []string {
	ids := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

type Task struct {
	ID        string    `bson:"id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Desc      string    `bson:"desc" json:"desc"`
	Status    string    `bson:"status" json:"status"`
	Members   []string  `bson:"members" json:"members"`
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
}

type Work struct {
	ID        string    `bson:"_id" json:"id"`
	ProjectID string    `bson:"project_id" json:"project_id"`
	Title     string    `bson:"title" json:"title"`
	Desc      string    `bson:"desc" json:"desc"`
	Tags      []string  `bson:"tags" json:"tags"`
	CreatedBy string    `bson:"created_by" json:"created_by"`
	Tasks     []Task    `bson:"tasks" json:"tasks"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// AssignedTask is a task with the work and project it belongs to.
type AssignedTask struct {
	Task
	WorkID    string `json:"work_id"`
	WorkTitle string `json:"work_title"`
	ProjectID string `json:"project_id"`
}
