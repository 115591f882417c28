package team

import (
	"slices"
	"time"

	"github.com/dmitrymomot/taskflow/svc/project"
)

// Tool is a link to an external tool the team uses.
type Tool struct {
	Name string `bson:"name" json:"name"`
	Link string `bson:"link" json:"link"`
}

type Team struct {
	ID        string           `bson:"_id" json:"id"`
	Name      string           `bson:"name" json:"name"`
	Desc      string           `bson:"desc" json:"desc"`
	Img       string           `bson:"img,omitempty" json:"img,omitempty"`
	Tools     []Tool           `bson:"tools" json:"tools"`
	OwnerID   string           `bson:"owner_id" json:"owner_id"`
	Members   []project.Member `bson:"members" json:"members"`
	Projects  []string         `bson:"projects" json:"projects"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time        `bson:"updated_at" json:"updated_at"`
}

func (t *Team) Member(userID string) (project.Member, bool) {
	i := slices.IndexFunc(t.Members, func(m project.Member) bool { return m.UserID == userID })
	if i < 0 {
		return project.Member{}, false
	}
	return t.Members[i], true
}

func (t *Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
