package user

import "time"

// NotificationType distinguishes actionable invitations from plain messages.
type NotificationType string

const (
	NotificationInvite NotificationType = "invite"
	NotificationInfo   NotificationType = "info"
)

// Notification is embedded in the user document.
type Notification struct {
	ID        string           `bson:"id" json:"id"`
	Type      NotificationType `bson:"type" json:"type"`
	Message   string           `bson:"message" json:"message"`
	Link      string           `bson:"link,omitempty" json:"link,omitempty"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
}

// User is an account. PasswordHash is empty for federated-only accounts.
type User struct {
	ID            string         `bson:"_id" json:"id"`
	Name          string         `bson:"name" json:"name"`
	Email         string         `bson:"email" json:"email"`
	PasswordHash  string         `bson:"password_hash,omitempty" json:"-"`
	GoogleSignIn  bool           `bson:"google_sign_in" json:"google_sign_in"`
	Img           string         `bson:"img,omitempty" json:"img,omitempty"`
	Projects      []string       `bson:"projects" json:"projects"`
	Teams         []string       `bson:"teams" json:"teams"`
	Notifications []Notification `bson:"notifications" json:"notifications,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

// HasPassword reports whether password sign in is possible.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// Profile is the public subset of a user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Img   string `json:"img,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Img: u.Img}
}
