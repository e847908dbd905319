package model

import "time"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// User is a person who signed in with Google. Calendar credentials never leave the service.
type User struct {
	ID                string     `json:"id,omitempty" bson:"_id,omitempty"`
	Email             string     `json:"email" bson:"email"`
	Name              string     `json:"name" bson:"name"`
	Image             string     `json:"image,omitempty" bson:"image,omitempty"`
	GoogleID          string     `json:"-" bson:"google_id"`
	Role              Role       `json:"role" bson:"role"`
	AccessToken       string     `json:"-" bson:"access_token,omitempty"`
	RefreshToken      string     `json:"-" bson:"refresh_token,omitempty"`
	TokenExpiry       *time.Time `json:"-" bson:"token_expiry,omitempty"`
	CalendarConnected bool       `json:"calendarConnected" bson:"calendar_connected"`
	CreatedAt         time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updated_at"`
}

func (u *User) IsSeller() bool {
	return u != nil && u.Role == RoleSeller
}

func (u *User) Party() Party {
	return Party{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

// Party is the public view of a participant embedded in appointment responses.
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// SellerSummary is what buyers see when browsing sellers.
type SellerSummary struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Image             string `json:"image,omitempty"`
	CalendarConnected bool   `json:"calendarConnected"`
}

// CalendarCredential is the OAuth token set lent to the calendar gateway.
type CalendarCredential struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
