package model

import "time"

// AvailabilityRule is a seller's bookable window for one day of the week.
// StartTime and EndTime are clock strings (HH:MM) on the UTC day.
type AvailabilityRule struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	SellerID  string    `json:"sellerId" bson:"seller_id"`
	DayOfWeek int       `json:"dayOfWeek" bson:"day_of_week" validate:"min=0,max=6"`
	StartTime string    `json:"startTime" bson:"start_time" validate:"required,clock"`
	EndTime   string    `json:"endTime" bson:"end_time" validate:"required,clock"`
	IsActive  bool      `json:"isActive" bson:"is_active"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type AvailabilityRuleInput struct {
	DayOfWeek int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock"`
	IsActive  bool   `json:"isActive"`
}

type AvailabilityReplaceRequest struct {
	Availability []AvailabilityRuleInput `json:"availability"`
}
