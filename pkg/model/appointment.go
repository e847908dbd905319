package model

import "time"

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// CanTransitionTo enforces forward-only status changes.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return s == StatusScheduled && (next == StatusCancelled || next == StatusCompleted)
}

type Appointment struct {
	ID                   string            `json:"id,omitempty" bson:"_id,omitempty"`
	BuyerID              string            `json:"buyerId" bson:"buyer_id"`
	SellerID             string            `json:"sellerId" bson:"seller_id"`
	Title                string            `json:"title" bson:"title"`
	Description          string            `json:"description,omitempty" bson:"description,omitempty"`
	StartTime            time.Time         `json:"startTime" bson:"start_time"`
	EndTime              time.Time         `json:"endTime" bson:"end_time"`
	Status               AppointmentStatus `json:"status" bson:"status"`
	ExternalEventID      *string           `json:"externalEventId" bson:"external_event_id,omitempty"`
	BuyerExternalEventID *string           `json:"buyerExternalEventId,omitempty" bson:"buyer_external_event_id,omitempty"`
	MeetingLink          *string           `json:"meetingLink" bson:"meeting_link,omitempty"`
	CreatedAt            time.Time         `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time         `json:"updatedAt" bson:"updated_at"`
}

// AppointmentUpdate is a partial update. Nil fields are left untouched.
type AppointmentUpdate struct {
	ExternalEventID      *string
	BuyerExternalEventID *string
	MeetingLink          *string
	Status               *AppointmentStatus
}

func (u AppointmentUpdate) IsEmpty() bool {
	return u.ExternalEventID == nil && u.BuyerExternalEventID == nil && u.MeetingLink == nil && u.Status == nil
}

type AppointmentQuery struct {
	BuyerID  string
	SellerID string
	Status   AppointmentStatus
	// Overlapping, when both are set, keeps appointments intersecting [From, To).
	From *time.Time
	To   *time.Time
}

// AppointmentView is an appointment with both participants populated.
type AppointmentView struct {
	*Appointment
	Buyer  Party `json:"buyer"`
	Seller Party `json:"seller"`
}

type BookingRequest struct {
	SellerID    string    `json:"sellerId" validate:"required"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description,omitempty" validate:"max=2000"`
}

type StatusUpdateRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=cancelled completed"`
}

type RoleUpdateRequest struct {
	Role Role `json:"role"`
}
