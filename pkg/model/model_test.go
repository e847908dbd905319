package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAppointmentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		want bool
	}{
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusScheduled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRole_Valid(t *testing.T) {
	for _, role := range []Role{RoleBuyer, RoleSeller} {
		if !role.Valid() {
			t.Errorf("%q should be valid", role)
		}
	}
	for _, role := range []Role{"", "admin", "Seller"} {
		if role.Valid() {
			t.Errorf("%q should be invalid", role)
		}
	}
}

func TestAppointmentView_JSONShowsUnsetExternalFieldsAsNull(t *testing.T) {
	appt := &Appointment{
		ID:        "65f000000000000000000001",
		BuyerID:   "b1",
		SellerID:  "s1",
		Title:     "Intro call",
		StartTime: time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC),
		Status:    StatusScheduled,
	}
	view := AppointmentView{
		Appointment: appt,
		Buyer:       Party{ID: "b1", Name: "Bea", Email: "bea@example.com"},
		Seller:      Party{ID: "s1", Name: "Sam", Email: "sam@example.com"},
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)

	for _, want := range []string{
		`"meetingLink":null`,
		`"externalEventId":null`,
		`"status":"scheduled"`,
		`"buyer":{"id":"b1","name":"Bea","email":"bea@example.com"}`,
		`"startTime":"2030-01-07T09:00:00Z"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
}

func TestUser_CredentialsNeverSerialized(t *testing.T) {
	expiry := time.Now()
	u := User{ID: "u1", Email: "sam@example.com", AccessToken: "ya29.secret", RefreshToken: "1//refresh", TokenExpiry: &expiry}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret") || strings.Contains(string(data), "refresh") {
		t.Errorf("credentials leaked: %s", data)
	}
}
