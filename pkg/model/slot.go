package model

import "time"

// Slot is a bookable window. Computed on demand, never stored.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BusyInterval is a range during which a calendar owner is unavailable.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type SlotsResponse struct {
	Slots []Slot `json:"slots"`
}
