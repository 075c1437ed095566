package slot

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/apperror"
)

var (
	ErrNotFound     = apperror.New(http.StatusNotFound, "Slot not found. Please refresh the slot list.")
	ErrSlotPending  = apperror.New(http.StatusConflict, "This slot is currently being booked by someone else. Please choose another slot.")
	ErrSlotBooked   = apperror.New(http.StatusConflict, "Slot already booked. Please choose another slot.")
	ErrSlotDisabled = apperror.New(http.StatusConflict, "This slot is not available for booking. Please choose another slot.")
	ErrSlotExpired  = apperror.New(http.StatusConflict, "This slot has already started. Please choose another slot.")
	ErrUnavailable  = apperror.New(http.StatusBadGateway, "Could not reach the booking service. Please try again.")
)

// Status is the backend-authoritative state of a slot, plus the client-only StatusExpired.
type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusBooked    Status = "booked"
	StatusDisabled  Status = "disabled"

	// StatusExpired is never sent by the backend. It marks an available slot whose start has passed.
	StatusExpired Status = "expired"
)

// ParseStatus accepts only the statuses the backend can report.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusAvailable, StatusPending, StatusBooked, StatusDisabled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown slot status %q", s)
	}
}

// Controllable reports whether a hold by this session may still be in force.
func (s Status) Controllable() bool {
	return s == StatusAvailable || s == StatusPending
}

// Err maps a non-available status to the user-facing conflict it represents.
func (s Status) Err() error {
	switch s {
	case StatusPending:
		return ErrSlotPending
	case StatusBooked:
		return ErrSlotBooked
	case StatusDisabled:
		return ErrSlotDisabled
	case StatusExpired:
		return ErrSlotExpired
	default:
		return nil
	}
}

// Slot is a bookable time window of one futsal on one date.
type Slot struct {
	ID        int64  `json:"id"`
	FutsalID  int64  `json:"futsal_id"`
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM
	Status    Status `json:"status"`

	// HeldBySession is set by the backend when the caller already holds this slot.
	HeldBySession bool `json:"held_by_session,omitempty"`
}

// StartsAt returns the slot start in loc.
func (s Slot) StartsAt(loc *time.Location) (time.Time, error) {
	start := s.StartTime
	if len(start) > len("15:04") {
		start = start[:len("15:04")]
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s.Date+" "+start, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot start %q %q: %w", s.Date, s.StartTime, err)
	}
	return t, nil
}

// View is a slot as shown to the user.
type View struct {
	Slot
	DisplayStatus Status `json:"display_status"`
	Selectable    bool   `json:"selectable"`
	HeldByMe      bool   `json:"held_by_me"`
}
