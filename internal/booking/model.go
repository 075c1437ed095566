package booking

import (
	"net/http"

	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/apperror"
)

// MaxUpdates is the number of times a booking may be moved to another slot.
const MaxUpdates = 2

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, "booking not found")
	ErrUpdateLimitReached = apperror.New(http.StatusUnprocessableEntity, "This booking has already been updated twice and cannot be changed again.")
	ErrNotUpdatable       = apperror.New(http.StatusUnprocessableEntity, "Only upcoming bookings can be updated.")
	ErrRejected           = apperror.New(http.StatusConflict, "The booking could not be completed. The slot may have been taken by someone else.")
	ErrUnavailable        = apperror.New(http.StatusBadGateway, "Could not reach the booking service. Please try again.")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Booking is the backend booking record, one per confirmed slot.
type Booking struct {
	ID              int64  `json:"id"`
	SlotID          int64  `json:"slot_id"`
	FutsalID        int64  `json:"futsal_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          Status `json:"status"`
	NumberOfPlayers int    `json:"number_of_players"`
	TeamName        string `json:"team_name"`
	UpdateCount     int    `json:"update_count"`
}

// CheckUpdatable returns why the booking cannot be moved, or nil.
func (b *Booking) CheckUpdatable() error {
	if b.Status == StatusCancelled || b.Status == StatusCompleted {
		return ErrNotUpdatable
	}
	if b.UpdateCount >= MaxUpdates {
		return ErrUpdateLimitReached
	}
	return nil
}

type CreateRequest struct {
	SlotID          int64  `json:"slot_id"`
	FutsalID        int64  `json:"futsal_id"`
	Date            string `json:"date"`
	NumberOfPlayers int    `json:"number_of_players"`
	TeamName        string `json:"team_name"`
	PaymentContact  string `json:"payment_contact"`
}

type UpdateRequest struct {
	SlotID          int64  `json:"slot_id"`
	NumberOfPlayers int    `json:"number_of_players"`
	TeamName        string `json:"team_name"`
}
