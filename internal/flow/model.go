package flow

import (
	"net/http"
	"slices"
	"time"

	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/apperror"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
)

var (
	ErrDraftNotFound      = apperror.New(http.StatusNotFound, "no booking in progress")
	ErrInvalidFlow        = apperror.New(http.StatusBadRequest, "invalid booking flow")
	ErrInvalidSession     = apperror.New(http.StatusBadRequest, "missing or invalid X-Session-ID header")
	ErrWrongStep          = apperror.New(http.StatusConflict, "this action is not available at the current step")
	ErrNoPreviousStep     = apperror.New(http.StatusConflict, "already at the first step")
	ErrDateRequired       = apperror.New(http.StatusBadRequest, "Please select a date.")
	ErrInvalidDate        = apperror.New(http.StatusBadRequest, "Date must be in YYYY-MM-DD format.")
	ErrDateInPast         = apperror.New(http.StatusBadRequest, "Cannot book a date in the past.")
	ErrShiftRequired      = apperror.New(http.StatusBadRequest, "Please select a shift.")
	ErrShiftNotOffered    = apperror.New(http.StatusBadRequest, "The selected shift is outside the futsal's opening hours.")
	ErrNoSlotsSelected    = apperror.New(http.StatusBadRequest, "Please select at least one slot.")
	ErrSlotNotHeld        = apperror.New(http.StatusBadRequest, "This slot is not part of your booking.")
	ErrInvalidPlayers     = apperror.New(http.StatusBadRequest, "Number of players must be between 1 and 10.")
	ErrTeamNameRequired   = apperror.New(http.StatusBadRequest, "Please enter a team name.")
	ErrInvalidContact     = apperror.New(http.StatusBadRequest, "Please enter a valid phone number for payment.")
	ErrInvalidFutsal      = apperror.New(http.StatusBadRequest, "invalid futsal")
	ErrInvalidBooking     = apperror.New(http.StatusBadRequest, "invalid booking")
	ErrBusy               = apperror.New(http.StatusConflict, "Another action is in progress for this booking. Please wait.")
	ErrCancelNotConfirmed = apperror.New(http.StatusBadRequest, "cancellation must be confirmed")
	ErrInvalidDraft       = apperror.New(http.StatusInternalServerError, "booking progress could not be saved")
)

// Type distinguishes the two flows. It is part of the persistence key.
type Type string

const (
	TypeNew    Type = "new"
	TypeUpdate Type = "update"
)

// ParseType validates a flow type from a path parameter.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeNew, TypeUpdate:
		return t, nil
	default:
		return "", ErrInvalidFlow
	}
}

type Step string

const (
	StepDate          Step = "date"
	StepShift         Step = "shift"
	StepSlotSelection Step = "slot_selection"
	StepPayment       Step = "payment"

	// StepClosed is never persisted. A closed draft is deleted.
	StepClosed Step = "closed"
)

// Key scopes a draft to one user, one browser session and one flow type.
type Key struct {
	UserID    string
	SessionID string
	Flow      Type
}

// Details are the user-entered booking metadata.
type Details struct {
	NumberOfPlayers int    `json:"number_of_players"`
	TeamName        string `json:"team_name"`
	PaymentContact  string `json:"payment_contact"`
}

// Draft is an in-progress booking attempt that has not been submitted yet.
type Draft struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Flow      Type   `json:"flow"`

	FutsalID    int64 `json:"futsal_id"`
	BookingID   int64 `json:"booking_id,omitempty"`
	UpdateCount int   `json:"update_count,omitempty"`
	OpeningHour int   `json:"opening_hour"`
	ClosingHour int   `json:"closing_hour"`

	Step            Step    `json:"step"`
	SelectedDate    string  `json:"selected_date,omitempty"`
	SelectedShift   Shift   `json:"selected_shift,omitempty"`
	OfferedShifts   []Shift `json:"offered_shifts,omitempty"`
	ReservedSlotIDs []int64 `json:"reserved_slot_ids"`
	Details

	Slots       []slot.Slot  `json:"slots,omitempty"`
	Overlay     slot.Overlay `json:"overlay,omitempty"`
	PriceNotice string       `json:"price_notice,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the persistence key of the draft.
func (d *Draft) Key() Key {
	return Key{UserID: d.UserID, SessionID: d.SessionID, Flow: d.Flow}
}

// Holds reports whether the draft currently holds id.
func (d *Draft) Holds(id int64) bool {
	return slices.Contains(d.ReservedSlotIDs, id)
}

// clone returns a deep copy so that transitions never alias the previous state.
func (d Draft) clone() Draft {
	d.OfferedShifts = slices.Clone(d.OfferedShifts)
	d.ReservedSlotIDs = slices.Clone(d.ReservedSlotIDs)
	d.Slots = slices.Clone(d.Slots)
	overlay := make(slot.Overlay, len(d.Overlay))
	for id, st := range d.Overlay {
		overlay[id] = st
	}
	d.Overlay = overlay
	return d
}

// Snapshot is a draft as returned to the caller, with the slot list projected for display.
type Snapshot struct {
	Draft *Draft
	Slots []slot.View
}

// ConflictError is returned when a checkpoint found a held slot that is no longer ours.
// The draft has already been moved back to slot selection when this is returned.
type ConflictError struct {
	Cause    error
	Snapshot *Snapshot
}

func (e *ConflictError) Error() string {
	return e.Cause.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Cause
}
