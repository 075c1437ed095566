package http

import (
	"strings"
	"time"

	"github.com/nekogravitycat/futsal-booking-flow/internal/booking"
	"github.com/nekogravitycat/futsal-booking-flow/internal/flow"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
)

type OpenNewRequest struct {
	FutsalID int64 `json:"futsal_id" binding:"required,gt=0"`
}

type OpenUpdateRequest struct {
	BookingID int64 `json:"booking_id" binding:"required,gt=0"`
}

type SelectDateRequest struct {
	Date string `json:"date"`
}

// Validate checks the date format before the draft is touched.
func (r *SelectDateRequest) Validate() error {
	r.Date = strings.TrimSpace(r.Date)
	return flow.ValidateDate(r.Date)
}

type SelectShiftRequest struct {
	Shift string `json:"shift"`
}

func (r *SelectShiftRequest) Validate() error {
	r.Shift = strings.TrimSpace(r.Shift)
	if r.Shift == "" {
		return flow.ErrShiftRequired
	}
	if _, ok := flow.ParseShift(r.Shift); !ok {
		return flow.ErrShiftNotOffered
	}
	return nil
}

type DetailsRequest struct {
	NumberOfPlayers int    `json:"number_of_players"`
	TeamName        string `json:"team_name"`
	PaymentContact  string `json:"payment_contact"`
}

// Validate performs the range checks that do not need the draft.
func (r *DetailsRequest) Validate() error {
	if r.NumberOfPlayers < flow.MinPlayers || r.NumberOfPlayers > flow.MaxPlayers {
		return flow.ErrInvalidPlayers
	}
	if strings.TrimSpace(r.TeamName) == "" {
		return flow.ErrTeamNameRequired
	}
	return nil
}

func (r *DetailsRequest) Details() flow.Details {
	return flow.Details{
		NumberOfPlayers: r.NumberOfPlayers,
		TeamName:        r.TeamName,
		PaymentContact:  r.PaymentContact,
	}
}

type CancelRequest struct {
	Confirm bool `form:"confirm"`
}

type SlotResponse struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	Selectable bool   `json:"selectable"`
	HeldByMe   bool   `json:"held_by_me"`
}

func NewSlotResponse(v slot.View) SlotResponse {
	return SlotResponse{
		ID:         v.ID,
		Date:       v.Date,
		StartTime:  v.StartTime,
		EndTime:    v.EndTime,
		Status:     string(v.DisplayStatus),
		Selectable: v.Selectable,
		HeldByMe:   v.HeldByMe,
	}
}

type DraftResponse struct {
	Flow            string         `json:"flow"`
	FutsalID        int64          `json:"futsal_id"`
	BookingID       int64          `json:"booking_id,omitempty"`
	UpdatesLeft     *int           `json:"updates_left,omitempty"`
	OpeningHour     int            `json:"opening_hour"`
	ClosingHour     int            `json:"closing_hour"`
	Step            string         `json:"step"`
	SelectedDate    string         `json:"selected_date,omitempty"`
	SelectedShift   string         `json:"selected_shift,omitempty"`
	OfferedShifts   []string       `json:"offered_shifts"`
	ReservedSlotIDs []int64        `json:"reserved_slot_ids"`
	NumberOfPlayers int            `json:"number_of_players,omitempty"`
	TeamName        string         `json:"team_name,omitempty"`
	PaymentContact  string         `json:"payment_contact,omitempty"`
	PriceNotice     string         `json:"price_notice,omitempty"`
	Slots           []SlotResponse `json:"slots"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func NewDraftResponse(s *flow.Snapshot) DraftResponse {
	d := s.Draft

	offered := make([]string, len(d.OfferedShifts))
	for i, sh := range d.OfferedShifts {
		offered[i] = string(sh)
	}
	reserved := d.ReservedSlotIDs
	if reserved == nil {
		reserved = []int64{}
	}
	slots := make([]SlotResponse, len(s.Slots))
	for i, v := range s.Slots {
		slots[i] = NewSlotResponse(v)
	}

	resp := DraftResponse{
		Flow:            string(d.Flow),
		FutsalID:        d.FutsalID,
		BookingID:       d.BookingID,
		OpeningHour:     d.OpeningHour,
		ClosingHour:     d.ClosingHour,
		Step:            string(d.Step),
		SelectedDate:    d.SelectedDate,
		SelectedShift:   string(d.SelectedShift),
		OfferedShifts:   offered,
		ReservedSlotIDs: reserved,
		NumberOfPlayers: d.NumberOfPlayers,
		TeamName:        d.TeamName,
		PaymentContact:  d.PaymentContact,
		PriceNotice:     d.PriceNotice,
		Slots:           slots,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.Flow == flow.TypeUpdate {
		left := max(booking.MaxUpdates-d.UpdateCount, 0)
		resp.UpdatesLeft = &left
	}
	return resp
}

// ConflictResponse is returned with 409 when a checkpoint sent the draft back to slot selection.
type ConflictResponse struct {
	Error string        `json:"error"`
	Draft DraftResponse `json:"draft"`
}

type BookingTag struct {
	ID        int64  `json:"id"`
	SlotID    int64  `json:"slot_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

type SubmitResponse struct {
	Success          bool           `json:"success"`
	Messages         []string       `json:"messages"`
	SucceededSlotIDs []int64        `json:"succeeded_slot_ids"`
	FailedSlotIDs    []int64        `json:"failed_slot_ids"`
	Bookings         []BookingTag   `json:"bookings"`
	Draft            *DraftResponse `json:"draft,omitempty"`
}

func NewSubmitResponse(r *flow.SubmitResult) SubmitResponse {
	resp := SubmitResponse{
		Success:          r.Success,
		Messages:         r.Messages,
		SucceededSlotIDs: nonNil(r.Succeeded),
		FailedSlotIDs:    nonNil(r.Failed),
		Bookings:         make([]BookingTag, 0, len(r.Bookings)),
	}
	for _, b := range r.Bookings {
		resp.Bookings = append(resp.Bookings, BookingTag{
			ID:        b.ID,
			SlotID:    b.SlotID,
			Date:      b.Date,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Status:    string(b.Status),
		})
	}
	// A closed draft no longer exists
	if r.Snapshot != nil && r.Snapshot.Draft.Step != flow.StepClosed {
		draft := NewDraftResponse(r.Snapshot)
		resp.Draft = &draft
	}
	return resp
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
