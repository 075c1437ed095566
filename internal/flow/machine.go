package flow

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
)

const (
	MinPlayers = 1
	MaxPlayers = 10
)

type ActionKind int

const (
	// ActSelectDate moves Date -> Shift.
	ActSelectDate ActionKind = iota + 1
	// ActSelectShift moves Shift -> SlotSelection with a freshly fetched slot list.
	ActSelectShift
	// ActRefresh replaces the cached slot list with an authoritative fetch.
	ActRefresh
	// ActHold records a successful reserve.
	ActHold
	// ActUnhold drops a hold the user deselected.
	ActUnhold
	// ActSetDetails records players, team and payment contact.
	ActSetDetails
	// ActEnterPayment moves SlotSelection -> Payment once the checkpoint passed.
	ActEnterPayment
	// ActBack is any backward transition.
	ActBack
	// ActConflict forces the draft back to SlotSelection after a failed checkpoint or submission.
	ActConflict
	// ActSubmitted closes the draft after at least one booking succeeded.
	ActSubmitted
	// ActClose closes the draft on cancel.
	ActClose
	// ActObserve records a slot status learned outside an authoritative fetch, such as a rejected reserve.
	ActObserve
)

// Action is an input to Reduce. Only the fields relevant to Kind are read.
type Action struct {
	Kind    ActionKind
	Date    string
	Shift   Shift
	Slots   []slot.Slot
	SlotID  int64
	Status  slot.Status
	Details Details

	// Keep lists held slots that were booked and must not be released (ActSubmitted).
	Keep []int64
	// Release lists held slots to release on ActConflict. Others are dropped without a release call.
	Release []int64
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Reduce applies a to d and returns the next draft plus the slots whose holds must be released.
// It performs no I/O. Every transition that drops a hold reports it exactly once.
func Reduce(d Draft, a Action) (Draft, []int64, error) {
	next := d.clone()
	if next.Overlay == nil {
		next.Overlay = slot.Overlay{}
	}

	switch a.Kind {
	case ActSelectDate:
		if next.Step != StepDate {
			return d, nil, ErrWrongStep
		}
		if err := ValidateDate(a.Date); err != nil {
			return d, nil, err
		}
		next.SelectedDate = a.Date
		next.SelectedShift = ""
		next.OfferedShifts = OfferedShifts(next.OpeningHour, next.ClosingHour)
		next.Step = StepShift
		return next, nil, nil

	case ActSelectShift:
		if next.Step != StepShift {
			return d, nil, ErrWrongStep
		}
		if err := next.checkShift(a.Shift); err != nil {
			return d, nil, err
		}
		next.SelectedShift = a.Shift
		next.Slots = slices.Clone(a.Slots)
		next.Overlay = slot.Overlay{}
		next.ReservedSlotIDs = heldBySession(a.Slots, next.Flow)
		next.Step = StepSlotSelection
		return next, nil, nil

	case ActRefresh:
		if next.Step != StepSlotSelection && next.Step != StepPayment {
			return d, nil, ErrWrongStep
		}
		next.Slots = slices.Clone(a.Slots)
		next.Overlay = slot.Overlay{}
		return next, nil, nil

	case ActHold:
		if next.Step != StepSlotSelection {
			return d, nil, ErrWrongStep
		}
		if next.Holds(a.SlotID) {
			return next, nil, nil
		}
		var released []int64
		if next.Flow == TypeUpdate {
			// An update moves the booking to exactly one slot
			released = next.ReservedSlotIDs
			for _, id := range released {
				next.Overlay.Set(id, slot.StatusAvailable)
			}
			next.ReservedSlotIDs = nil
		}
		next.ReservedSlotIDs = append(next.ReservedSlotIDs, a.SlotID)
		next.Overlay.Set(a.SlotID, slot.StatusPending)
		return next, released, nil

	case ActUnhold:
		if next.Step != StepSlotSelection {
			return d, nil, ErrWrongStep
		}
		if !next.Holds(a.SlotID) {
			return d, nil, ErrSlotNotHeld
		}
		next.ReservedSlotIDs = slices.DeleteFunc(next.ReservedSlotIDs, func(id int64) bool { return id == a.SlotID })
		next.Overlay.Set(a.SlotID, slot.StatusAvailable)
		return next, []int64{a.SlotID}, nil

	case ActSetDetails:
		if next.Step != StepSlotSelection && next.Step != StepPayment {
			return d, nil, ErrWrongStep
		}
		details, err := normalizeDetails(a.Details, false)
		if err != nil {
			return d, nil, err
		}
		next.Details = details
		return next, nil, nil

	case ActEnterPayment:
		if next.Step != StepSlotSelection {
			return d, nil, ErrWrongStep
		}
		if len(next.ReservedSlotIDs) == 0 {
			return d, nil, ErrNoSlotsSelected
		}
		next.Step = StepPayment
		return next, nil, nil

	case ActBack:
		next, released, err := back(next)
		if err != nil {
			return d, nil, err
		}
		return next, released, nil

	case ActConflict:
		if next.Step != StepSlotSelection && next.Step != StepPayment {
			return d, nil, ErrWrongStep
		}
		released := intersect(a.Release, next.ReservedSlotIDs)
		next.ReservedSlotIDs = nil
		next.PriceNotice = ""
		next.Overlay = slot.Overlay{}
		if a.Slots != nil {
			next.Slots = slices.Clone(a.Slots)
		}
		next.Step = StepSlotSelection
		return next, released, nil

	case ActSubmitted:
		if next.Step != StepPayment {
			return d, nil, ErrWrongStep
		}
		released := slices.DeleteFunc(slices.Clone(next.ReservedSlotIDs), func(id int64) bool {
			return slices.Contains(a.Keep, id)
		})
		return closed(next), released, nil

	case ActClose:
		released := next.ReservedSlotIDs
		return closed(next), released, nil

	case ActObserve:
		if next.Step != StepSlotSelection && next.Step != StepPayment {
			return d, nil, ErrWrongStep
		}
		if next.Holds(a.SlotID) {
			// Our own hold is only dropped through a checkpoint
			return d, nil, nil
		}
		next.Overlay.Set(a.SlotID, a.Status)
		return next, nil, nil

	default:
		return d, nil, ErrWrongStep
	}
}

func back(next Draft) (Draft, []int64, error) {
	switch next.Step {
	case StepShift, StepSlotSelection, StepPayment:
	default:
		return next, nil, ErrNoPreviousStep
	}

	released := next.ReservedSlotIDs
	for _, id := range released {
		next.Overlay.Set(id, slot.StatusAvailable)
	}
	next.ReservedSlotIDs = nil

	switch next.Step {
	case StepShift:
		next.SelectedShift = ""
		next.OfferedShifts = nil
		next.Step = StepDate
	case StepSlotSelection:
		next.Slots = nil
		next.Overlay = slot.Overlay{}
		next.Step = StepShift
	case StepPayment:
		next.PriceNotice = ""
		next.Step = StepSlotSelection
	}
	return next, released, nil
}

func closed(next Draft) Draft {
	next.ReservedSlotIDs = nil
	next.Overlay = slot.Overlay{}
	next.Step = StepClosed
	return next
}

func (d *Draft) checkShift(s Shift) error {
	if s == "" {
		return ErrShiftRequired
	}
	if !slices.Contains(d.OfferedShifts, s) {
		return ErrShiftNotOffered
	}
	return nil
}

// ValidateDate checks the ISO calendar date format.
func ValidateDate(date string) error {
	if strings.TrimSpace(date) == "" {
		return ErrDateRequired
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// ValidateDetails checks the details required at submission, including the payment contact.
func ValidateDetails(d Details) error {
	_, err := normalizeDetails(d, true)
	return err
}

func normalizeDetails(d Details, requireContact bool) (Details, error) {
	if d.NumberOfPlayers < MinPlayers || d.NumberOfPlayers > MaxPlayers {
		return d, ErrInvalidPlayers
	}
	d.TeamName = strings.TrimSpace(d.TeamName)
	if d.TeamName == "" {
		return d, ErrTeamNameRequired
	}
	d.PaymentContact = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(d.PaymentContact))
	if d.PaymentContact == "" {
		if requireContact {
			return d, ErrInvalidContact
		}
		return d, nil
	}
	if !phonePattern.MatchString(d.PaymentContact) {
		return d, ErrInvalidContact
	}
	return d, nil
}

func heldBySession(slots []slot.Slot, flow Type) []int64 {
	var held []int64
	for _, s := range slots {
		if s.HeldBySession {
			held = append(held, s.ID)
			if flow == TypeUpdate {
				break
			}
		}
	}
	return held
}

func intersect(ids, within []int64) []int64 {
	var out []int64
	for _, id := range ids {
		if slices.Contains(within, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
