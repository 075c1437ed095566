package flow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/futsal-booking-flow/internal/booking"
	"github.com/nekogravitycat/futsal-booking-flow/internal/pricing"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
	"github.com/nekogravitycat/futsal-booking-flow/internal/venue"
)

// Service drives a draft through the booking steps. Every mutating call is
// serialized per draft key and persists the resulting draft before returning.
type Service interface {
	// OpenNew starts a new-booking draft for a futsal, or resumes the one already open for it.
	OpenNew(ctx context.Context, key Key, futsalID int64) (*Snapshot, error)
	// OpenUpdate starts a draft that moves an existing booking to another slot.
	OpenUpdate(ctx context.Context, key Key, bookingID int64) (*Snapshot, error)
	// Resume returns the persisted draft as-is. Holds are re-checked at the next checkpoint.
	Resume(ctx context.Context, key Key) (*Snapshot, error)
	SelectDate(ctx context.Context, key Key, date string) (*Snapshot, error)
	SelectShift(ctx context.Context, key Key, shift string) (*Snapshot, error)
	// Slots replaces the cached slot list with an authoritative fetch.
	Slots(ctx context.Context, key Key) (*Snapshot, error)
	Reserve(ctx context.Context, key Key, slotID int64) (*Snapshot, error)
	Release(ctx context.Context, key Key, slotID int64) (*Snapshot, error)
	SetDetails(ctx context.Context, key Key, details Details) (*Snapshot, error)
	// EnterPayment re-checks every hold before moving to payment.
	EnterPayment(ctx context.Context, key Key) (*Snapshot, error)
	Back(ctx context.Context, key Key) (*Snapshot, error)
	// Submit re-checks every hold and then books them. A failed checkpoint returns *ConflictError.
	Submit(ctx context.Context, key Key) (*SubmitResult, error)
	// Cancel releases every hold and discards the draft.
	Cancel(ctx context.Context, key Key, confirmed bool) error
}

// Config tunes a Service. Zero values select defaults.
type Config struct {
	// Concurrency bounds parallel status reads and booking calls per request.
	Concurrency int
	// Location is the venue time zone used for past-date and started-slot checks.
	Location *time.Location
	// Now overrides the clock in tests.
	Now func() time.Time
	// Locker serializes transitions per draft. Defaults to an in-process lock,
	// which only holds for a single instance.
	Locker Locker
}

type service struct {
	repo      Repository
	slots     slot.Client
	venues    venue.Client
	bookings  booking.Client
	prices    pricing.Client
	releaser  Releaser
	detector  *ConflictDetector
	submitter *submitter
	locks     Locker
	log       *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewService(
	repo Repository,
	slots slot.Client,
	venues venue.Client,
	bookings booking.Client,
	prices pricing.Client,
	releaser Releaser,
	log *zap.Logger,
	cfg Config,
) Service {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Locker == nil {
		cfg.Locker = newGuard()
	}
	return &service{
		repo:      repo,
		slots:     slots,
		venues:    venues,
		bookings:  bookings,
		prices:    prices,
		releaser:  releaser,
		detector:  NewConflictDetector(slots, cfg.Concurrency),
		submitter: &submitter{bookings: bookings, log: log, concurrency: cfg.Concurrency},
		locks:     cfg.Locker,
		log:       log,
		loc:       cfg.Location,
		now:       cfg.Now,
	}
}

func (s *service) OpenNew(ctx context.Context, key Key, futsalID int64) (*Snapshot, error) {
	if futsalID <= 0 {
		return nil, ErrInvalidFutsal
	}
	key.Flow = TypeNew

	unlock, err := s.locks.TryLock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.loadOptional(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.FutsalID == futsalID {
			return s.snapshot(existing), nil
		}
		// Opening another futsal abandons the old draft and its holds
		if _, err := s.apply(ctx, existing, Action{Kind: ActClose}); err != nil {
			return nil, err
		}
	}

	opening, closing, err := s.venueHours(ctx, futsalID)
	if err != nil {
		return nil, err
	}

	d := &Draft{
		UserID:      key.UserID,
		SessionID:   key.SessionID,
		Flow:        TypeNew,
		FutsalID:    futsalID,
		OpeningHour: opening,
		ClosingHour: closing,
		Step:        StepDate,
		Overlay:     slot.Overlay{},
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	return s.snapshot(d), nil
}

func (s *service) OpenUpdate(ctx context.Context, key Key, bookingID int64) (*Snapshot, error) {
	if bookingID <= 0 {
		return nil, ErrInvalidBooking
	}
	key.Flow = TypeUpdate

	unlock, err := s.locks.TryLock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.loadOptional(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.BookingID == bookingID {
			return s.snapshot(existing), nil
		}
		if _, err := s.apply(ctx, existing, Action{Kind: ActClose}); err != nil {
			return nil, err
		}
	}

	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	// The update limit is enforced here, before any slot is touched
	if err := b.CheckUpdatable(); err != nil {
		return nil, err
	}

	opening, closing, err := s.venueHours(ctx, b.FutsalID)
	if err != nil {
		return nil, err
	}

	d := &Draft{
		UserID:      key.UserID,
		SessionID:   key.SessionID,
		Flow:        TypeUpdate,
		FutsalID:    b.FutsalID,
		BookingID:   b.ID,
		UpdateCount: b.UpdateCount,
		OpeningHour: opening,
		ClosingHour: closing,
		Step:        StepDate,
		Details: Details{
			NumberOfPlayers: b.NumberOfPlayers,
			TeamName:        b.TeamName,
		},
		Overlay: slot.Overlay{},
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	return s.snapshot(d), nil
}

func (s *service) Resume(ctx context.Context, key Key) (*Snapshot, error) {
	d, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.snapshot(d), nil
}

func (s *service) SelectDate(ctx context.Context, key Key, date string) (*Snapshot, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if date < s.today() {
		return nil, ErrDateInPast
	}

	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		return s.apply(ctx, d, Action{Kind: ActSelectDate, Date: date})
	})
}

func (s *service) SelectShift(ctx context.Context, key Key, name string) (*Snapshot, error) {
	if name == "" {
		return nil, ErrShiftRequired
	}
	shift, ok := ParseShift(name)
	if !ok {
		return nil, ErrShiftNotOffered
	}

	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		if d.Step != StepShift {
			return nil, ErrWrongStep
		}
		if err := d.checkShift(shift); err != nil {
			return nil, err
		}

		slots, err := s.slots.List(ctx, d.FutsalID, d.SelectedDate, string(shift))
		if err != nil {
			return nil, err
		}
		return s.apply(ctx, d, Action{Kind: ActSelectShift, Shift: shift, Slots: slots})
	})
}

func (s *service) Slots(ctx context.Context, key Key) (*Snapshot, error) {
	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		if d.Step != StepSlotSelection && d.Step != StepPayment {
			return nil, ErrWrongStep
		}

		slots, err := s.slots.List(ctx, d.FutsalID, d.SelectedDate, string(d.SelectedShift))
		if err != nil {
			return nil, err
		}
		return s.apply(ctx, d, Action{Kind: ActRefresh, Slots: slots})
	})
}

func (s *service) Reserve(ctx context.Context, key Key, slotID int64) (*Snapshot, error) {
	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		if d.Step != StepSlotSelection {
			return nil, ErrWrongStep
		}
		if d.Holds(slotID) {
			return d, nil
		}

		view, ok := slot.Find(s.views(d), slotID)
		if !ok {
			return nil, slot.ErrNotFound
		}
		if !view.Selectable {
			return nil, view.DisplayStatus.Err()
		}

		if err := s.slots.Reserve(ctx, slotID); err != nil {
			if st, ok := conflictStatus(err); ok {
				if _, saveErr := s.apply(ctx, d, Action{Kind: ActObserve, SlotID: slotID, Status: st}); saveErr != nil {
					s.log.Warn("failed to record rejected reserve", zap.Int64("slot_id", slotID), zap.Error(saveErr))
				}
			}
			return nil, err
		}

		next, err := s.apply(ctx, d, Action{Kind: ActHold, SlotID: slotID})
		if err != nil {
			// The hold was taken but could not be recorded, so nothing would ever release it
			s.releaser.Release(ctx, slotID)
			return nil, err
		}
		return next, nil
	})
}

func (s *service) Release(ctx context.Context, key Key, slotID int64) (*Snapshot, error) {
	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		return s.apply(ctx, d, Action{Kind: ActUnhold, SlotID: slotID})
	})
}

func (s *service) SetDetails(ctx context.Context, key Key, details Details) (*Snapshot, error) {
	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		return s.apply(ctx, d, Action{Kind: ActSetDetails, Details: details})
	})
}

func (s *service) EnterPayment(ctx context.Context, key Key) (*Snapshot, error) {
	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		next, _, err := Reduce(*d, Action{Kind: ActEnterPayment})
		if err != nil {
			return nil, err
		}

		report := s.detector.Check(ctx, d.ReservedSlotIDs)
		if !report.OK() {
			return nil, s.conflict(ctx, d, report)
		}

		next.PriceNotice = s.priceNotice(ctx, &next)
		if err := s.repo.Save(ctx, &next); err != nil {
			return nil, err
		}
		return &next, nil
	})
}

func (s *service) Back(ctx context.Context, key Key) (*Snapshot, error) {
	return s.transition(ctx, key, func(d *Draft) (*Draft, error) {
		return s.apply(ctx, d, Action{Kind: ActBack})
	})
}

func (s *service) Submit(ctx context.Context, key Key) (*SubmitResult, error) {
	unlock, err := s.locks.TryLock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if d.Step != StepPayment {
		return nil, ErrWrongStep
	}
	if len(d.ReservedSlotIDs) == 0 {
		return nil, ErrNoSlotsSelected
	}
	if err := ValidateDetails(d.Details); err != nil {
		return nil, err
	}

	report := s.detector.Check(ctx, d.ReservedSlotIDs)
	if !report.OK() {
		return nil, s.conflict(ctx, d, report)
	}

	// Only slots confirmed by this checkpoint are ever submitted
	res := s.submitter.submit(ctx, d, report.Passed())

	// A failed create is treated like a failed checkpoint: the backend may have handed
	// the slot to someone else, so it is dropped from the draft but never released.
	var next *Draft
	if res.Success {
		next, err = s.apply(ctx, d, Action{Kind: ActSubmitted, Keep: slices.Concat(res.Succeeded, res.Failed)})
	} else {
		next, err = s.apply(ctx, d, Action{
			Kind:  ActConflict,
			Slots: s.refetch(ctx, d, nil),
			Release: slices.DeleteFunc(slices.Clone(d.ReservedSlotIDs), func(id int64) bool {
				return slices.Contains(res.Failed, id)
			}),
		})
	}
	if err != nil {
		// The bookings already exist, so the outcome is reported even if the draft could not be updated
		s.log.Error("failed to persist draft after submission", zap.String("session_id", key.SessionID), zap.Error(err))
		res.Snapshot = s.snapshot(d)
		return res, nil
	}

	s.log.Info("booking submitted",
		zap.String("user_id", key.UserID),
		zap.String("flow", string(key.Flow)),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)),
	)
	res.Snapshot = s.snapshot(next)
	return res, nil
}

func (s *service) Cancel(ctx context.Context, key Key, confirmed bool) error {
	if !confirmed {
		return ErrCancelNotConfirmed
	}

	unlock, err := s.locks.TryLock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	d, err := s.loadOptional(ctx, key)
	if err != nil || d == nil {
		return err
	}
	_, err = s.apply(ctx, d, Action{Kind: ActClose})
	return err
}

// transition runs fn on the persisted draft while holding the key.
func (s *service) transition(ctx context.Context, key Key, fn func(d *Draft) (*Draft, error)) (*Snapshot, error) {
	unlock, err := s.locks.TryLock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	next, err := fn(d)
	if err != nil {
		return nil, err
	}
	return s.snapshot(next), nil
}

// apply reduces, persists, then schedules the releases the transition owes.
// A closed draft is deleted instead of saved.
func (s *service) apply(ctx context.Context, d *Draft, a Action) (*Draft, error) {
	next, released, err := Reduce(*d, a)
	if err != nil {
		return nil, err
	}

	if next.Step == StepClosed {
		err = s.repo.Delete(ctx, d.Key())
	} else {
		err = s.repo.Save(ctx, &next)
	}
	if err != nil {
		return nil, err
	}

	if len(released) > 0 {
		s.releaser.Release(ctx, released...)
	}
	return &next, nil
}

// conflict moves d back to slot selection after a failed checkpoint and returns the error to surface.
func (s *service) conflict(ctx context.Context, d *Draft, report Report) error {
	cause := report.Cause()
	s.log.Info("checkpoint failed",
		zap.String("session_id", d.SessionID),
		zap.Int64s("held", d.ReservedSlotIDs),
		zap.Error(cause),
	)

	next, err := s.apply(ctx, d, Action{
		Kind:    ActConflict,
		Slots:   s.refetch(ctx, d, &report),
		Release: report.Passed(),
	})
	if err != nil {
		return err
	}
	return &ConflictError{Cause: cause, Snapshot: s.snapshot(next)}
}

// refetch loads the current slot list. When the backend cannot be reached it falls
// back to the cached list patched with any statuses the report observed.
func (s *service) refetch(ctx context.Context, d *Draft, report *Report) []slot.Slot {
	slots, err := s.slots.List(ctx, d.FutsalID, d.SelectedDate, string(d.SelectedShift))
	if err == nil {
		return slots
	}
	s.log.Warn("slot list refresh failed", zap.Int64("futsal_id", d.FutsalID), zap.Error(err))

	patched := make([]slot.Slot, len(d.Slots))
	copy(patched, d.Slots)
	if report == nil {
		return patched
	}
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		for i := range patched {
			if patched[i].ID == res.SlotID {
				patched[i].Status = res.Status
			}
		}
	}
	return patched
}

// priceNotice asks for a quote per held slot. Quotes are informational, so failures only get logged.
func (s *service) priceNotice(ctx context.Context, d *Draft) string {
	var notices []string
	for _, id := range d.ReservedSlotIDs {
		start := ""
		for _, sl := range d.Slots {
			if sl.ID == id {
				start = sl.StartTime
				break
			}
		}
		if start == "" {
			continue
		}
		if len(start) > len("15:04") {
			start = start[:len("15:04")]
		}

		q, err := s.prices.Quote(ctx, d.FutsalID, d.SelectedDate, start)
		if err != nil {
			s.log.Warn("price quote failed", zap.Int64("futsal_id", d.FutsalID), zap.String("start", start), zap.Error(err))
			continue
		}
		if !q.Changed() {
			continue
		}

		label := "Special price"
		if q.Label != "" {
			label = q.Label
		}
		notices = append(notices, fmt.Sprintf("%s for %s at %s: %.2f (regular %.2f).", label, d.SelectedDate, start, q.Price, q.BasePrice))
	}
	return strings.Join(notices, " ")
}

func (s *service) venueHours(ctx context.Context, futsalID int64) (int, int, error) {
	f, err := s.venues.Get(ctx, futsalID)
	if err != nil {
		return 0, 0, err
	}
	return f.Hours()
}

func (s *service) loadOptional(ctx context.Context, key Key) (*Draft, error) {
	d, err := s.repo.Get(ctx, key)
	if errors.Is(err, ErrDraftNotFound) {
		return nil, nil
	}
	return d, err
}

func (s *service) snapshot(d *Draft) *Snapshot {
	return &Snapshot{Draft: d, Slots: s.views(d)}
}

func (s *service) views(d *Draft) []slot.View {
	return d.Overlay.Views(d.Slots, d.ReservedSlotIDs, s.now().In(s.loc))
}

func (s *service) today() string {
	return s.now().In(s.loc).Format(time.DateOnly)
}

// conflictStatus returns the slot status a rejected reserve revealed.
func conflictStatus(err error) (slot.Status, bool) {
	switch {
	case errors.Is(err, slot.ErrSlotPending):
		return slot.StatusPending, true
	case errors.Is(err, slot.ErrSlotBooked):
		return slot.StatusBooked, true
	case errors.Is(err, slot.ErrSlotDisabled):
		return slot.StatusDisabled, true
	default:
		return "", false
	}
}
