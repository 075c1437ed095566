package flow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nekogravitycat/futsal-booking-flow/internal/booking"
)

const (
	msgSubmitFailed  = "Booking failed. The selected slots may have been booked by someone else. Please choose again."
	msgUpdateSuccess = "Booking updated successfully!"
)

// SubmitResult reports one submission attempt. Success is true iff at least one booking went through.
type SubmitResult struct {
	Success   bool               `json:"success"`
	Succeeded []int64            `json:"succeeded_slot_ids"`
	Failed    []int64            `json:"failed_slot_ids"`
	Bookings  []*booking.Booking `json:"bookings"`
	Messages  []string           `json:"messages"`
	Snapshot  *Snapshot          `json:"-"`
}

// submitter issues the backend booking calls for a draft that passed its submission checkpoint.
type submitter struct {
	bookings    booking.Client
	log         *zap.Logger
	concurrency int
}

// submit never retries. Each slot of a new-booking draft becomes an independent create call.
func (s *submitter) submit(ctx context.Context, d *Draft, slotIDs []int64) *SubmitResult {
	if d.Flow == TypeUpdate {
		return s.submitUpdate(ctx, d, slotIDs)
	}
	return s.submitNew(ctx, d, slotIDs)
}

func (s *submitter) submitNew(ctx context.Context, d *Draft, slotIDs []int64) *SubmitResult {
	created := make([]*booking.Booking, len(slotIDs))
	res := &SubmitResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range slotIDs {
		g.Go(func() error {
			b, err := s.bookings.Create(gctx, booking.CreateRequest{
				SlotID:          id,
				FutsalID:        d.FutsalID,
				Date:            d.SelectedDate,
				NumberOfPlayers: d.NumberOfPlayers,
				TeamName:        d.TeamName,
				PaymentContact:  d.PaymentContact,
			})
			if err != nil {
				s.log.Warn("booking create failed", zap.Int64("slot_id", id), zap.Error(err))
				return nil
			}
			created[i] = b
			return nil
		})
	}
	// A failed create must not cancel its siblings, so the goroutines never return an error
	_ = g.Wait()

	for i, id := range slotIDs {
		if created[i] != nil {
			res.Succeeded = append(res.Succeeded, id)
			res.Bookings = append(res.Bookings, created[i])
		} else {
			res.Failed = append(res.Failed, id)
		}
	}
	res.Success = len(res.Succeeded) > 0
	res.Messages = submitMessages(len(res.Succeeded), len(res.Failed))
	return res
}

func (s *submitter) submitUpdate(ctx context.Context, d *Draft, slotIDs []int64) *SubmitResult {
	res := &SubmitResult{}
	if len(slotIDs) == 0 {
		res.Messages = []string{msgSubmitFailed}
		return res
	}

	id := slotIDs[0]
	b, err := s.bookings.Update(ctx, d.BookingID, booking.UpdateRequest{
		SlotID:          id,
		NumberOfPlayers: d.NumberOfPlayers,
		TeamName:        d.TeamName,
	})
	if err != nil {
		s.log.Warn("booking update failed", zap.Int64("booking_id", d.BookingID), zap.Int64("slot_id", id), zap.Error(err))
		res.Failed = slotIDs
		res.Messages = []string{msgSubmitFailed}
		return res
	}

	res.Success = true
	res.Succeeded = []int64{id}
	res.Bookings = []*booking.Booking{b}
	res.Messages = []string{msgUpdateSuccess}
	return res
}

// submitMessages builds the count-aware messages shown after a submission.
func submitMessages(succeeded, failed int) []string {
	if succeeded == 0 {
		return []string{msgSubmitFailed}
	}
	msgs := []string{fmt.Sprintf("Payment successful for %d %s!", succeeded, plural(succeeded, "slot"))}
	if failed > 0 {
		msgs = append(msgs, fmt.Sprintf("%d %s failed.", failed, plural(failed, "booking")))
	}
	return msgs
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
