package flow

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/apperror"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
)

var (
	ErrSlotLost    = apperror.New(http.StatusConflict, "One of your selected slots is no longer available. Please choose again.")
	ErrCheckFailed = apperror.New(http.StatusConflict, "We could not confirm your selected slots. Please choose again.")
)

// CheckResult is the outcome of re-reading one held slot.
type CheckResult struct {
	SlotID int64
	Status slot.Status
	Err    error
}

// Passed reports whether the session may still act on the slot.
func (r CheckResult) Passed() bool {
	return r.Err == nil && r.Status.Controllable()
}

// Report aggregates the results of one checkpoint.
type Report struct {
	Results []CheckResult
}

// OK reports whether every held slot passed.
func (r Report) OK() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Passed returns the slot ids that are still controllable by this session.
func (r Report) Passed() []int64 {
	var ids []int64
	for _, res := range r.Results {
		if res.Passed() {
			ids = append(ids, res.SlotID)
		}
	}
	return ids
}

// Cause returns the most specific reason for a failed checkpoint: booked, then disabled, then generic.
func (r Report) Cause() error {
	var booked, disabled, lost, failed bool
	var first error
	for _, res := range r.Results {
		switch {
		case res.Passed():
			continue
		case res.Err != nil:
			failed = true
			if first == nil {
				first = res.Err
			}
		case res.Status == slot.StatusBooked:
			booked = true
		case res.Status == slot.StatusDisabled:
			disabled = true
		default:
			lost = true
		}
	}

	switch {
	case booked:
		return slot.ErrSlotBooked
	case disabled:
		return slot.ErrSlotDisabled
	case errors.Is(first, slot.ErrNotFound):
		return ErrSlotLost.WithErr(first)
	case lost:
		return ErrSlotLost
	case failed:
		return ErrCheckFailed.WithErr(first)
	default:
		return nil
	}
}

// ConflictDetector re-validates held slots against the backend at gating transitions.
type ConflictDetector struct {
	slots       slot.Client
	concurrency int
}

// NewConflictDetector creates a detector issuing at most concurrency status reads at once.
func NewConflictDetector(slots slot.Client, concurrency int) *ConflictDetector {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ConflictDetector{slots: slots, concurrency: concurrency}
}

// Check reads the current status of every id. It never fails as a whole; per-slot
// errors are part of the report and count as failed checks.
func (c *ConflictDetector) Check(ctx context.Context, ids []int64) Report {
	results := make([]CheckResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			st, err := c.slots.CheckStatus(gctx, id)
			results[i] = CheckResult{SlotID: id, Status: st, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Results: results}
}
