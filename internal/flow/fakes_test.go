package flow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nekogravitycat/futsal-booking-flow/internal/booking"
	"github.com/nekogravitycat/futsal-booking-flow/internal/pricing"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
	"github.com/nekogravitycat/futsal-booking-flow/internal/venue"
)

// memRepo round-trips drafts through JSON like the real stores do.
type memRepo struct {
	mu     sync.Mutex
	drafts map[Key][]byte
}

func newMemRepo() *memRepo {
	return &memRepo{drafts: make(map[Key][]byte)}
}

func (r *memRepo) Get(_ context.Context, key Key) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.drafts[key]
	if !ok {
		return nil, ErrDraftNotFound
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *memRepo) Save(_ context.Context, d *Draft) error {
	d.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[d.Key()] = raw
	return nil
}

func (r *memRepo) Delete(_ context.Context, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, key)
	return nil
}

func (r *memRepo) has(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.drafts[key]
	return ok
}

type fakeSlots struct {
	mu         sync.Mutex
	list       []slot.Slot
	listErr    error
	statuses   map[int64]slot.Status
	statusErrs map[int64]error
	reserveErr map[int64]error

	listCalls    int
	checked      []int64
	reserved     []int64
	released     []int64
	reserveCalls int
}

func newFakeSlots(list []slot.Slot) *fakeSlots {
	return &fakeSlots{
		list:       list,
		statuses:   make(map[int64]slot.Status),
		statusErrs: make(map[int64]error),
		reserveErr: make(map[int64]error),
	}
}

func (f *fakeSlots) List(_ context.Context, _ int64, _, _ string) ([]slot.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]slot.Slot, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeSlots) CheckStatus(_ context.Context, id int64) (slot.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, id)
	if err := f.statusErrs[id]; err != nil {
		return "", err
	}
	if st, ok := f.statuses[id]; ok {
		return st, nil
	}
	return slot.StatusPending, nil
}

func (f *fakeSlots) Reserve(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveCalls++
	if err := f.reserveErr[id]; err != nil {
		return err
	}
	f.reserved = append(f.reserved, id)
	return nil
}

func (f *fakeSlots) Release(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	return nil
}

func (f *fakeSlots) setStatus(id int64, st slot.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = st
}

func (f *fakeSlots) checkedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.checked...)
}

func (f *fakeSlots) resetChecks() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = nil
}

type fakeVenues struct {
	futsal *venue.Futsal
	err    error
	calls  int
}

func (f *fakeVenues) Get(_ context.Context, _ int64) (*venue.Futsal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.futsal
	return &out, nil
}

type fakeBookings struct {
	mu        sync.Mutex
	existing  *booking.Booking
	createErr map[int64]error
	updateErr error

	created []booking.CreateRequest
	updated []booking.UpdateRequest
	nextID  int64
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{createErr: make(map[int64]error), nextID: 100}
}

func (f *fakeBookings) Get(_ context.Context, id int64) (*booking.Booking, error) {
	if f.existing == nil || f.existing.ID != id {
		return nil, booking.ErrNotFound
	}
	out := *f.existing
	return &out, nil
}

func (f *fakeBookings) Create(_ context.Context, req booking.CreateRequest) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if err := f.createErr[req.SlotID]; err != nil {
		return nil, err
	}
	f.nextID++
	return &booking.Booking{ID: f.nextID, SlotID: req.SlotID, FutsalID: req.FutsalID, Date: req.Date, Status: booking.StatusPending}, nil
}

func (f *fakeBookings) Update(_ context.Context, id int64, req booking.UpdateRequest) (*booking.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, req)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &booking.Booking{ID: id, SlotID: req.SlotID, Status: booking.StatusPending, UpdateCount: 1}, nil
}

type fakePrices struct {
	quote *pricing.Quote
	err   error
	calls int
}

func (f *fakePrices) Quote(_ context.Context, _ int64, _, _ string) (*pricing.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.quote == nil {
		return &pricing.Quote{Price: 1000, BasePrice: 1000}, nil
	}
	out := *f.quote
	return &out, nil
}

// recordingReleaser captures releases synchronously.
type recordingReleaser struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingReleaser) Release(_ context.Context, ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func (r *recordingReleaser) released() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids...)
}

func (r *recordingReleaser) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = nil
}
