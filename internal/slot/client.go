package slot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/singleflight"

	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
)

// Client talks to the backend slot service.
type Client interface {
	// List fetches the authoritative slot list of a futsal for one date and shift.
	List(ctx context.Context, futsalID int64, date, shift string) ([]Slot, error)
	// CheckStatus is a point-in-time status read.
	CheckStatus(ctx context.Context, id int64) (Status, error)
	// Reserve places a session-scoped pending hold. Any conflict is returned as ErrSlotPending,
	// ErrSlotBooked or ErrSlotDisabled.
	Reserve(ctx context.Context, id int64) error
	// Release drops the caller's hold. Callers treat it as best-effort.
	Release(ctx context.Context, id int64) error
}

type httpClient struct {
	backend *backend.Client
	lists   singleflight.Group
}

// NewHTTPClient creates a Client backed by the booking REST API.
func NewHTTPClient(b *backend.Client) Client {
	return &httpClient{backend: b}
}

func (c *httpClient) List(ctx context.Context, futsalID int64, date, shift string) ([]Slot, error) {
	path := fmt.Sprintf("/time-slots/futsal/%d/date/%s/shift/%s", futsalID, url.PathEscape(date), url.PathEscape(shift))

	// Identical fetches from the same caller share one round-trip
	key := backend.TokenFrom(ctx) + " " + path
	v, err, _ := c.lists.Do(key, func() (any, error) {
		var slots []Slot
		if err := c.backend.Do(ctx, http.MethodGet, path, nil, nil, &slots); err != nil {
			return nil, err
		}
		return slots, nil
	})
	if err != nil {
		return nil, ErrUnavailable.WithErr(err)
	}

	shared := v.([]Slot)
	slots := make([]Slot, len(shared))
	copy(slots, shared)
	return slots, nil
}

func (c *httpClient) CheckStatus(ctx context.Context, id int64) (Status, error) {
	var resp struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/time-slots/%d/status", id)
	if err := c.backend.Do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		if backend.StatusCodeOf(err) == http.StatusNotFound {
			return "", ErrNotFound.WithErr(err)
		}
		return "", ErrUnavailable.WithErr(err)
	}

	st, err := ParseStatus(resp.Status)
	if err != nil {
		return "", ErrUnavailable.WithErr(err)
	}
	return st, nil
}

func (c *httpClient) Reserve(ctx context.Context, id int64) error {
	var resp struct {
		OK      *bool  `json:"ok"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	path := fmt.Sprintf("/time-slots/%d/reserve", id)
	err := c.backend.Do(ctx, http.MethodPost, path, nil, nil, &resp)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			if statusErr.Code == http.StatusNotFound {
				return ErrNotFound.WithErr(err)
			}
			if conflict := conflictFor(statusErr.Status); conflict != nil {
				return conflict
			}
			if statusErr.Code == http.StatusConflict {
				return ErrSlotPending.WithErr(err)
			}
		}
		return ErrUnavailable.WithErr(err)
	}

	// Some deployments answer 200 with {ok:false,status:...} instead of a 409
	if resp.OK != nil && !*resp.OK {
		if conflict := conflictFor(resp.Status); conflict != nil {
			return conflict
		}
		return ErrSlotPending.WithErr(fmt.Errorf("reserve rejected: %s", resp.Message))
	}
	return nil
}

func (c *httpClient) Release(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/time-slots/%d/release", id)
	if err := c.backend.Do(ctx, http.MethodPost, path, nil, nil, nil); err != nil {
		return fmt.Errorf("release slot %d: %w", id, err)
	}
	return nil
}

func conflictFor(status string) error {
	st, err := ParseStatus(status)
	if err != nil {
		return nil
	}
	return st.Err()
}
