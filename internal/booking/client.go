package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
)

// Client creates and updates bookings on the backend.
type Client interface {
	Get(ctx context.Context, id int64) (*Booking, error)
	Create(ctx context.Context, req CreateRequest) (*Booking, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*Booking, error)
}

type httpClient struct {
	backend *backend.Client
}

// NewHTTPClient creates a Client backed by the booking REST API.
func NewHTTPClient(b *backend.Client) Client {
	return &httpClient{backend: b}
}

func (c *httpClient) Get(ctx context.Context, id int64) (*Booking, error) {
	var b Booking
	if err := c.backend.Do(ctx, http.MethodGet, fmt.Sprintf("/bookings/user/%d", id), nil, nil, &b); err != nil {
		return nil, mapError(err)
	}
	return &b, nil
}

func (c *httpClient) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	var b Booking
	if err := c.backend.Do(ctx, http.MethodPost, "/bookings", nil, req, &b); err != nil {
		return nil, mapError(err)
	}
	return &b, nil
}

func (c *httpClient) Update(ctx context.Context, id int64, req UpdateRequest) (*Booking, error) {
	var b Booking
	if err := c.backend.Do(ctx, http.MethodPut, fmt.Sprintf("/bookings/user/%d", id), nil, req, &b); err != nil {
		return nil, mapError(err)
	}
	return &b, nil
}

func mapError(err error) error {
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		return ErrUnavailable.WithErr(err)
	}
	switch {
	case statusErr.Code == http.StatusNotFound:
		return ErrNotFound.WithErr(err)
	case statusErr.Code >= http.StatusInternalServerError:
		return ErrUnavailable.WithErr(err)
	default:
		return ErrRejected.WithErr(err)
	}
}
