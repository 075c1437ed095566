package venue

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
)

// Client reads futsal records from the backend.
type Client interface {
	Get(ctx context.Context, futsalID int64) (*Futsal, error)
}

type httpClient struct {
	backend *backend.Client
}

// NewHTTPClient creates a Client backed by the booking REST API.
func NewHTTPClient(b *backend.Client) Client {
	return &httpClient{backend: b}
}

func (c *httpClient) Get(ctx context.Context, futsalID int64) (*Futsal, error) {
	var f Futsal
	if err := c.backend.Do(ctx, http.MethodGet, fmt.Sprintf("/futsals/%d", futsalID), nil, nil, &f); err != nil {
		if backend.StatusCodeOf(err) == http.StatusNotFound {
			return nil, ErrNotFound.WithErr(err)
		}
		return nil, ErrUnavailable.WithErr(err)
	}
	return &f, nil
}
