package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
)

// Quote is the price the backend will charge for a slot start on a date.
type Quote struct {
	Price     float64 `json:"price"`
	BasePrice float64 `json:"base_price"`
	IsSpecial bool    `json:"is_special"`
	Label     string  `json:"label"`
}

// Changed reports whether the quote differs from the futsal's regular price.
func (q Quote) Changed() bool {
	return q.IsSpecial || (q.BasePrice > 0 && q.Price != q.BasePrice)
}

// Client requests price quotes. Quotes are informational and never gate a booking.
type Client interface {
	Quote(ctx context.Context, futsalID int64, date, startTime string) (*Quote, error)
}

type httpClient struct {
	backend *backend.Client
}

// NewHTTPClient creates a Client backed by the booking REST API.
func NewHTTPClient(b *backend.Client) Client {
	return &httpClient{backend: b}
}

func (c *httpClient) Quote(ctx context.Context, futsalID int64, date, startTime string) (*Quote, error) {
	var q Quote
	path := fmt.Sprintf("/special-prices/price/%d/%s", futsalID, url.PathEscape(date))
	if err := c.backend.Do(ctx, http.MethodGet, path, url.Values{"startTime": {startTime}}, nil, &q); err != nil {
		return nil, fmt.Errorf("quote futsal %d %s %s: %w", futsalID, date, startTime, err)
	}
	return &q, nil
}
