package venue

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/apperror"
)

var (
	ErrNotFound     = apperror.New(http.StatusNotFound, "futsal not found")
	ErrInvalidHours = apperror.New(http.StatusBadGateway, "futsal opening hours are not configured correctly")
	ErrUnavailable  = apperror.New(http.StatusBadGateway, "Could not load futsal details. Please try again.")
)

// Futsal is the part of a venue record the booking flow needs.
type Futsal struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	OpeningHours string `json:"opening_hours"` // HH:MM or HH:MM:SS
	ClosingHours string `json:"closing_hours"` // HH:MM or HH:MM:SS
}

// Hours returns opening and closing as whole hours.
// A closing time of midnight is reported as 24. Any other closing at or before
// opening (an overnight venue) is returned unchanged; which shifts that leaves is
// decided by the caller.
func (f Futsal) Hours() (opening, closing int, err error) {
	opening, err = parseHour(f.OpeningHours)
	if err != nil {
		return 0, 0, ErrInvalidHours.WithErr(err)
	}
	closing, err = parseHour(f.ClosingHours)
	if err != nil {
		return 0, 0, ErrInvalidHours.WithErr(err)
	}
	if closing == 0 {
		closing = 24
	}
	return opening, closing, nil
}

func parseHour(s string) (int, error) {
	h, _, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	return hour, nil
}
