package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/futsal-booking-flow/internal/auth"
	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
	"github.com/nekogravitycat/futsal-booking-flow/internal/booking"
	"github.com/nekogravitycat/futsal-booking-flow/internal/flow"
	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/response"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
)

const (
	testSecret  = "handler-test-secret"
	testSession = "6f1c2a8e-3b4d-4f5a-9c7e-1d2b3c4d5e6f"
)

// stubService returns canned results and records what the handler passed in.
type stubService struct {
	err       error
	submitRes *flow.SubmitResult

	calls     []string
	lastKey   flow.Key
	lastToken string
	lastDate  string
	lastShift string
	lastSlot  int64
	details   flow.Details
	confirmed bool
}

func (s *stubService) record(ctx context.Context, name string, key flow.Key) {
	s.calls = append(s.calls, name)
	s.lastKey = key
	s.lastToken = backend.TokenFrom(ctx)
}

func (s *stubService) snapshot(key flow.Key) (*flow.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &flow.Snapshot{
		Draft: &flow.Draft{UserID: key.UserID, SessionID: key.SessionID, Flow: key.Flow, FutsalID: 1, Step: flow.StepDate},
		Slots: []slot.View{},
	}, nil
}

func (s *stubService) OpenNew(ctx context.Context, key flow.Key, _ int64) (*flow.Snapshot, error) {
	s.record(ctx, "OpenNew", key)
	return s.snapshot(key)
}

func (s *stubService) OpenUpdate(ctx context.Context, key flow.Key, _ int64) (*flow.Snapshot, error) {
	s.record(ctx, "OpenUpdate", key)
	snap, err := s.snapshot(key)
	if err == nil {
		snap.Draft.BookingID = 7
		snap.Draft.UpdateCount = 1
	}
	return snap, err
}

func (s *stubService) Resume(ctx context.Context, key flow.Key) (*flow.Snapshot, error) {
	s.record(ctx, "Resume", key)
	return s.snapshot(key)
}

func (s *stubService) SelectDate(ctx context.Context, key flow.Key, date string) (*flow.Snapshot, error) {
	s.record(ctx, "SelectDate", key)
	s.lastDate = date
	return s.snapshot(key)
}

func (s *stubService) SelectShift(ctx context.Context, key flow.Key, shift string) (*flow.Snapshot, error) {
	s.record(ctx, "SelectShift", key)
	s.lastShift = shift
	return s.snapshot(key)
}

func (s *stubService) Slots(ctx context.Context, key flow.Key) (*flow.Snapshot, error) {
	s.record(ctx, "Slots", key)
	return s.snapshot(key)
}

func (s *stubService) Reserve(ctx context.Context, key flow.Key, slotID int64) (*flow.Snapshot, error) {
	s.record(ctx, "Reserve", key)
	s.lastSlot = slotID
	return s.snapshot(key)
}

func (s *stubService) Release(ctx context.Context, key flow.Key, slotID int64) (*flow.Snapshot, error) {
	s.record(ctx, "Release", key)
	s.lastSlot = slotID
	return s.snapshot(key)
}

func (s *stubService) SetDetails(ctx context.Context, key flow.Key, details flow.Details) (*flow.Snapshot, error) {
	s.record(ctx, "SetDetails", key)
	s.details = details
	return s.snapshot(key)
}

func (s *stubService) EnterPayment(ctx context.Context, key flow.Key) (*flow.Snapshot, error) {
	s.record(ctx, "EnterPayment", key)
	return s.snapshot(key)
}

func (s *stubService) Back(ctx context.Context, key flow.Key) (*flow.Snapshot, error) {
	s.record(ctx, "Back", key)
	return s.snapshot(key)
}

func (s *stubService) Submit(ctx context.Context, key flow.Key) (*flow.SubmitResult, error) {
	s.record(ctx, "Submit", key)
	if s.err != nil {
		return nil, s.err
	}
	return s.submitRes, nil
}

func (s *stubService) Cancel(ctx context.Context, key flow.Key, confirmed bool) error {
	s.record(ctx, "Cancel", key)
	s.confirmed = confirmed
	if !confirmed {
		return flow.ErrCancelNotConfirmed
	}
	return s.err
}

type harness struct {
	router  *gin.Engine
	service *stubService
	token   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtManager := auth.NewJWTManager(testSecret, time.Hour)
	token, err := jwtManager.GenerateAccessToken("42", "player@example.com")
	require.NoError(t, err)

	service := &stubService{}
	router := gin.New()
	passThrough := func(c *gin.Context) { c.Next() }
	RegisterRoutes(router.Group("/v1"), NewHandler(service), auth.AuthRequired(jwtManager), passThrough)

	return &harness{router: router, service: service, token: token}
}

func (h *harness) do(method, path string, body any, session string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req, _ := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestOpenNewKeysDraftByUserAndSession(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/v1/flows/new", OpenNewRequest{FutsalID: 1}, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, flow.Key{UserID: "42", SessionID: testSession, Flow: flow.TypeNew}, h.service.lastKey)
	assert.Equal(t, h.token, h.service.lastToken)

	var resp DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new", resp.Flow)
	assert.Equal(t, "date", resp.Step)
	assert.Nil(t, resp.UpdatesLeft)
	assert.NotNil(t, resp.ReservedSlotIDs)
}

func TestOpenUpdateReportsUpdatesLeft(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/v1/flows/update", OpenUpdateRequest{BookingID: 7}, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.UpdatesLeft)
	assert.Equal(t, booking.MaxUpdates-1, *resp.UpdatesLeft)
	assert.Equal(t, flow.TypeUpdate, h.service.lastKey.Flow)
}

func TestRequestsWithoutUsableSessionAreRejected(t *testing.T) {
	tests := []struct {
		name    string
		session string
	}{
		{"missing", ""},
		{"not a uuid", "tab-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			w := h.do(http.MethodGet, "/v1/flows/new", nil, tt.session)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "missing or invalid X-Session-ID header", decodeError(t, w))
			assert.Empty(t, h.service.calls)
		})
	}
}

func TestUnknownFlowTypeIsRejected(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/v1/flows/rebook", nil, testSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.service.calls)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.token = "not-a-jwt"

	w := h.do(http.MethodGet, "/v1/flows/new", nil, testSession)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, h.service.calls)
}

func TestInputIsValidatedBeforeTheService(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		wantErr string
	}{
		{"empty date", http.MethodPost, "/v1/flows/new/date", SelectDateRequest{Date: ""}, "Please select a date."},
		{"malformed date", http.MethodPost, "/v1/flows/new/date", SelectDateRequest{Date: "01/07/2025"}, "Date must be in YYYY-MM-DD format."},
		{"empty shift", http.MethodPost, "/v1/flows/new/shift", SelectShiftRequest{Shift: " "}, "Please select a shift."},
		{"unknown shift", http.MethodPost, "/v1/flows/new/shift", SelectShiftRequest{Shift: "Brunch"}, "The selected shift is outside the futsal's opening hours."},
		{"too many players", http.MethodPut, "/v1/flows/new/details", DetailsRequest{NumberOfPlayers: 11, TeamName: "A"}, "Number of players must be between 1 and 10."},
		{"blank team", http.MethodPut, "/v1/flows/new/details", DetailsRequest{NumberOfPlayers: 5, TeamName: "  "}, "Please enter a team name."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			w := h.do(tt.method, tt.path, tt.body, testSession)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, w))
			assert.Empty(t, h.service.calls)
		})
	}
}

func TestStepEndpointsReachTheService(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/v1/flows/new/date", SelectDateRequest{Date: " 2025-07-01 "}, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2025-07-01", h.service.lastDate)

	w = h.do(http.MethodPost, "/v1/flows/new/shift", SelectShiftRequest{Shift: "Evening"}, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Evening", h.service.lastShift)

	w = h.do(http.MethodPost, "/v1/flows/new/slots/12/reserve", nil, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(12), h.service.lastSlot)

	w = h.do(http.MethodPost, "/v1/flows/new/slots/12/release", nil, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPut, "/v1/flows/new/details", DetailsRequest{NumberOfPlayers: 6, TeamName: "Owls", PaymentContact: "9800000000"}, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, flow.Details{NumberOfPlayers: 6, TeamName: "Owls", PaymentContact: "9800000000"}, h.service.details)

	for _, path := range []string{"/v1/flows/new/payment", "/v1/flows/new/back"} {
		w = h.do(http.MethodPost, path, nil, testSession)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = h.do(http.MethodGet, "/v1/flows/new/slots", nil, testSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []string{"SelectDate", "SelectShift", "Reserve", "Release", "SetDetails", "EnterPayment", "Back", "Slots"}, h.service.calls)
}

func TestInvalidSlotIDIsRejected(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/v1/flows/new/slots/abc/reserve", nil, testSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.service.calls)
}

func TestConflictReturnsRefreshedDraft(t *testing.T) {
	h := newHarness(t)
	h.service.err = &flow.ConflictError{
		Cause: flow.ErrSlotLost,
		Snapshot: &flow.Snapshot{
			Draft: &flow.Draft{Flow: flow.TypeNew, Step: flow.StepSlotSelection},
			Slots: []slot.View{{Slot: slot.Slot{ID: 10}, DisplayStatus: slot.StatusBooked}},
		},
	}

	w := h.do(http.MethodPost, "/v1/flows/new/payment", nil, testSession)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp ConflictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "One of your selected slots is no longer available. Please choose again.", resp.Error)
	assert.Equal(t, "slot_selection", resp.Draft.Step)
	require.Len(t, resp.Draft.Slots, 1)
	assert.Equal(t, "booked", resp.Draft.Slots[0].Status)
}

func TestPlainErrorsUseTheirStatus(t *testing.T) {
	h := newHarness(t)
	h.service.err = slot.ErrSlotBooked

	w := h.do(http.MethodPost, "/v1/flows/new/slots/13/reserve", nil, testSession)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Slot already booked. Please choose another slot.", decodeError(t, w))
}

func TestSubmitStatusFollowsOutcome(t *testing.T) {
	t.Run("partial success is created", func(t *testing.T) {
		h := newHarness(t)
		h.service.submitRes = &flow.SubmitResult{
			Success:   true,
			Succeeded: []int64{10},
			Failed:    []int64{11},
			Bookings:  []*booking.Booking{{ID: 101, SlotID: 10, Status: booking.StatusPending}},
			Messages:  []string{"Payment successful for 1 slot!", "1 booking failed."},
			Snapshot:  &flow.Snapshot{Draft: &flow.Draft{Step: flow.StepClosed}},
		}

		w := h.do(http.MethodPost, "/v1/flows/new/submit", nil, testSession)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp SubmitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, []int64{10}, resp.SucceededSlotIDs)
		assert.Equal(t, []int64{11}, resp.FailedSlotIDs)
		assert.Equal(t, []string{"Payment successful for 1 slot!", "1 booking failed."}, resp.Messages)
		require.Len(t, resp.Bookings, 1)
		assert.Equal(t, int64(101), resp.Bookings[0].ID)
		assert.Nil(t, resp.Draft)
	})

	t.Run("zero successes is a conflict", func(t *testing.T) {
		h := newHarness(t)
		h.service.submitRes = &flow.SubmitResult{
			Failed:   []int64{10},
			Messages: []string{"Booking failed. The selected slots may have been booked by someone else. Please choose again."},
			Snapshot: &flow.Snapshot{Draft: &flow.Draft{Flow: flow.TypeNew, Step: flow.StepSlotSelection}, Slots: []slot.View{}},
		}

		w := h.do(http.MethodPost, "/v1/flows/new/submit", nil, testSession)
		require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

		var resp SubmitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Empty(t, resp.SucceededSlotIDs)
		require.NotNil(t, resp.Draft)
		assert.Equal(t, "slot_selection", resp.Draft.Step)
	})
}

func TestCancelRequiresConfirmation(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodDelete, "/v1/flows/new", nil, testSession)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, h.service.confirmed)

	w = h.do(http.MethodDelete, "/v1/flows/new?confirm=true", nil, testSession)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, h.service.confirmed)
}
