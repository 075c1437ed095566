package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nekogravitycat/futsal-booking-flow/internal/auth"
	"github.com/nekogravitycat/futsal-booking-flow/internal/backend"
	"github.com/nekogravitycat/futsal-booking-flow/internal/flow"
	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/request"
	"github.com/nekogravitycat/futsal-booking-flow/internal/pkg/response"
)

// SessionHeader carries the browser-tab scoped session id. Drafts are keyed by it.
const SessionHeader = "X-Session-ID"

type FlowHandler struct {
	service flow.Service
}

func NewHandler(service flow.Service) *FlowHandler {
	return &FlowHandler{service: service}
}

// OpenNew starts or resumes a new-booking draft for a futsal.
func (h *FlowHandler) OpenNew(c *gin.Context) {
	var req OpenNewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	key, ok := h.key(c, flow.TypeNew)
	if !ok {
		return
	}

	snap, err := h.service.OpenNew(h.ctx(c), key, req.FutsalID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

// OpenUpdate starts or resumes a draft that moves an existing booking.
func (h *FlowHandler) OpenUpdate(c *gin.Context) {
	var req OpenUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	key, ok := h.key(c, flow.TypeUpdate)
	if !ok {
		return
	}

	snap, err := h.service.OpenUpdate(h.ctx(c), key, req.BookingID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

// Get resumes the persisted draft after a reload.
func (h *FlowHandler) Get(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	snap, err := h.service.Resume(h.ctx(c), key)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

func (h *FlowHandler) SelectDate(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	var req SelectDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	snap, err := h.service.SelectDate(h.ctx(c), key, req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

func (h *FlowHandler) SelectShift(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	var req SelectShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	snap, err := h.service.SelectShift(h.ctx(c), key, req.Shift)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

// Slots re-fetches the slot list from the backend and drops local overrides.
func (h *FlowHandler) Slots(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	snap, err := h.service.Slots(h.ctx(c), key)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

func (h *FlowHandler) Reserve(c *gin.Context) {
	key, slotID, ok := h.slotKey(c)
	if !ok {
		return
	}

	snap, err := h.service.Reserve(h.ctx(c), key, slotID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

func (h *FlowHandler) Release(c *gin.Context) {
	key, slotID, ok := h.slotKey(c)
	if !ok {
		return
	}

	snap, err := h.service.Release(h.ctx(c), key, slotID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

func (h *FlowHandler) SetDetails(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	var req DetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	snap, err := h.service.SetDetails(h.ctx(c), key, req.Details())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

// EnterPayment re-checks every held slot and moves to the payment step.
func (h *FlowHandler) EnterPayment(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	snap, err := h.service.EnterPayment(h.ctx(c), key)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

func (h *FlowHandler) Back(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	snap, err := h.service.Back(h.ctx(c), key)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, NewDraftResponse(snap))
}

// Submit books every held slot. Partial success is still 201; zero successes is 409.
func (h *FlowHandler) Submit(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	res, err := h.service.Submit(h.ctx(c), key)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if !res.Success {
		status = http.StatusConflict
	}
	c.JSON(status, NewSubmitResponse(res))
}

// Cancel discards the draft. The caller must pass confirm=true.
func (h *FlowHandler) Cancel(c *gin.Context) {
	key, ok := h.flowKey(c)
	if !ok {
		return
	}

	var req CancelRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	if err := h.service.Cancel(h.ctx(c), key, req.Confirm); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ctx carries the caller's token so that backend calls act on the user's behalf.
func (h *FlowHandler) ctx(c *gin.Context) context.Context {
	return backend.WithToken(c.Request.Context(), auth.GetAccessToken(c))
}

func (h *FlowHandler) key(c *gin.Context, t flow.Type) (flow.Key, bool) {
	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return flow.Key{}, false
	}

	sessionID, err := uuid.Parse(c.GetHeader(SessionHeader))
	if err != nil {
		response.Error(c, flow.ErrInvalidSession)
		return flow.Key{}, false
	}

	return flow.Key{UserID: userID, SessionID: sessionID.String(), Flow: t}, true
}

func (h *FlowHandler) flowKey(c *gin.Context) (flow.Key, bool) {
	var req request.FlowRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.Error(c, flow.ErrInvalidFlow)
		return flow.Key{}, false
	}
	t, err := flow.ParseType(req.Flow)
	if err != nil {
		response.Error(c, err)
		return flow.Key{}, false
	}
	return h.key(c, t)
}

func (h *FlowHandler) slotKey(c *gin.Context) (flow.Key, int64, bool) {
	var req request.SlotRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return flow.Key{}, 0, false
	}
	t, err := flow.ParseType(req.Flow)
	if err != nil {
		response.Error(c, err)
		return flow.Key{}, 0, false
	}
	key, ok := h.key(c, t)
	return key, req.SlotID, ok
}

// fail renders checkpoint conflicts with the refreshed draft so the client can re-render.
func (h *FlowHandler) fail(c *gin.Context, err error) {
	var conflict *flow.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, ConflictResponse{
			Error: response.Message(conflict.Cause),
			Draft: NewDraftResponse(conflict.Snapshot),
		})
		return
	}
	response.Error(c, err)
}
