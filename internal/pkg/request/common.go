package request

// FlowRequest binds the flow type path parameter shared by all draft endpoints.
type FlowRequest struct {
	Flow string `uri:"flow" binding:"required,oneof=new update"`
}

// SlotRequest binds the flow type and slot id path parameters.
type SlotRequest struct {
	Flow   string `uri:"flow" binding:"required,oneof=new update"`
	SlotID int64  `uri:"slotId" binding:"required,gt=0"`
}
