package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *FlowHandler, authMiddleware gin.HandlerFunc, limiter gin.HandlerFunc) {
	group := g.Group("/flows")

	// === Authenticated Routes ===
	group.Use(authMiddleware, limiter)
	{
		group.POST("/new", h.OpenNew)
		group.POST("/update", h.OpenUpdate)

		group.GET("/:flow", h.Get)
		group.DELETE("/:flow", h.Cancel)
		group.POST("/:flow/date", h.SelectDate)
		group.POST("/:flow/shift", h.SelectShift)
		group.GET("/:flow/slots", h.Slots)
		group.POST("/:flow/slots/:slotId/reserve", h.Reserve)
		group.POST("/:flow/slots/:slotId/release", h.Release)
		group.PUT("/:flow/details", h.SetDetails)
		group.POST("/:flow/payment", h.EnterPayment)
		group.POST("/:flow/back", h.Back)
		group.POST("/:flow/submit", h.Submit)
	}
}
