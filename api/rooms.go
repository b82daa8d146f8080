package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/hotelguru/hotelguru/internal/service/rooms"
)

type RoomHandler struct {
	service rooms.RoomUseCase
}

type roomResponse struct {
	ID          int64  `json:"id"`
	Number      int    `json:"number"`
	Type        string `json:"type"`
	PriceCents  int64  `json:"price_cents"`
	Description string `json:"description"`
}

func NewRoomHandler(service rooms.RoomUseCase) *RoomHandler {
	return &RoomHandler{service: service}
}

func (h *RoomHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.listAvailable)
}

// listAvailable serves GET /rooms?start=YYYY-MM-DD&end=YYYY-MM-DD. With
// no range it lists every in-service room.
func (h *RoomHandler) listAvailable(c *gin.Context) {
	var start, end *time.Time

	rawStart, rawEnd := c.Query("start"), c.Query("end")
	if (rawStart == "") != (rawEnd == "") {
		respondError(c, fmt.Errorf("%w: start and end must be given together", domain.ErrValidation))
		return
	}
	if rawStart != "" {
		s, err := parseDate(rawStart, "start")
		if err != nil {
			respondError(c, err)
			return
		}
		e, err := parseDate(rawEnd, "end")
		if err != nil {
			respondError(c, err)
			return
		}
		start, end = &s, &e
	}

	available, err := h.service.FindAvailable(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]roomResponse, 0, len(available))
	for _, room := range available {
		out = append(out, roomResponse{
			ID:          room.ID,
			Number:      room.Number,
			Type:        room.Type,
			PriceCents:  room.PriceCents,
			Description: room.Description,
		})
	}
	c.JSON(http.StatusOK, out)
}
