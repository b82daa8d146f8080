package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hotelguru/hotelguru/internal/domain"
	"github.com/hotelguru/hotelguru/internal/service/reservation"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
	ledger  reservation.InvoiceLedger
}

type createReservationRequest struct {
	GuestID         int64  `json:"guest_id"`
	RoomNumbers     []int  `json:"room_numbers"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	ReservationDate string `json:"reservation_date"`
}

type attachServicesRequest struct {
	ServiceIDs []int64 `json:"service_ids"`
}

type reservationResponse struct {
	ID              int64  `json:"id"`
	GuestID         int64  `json:"guest_id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	ReservationDate string `json:"reservation_date"`
	Status          string `json:"status"`
	RoomNumbers     []int  `json:"room_numbers"`
}

type invoiceResponse struct {
	ID            int64             `json:"id"`
	Number        string            `json:"number"`
	ReservationID int64             `json:"reservation_id"`
	AmountCents   int64             `json:"amount_cents"`
	Status        string            `json:"status"`
	IssueDate     string            `json:"issue_date"`
	Services      []serviceResponse `json:"services"`
}

type serviceResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func NewReservationHandler(service reservation.ReservationUseCase, ledger reservation.InvoiceLedger) *ReservationHandler {
	return &ReservationHandler{service: service, ledger: ledger}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.POST("/:id/confirm", h.confirm)
	router.POST("/:id/checkin", h.checkIn)
	router.POST("/:id/checkout", h.checkOut)
	router.DELETE("/:id", h.cancel)
	router.POST("/:id/services", h.attachServices)
	router.GET("/:id/invoice", h.invoice)
}

func (h *ReservationHandler) create(c *gin.Context) {
	actor, err := principalFrom(c.Request)
	if err != nil {
		respondError(c, err)
		return
	}

	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	input := reservation.CreateReservationInput{
		GuestID:     actor.ID,
		RoomNumbers: req.RoomNumbers,
	}
	// Staff may book on behalf of another guest.
	if req.GuestID != 0 && req.GuestID != actor.ID {
		if !actor.Roles.Privileged() {
			respondError(c, fmt.Errorf("%w: only staff may book for another guest", domain.ErrForbidden))
			return
		}
		input.GuestID = req.GuestID
	}

	if input.StartDate, err = parseDate(req.StartDate, "start_date"); err != nil {
		respondError(c, err)
		return
	}
	if input.EndDate, err = parseDate(req.EndDate, "end_date"); err != nil {
		respondError(c, err)
		return
	}
	if req.ReservationDate != "" {
		if input.ReservationDate, err = parseDate(req.ReservationDate, "reservation_date"); err != nil {
			respondError(c, err)
			return
		}
	}

	res, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) list(c *gin.Context) {
	ctx := c.Request.Context()

	if raw := c.Query("room"); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, fmt.Errorf("%w: invalid room number", domain.ErrValidation))
			return
		}
		reservations, err := h.service.SearchByRoom(ctx, number)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReservationResponses(reservations))
		return
	}

	if raw := c.Query("guest"); raw != "" {
		guestID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, fmt.Errorf("%w: invalid guest id", domain.ErrValidation))
			return
		}
		reservations, err := h.service.SearchByGuest(ctx, guestID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toReservationResponses(reservations))
		return
	}

	reservations, err := h.service.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponses(reservations))
}

func (h *ReservationHandler) get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) confirm(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.service.Confirm(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) checkIn(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.service.CheckIn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) checkOut(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, invoice, err := h.service.CheckOut(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reservation": toReservationResponse(res),
		"invoice":     toInvoiceResponse(invoice),
	})
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	actor, err := principalFrom(c.Request)
	if err != nil {
		respondError(c, err)
		return
	}
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.service.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) attachServices(c *gin.Context) {
	actor, err := principalFrom(c.Request)
	if err != nil {
		respondError(c, err)
		return
	}
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req attachServicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	invoice, err := h.service.AttachServices(c.Request.Context(), id, actor, req.ServiceIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

func (h *ReservationHandler) invoice(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	invoice, err := h.ledger.GetByReservation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a YYYY-MM-DD date", domain.ErrValidation, field)
	}
	return t, nil
}

func toReservationResponse(res *domain.Reservation) reservationResponse {
	roomNumbers := make([]int, 0, len(res.Rooms))
	for _, room := range res.Rooms {
		roomNumbers = append(roomNumbers, room.Number)
	}
	return reservationResponse{
		ID:              res.ID,
		GuestID:         res.GuestID,
		StartDate:       res.StartDate.Format(time.DateOnly),
		EndDate:         res.EndDate.Format(time.DateOnly),
		ReservationDate: res.ReservationDate.Format(time.DateOnly),
		Status:          string(res.Status),
		RoomNumbers:     roomNumbers,
	}
}

func toReservationResponses(reservations []domain.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(reservations))
	for i := range reservations {
		out = append(out, toReservationResponse(&reservations[i]))
	}
	return out
}

func toInvoiceResponse(inv *domain.Invoice) invoiceResponse {
	services := make([]serviceResponse, 0, len(inv.Services))
	for _, svc := range inv.Services {
		services = append(services, serviceResponse{ID: svc.ID, Name: svc.Name, PriceCents: svc.PriceCents})
	}
	return invoiceResponse{
		ID:            inv.ID,
		Number:        inv.Number,
		ReservationID: inv.ReservationID,
		AmountCents:   inv.AmountCents,
		Status:        string(inv.Status),
		IssueDate:     inv.IssueDate.Format(time.DateOnly),
		Services:      services,
	}
}
