package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/policy"
	"github.com/Leganyst/tour-marketplace/internal/service"
	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

type createBookingRequest struct {
	TourID          uuid.UUID `json:"tour_id" binding:"required"`
	SlotID          uuid.UUID `json:"slot_id" binding:"required"`
	NumGuests       int       `json:"num_guests"`
	SpecialRequests string    `json:"special_requests"`
}

func (h *api) createBooking(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler)
	if !ok {
		return
	}
	var req createBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Bookings.CreateBooking(c.Request.Context(), service.CreateBookingInput{
		TourID:          req.TourID,
		SlotID:          req.SlotID,
		TouristID:       actor.ID,
		NumGuests:       req.NumGuests,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"booking": view.FromBooking(res.Booking),
		"payment": view.FromPayment(res.Payment),
	}, "booking created")
}

// listBookings: путешественник видит свои брони, гид свои туры с фильтром ?status=.
func (h *api) listBookings(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler, model.ActorGuide)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if actor.Kind == model.ActorTraveler {
		res, err := h.svc.Bookings.ListTravelerBookings(ctx, actor.ID, page)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		paginated(c, res, view.FromBooking)
		return
	}

	var statuses []model.BookingStatus
	for _, s := range c.QueryArray("status") {
		statuses = append(statuses, model.BookingStatus(strings.ToUpper(s)))
	}
	res, err := h.svc.Bookings.ListGuideBookings(ctx, actor.ID, statuses, page)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	paginated(c, res, view.FromBooking)
}

// ownedBooking загружает бронь и проверяет доступ актора к ней.
func (h *api) ownedBooking(c *gin.Context, actor service.Actor) (*model.Booking, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	b, err := h.svc.Bookings.GetBooking(c.Request.Context(), id)
	if err == nil {
		err = actor.CanAccess(b)
	}
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return b, true
}

func (h *api) getBooking(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	b, ok := h.ownedBooking(c, actor)
	if !ok {
		return
	}
	payments, err := h.svc.Payments.ListBookingPayments(c.Request.Context(), b.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"booking":  view.FromBooking(b),
		"payments": view.Slice(payments, view.FromPayment),
	}, "")
}

func (h *api) bookingHistory(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	b, ok := h.ownedBooking(c, actor)
	if !ok {
		return
	}
	events, err := h.svc.Bookings.History(c.Request.Context(), b.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.Slice(events, view.FromEvent), "")
}

func circumstanceOf(raw string) policy.Circumstance {
	return policy.Circumstance(strings.ToUpper(strings.TrimSpace(raw)))
}

func (h *api) quoteCancellation(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	preview, err := h.svc.Bookings.QuoteCancellation(c.Request.Context(), id, actor, circumstanceOf(c.Query("circumstance")), h.now())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"tier":             preview.Quote.Tier,
		"percent":          preview.Quote.Percent,
		"hours_until_tour": preview.Quote.HoursUntilTour,
		"paid":             preview.Paid,
		"refund_amount":    preview.RefundAmount,
	}, "")
}

type cancelRequest struct {
	Reason       string `json:"reason" binding:"required"`
	Circumstance string `json:"circumstance"`
}

func (h *api) cancelBooking(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Bookings.CancelBooking(c.Request.Context(), service.CancelInput{
		BookingID:    id,
		Actor:        actor,
		Reason:       req.Reason,
		Circumstance: circumstanceOf(req.Circumstance),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := gin.H{
		"booking":       view.FromBooking(res.Booking),
		"refund_tier":   res.Quote.Tier,
		"refund_amount": res.RefundAmount,
	}
	if res.Payment != nil {
		out["payment"] = view.FromPayment(res.Payment)
	}
	respond(c, http.StatusOK, out, "booking cancelled")
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *api) declineBooking(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.svc.Bookings.DeclineBooking(c.Request.Context(), id, actor.ID, req.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromBooking(b), "booking declined")
}

func (h *api) completeBooking(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	b, ok := h.ownedBooking(c, actor)
	if !ok {
		return
	}
	done, err := h.svc.Bookings.MarkCompleted(c.Request.Context(), b.ID, h.now())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromBooking(done), "booking completed")
}

func (h *api) retryPayment(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Payments.RetryPayment(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, view.FromPayment(p), "payment opened")
}
