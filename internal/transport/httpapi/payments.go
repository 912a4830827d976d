package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/service"
	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

func (h *api) initiatePayment(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorTraveler, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p, err := h.svc.Payments.GetPayment(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	b, err := h.svc.Bookings.GetBooking(ctx, p.BookingID)
	if err == nil {
		err = actor.CanAccess(b)
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	res, err := h.svc.Payments.InitiatePayment(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"payment":      view.FromPayment(res.Payment),
		"redirect_url": res.RedirectURL,
	}, "")
}

// gatewayWebhook принимает колбэк шлюза. Повтор уже применённого колбэка
// отвечает 200 с outcome=DUPLICATE, чтобы шлюз прекратил ретраи.
func (h *api) gatewayWebhook(c *gin.Context) {
	var payload map[string]any
	if !bindJSON(c, &payload) {
		return
	}
	txID, _ := payload["transaction_id"].(string)
	if txID == "" {
		txID, _ = payload["transactionId"].(string)
	}
	status, _ := payload["status"].(string)

	outcome, err := h.svc.Payments.HandleGatewayCallback(c.Request.Context(), service.CallbackInput{
		TransactionID: txID,
		Status:        status,
		Payload:       payload,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"outcome": outcome}, "")
}

type refundRequest struct {
	Reason     string `json:"reason" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

func (h *api) requestRefund(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req refundRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.Payments.RequestRefund(c.Request.Context(), service.RefundRequest{
		PaymentID:  id,
		Reason:     req.Reason,
		Amount:     req.Amount,
		AdminNotes: req.AdminNotes,
		Actor:      actor,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromPayment(p), "refund requested")
}

type approveRequest struct {
	AdminNotes string `json:"admin_notes"`
}

func (h *api) approveRefund(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req approveRequest
	// Тело необязательно.
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.Payments.ApproveRefund(c.Request.Context(), id, req.AdminNotes, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromPayment(p), "refund approved")
}

func (h *api) rejectRefund(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorAdmin)
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
	p, err := h.svc.Payments.RejectRefund(c.Request.Context(), id, req.Reason, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromPayment(p), "refund rejected")
}

// guideScope: гид работает только со своим балансом, администратор указывает ?guide_id=.
func guideScope(c *gin.Context, actor service.Actor) (uuid.UUID, bool) {
	if actor.Kind == model.ActorGuide {
		return actor.ID, true
	}
	id, err := uuid.Parse(c.Query("guide_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, apperr.KindValidation, "guide_id query parameter is required")
		return uuid.Nil, false
	}
	return id, true
}
