package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/service"
	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

func (h *api) getBalance(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	guideID, ok := guideScope(c, actor)
	if !ok {
		return
	}
	bal, err := h.svc.Payouts.AvailableBalance(c.Request.Context(), guideID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, bal, "")
}

type payoutRequest struct {
	Amount         int64          `json:"amount" binding:"required"`
	PaymentMethod  string         `json:"payment_method" binding:"required"`
	AccountDetails map[string]any `json:"account_details"`
}

func (h *api) requestPayout(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	var req payoutRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.Payouts.RequestPayout(c.Request.Context(), service.PayoutRequest{
		GuideID:        actor.ID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		AccountDetails: req.AccountDetails,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, view.FromPayout(p), "payout requested")
}

func (h *api) listPayouts(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	guideID, ok := guideScope(c, actor)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}
	res, err := h.svc.Payouts.ListPayouts(c.Request.Context(), guideID, page)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	paginated(c, res, view.FromPayout)
}

func (h *api) cancelPayout(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Payouts.CancelPayout(c.Request.Context(), id, actor.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromPayout(p), "payout cancelled")
}

func (h *api) startPayoutProcessing(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Payouts.StartProcessing(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromPayout(p), "")
}

type processPayoutRequest struct {
	ProviderPayoutID string `json:"provider_payout_id"`
}

func (h *api) processPayout(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req processPayoutRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.Payouts.ProcessPayout(c.Request.Context(), id, req.ProviderPayoutID, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromPayout(p), "payout sent")
}

func (h *api) failPayout(c *gin.Context) {
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
	p, err := h.svc.Payouts.FailPayout(c.Request.Context(), id, req.Reason, actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromPayout(p), "payout failed")
}
