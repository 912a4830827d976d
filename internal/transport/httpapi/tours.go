package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/service"
	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

type toursQuery struct {
	All bool `form:"all"`
}

// listTours отдаёт каталог; неактивные туры только по ?all=true.
func (h *api) listTours(c *gin.Context) {
	var q toursQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, apperr.KindValidation, "invalid query: "+err.Error())
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}
	res, err := h.svc.Catalog.ListTours(c.Request.Context(), !q.All, page)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	paginated(c, res, view.FromTour)
}

type createTourRequest struct {
	Title       string   `json:"title" binding:"required"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Languages   []string `json:"languages"`
	MinPrice    int64    `json:"min_price"`
	MaxPrice    int64    `json:"max_price"`
	Currency    string   `json:"currency"`
}

func (h *api) createTour(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	var req createTourRequest
	if !bindJSON(c, &req) {
		return
	}
	tour, err := h.svc.Catalog.CreateTour(c.Request.Context(), service.CreateTourInput{
		GuideID:     actor.ID,
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		Languages:   req.Languages,
		MinPrice:    req.MinPrice,
		MaxPrice:    req.MaxPrice,
		Currency:    req.Currency,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, view.FromTour(tour), "tour created")
}

type tourActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *api) setTourActive(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req tourActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	tour, err := h.svc.Catalog.SetTourActive(c.Request.Context(), actor.ID, id, *req.Active)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromTour(tour), "")
}

func (h *api) listGuideTours(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tours, err := h.svc.Catalog.ListGuideTours(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.Slice(tours, view.FromTour), "")
}

// listGuideSchedules: свои расписания видит гид, чужие только администратор.
func (h *api) listGuideSchedules(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide, model.ActorAdmin)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if actor.Kind == model.ActorGuide && actor.ID != id {
		fail(c, http.StatusForbidden, apperr.KindForbidden, "guide may read only own schedules")
		return
	}
	schedules, err := h.svc.Catalog.ListGuideSchedules(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.Slice(schedules, view.FromSchedule), "")
}
