package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/tour-marketplace/internal/apperr"
	"github.com/Leganyst/tour-marketplace/internal/calendar"
	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/service"
	"github.com/Leganyst/tour-marketplace/internal/transport/view"
)

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, apperr.KindValidation, "invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, apperr.KindValidation, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func bindPage(c *gin.Context) (calendar.PageRequest, bool) {
	var page calendar.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		fail(c, http.StatusBadRequest, apperr.KindValidation, "invalid pagination: "+err.Error())
		return page, false
	}
	return page, true
}

type slotsQuery struct {
	From     time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Bookable bool      `form:"bookable"`
}

func (h *api) listSlots(c *gin.Context) {
	tourID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var q slotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, apperr.KindValidation, "invalid query: "+err.Error())
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}
	res, err := h.svc.Availability.ListSlots(c.Request.Context(), service.ListSlotsInput{
		TourID:       tourID,
		From:         q.From,
		To:           q.To,
		OnlyBookable: q.Bookable,
		Page:         page,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	paginated(c, res, view.FromSlot)
}

func (h *api) getSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	slot, err := h.svc.Availability.GetSlot(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromSlot(slot), "")
}

type createSlotRequest struct {
	TourID         uuid.UUID `json:"tour_id" binding:"required"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	DurationMins   int       `json:"duration_mins" binding:"required"`
	PricePerPerson int64     `json:"price_per_person" binding:"required"`
	Currency       string    `json:"currency"`
	MaxGroupSize   int       `json:"max_group_size" binding:"required"`
	TimeZone       string    `json:"time_zone"`
}

func (h *api) createSlot(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	var req createSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.svc.Availability.CreateSlot(c.Request.Context(), service.CreateSlotInput{
		GuideID:        actor.ID,
		TourID:         req.TourID,
		StartTime:      req.StartTime,
		DurationMins:   req.DurationMins,
		PricePerPerson: req.PricePerPerson,
		Currency:       req.Currency,
		MaxGroupSize:   req.MaxGroupSize,
		TimeZone:       req.TimeZone,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, view.FromSlot(slot), "slot created")
}

type availabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

func (h *api) setAvailability(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req availabilityRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.svc.Availability.SetAvailability(c.Request.Context(), actor.ID, id, *req.Available)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, view.FromSlot(slot), "")
}

type scheduleRequest struct {
	TourID           uuid.UUID          `json:"tour_id" binding:"required"`
	Freq             calendar.Frequency `json:"freq" binding:"required"`
	Interval         int                `json:"interval"`
	Weekdays         []time.Weekday     `json:"weekdays"`
	Start            time.Time          `json:"start" binding:"required"`
	DurationMins     int                `json:"duration_mins" binding:"required"`
	Exceptions       []string           `json:"exceptions"`
	From             time.Time          `json:"from" binding:"required"`
	To               time.Time          `json:"to" binding:"required"`
	TimeZone         string             `json:"time_zone"`
	SlotDurationMins int                `json:"slot_duration_mins"`
	PricePerPerson   int64              `json:"price_per_person" binding:"required"`
	Currency         string             `json:"currency"`
	MaxGroupSize     int                `json:"max_group_size" binding:"required"`
}

func (h *api) createSchedule(c *gin.Context) {
	actor, ok := requireActor(c, model.ActorGuide)
	if !ok {
		return
	}
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Availability.CreateRecurringSlots(c.Request.Context(), service.RecurringSlotsInput{
		GuideID: actor.ID,
		TourID:  req.TourID,
		Rule: calendar.RecurringRule{
			Freq:       req.Freq,
			Interval:   req.Interval,
			Weekdays:   req.Weekdays,
			Start:      req.Start,
			Duration:   time.Duration(req.DurationMins) * time.Minute,
			Exceptions: req.Exceptions,
		},
		From:           req.From,
		To:             req.To,
		TimeZone:       req.TimeZone,
		SlotDuration:   time.Duration(req.SlotDurationMins) * time.Minute,
		PricePerPerson: req.PricePerPerson,
		Currency:       req.Currency,
		MaxGroupSize:   req.MaxGroupSize,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	slots := make([]view.Slot, 0, len(res.Slots))
	for _, s := range res.Slots {
		slots = append(slots, view.FromSlot(s))
	}
	respond(c, http.StatusCreated, gin.H{"schedule_id": res.Schedule.ID, "slots": slots}, "schedule created")
}
