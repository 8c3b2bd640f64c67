package routes

import (
	"time"

	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"

	"github.com/coachbridge/coachcal/internal/model"
)

type scheduleResponse struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	TimeZone            string               `json:"timeZone"`
	Availability        []model.WeeklySlot   `json:"availability"`
	Overrides           []model.DateOverride `json:"overrides"`
	DefaultDuration     int                  `json:"defaultDuration"`
	MinimumDuration     int                  `json:"minimumDuration"`
	MaximumDuration     int                  `json:"maximumDuration"`
	AllowCustomDuration bool                 `json:"allowCustomDuration"`
	BufferBefore        int                  `json:"bufferBefore"`
	BufferAfter         int                  `json:"bufferAfter"`
	SlotInterval        int                  `json:"slotInterval"`
	MinimumNotice       int                  `json:"minimumNotice"`
	SyncSource          model.SyncSource     `json:"syncSource"`
	LastSyncedAt        *time.Time           `json:"lastSyncedAt"`
}

func toScheduleResponse(s *model.CoachingSchedule) scheduleResponse {
	return scheduleResponse{
		ID:                  s.ID.String(),
		Name:                s.Name,
		TimeZone:            s.TimeZone,
		Availability:        s.WeeklySlots(),
		Overrides:           s.DateOverrides(),
		DefaultDuration:     s.DefaultDuration,
		MinimumDuration:     s.MinimumDuration,
		MaximumDuration:     s.MaximumDuration,
		AllowCustomDuration: s.AllowCustomDuration,
		BufferBefore:        s.BufferBefore,
		BufferAfter:         s.BufferAfter,
		SlotInterval:        s.SlotInterval,
		MinimumNotice:       s.MinimumNotice,
		SyncSource:          s.SyncSource,
		LastSyncedAt:        s.LastSyncedAt,
	}
}

// GET /coaches/{id}/schedule
func (h *Handlers) getSchedule(ctx iris.Context) {
	schedule, err := h.schedules.GetDefaultByCoach(ctx, ctx.Params().Get("coachID"))
	if err != nil {
		respondDomainError(ctx, err)
		return
	}
	ctx.JSON(toScheduleResponse(schedule))
}

type updateScheduleRequest struct {
	Name         string               `json:"name" validate:"max=120"`
	TimeZone     string               `json:"timeZone" validate:"omitempty,timezone"`
	Availability []model.WeeklySlot   `json:"availability"`
	Overrides    []model.DateOverride `json:"overrides"`

	DefaultDuration     *int  `json:"defaultDuration" validate:"omitempty,gte=15,lte=480"`
	MinimumDuration     *int  `json:"minimumDuration" validate:"omitempty,gte=15,lte=480"`
	MaximumDuration     *int  `json:"maximumDuration" validate:"omitempty,gte=15,lte=480"`
	AllowCustomDuration *bool `json:"allowCustomDuration"`
	BufferBefore        *int  `json:"bufferBefore" validate:"omitempty,gte=0,lte=120"`
	BufferAfter         *int  `json:"bufferAfter" validate:"omitempty,gte=0,lte=120"`
	SlotInterval        *int  `json:"slotInterval" validate:"omitempty,gte=0,lte=240"`
	MinimumNotice       *int  `json:"minimumNotice" validate:"omitempty,gte=0,lte=20160"`
}

// POST /coaches/{id}/schedule
//
// Правка внутреннего расписания. Внешне-владеемые поля уходят
// провайдеру сразу же; отказ провайдера не откатывает локальную
// запись, рассинхрон чинится следующим pull/push.
func (h *Handlers) updateSchedule(ctx iris.Context) {
	var req updateScheduleRequest
	if err := ctx.ReadJSON(&req); err != nil {
		respondError(ctx, iris.StatusBadRequest, err.Error())
		return
	}

	schedule, err := h.schedules.GetDefaultByCoach(ctx, ctx.Params().Get("coachID"))
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	if req.Name != "" {
		schedule.Name = req.Name
	}
	if req.TimeZone != "" {
		schedule.TimeZone = req.TimeZone
	}
	if req.Availability != nil {
		schedule.Availability = datatypes.NewJSONType(req.Availability)
	}
	if req.Overrides != nil {
		schedule.Overrides = datatypes.NewJSONType(req.Overrides)
	}
	if req.DefaultDuration != nil {
		schedule.DefaultDuration = *req.DefaultDuration
	}
	if req.MinimumDuration != nil {
		schedule.MinimumDuration = *req.MinimumDuration
	}
	if req.MaximumDuration != nil {
		schedule.MaximumDuration = *req.MaximumDuration
	}
	if req.AllowCustomDuration != nil {
		schedule.AllowCustomDuration = *req.AllowCustomDuration
	}
	if req.BufferBefore != nil {
		schedule.BufferBefore = *req.BufferBefore
	}
	if req.BufferAfter != nil {
		schedule.BufferAfter = *req.BufferAfter
	}
	if req.SlotInterval != nil {
		schedule.SlotInterval = *req.SlotInterval
	}
	if req.MinimumNotice != nil {
		schedule.MinimumNotice = *req.MinimumNotice
	}

	if schedule.MinimumDuration > schedule.MaximumDuration ||
		schedule.DefaultDuration < schedule.MinimumDuration ||
		schedule.DefaultDuration > schedule.MaximumDuration {
		respondError(ctx, iris.StatusBadRequest, "duration policy: min <= default <= max required")
		return
	}

	schedule.SyncSource = model.SyncSourceInternal
	if err := h.schedules.Update(ctx, schedule); err != nil {
		respondDomainError(ctx, err)
		return
	}

	synced := true
	if err := h.syncer.PushSchedule(ctx, schedule.ID.String()); err != nil {
		ctx.Application().Logger().Warnf("push schedule %s: %v", schedule.ID, err)
		synced = false
	}

	resp := iris.Map{"schedule": toScheduleResponse(schedule), "synced": synced}
	ctx.JSON(resp)
}

// POST /coaches/{id}/schedule/sync
//
// Принудительный pull от провайдера.
func (h *Handlers) pullSchedule(ctx iris.Context) {
	schedule, err := h.syncer.PullSchedule(ctx, ctx.Params().Get("coachID"))
	if err != nil {
		respondDomainError(ctx, err)
		return
	}
	ctx.JSON(toScheduleResponse(schedule))
}
