package routes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/availability"
	"github.com/coachbridge/coachcal/internal/booking"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/token"
)

// Горизонт запроса слотов, дальше не считаем.
const maxSlotRange = 31 * 24 * time.Hour

// GET /coaches/{id}/slots?from=&to=&duration=
//
// from/to — RFC 3339; duration — минуты, 0 берёт дефолт расписания.
func (h *Handlers) listSlots(ctx iris.Context) {
	coachID := ctx.Params().Get("coachID")

	from, err := time.Parse(time.RFC3339, ctx.URLParam("from"))
	if err != nil {
		respondError(ctx, iris.StatusBadRequest, "from must be RFC 3339")
		return
	}
	to, err := time.Parse(time.RFC3339, ctx.URLParam("to"))
	if err != nil {
		respondError(ctx, iris.StatusBadRequest, "to must be RFC 3339")
		return
	}
	window, err := availability.NormalizeRange(from, to, time.UTC, maxSlotRange)
	if err != nil {
		respondError(ctx, iris.StatusBadRequest, "to must be after from")
		return
	}
	from, to = window.Start, window.End
	duration := ctx.URLParamIntDefault("duration", 0)

	schedule, err := h.schedules.GetDefaultByCoach(ctx, coachID)
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	busy, err := h.busyTimes(ctx, coachID, from, to)
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	days, err := availability.ComputeSlots(schedule, busy, from, to, duration, time.Now().UTC())
	if err != nil {
		respondDomainError(ctx, err)
		return
	}
	if days == nil {
		days = []availability.DaySlots{}
	}

	ctx.JSON(iris.Map{"days": days})
}

// busyTimes тянет занятость коуча у провайдера. Окно расширено на
// сутки в обе стороны, чтобы не потерять события на границах дат.
func (h *Handlers) busyTimes(ctx context.Context, coachID string, from, to time.Time) ([]availability.TimeRange, error) {
	integ, err := h.integrations.GetByCoach(ctx, coachID, h.providerName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrNotConnected
		}
		return nil, err
	}

	var busyTimes []provider.BusyTime
	err = token.WithAuthRetry(ctx, h.tokens, coachID, func(accessToken string) error {
		var apiErr error
		busyTimes, apiErr = h.client.BusyTimes(ctx, accessToken,
			integ.ExternalEventTypeID, from.Add(-24*time.Hour), to.Add(24*time.Hour))
		return apiErr
	})
	if err != nil {
		return nil, err
	}

	busy := make([]availability.TimeRange, 0, len(busyTimes))
	for _, b := range busyTimes {
		busy = append(busy, availability.TimeRange{Start: b.Start, End: b.End})
	}
	return busy, nil
}

type createBookingRequest struct {
	CoachID          string    `json:"coachId" validate:"required,uuid"`
	MenteeID         string    `json:"menteeId" validate:"required,uuid"`
	Start            time.Time `json:"start" validate:"required"`
	DurationMin      int       `json:"durationMin" validate:"gte=0,lte=480"`
	AttendeeName     string    `json:"attendeeName" validate:"required"`
	AttendeeEmail    string    `json:"attendeeEmail" validate:"required,email"`
	AttendeeTimeZone string    `json:"attendeeTimeZone"`
}

// POST /bookings
func (h *Handlers) createBooking(ctx iris.Context) {
	var req createBookingRequest
	if err := ctx.ReadJSON(&req); err != nil {
		respondError(ctx, iris.StatusBadRequest, err.Error())
		return
	}
	if !req.Start.After(time.Now()) {
		respondError(ctx, iris.StatusBadRequest, "start must be in the future")
		return
	}

	coachID, _ := uuid.Parse(req.CoachID)
	menteeID, _ := uuid.Parse(req.MenteeID)

	session, err := h.orchestrator.Create(ctx, &booking.CreateRequest{
		CoachID:          coachID,
		MenteeID:         menteeID,
		Start:            req.Start.UTC(),
		DurationMin:      req.DurationMin,
		AttendeeName:     req.AttendeeName,
		AttendeeEmail:    req.AttendeeEmail,
		AttendeeTimeZone: req.AttendeeTimeZone,
	})
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(session)
}

type cancelSessionRequest struct {
	ActorID string `json:"actorId" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"max=500"`
}

// POST /sessions/{id}/cancel
func (h *Handlers) cancelSession(ctx iris.Context) {
	sessionID, err := uuid.Parse(ctx.Params().Get("sessionID"))
	if err != nil {
		respondError(ctx, iris.StatusBadRequest, "invalid session id")
		return
	}

	var req cancelSessionRequest
	if err := ctx.ReadJSON(&req); err != nil {
		respondError(ctx, iris.StatusBadRequest, err.Error())
		return
	}
	actorID, _ := uuid.Parse(req.ActorID)

	if err := h.orchestrator.Cancel(ctx, sessionID, actorID, req.Reason); err != nil {
		respondDomainError(ctx, err)
		return
	}
	ctx.StatusCode(iris.StatusNoContent)
}

// GET /coaches/{id}/sessions?from=&to=&page=&page_size=
func (h *Handlers) listSessions(ctx iris.Context) {
	coachID := ctx.Params().Get("coachID")

	from, err := time.Parse(time.RFC3339, ctx.URLParamDefault("from", time.Now().UTC().Format(time.RFC3339)))
	if err != nil {
		respondError(ctx, iris.StatusBadRequest, "from must be RFC 3339")
		return
	}
	to, err := time.Parse(time.RFC3339, ctx.URLParamDefault("to", from.Add(30*24*time.Hour).Format(time.RFC3339)))
	if err != nil {
		respondError(ctx, iris.StatusBadRequest, "to must be RFC 3339")
		return
	}

	page, pageSize, offset := pageParams(
		ctx.URLParamIntDefault("page", 1),
		ctx.URLParamIntDefault("page_size", defaultPageSize),
	)

	sessions, total, err := h.sessions.ListByCoachRange(ctx, coachID, from, to, pageSize, offset)
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	ctx.JSON(pageOf(sessions, page, pageSize, total))
}
