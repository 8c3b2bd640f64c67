package routes

import (
	"errors"

	"github.com/kataras/iris/v12"
	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/availability"
	"github.com/coachbridge/coachcal/internal/booking"
	"github.com/coachbridge/coachcal/internal/calsync"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/token"
)

// Единый конверт ошибки для всех ручек.
func respondError(ctx iris.Context, status int, message string) {
	ctx.StopWithJSON(status, iris.Map{"error": iris.Map{"message": message}})
}

// respondDomainError переводит доменные ошибки в HTTP-статусы.
// Неопознанные ошибки — 500 без деталей наружу.
func respondDomainError(ctx iris.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrSessionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		respondError(ctx, iris.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrNotOwner):
		respondError(ctx, iris.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrSlotTaken),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, calsync.ErrSyncConflict):
		respondError(ctx, iris.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrCancellationWindow),
		errors.Is(err, availability.ErrDurationOutOfRange),
		errors.Is(err, availability.ErrUnknownTimeZone):
		respondError(ctx, iris.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, token.ErrNotConnected):
		respondError(ctx, iris.StatusPreconditionFailed, err.Error())
	default:
		var pe *provider.Error
		if errors.As(err, &pe) && pe.Unavailable() {
			respondError(ctx, iris.StatusBadGateway, "calendar provider unavailable")
			return
		}
		ctx.Application().Logger().Errorf("internal error: %v", err)
		respondError(ctx, iris.StatusInternalServerError, "internal error")
	}
}
