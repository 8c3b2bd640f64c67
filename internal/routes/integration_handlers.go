package routes

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
)

// GET /integrations/cal/connect?coach_id=
//
// Редирект на страницу согласия провайдера. coach_id едет в state и
// возвращается в callback.
func (h *Handlers) connect(ctx iris.Context) {
	coachID := ctx.URLParam("coach_id")
	if _, err := uuid.Parse(coachID); err != nil {
		respondError(ctx, iris.StatusBadRequest, "coach_id must be a uuid")
		return
	}

	url := h.client.OAuthConfig(h.cfg.RedirectURL).AuthCodeURL(coachID)
	ctx.Redirect(url, iris.StatusFound)
}

// GET /integrations/cal/callback?code=&state=
//
// Завершение OAuth-обмена: токены, профиль managed-user'а, привязка
// event type и первичная синхронизация расписания.
func (h *Handlers) callback(ctx iris.Context) {
	code := ctx.URLParam("code")
	coachID, err := uuid.Parse(ctx.URLParam("state"))
	if err != nil || code == "" {
		respondError(ctx, iris.StatusBadRequest, "code and state are required")
		return
	}

	pair, err := h.client.ExchangeAuthCode(ctx, h.cfg.RedirectURL, code)
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	profile, err := h.client.Me(ctx, pair.AccessToken)
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	// Первый event type managed-user'а служит типом коуч-сессии.
	var eventTypeID int64
	if types, err := h.client.EventTypes(ctx, profile.Username); err == nil && len(types) > 0 {
		eventTypeID = types[0].ID
	}

	expiresAt := time.Now().UTC().Add(time.Duration(pair.ExpiresIn) * time.Second)

	integ, err := h.integrations.GetByCoach(ctx, coachID.String(), h.providerName)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		integ = &model.CalendarIntegration{
			ID:                        uuid.New(),
			CoachID:                   coachID,
			Provider:                  h.providerName,
			ExternalUserID:            profile.ID,
			ExternalUsername:          profile.Username,
			AccessToken:               pair.AccessToken,
			RefreshToken:              pair.RefreshToken,
			AccessTokenExpiresAt:      &expiresAt,
			ExternalDefaultScheduleID: profile.DefaultScheduleID,
			ExternalEventTypeID:       eventTypeID,
			TimeZone:                  profile.TimeZone,
			Locale:                    profile.Locale,
			WeekStart:                 profile.WeekStart,
			SyncEnabled:               true,
		}
		if err := h.integrations.Create(ctx, integ); err != nil {
			respondDomainError(ctx, err)
			return
		}
	case err != nil:
		respondDomainError(ctx, err)
		return
	default:
		// Повторное подключение: обновляем профиль и пару токенов.
		integ.ExternalUserID = profile.ID
		integ.ExternalUsername = profile.Username
		integ.AccessToken = pair.AccessToken
		integ.RefreshToken = pair.RefreshToken
		integ.AccessTokenExpiresAt = &expiresAt
		integ.ExternalDefaultScheduleID = profile.DefaultScheduleID
		if eventTypeID != 0 {
			integ.ExternalEventTypeID = eventTypeID
		}
		integ.TimeZone = profile.TimeZone
		integ.Locale = profile.Locale
		integ.WeekStart = profile.WeekStart
		integ.SyncEnabled = true
		if err := h.integrations.Update(ctx, integ); err != nil {
			respondDomainError(ctx, err)
			return
		}
	}

	// Первичная синхронизация не блокирует подключение.
	synced := true
	if _, err := h.syncer.PullSchedule(ctx, coachID.String()); err != nil {
		ctx.Application().Logger().Warnf("initial schedule pull for %s: %v", coachID, err)
		synced = false
	}

	ctx.JSON(iris.Map{
		"connected": true,
		"username":  profile.Username,
		"timeZone":  profile.TimeZone,
		"synced":    synced,
	})
}

// GET /integrations/cal/status?coach_id=
func (h *Handlers) integrationStatus(ctx iris.Context) {
	coachID := ctx.URLParam("coach_id")
	if _, err := uuid.Parse(coachID); err != nil {
		respondError(ctx, iris.StatusBadRequest, "coach_id must be a uuid")
		return
	}

	integ, err := h.integrations.GetByCoach(ctx, coachID, h.providerName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(iris.Map{"connected": false})
			return
		}
		respondDomainError(ctx, err)
		return
	}

	// Привязка личного календаря проверяется живым вызовом: токен может
	// быть отозван на стороне провайдера без нашего ведома.
	calendarLinked := false
	if accessToken, err := h.tokens.EnsureValidToken(ctx, coachID); err == nil {
		if calendars, err := h.client.Calendars(ctx, accessToken); err == nil {
			calendarLinked = len(calendars) > 0
		}
	}

	ctx.JSON(iris.Map{
		"connected":      true,
		"username":       integ.ExternalUsername,
		"timeZone":       integ.TimeZone,
		"syncEnabled":    integ.SyncEnabled,
		"lastSyncedAt":   integ.LastSyncedAt,
		"calendarLinked": calendarLinked,
	})
}

// POST /integrations/cal/reconcile?coach_id=&days=
//
// Сверка зеркал с провайдером за окно вперёд. Расхождения попадают
// в журнал аномалий, отчёт возвращается вызывающему.
func (h *Handlers) reconcile(ctx iris.Context) {
	coachID := ctx.URLParam("coach_id")
	if _, err := uuid.Parse(coachID); err != nil {
		respondError(ctx, iris.StatusBadRequest, "coach_id must be a uuid")
		return
	}
	days := ctx.URLParamIntDefault("days", 30)
	if days < 1 || days > 90 {
		respondError(ctx, iris.StatusBadRequest, "days must be in [1, 90]")
		return
	}

	accessToken, err := h.tokens.EnsureValidToken(ctx, coachID)
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	from := time.Now().UTC()
	bookings, err := h.client.Bookings(ctx, accessToken, from, from.Add(time.Duration(days)*24*time.Hour))
	if err != nil {
		respondDomainError(ctx, err)
		return
	}

	report, err := h.ingestor.Reconcile(ctx, bookings)
	if err != nil {
		respondDomainError(ctx, err)
		return
	}
	ctx.JSON(report)
}
