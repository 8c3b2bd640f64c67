package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/availability"
	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
	"github.com/coachbridge/coachcal/internal/token"
)

var (
	// Слот ушёл: гонка проиграна провайдеру или внутреннему конфликту.
	ErrSlotTaken = errors.New("slot no longer available")
	// Отмена ближе суток до начала запрещена политикой.
	ErrCancellationWindow = errors.New("cancellation window violation: less than 24h before start")
	// Действующее лицо — не участник сессии.
	ErrNotOwner = errors.New("actor is not a session participant")
	// Статус сессии не допускает операцию.
	ErrInvalidStatus   = errors.New("session status does not allow this operation")
	ErrSessionNotFound = errors.New("session not found")
)

// Окно, внутри которого отмена запрещена.
const cancellationCutoff = 24 * time.Hour

// Кусок клиента провайдера, нужный оркестратору.
type ProviderAPI interface {
	BusyTimes(ctx context.Context, accessToken string, eventTypeID int64, dateFrom, dateTo time.Time) ([]provider.BusyTime, error)
	CreateBooking(ctx context.Context, accessToken string, req *provider.CreateBookingRequest) (*provider.Booking, error)
	CancelBooking(ctx context.Context, accessToken, bookingUID, reason string) error
}

// CreateRequest — заявка на бронирование слота.
type CreateRequest struct {
	CoachID  uuid.UUID
	MenteeID uuid.UUID

	Start       time.Time
	DurationMin int

	AttendeeName     string
	AttendeeEmail    string
	AttendeeTimeZone string
}

// Orchestrator ведёт бронирование через три системы записи:
// внутреннюю Session, зеркало CalBooking и провайдера. Сага
// Validated → ProviderConfirmed → Persisted с компенсацией на отказе.
type Orchestrator struct {
	db           *gorm.DB
	schedules    repository.ScheduleRepository
	sessions     repository.SessionRepository
	calBookings  repository.CalBookingRepository
	integrations repository.IntegrationRepository
	events       repository.SyncEventRepository
	tokens       token.Source
	api          ProviderAPI
	providerName string

	// Подменяется в тестах.
	now func() time.Time
}

func NewOrchestrator(
	db *gorm.DB,
	schedules repository.ScheduleRepository,
	sessions repository.SessionRepository,
	calBookings repository.CalBookingRepository,
	integrations repository.IntegrationRepository,
	events repository.SyncEventRepository,
	tokens token.Source,
	api ProviderAPI,
	providerName string,
) *Orchestrator {
	return &Orchestrator{
		db:           db,
		schedules:    schedules,
		sessions:     sessions,
		calBookings:  calBookings,
		integrations: integrations,
		events:       events,
		tokens:       tokens,
		api:          api,
		providerName: providerName,
		now:          time.Now,
	}
}

// Create бронирует слот. До записи у провайдера никакие внутренние
// строки не создаются; после подтверждения провайдером Session и
// CalBooking пишутся одной транзакцией, иначе созданное бронирование
// компенсируется отменой.
func (o *Orchestrator) Create(ctx context.Context, req *CreateRequest) (*model.Session, error) {
	coachID := req.CoachID.String()

	schedule, err := o.schedules.GetDefaultByCoach(ctx, coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("coach has no active default schedule")
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	integ, err := o.integrations.GetByCoach(ctx, coachID, o.providerName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrNotConnected
		}
		return nil, fmt.Errorf("load integration: %w", err)
	}

	duration := req.DurationMin
	if duration == 0 {
		duration = schedule.DefaultDuration
	}
	end := req.Start.Add(time.Duration(duration) * time.Minute)

	// Validated: клиенту не верим, слот пересчитывается по свежим
	// busy-интервалам. Проверка советующая — финальный арбитр провайдер.
	if err := o.validateSlot(ctx, schedule, integ, req.Start, duration); err != nil {
		return nil, err
	}

	conflicts, err := o.sessions.ListOverlapping(ctx, coachID, req.MenteeID.String(), req.Start, end)
	if err != nil {
		return nil, fmt.Errorf("check internal conflicts: %w", err)
	}
	if len(conflicts) > 0 {
		return nil, ErrSlotTaken
	}

	// ProviderConfirmed: отказ провайдера — отказ всей операции,
	// внутренних следов не остаётся.
	var confirmed *provider.Booking
	err = token.WithAuthRetry(ctx, o.tokens, coachID, func(accessToken string) error {
		var apiErr error
		confirmed, apiErr = o.api.CreateBooking(ctx, accessToken, &provider.CreateBookingRequest{
			Start:       req.Start.UTC(),
			EventTypeID: integ.ExternalEventTypeID,
			LengthInMin: duration,
			Attendee: provider.Attendee{
				Name:     req.AttendeeName,
				Email:    req.AttendeeEmail,
				TimeZone: req.AttendeeTimeZone,
			},
			Metadata: map[string]string{"source": "coachbridge"},
		})
		return apiErr
	})
	if err != nil {
		var pe *provider.Error
		if errors.As(err, &pe) && pe.Rejected() {
			return nil, fmt.Errorf("%w: %s", ErrSlotTaken, pe.Message)
		}
		return nil, err
	}

	// Persisted: сессия и зеркало одной транзакцией.
	session := &model.Session{
		ID:          uuid.New(),
		CoachID:     req.CoachID,
		MenteeID:    req.MenteeID,
		StartsAt:    req.Start.UTC(),
		EndsAt:      end.UTC(),
		DurationMin: duration,
		Status:      model.SessionStatusScheduled,
	}
	mirror := &model.CalBooking{
		ID:            uuid.New(),
		SessionID:     session.ID,
		CalBookingUID: confirmed.UID,
		Status:        model.CalBookingStatusAccepted,
	}

	txErr := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		return tx.Create(mirror).Error
	})
	if txErr != nil {
		o.compensateCreate(ctx, coachID, confirmed.UID, txErr)
		return nil, fmt.Errorf("persist booking: %w", txErr)
	}

	// Ключ совпадает с ключом вебхука BOOKING_CREATED: его доставка
	// по этому бронированию станет no-op.
	sessionID := session.ID
	o.recordEvent(ctx, &model.SyncEvent{
		EventType:  model.SyncEventBookingCreated,
		BookingUID: confirmed.UID,
		DedupeKey:  string(model.SyncEventBookingCreated) + ":" + confirmed.UID,
		SessionID:  &sessionID,
		CoachID:    &req.CoachID,
	})

	log.Printf("[booking] created session %s (provider uid %s)", session.ID, confirmed.UID)
	return session, nil
}

// Cancel отменяет сессию. Порядок строгий: сначала провайдер по
// нативному UID, затем оба внутренних статуса. Отказ или таймаут
// провайдера не меняет внутреннее состояние.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID, actorID uuid.UUID, reason string) error {
	session, err := o.sessions.GetByID(ctx, sessionID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}

	if actorID != session.CoachID && actorID != session.MenteeID {
		return ErrNotOwner
	}
	if session.Status != model.SessionStatusScheduled ||
		!session.Status.CanTransition(model.SessionStatusCancelled) {
		return ErrInvalidStatus
	}
	if session.StartsAt.Sub(o.now()) < cancellationCutoff {
		return ErrCancellationWindow
	}

	mirror, err := o.calBookings.GetBySessionID(ctx, sessionID.String())
	if err != nil {
		return fmt.Errorf("resolve provider booking: %w", err)
	}

	coachID := session.CoachID.String()
	err = token.WithAuthRetry(ctx, o.tokens, coachID, func(accessToken string) error {
		return o.api.CancelBooking(ctx, accessToken, mirror.CalBookingUID, reason)
	})
	if err != nil {
		// Никакого частично отменённого состояния: оба статуса целы,
		// вызывающий может повторить.
		return err
	}

	cancelledAt := o.now().UTC()
	actor := actorID.String()
	txErr := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.Session{}).
			Where("id = ?", sessionID.String()).
			Updates(map[string]any{
				"status":        model.SessionStatusCancelled,
				"cancel_reason": reason,
				"cancelled_by":  actor,
				"cancelled_at":  cancelledAt,
			}).Error
		if err != nil {
			return err
		}
		return tx.Model(&model.CalBooking{}).
			Where("id = ?", mirror.ID.String()).
			Update("status", model.CalBookingStatusCancelled).
			Error
	})
	if txErr != nil {
		// Провайдер уже отменил; расхождение чинится вебхуком
		// BOOKING_CANCELLED или ручной сверкой по журналу.
		o.recordAnomaly(ctx, mirror.CalBookingUID, "provider cancelled but internal update failed: "+txErr.Error())
		return fmt.Errorf("persist cancellation: %w", txErr)
	}

	o.recordEvent(ctx, &model.SyncEvent{
		EventType:  model.SyncEventBookingCancelled,
		BookingUID: mirror.CalBookingUID,
		DedupeKey:  string(model.SyncEventBookingCancelled) + ":" + mirror.CalBookingUID,
		SessionID:  &session.ID,
		CoachID:    &session.CoachID,
		Details:    reason,
	})

	log.Printf("[booking] cancelled session %s (provider uid %s)", sessionID, mirror.CalBookingUID)
	return nil
}

// validateSlot пересчитывает слоты даты по свежим busy-интервалам и
// проверяет, что запрошенное начало всё ещё среди кандидатов.
func (o *Orchestrator) validateSlot(
	ctx context.Context,
	schedule *model.CoachingSchedule,
	integ *model.CalendarIntegration,
	start time.Time,
	duration int,
) error {
	dayFrom := start.Add(-24 * time.Hour)
	dayTo := start.Add(48 * time.Hour)

	var busyTimes []provider.BusyTime
	err := token.WithAuthRetry(ctx, o.tokens, integ.CoachID.String(), func(accessToken string) error {
		var apiErr error
		busyTimes, apiErr = o.api.BusyTimes(ctx, accessToken, integ.ExternalEventTypeID, dayFrom, dayTo)
		return apiErr
	})
	if err != nil {
		return err
	}

	busy := make([]availability.TimeRange, 0, len(busyTimes))
	for _, b := range busyTimes {
		busy = append(busy, availability.TimeRange{Start: b.Start, End: b.End})
	}

	days, err := availability.ComputeSlots(schedule, busy, start, start, duration, o.now())
	if err != nil {
		return err
	}
	for _, day := range days {
		for _, slot := range day.Slots {
			if slot.Start.Equal(start) {
				return nil
			}
		}
	}
	return ErrSlotTaken
}

// compensateCreate отменяет только что созданное у провайдера
// бронирование после провала внутренней записи.
func (o *Orchestrator) compensateCreate(ctx context.Context, coachID, bookingUID string, cause error) {
	err := token.WithAuthRetry(ctx, o.tokens, coachID, func(accessToken string) error {
		return o.api.CancelBooking(ctx, accessToken, bookingUID, "internal persistence failure")
	})
	if err != nil {
		// Компенсация не прошла: бронирование висит у провайдера без
		// внутренней пары. Фиксируем для ручной сверки.
		o.recordAnomaly(ctx, bookingUID,
			fmt.Sprintf("orphaned provider booking: persist failed (%v), compensation failed (%v)", cause, err))
		log.Printf("[booking] compensation failed for uid %s: %v", bookingUID, err)
		return
	}
	log.Printf("[booking] compensated provider booking %s after persist failure", bookingUID)
}

func (o *Orchestrator) recordAnomaly(ctx context.Context, bookingUID, details string) {
	o.recordEvent(ctx, &model.SyncEvent{
		EventType:  model.SyncEventAnomaly,
		BookingUID: bookingUID,
		DedupeKey:  string(model.SyncEventAnomaly) + ":" + bookingUID + ":" + fmt.Sprint(o.now().UnixNano()),
		Details:    details,
	})
}

func (o *Orchestrator) recordEvent(ctx context.Context, event *model.SyncEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, err := o.events.Record(ctx, event); err != nil {
		log.Printf("[booking] record event %s: %v", event.EventType, err)
	}
}
