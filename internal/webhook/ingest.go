package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
)

// Ingestor принимает асинхронные события провайдера и приводит
// внутреннее состояние в соответствие. Обработка идемпотентна:
// повторная доставка события упирается в ключ дедупликации журнала.
type Ingestor struct {
	db          *gorm.DB
	calBookings repository.CalBookingRepository
	sessions    repository.SessionRepository
}

func NewIngestor(
	db *gorm.DB,
	calBookings repository.CalBookingRepository,
	sessions repository.SessionRepository,
) *Ingestor {
	return &Ingestor{
		db:          db,
		calBookings: calBookings,
		sessions:    sessions,
	}
}

// Handle обрабатывает одно событие. Ошибка возвращается только при
// инфраструктурном сбое (провайдер повторит доставку); незнакомые
// бронирования и отвергнутые переходы подтверждаются без применения.
func (i *Ingestor) Handle(ctx context.Context, event *provider.WebhookEvent) error {
	eventType, ok := mapTrigger(event.TriggerEvent)
	if !ok {
		log.Printf("[webhook] ignoring unknown trigger %q", event.TriggerEvent)
		return nil
	}

	uid := event.Payload.BookingUID
	if uid == "" {
		log.Printf("[webhook] %s without booking uid, ignoring", event.TriggerEvent)
		return nil
	}

	mirror, err := i.calBookings.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Бронирование вне нашей зоны ответственности — не ошибка.
			return nil
		}
		return fmt.Errorf("lookup booking %s: %w", uid, err)
	}

	session, err := i.sessions.GetByID(ctx, mirror.SessionID.String())
	if err != nil {
		return fmt.Errorf("load session for %s: %w", uid, err)
	}

	// Журнал — ключ идемпотентности: событие применяется только при
	// первой записи. Внутренне инициированные операции пишут тот же
	// ключ заранее, так что их вебхуки — no-op. Запись в журнал и
	// применение идут одной транзакцией: провалившееся применение
	// откатывает и ключ, иначе повторная доставка упёрлась бы в
	// дедупликацию и эффект события пропал бы навсегда.
	sessionID := session.ID
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := repository.NewGormSyncEventRepository(tx).Record(ctx, &model.SyncEvent{
			ID:         uuid.New(),
			EventType:  eventType,
			BookingUID: uid,
			DedupeKey:  dedupeKey(eventType, event),
			SessionID:  &sessionID,
			CoachID:    &session.CoachID,
		})
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		if !applied {
			return nil
		}

		switch eventType {
		case model.SyncEventBookingCreated:
			// Зеркало уже создано оркестратором; чиним только статус.
			if mirror.Status != model.CalBookingStatusAccepted {
				return repository.NewGormCalBookingRepository(tx).
					UpdateStatus(ctx, mirror.ID.String(), model.CalBookingStatusAccepted)
			}
			return nil

		case model.SyncEventBookingCancelled:
			return i.applyCancellation(ctx, tx, session, mirror)

		case model.SyncEventBookingRescheduled:
			return i.applyReschedule(ctx, tx, session, event)
		}
		return nil
	})
}

// Однажды отменённое остаётся отменённым: внутренняя политика отмены
// авторитетна, событие назад по машине состояний не применяется.
func (i *Ingestor) applyCancellation(ctx context.Context, tx *gorm.DB, session *model.Session, mirror *model.CalBooking) error {
	if session.Status == model.SessionStatusCancelled {
		return nil
	}
	if !session.Status.CanTransition(model.SessionStatusCancelled) {
		i.recordAnomaly(ctx, tx, mirror.CalBookingUID,
			fmt.Sprintf("provider cancellation rejected: session %s is %s", session.ID, session.Status))
		return nil
	}

	err := tx.Model(&model.Session{}).
		Where("id = ?", session.ID.String()).
		Updates(map[string]any{
			"status":        model.SessionStatusCancelled,
			"cancel_reason": "cancelled via provider",
		}).Error
	if err != nil {
		return err
	}
	return tx.Model(&model.CalBooking{}).
		Where("id = ?", mirror.ID.String()).
		Update("status", model.CalBookingStatusCancelled).
		Error
}

func (i *Ingestor) applyReschedule(ctx context.Context, tx *gorm.DB, session *model.Session, event *provider.WebhookEvent) error {
	if session.Status.Terminal() {
		i.recordAnomaly(ctx, tx, event.Payload.BookingUID,
			fmt.Sprintf("provider reschedule rejected: session %s is %s", session.ID, session.Status))
		return nil
	}

	start := event.Payload.StartTime.UTC()
	end := event.Payload.EndTime.UTC()
	if !end.After(start) {
		i.recordAnomaly(ctx, tx, event.Payload.BookingUID, "reschedule with invalid time range")
		return nil
	}

	return tx.Model(&model.Session{}).
		Where("id = ?", session.ID.String()).
		Updates(map[string]any{
			"starts_at":    start,
			"ends_at":      end,
			"duration_min": int(end.Sub(start).Minutes()),
			"status":       model.SessionStatusScheduled,
		}).Error
}

// ReconcileReport — итог сверки зеркал с бронированиями провайдера.
type ReconcileReport struct {
	Checked     int      `json:"checked"`
	Missing     []string `json:"missing"`
	StatusDrift []string `json:"statusDrift"`
}

// Reconcile сверяет список бронирований провайдера с внутренними
// зеркалами. Расхождения фиксируются в журнале аномалий, состояние
// не меняется: решение о починке за оператором.
func (i *Ingestor) Reconcile(ctx context.Context, bookings []provider.Booking) (*ReconcileReport, error) {
	report := &ReconcileReport{
		Missing:     []string{},
		StatusDrift: []string{},
	}

	for _, b := range bookings {
		if b.UID == "" {
			continue
		}
		report.Checked++

		mirror, err := i.calBookings.GetByUID(ctx, b.UID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				report.Missing = append(report.Missing, b.UID)
				i.recordAnomaly(ctx, i.db, b.UID, "provider booking has no internal mirror")
				continue
			}
			return nil, fmt.Errorf("lookup booking %s: %w", b.UID, err)
		}

		cancelledRemotely := b.Status == "cancelled"
		cancelledLocally := mirror.Status == model.CalBookingStatusCancelled
		if cancelledRemotely != cancelledLocally {
			report.StatusDrift = append(report.StatusDrift, b.UID)
			i.recordAnomaly(ctx, i.db, b.UID,
				fmt.Sprintf("status drift: provider %s, mirror %s", b.Status, mirror.Status))
		}
	}

	return report, nil
}

// db позволяет писать аномалию в той же транзакции, что и ключ
// дедупликации отвергнутого события.
func (i *Ingestor) recordAnomaly(ctx context.Context, db *gorm.DB, uid, details string) {
	log.Printf("[webhook] anomaly for %s: %s", uid, details)
	_, err := repository.NewGormSyncEventRepository(db).Record(ctx, &model.SyncEvent{
		ID:         uuid.New(),
		EventType:  model.SyncEventAnomaly,
		BookingUID: uid,
		DedupeKey:  string(model.SyncEventAnomaly) + ":" + uid + ":" + details,
		Details:    details,
	})
	if err != nil {
		log.Printf("[webhook] record anomaly: %v", err)
	}
}

func mapTrigger(trigger string) (model.SyncEventType, bool) {
	switch trigger {
	case provider.TriggerBookingCreated:
		return model.SyncEventBookingCreated, true
	case provider.TriggerBookingRescheduled:
		return model.SyncEventBookingRescheduled, true
	case provider.TriggerBookingCancelled:
		return model.SyncEventBookingCancelled, true
	}
	return "", false
}

// Ключ дедупликации. Создание и отмена случаются один раз на
// бронирование; переносов может быть несколько, поэтому ключ
// расширяется временем события.
func dedupeKey(eventType model.SyncEventType, event *provider.WebhookEvent) string {
	key := string(eventType) + ":" + event.Payload.BookingUID
	if eventType == model.SyncEventBookingRescheduled {
		// Без createdAt нулевая метка склеила бы все переносы
		// бронирования в один ключ; различаем их новым началом.
		ts := event.CreatedAt
		if ts.IsZero() {
			ts = event.Payload.StartTime
		}
		key += ":" + fmt.Sprint(ts.UTC().Unix())
	}
	return key
}
