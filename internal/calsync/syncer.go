package calsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
	"github.com/coachbridge/coachcal/internal/token"
)

// Обе стороны изменились с последней синхронизации: слепая перезапись
// запрещена, требуется ручная сверка.
var ErrSyncConflict = errors.New("schedule diverged on both sides since last sync")

// Кусок клиента провайдера, нужный синхронизатору.
type ScheduleAPI interface {
	GetSchedule(ctx context.Context, accessToken string, scheduleID int64) (*provider.Schedule, error)
	CreateSchedule(ctx context.Context, accessToken string, schedule *provider.Schedule) (*provider.Schedule, error)
	UpdateSchedule(ctx context.Context, accessToken string, scheduleID int64, schedule *provider.Schedule) (*provider.Schedule, error)
}

// Syncer гоняет расписания между провайдером и внутренней БД
// через маппер с раздельным владением полями.
type Syncer struct {
	schedules    repository.ScheduleRepository
	integrations repository.IntegrationRepository
	tokens       token.Source
	api          ScheduleAPI
	providerName string
}

func NewSyncer(
	schedules repository.ScheduleRepository,
	integrations repository.IntegrationRepository,
	tokens token.Source,
	api ScheduleAPI,
	providerName string,
) *Syncer {
	return &Syncer{
		schedules:    schedules,
		integrations: integrations,
		tokens:       tokens,
		api:          api,
		providerName: providerName,
	}
}

// PullSchedule затягивает дефолтное расписание коуча от провайдера.
// Без изменений — no-op без обновления lastSyncedAt. Если с последней
// синхронизации разошлись обе стороны — ErrSyncConflict.
func (s *Syncer) PullSchedule(ctx context.Context, coachID string) (*model.CoachingSchedule, error) {
	integ, err := s.integrations.GetByCoach(ctx, coachID, s.providerName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrNotConnected
		}
		return nil, fmt.Errorf("load integration: %w", err)
	}
	if integ.ExternalDefaultScheduleID == nil {
		return nil, fmt.Errorf("integration has no default schedule id")
	}

	var ext *provider.Schedule
	err = token.WithAuthRetry(ctx, s.tokens, coachID, func(accessToken string) error {
		var apiErr error
		ext, apiErr = s.api.GetSchedule(ctx, accessToken, *integ.ExternalDefaultScheduleID)
		return apiErr
	})
	if err != nil {
		return nil, err
	}

	existing, err := s.schedules.GetByExternalID(ctx, ext.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	if existing == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		created := ToInternal(ext, integ.CoachID, nil)
		created.SyncSource = model.SyncSourceExternal
		// Копия только что взята у провайдера: момент синхронизации
		// ставится сразу, иначе затвор конфликтов ниже слеп к локальным
		// правкам, сделанным после первого pull.
		syncedAt := time.Now().UTC()
		created.LastSyncedAt = &syncedAt
		if err := s.schedules.Create(ctx, created); err != nil {
			return nil, fmt.Errorf("create schedule: %w", err)
		}
		return created, nil
	}

	if !HasChanges(existing, ext) {
		return existing, nil
	}

	// Локальные правки после последней синхронизации + расхождение у
	// провайдера: ни одна из сторон не может молча победить. Правленая
	// локально запись без отметки синхронизации тоже считается
	// разошедшейся.
	if existing.SyncSource == model.SyncSourceInternal &&
		(existing.LastSyncedAt == nil || existing.UpdatedAt.After(*existing.LastSyncedAt)) {
		return nil, ErrSyncConflict
	}

	updated := ToInternal(ext, integ.CoachID, existing)
	updated.SyncSource = model.SyncSourceExternal
	if err := s.schedules.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	if err := s.schedules.TouchSync(ctx, updated.ID.String(), model.SyncSourceExternal, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("touch sync: %w", err)
	}
	log.Printf("[calsync] pulled schedule %d for coach %s", ext.ID, coachID)
	return updated, nil
}

// PushSchedule выталкивает локальные правки расписания провайдеру.
// HasChanges служит затвором от холостых записей.
func (s *Syncer) PushSchedule(ctx context.Context, scheduleID string) error {
	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}
	coachID := schedule.CoachID.String()
	payload := ToExternalPayload(schedule)

	// Первый пуш: расписания у провайдера ещё нет.
	if schedule.ExternalID == nil {
		var created *provider.Schedule
		err = token.WithAuthRetry(ctx, s.tokens, coachID, func(accessToken string) error {
			var apiErr error
			created, apiErr = s.api.CreateSchedule(ctx, accessToken, payload)
			return apiErr
		})
		if err != nil {
			return err
		}
		schedule.ExternalID = &created.ID
		schedule.SyncSource = model.SyncSourceInternal
		if err := s.schedules.Update(ctx, schedule); err != nil {
			return fmt.Errorf("store external id: %w", err)
		}
		return s.schedules.TouchSync(ctx, scheduleID, model.SyncSourceInternal, time.Now().UTC())
	}

	var remote *provider.Schedule
	err = token.WithAuthRetry(ctx, s.tokens, coachID, func(accessToken string) error {
		var apiErr error
		remote, apiErr = s.api.GetSchedule(ctx, accessToken, *schedule.ExternalID)
		return apiErr
	})
	if err != nil {
		return err
	}

	if !HasChanges(schedule, remote) {
		return nil
	}

	err = token.WithAuthRetry(ctx, s.tokens, coachID, func(accessToken string) error {
		_, apiErr := s.api.UpdateSchedule(ctx, accessToken, *schedule.ExternalID, payload)
		return apiErr
	})
	if err != nil {
		return err
	}

	log.Printf("[calsync] pushed schedule %s to provider", scheduleID)
	return s.schedules.TouchSync(ctx, scheduleID, model.SyncSourceInternal, time.Now().UTC())
}
