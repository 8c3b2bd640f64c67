package calsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
)

type staticTokens struct{}

func (staticTokens) EnsureValidToken(ctx context.Context, coachID string) (string, error) {
	return "tok", nil
}

func (staticTokens) ForceRefresh(ctx context.Context, coachID string) (string, error) {
	return "tok2", nil
}

type fakeScheduleAPI struct {
	remote *provider.Schedule

	getCalls    int
	createCalls int
	updateCalls int
	updated     *provider.Schedule
}

func (f *fakeScheduleAPI) GetSchedule(ctx context.Context, accessToken string, scheduleID int64) (*provider.Schedule, error) {
	f.getCalls++
	if f.remote == nil {
		return nil, &provider.Error{StatusCode: 404, Message: "no such schedule"}
	}
	return f.remote, nil
}

func (f *fakeScheduleAPI) CreateSchedule(ctx context.Context, accessToken string, schedule *provider.Schedule) (*provider.Schedule, error) {
	f.createCalls++
	created := *schedule
	created.ID = 555
	return &created, nil
}

func (f *fakeScheduleAPI) UpdateSchedule(ctx context.Context, accessToken string, scheduleID int64, schedule *provider.Schedule) (*provider.Schedule, error) {
	f.updateCalls++
	f.updated = schedule
	return schedule, nil
}

var syncSchema = []string{
	`CREATE TABLE coaching_schedules (
		id TEXT PRIMARY KEY,
		coach_id TEXT NOT NULL,
		external_id INTEGER,
		name TEXT NOT NULL,
		time_zone TEXT NOT NULL,
		availability TEXT,
		overrides TEXT,
		is_default INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		default_duration INTEGER NOT NULL DEFAULT 60,
		minimum_duration INTEGER NOT NULL DEFAULT 30,
		maximum_duration INTEGER NOT NULL DEFAULT 120,
		allow_custom_duration INTEGER NOT NULL DEFAULT 0,
		buffer_before INTEGER NOT NULL DEFAULT 0,
		buffer_after INTEGER NOT NULL DEFAULT 0,
		slot_interval INTEGER NOT NULL DEFAULT 0,
		minimum_notice INTEGER NOT NULL DEFAULT 0,
		sync_source TEXT NOT NULL DEFAULT 'internal',
		last_synced_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE calendar_integrations (
		id TEXT PRIMARY KEY,
		coach_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		external_user_id INTEGER NOT NULL,
		external_username TEXT,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		access_token_expires_at DATETIME,
		external_default_schedule_id INTEGER,
		external_event_type_id INTEGER NOT NULL DEFAULT 0,
		time_zone TEXT,
		locale TEXT,
		week_start TEXT,
		sync_enabled INTEGER NOT NULL DEFAULT 1,
		last_synced_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(coach_id, provider)
	);`,
}

func newSyncFixture(t *testing.T) (*gorm.DB, *Syncer, *fakeScheduleAPI, uuid.UUID) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range syncSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	coachID := uuid.New()
	extScheduleID := int64(777)
	exp := time.Now().Add(time.Hour)
	if err := db.Create(&model.CalendarIntegration{
		ID:                        uuid.New(),
		CoachID:                   coachID,
		Provider:                  "cal",
		ExternalUserID:            7,
		AccessToken:               "tok",
		RefreshToken:              "ref",
		AccessTokenExpiresAt:      &exp,
		ExternalDefaultScheduleID: &extScheduleID,
	}).Error; err != nil {
		t.Fatalf("seed integration: %v", err)
	}

	api := &fakeScheduleAPI{}
	syncer := NewSyncer(
		repository.NewGormScheduleRepository(db),
		repository.NewGormIntegrationRepository(db),
		staticTokens{},
		api,
		"cal",
	)
	return db, syncer, api, coachID
}

func remoteSchedule() *provider.Schedule {
	return &provider.Schedule{
		ID:        777,
		Name:      "Working Hours",
		TimeZone:  "UTC",
		IsDefault: true,
		Availability: []provider.ScheduleAvailability{
			{Days: []string{"Monday"}, StartTime: "09:00", EndTime: "17:00"},
		},
	}
}

func TestPullSchedule_CreatesLocalCopyOnFirstSync(t *testing.T) {
	db, syncer, api, coachID := newSyncFixture(t)
	api.remote = remoteSchedule()

	schedule, err := syncer.PullSchedule(context.Background(), coachID.String())
	if err != nil {
		t.Fatalf("PullSchedule: %v", err)
	}
	if schedule.ExternalID == nil || *schedule.ExternalID != 777 {
		t.Errorf("external id not captured: %v", schedule.ExternalID)
	}
	if schedule.SyncSource != model.SyncSourceExternal {
		t.Errorf("sync source = %s", schedule.SyncSource)
	}
	// Политики длительности локальные, провайдер их не задаёт.
	if schedule.DefaultDuration != 60 || schedule.MinimumDuration != 30 {
		t.Errorf("duration policy defaults missing: %+v", schedule)
	}
	// Момент синхронизации ставится уже при первом pull, иначе
	// последующие локальные правки не распознаются как расхождение.
	if schedule.LastSyncedAt == nil {
		t.Errorf("last_synced_at not set on first sync")
	}

	var count int64
	db.Model(&model.CoachingSchedule{}).Count(&count)
	if count != 1 {
		t.Errorf("schedules = %d, want 1", count)
	}
}

func TestPullSchedule_NoChangesIsNoOp(t *testing.T) {
	_, syncer, api, coachID := newSyncFixture(t)
	api.remote = remoteSchedule()

	first, err := syncer.PullSchedule(context.Background(), coachID.String())
	if err != nil {
		t.Fatalf("first pull: %v", err)
	}
	second, err := syncer.PullSchedule(context.Background(), coachID.String())
	if err != nil {
		t.Fatalf("second pull: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second pull must return the same row")
	}
}

func TestPullSchedule_ConflictWhenBothSidesDiverged(t *testing.T) {
	db, syncer, api, coachID := newSyncFixture(t)
	api.remote = remoteSchedule()

	schedule, err := syncer.PullSchedule(context.Background(), coachID.String())
	if err != nil {
		t.Fatalf("initial pull: %v", err)
	}

	// Локальная правка после синхронизации...
	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&model.CoachingSchedule{}).
		Where("id = ?", schedule.ID.String()).
		Updates(map[string]any{
			"sync_source":    model.SyncSourceInternal,
			"last_synced_at": past,
			"updated_at":     time.Now().UTC(),
		}).Error; err != nil {
		t.Fatalf("mark local edit: %v", err)
	}

	// ...и одновременно другое расписание у провайдера.
	api.remote.Name = "New Remote Name"

	if _, err := syncer.PullSchedule(context.Background(), coachID.String()); !errors.Is(err, ErrSyncConflict) {
		t.Fatalf("err = %v, want ErrSyncConflict", err)
	}
}

func TestPullSchedule_ConflictWhenLocalEditHasNoSyncMark(t *testing.T) {
	db, syncer, api, coachID := newSyncFixture(t)
	api.remote = remoteSchedule()

	schedule, err := syncer.PullSchedule(context.Background(), coachID.String())
	if err != nil {
		t.Fatalf("initial pull: %v", err)
	}

	// Локальная правка без отметки синхронизации: возраст правки
	// неизвестен, перезаписывать её расписанием провайдера нельзя.
	if err := db.Model(&model.CoachingSchedule{}).
		Where("id = ?", schedule.ID.String()).
		Updates(map[string]any{
			"name":           "Hand-Tuned Hours",
			"sync_source":    model.SyncSourceInternal,
			"last_synced_at": nil,
		}).Error; err != nil {
		t.Fatalf("mark local edit: %v", err)
	}

	api.remote.Name = "New Remote Name"

	if _, err := syncer.PullSchedule(context.Background(), coachID.String()); !errors.Is(err, ErrSyncConflict) {
		t.Fatalf("err = %v, want ErrSyncConflict", err)
	}

	var stored model.CoachingSchedule
	db.First(&stored, "id = ?", schedule.ID.String())
	if stored.Name != "Hand-Tuned Hours" {
		t.Errorf("local edit overwritten, name = %q", stored.Name)
	}
}

func TestPushSchedule_CreatesRemoteOnFirstPush(t *testing.T) {
	db, syncer, api, coachID := newSyncFixture(t)

	schedule := &model.CoachingSchedule{
		ID:       uuid.New(),
		CoachID:  coachID,
		Name:     "Local Only",
		TimeZone: "UTC",
		Availability: datatypes.NewJSONType([]model.WeeklySlot{
			{Days: []string{"Tuesday"}, StartTime: "10:00", EndTime: "14:00"},
		}),
		IsDefault:       true,
		Active:          true,
		DefaultDuration: 60,
		MinimumDuration: 30,
		MaximumDuration: 120,
		SyncSource:      model.SyncSourceInternal,
	}
	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	if err := syncer.PushSchedule(context.Background(), schedule.ID.String()); err != nil {
		t.Fatalf("PushSchedule: %v", err)
	}
	if api.createCalls != 1 {
		t.Errorf("create calls = %d, want 1", api.createCalls)
	}

	var stored model.CoachingSchedule
	db.First(&stored, "id = ?", schedule.ID.String())
	if stored.ExternalID == nil || *stored.ExternalID != 555 {
		t.Errorf("external id after push = %v, want 555", stored.ExternalID)
	}
	if stored.LastSyncedAt == nil {
		t.Errorf("last_synced_at not set after push")
	}
}

func TestPushSchedule_SkipsUpdateWhenRemoteMatches(t *testing.T) {
	db, syncer, api, coachID := newSyncFixture(t)
	api.remote = remoteSchedule()

	ext := int64(777)
	schedule := &model.CoachingSchedule{
		ID:         uuid.New(),
		CoachID:    coachID,
		ExternalID: &ext,
		Name:       "Working Hours",
		TimeZone:   "UTC",
		Availability: datatypes.NewJSONType([]model.WeeklySlot{
			{Days: []string{"Monday"}, StartTime: "09:00", EndTime: "17:00"},
		}),
		IsDefault:       true,
		Active:          true,
		DefaultDuration: 60,
		MinimumDuration: 30,
		MaximumDuration: 120,
		SyncSource:      model.SyncSourceInternal,
	}
	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	if err := syncer.PushSchedule(context.Background(), schedule.ID.String()); err != nil {
		t.Fatalf("PushSchedule: %v", err)
	}
	if api.updateCalls != 0 {
		t.Errorf("update calls = %d, want 0 for identical schedules", api.updateCalls)
	}
}
