package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
)

type fakeRefresher struct {
	calls  int
	pair   *provider.TokenPair
	err    error
	onCall func()
}

func (f *fakeRefresher) RefreshTokens(ctx context.Context, refreshToken string) (*provider.TokenPair, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pair, nil
}

func newIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Minimal sqlite-friendly schema for the integration row.
	stmt := `CREATE TABLE calendar_integrations (
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
	);`
	if err := db.Exec(stmt).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedIntegration(t *testing.T, db *gorm.DB, expiresAt *time.Time) *model.CalendarIntegration {
	t.Helper()
	integ := &model.CalendarIntegration{
		ID:                   uuid.New(),
		CoachID:              uuid.New(),
		Provider:             "cal",
		ExternalUserID:       101,
		AccessToken:          "old-access",
		RefreshToken:         "old-refresh",
		AccessTokenExpiresAt: expiresAt,
	}
	if err := db.Create(integ).Error; err != nil {
		t.Fatalf("seed integration: %v", err)
	}
	return integ
}

func TestEnsureValidToken_NotConnected(t *testing.T) {
	db := newIntegrationDB(t)
	repo := repository.NewGormIntegrationRepository(db)
	m := NewManager(repo, &fakeRefresher{}, "cal")

	_, err := m.EnsureValidToken(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestEnsureValidToken_FreshTokenNotRefreshed(t *testing.T) {
	db := newIntegrationDB(t)
	repo := repository.NewGormIntegrationRepository(db)
	exp := time.Now().Add(time.Hour)
	integ := seedIntegration(t, db, &exp)

	ref := &fakeRefresher{}
	m := NewManager(repo, ref, "cal")

	tok, err := m.EnsureValidToken(context.Background(), integ.CoachID.String())
	if err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if tok != "old-access" {
		t.Errorf("token = %q, want old-access", tok)
	}
	if ref.calls != 0 {
		t.Errorf("refresh calls = %d, want 0", ref.calls)
	}
}

func TestEnsureValidToken_ExpiredRefreshesOnceAndPersistsBothTokens(t *testing.T) {
	db := newIntegrationDB(t)
	repo := repository.NewGormIntegrationRepository(db)
	exp := time.Now().Add(-time.Minute)
	integ := seedIntegration(t, db, &exp)

	ref := &fakeRefresher{pair: &provider.TokenPair{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresIn:    3600,
	}}
	m := NewManager(repo, ref, "cal")

	tok, err := m.EnsureValidToken(context.Background(), integ.CoachID.String())
	if err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if tok != "new-access" {
		t.Errorf("token = %q, want new-access", tok)
	}
	if ref.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", ref.calls)
	}

	stored, err := repo.GetByCoach(context.Background(), integ.CoachID.String(), "cal")
	if err != nil {
		t.Fatalf("reload integration: %v", err)
	}
	if stored.AccessToken != "new-access" || stored.RefreshToken != "new-refresh" {
		t.Errorf("stored pair = %q / %q", stored.AccessToken, stored.RefreshToken)
	}
	if stored.AccessTokenExpiresAt == nil || !stored.AccessTokenExpiresAt.After(time.Now()) {
		t.Errorf("stored expiry must be in the future, got %v", stored.AccessTokenExpiresAt)
	}

	// Second call sees a valid token and performs no further refresh.
	if _, err := m.EnsureValidToken(context.Background(), integ.CoachID.String()); err != nil {
		t.Fatalf("second EnsureValidToken: %v", err)
	}
	if ref.calls != 1 {
		t.Errorf("refresh calls after second ensure = %d, want 1", ref.calls)
	}
}

func TestEnsureValidToken_MissingExpiryTreatedAsExpired(t *testing.T) {
	db := newIntegrationDB(t)
	repo := repository.NewGormIntegrationRepository(db)
	integ := seedIntegration(t, db, nil)

	ref := &fakeRefresher{pair: &provider.TokenPair{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresIn:    3600,
	}}
	m := NewManager(repo, ref, "cal")

	if _, err := m.EnsureValidToken(context.Background(), integ.CoachID.String()); err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if ref.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", ref.calls)
	}
}

func TestEnsureValidToken_RefreshFailure(t *testing.T) {
	db := newIntegrationDB(t)
	repo := repository.NewGormIntegrationRepository(db)
	exp := time.Now().Add(-time.Minute)
	integ := seedIntegration(t, db, &exp)

	ref := &fakeRefresher{err: &provider.Error{StatusCode: 401, Message: "revoked"}}
	m := NewManager(repo, ref, "cal")

	_, err := m.EnsureValidToken(context.Background(), integ.CoachID.String())
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("err = %v, want ErrRefreshFailed", err)
	}

	// The stale pair must stay untouched for the next fresh read.
	stored, _ := repo.GetByCoach(context.Background(), integ.CoachID.String(), "cal")
	if stored.AccessToken != "old-access" || stored.RefreshToken != "old-refresh" {
		t.Errorf("pair changed on failed refresh: %q / %q", stored.AccessToken, stored.RefreshToken)
	}
}

func TestEnsureValidToken_LostRaceUsesConcurrentPair(t *testing.T) {
	db := newIntegrationDB(t)
	repo := repository.NewGormIntegrationRepository(db)
	exp := time.Now().Add(-time.Minute)
	integ := seedIntegration(t, db, &exp)

	// The refresher fails with the stale token; a "concurrent request"
	// rotates the pair in the datastore while the exchange is in flight.
	ref := &fakeRefresher{err: &provider.Error{StatusCode: 401, Message: "stale refresh token"}}
	ref.onCall = func() {
		winnerExp := time.Now().Add(time.Hour)
		err := db.Model(&model.CalendarIntegration{}).
			Where("id = ?", integ.ID.String()).
			Updates(map[string]any{
				"access_token":            "winner-access",
				"refresh_token":           "winner-refresh",
				"access_token_expires_at": winnerExp,
			}).Error
		if err != nil {
			t.Fatalf("simulate concurrent refresh: %v", err)
		}
	}
	m := NewManager(repo, ref, "cal")

	tok, err := m.EnsureValidToken(context.Background(), integ.CoachID.String())
	if err != nil {
		t.Fatalf("EnsureValidToken: %v", err)
	}
	if tok != "winner-access" {
		t.Errorf("token = %q, want winner-access", tok)
	}
	if ref.calls != 1 {
		t.Errorf("refresh calls = %d, want 1 (no second refresh against a valid pair)", ref.calls)
	}
}
