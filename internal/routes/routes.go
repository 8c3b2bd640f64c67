package routes

import (
	"github.com/kataras/iris/v12"

	"github.com/coachbridge/coachcal/internal/booking"
	"github.com/coachbridge/coachcal/internal/calsync"
	"github.com/coachbridge/coachcal/internal/config"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
	"github.com/coachbridge/coachcal/internal/token"
	"github.com/coachbridge/coachcal/internal/webhook"
)

// Handlers держит зависимости всех HTTP-ручек.
type Handlers struct {
	cfg *config.ProviderConfig

	client       *provider.Client
	tokens       *token.Manager
	syncer       *calsync.Syncer
	orchestrator *booking.Orchestrator
	ingestor     *webhook.Ingestor

	schedules    repository.ScheduleRepository
	sessions     repository.SessionRepository
	integrations repository.IntegrationRepository

	providerName string
}

func NewHandlers(
	cfg *config.ProviderConfig,
	client *provider.Client,
	tokens *token.Manager,
	syncer *calsync.Syncer,
	orchestrator *booking.Orchestrator,
	ingestor *webhook.Ingestor,
	schedules repository.ScheduleRepository,
	sessions repository.SessionRepository,
	integrations repository.IntegrationRepository,
	providerName string,
) *Handlers {
	return &Handlers{
		cfg:          cfg,
		client:       client,
		tokens:       tokens,
		syncer:       syncer,
		orchestrator: orchestrator,
		ingestor:     ingestor,
		schedules:    schedules,
		sessions:     sessions,
		integrations: integrations,
		providerName: providerName,
	}
}

// Register вешает все маршруты на приложение.
func (h *Handlers) Register(app *iris.Application) {
	api := app.Party("/api/v1")

	coaches := api.Party("/coaches")
	coaches.Get("/{coachID:uuid}/slots", h.listSlots)
	coaches.Get("/{coachID:uuid}/sessions", h.listSessions)
	coaches.Get("/{coachID:uuid}/schedule", h.getSchedule)
	coaches.Post("/{coachID:uuid}/schedule", h.updateSchedule)
	coaches.Post("/{coachID:uuid}/schedule/sync", h.pullSchedule)

	api.Post("/bookings", h.createBooking)
	api.Post("/sessions/{sessionID:uuid}/cancel", h.cancelSession)

	integrations := api.Party("/integrations/cal")
	integrations.Get("/connect", h.connect)
	integrations.Get("/callback", h.callback)
	integrations.Get("/status", h.integrationStatus)
	integrations.Post("/reconcile", h.reconcile)

	api.Post("/webhooks/cal", h.handleWebhook)
}
