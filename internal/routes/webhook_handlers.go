package routes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/kataras/iris/v12"

	"github.com/coachbridge/coachcal/internal/provider"
)

// POST /webhooks/cal
//
// Подпись — HMAC-SHA256 тела запроса секретом подписки. События с
// неверной подписью отбрасываются до разбора.
func (h *Handlers) handleWebhook(ctx iris.Context) {
	body, err := ctx.GetBody()
	if err != nil {
		respondError(ctx, iris.StatusBadRequest, "unreadable body")
		return
	}

	if h.cfg.WebhookSecret != "" {
		signature := ctx.GetHeader("x-cal-signature-256")
		if !validSignature(body, signature, h.cfg.WebhookSecret) {
			respondError(ctx, iris.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var event provider.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(ctx, iris.StatusBadRequest, "malformed event")
		return
	}

	// Ошибка здесь — сигнал провайдеру повторить доставку позже.
	if err := h.ingestor.Handle(ctx, &event); err != nil {
		ctx.Application().Logger().Errorf("webhook %s: %v", event.TriggerEvent, err)
		respondError(ctx, iris.StatusInternalServerError, "ingestion failed")
		return
	}

	ctx.JSON(iris.Map{"received": true})
}

func validSignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
