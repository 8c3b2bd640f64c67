package provider

import (
	"context"
	"fmt"
	"net/http"
)

// Операции с подписками на вебхуки. Всё — платформенный уровень,
// аутентификация client credentials.

func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var hooks []Webhook
	auth := clientCredentialsAuth{c.clientID, c.clientSecret}
	if err := c.do(ctx, http.MethodGet, "/webhooks", auth, nil, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

func (c *Client) RegisterWebhook(ctx context.Context, hook *Webhook) (*Webhook, error) {
	var created Webhook
	auth := clientCredentialsAuth{c.clientID, c.clientSecret}
	if err := c.do(ctx, http.MethodPost, "/webhooks", auth, hook, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, id int64) error {
	auth := clientCredentialsAuth{c.clientID, c.clientSecret}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/webhooks/%d", id), auth, nil, nil)
}

// EnsureSubscription гарантирует одну активную подписку на subscriberURL
// с booking-триггерами. Повторный вызов на старте процесса безопасен.
func (c *Client) EnsureSubscription(ctx context.Context, subscriberURL, secret string) (*Webhook, error) {
	hooks, err := c.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range hooks {
		if hooks[i].SubscriberURL == subscriberURL && hooks[i].Active {
			return &hooks[i], nil
		}
	}
	return c.RegisterWebhook(ctx, &Webhook{
		SubscriberURL: subscriberURL,
		Triggers: []string{
			TriggerBookingCreated,
			TriggerBookingRescheduled,
			TriggerBookingCancelled,
		},
		Active: true,
		Secret: secret,
	})
}
