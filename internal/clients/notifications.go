package clients

import (
	"context"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/pkg/config"
)

// NotificationsClient forwards domain events to the notifications service,
// which fans them out to members and coaches.
type NotificationsClient struct {
	http *httpClient
}

// NewNotificationsClient constructs a NotificationsClient.
func NewNotificationsClient(cfg config.ClientsConfig, logger *zap.Logger) *NotificationsClient {
	return &NotificationsClient{http: newHTTPClient(cfg.NotificationsBaseURL, cfg, logger)}
}

// Deliver posts one domain event.
func (c *NotificationsClient) Deliver(ctx context.Context, event models.Event) error {
	return c.http.post(ctx, "/events", event)
}
