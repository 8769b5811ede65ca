package clients

import (
	"context"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/pkg/config"
)

// PaymentsClient starts payment collection for enrollments. Collection is
// asynchronous: the payments service calls back through the payment-status
// endpoint, so a create failure here never unwinds an enrollment.
type PaymentsClient struct {
	http *httpClient
}

// NewPaymentsClient constructs a PaymentsClient.
func NewPaymentsClient(cfg config.ClientsConfig, logger *zap.Logger) *PaymentsClient {
	return &PaymentsClient{http: newHTTPClient(cfg.PaymentsBaseURL, cfg, logger)}
}

// CreateIntent asks the payments service to collect the snapshotted price.
func (c *PaymentsClient) CreateIntent(ctx context.Context, req models.PaymentIntentRequest) error {
	return c.http.post(ctx, "/payment-intents", req)
}
