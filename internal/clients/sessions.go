package clients

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/pkg/config"
)

// SessionsClient reads the session schedule kept by the scheduling service.
type SessionsClient struct {
	http *httpClient
}

// NewSessionsClient constructs a SessionsClient.
func NewSessionsClient(cfg config.ClientsConfig, logger *zap.Logger) *SessionsClient {
	return &SessionsClient{http: newHTTPClient(cfg.SessionsBaseURL, cfg, logger)}
}

// NextSession returns the next upcoming session of a cohort, nil when none is
// scheduled.
func (c *SessionsClient) NextSession(ctx context.Context, cohortID string) (*models.Session, error) {
	var session models.Session
	found, err := c.http.get(ctx, fmt.Sprintf("/cohorts/%s/sessions/next", cohortID), &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &session, nil
}
