package clients

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swimbuddz/academy-api/internal/models"
	"github.com/swimbuddz/academy-api/pkg/config"
)

// DirectoryClient resolves members and coach profiles from the member
// directory service. A missing record is reported as a nil result so services
// can reject with their own precondition errors.
type DirectoryClient struct {
	http *httpClient
}

// NewDirectoryClient constructs a DirectoryClient.
func NewDirectoryClient(cfg config.ClientsConfig, logger *zap.Logger) *DirectoryClient {
	return &DirectoryClient{http: newHTTPClient(cfg.DirectoryBaseURL, cfg, logger)}
}

// GetMember fetches one member by ID, nil when unknown.
func (c *DirectoryClient) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	var member models.Member
	found, err := c.http.get(ctx, fmt.Sprintf("/members/%s", memberID), &member)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &member, nil
}

// GetCoachProfile fetches one coach profile with per-category grades, nil when
// unknown.
func (c *DirectoryClient) GetCoachProfile(ctx context.Context, coachID string) (*models.CoachProfile, error) {
	var coach models.CoachProfile
	found, err := c.http.get(ctx, fmt.Sprintf("/coaches/%s", coachID), &coach)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &coach, nil
}
