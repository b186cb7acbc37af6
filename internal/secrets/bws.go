package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/bitwarden/sdk-go"

	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// Retry parameters for Bitwarden API calls.
const (
	maxRetries     = 5
	initialBackoff = 500 * time.Millisecond
)

// BWSClient wraps an authenticated Bitwarden Secrets Manager client. The
// provider's confidential client_id/client_secret pair lives here and is
// read at call time, never from request input.
type BWSClient struct {
	bw    sdk.BitwardenClientInterface
	orgID string
}

// NewBWSClient logs in with the access token from the environment and
// returns a ready-to-use client. Implements manual retries with
// exponential backoff on Bitwarden rate-limit responses.
func NewBWSClient() (*BWSClient, error) {
	accessToken := os.Getenv("BWS_ACCESS_TOKEN")
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("BWS_ACCESS_TOKEN env var is missing or empty")
	}
	orgID := os.Getenv("BWS_ORG_ID")
	if strings.TrimSpace(orgID) == "" {
		return nil, errors.New("BWS_ORG_ID env var is missing or empty")
	}

	// nil URLs use the Bitwarden defaults.
	bw, err := sdk.NewBitwardenClient(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("initialising Bitwarden SDK client: %w", err)
	}

	backoff := initialBackoff
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = bw.AccessTokenLogin(accessToken, nil)
		if err == nil {
			return &BWSClient{bw: bw, orgID: orgID}, nil
		}

		// Retry only on 429 errors (Bitwarden rate-limit), detected by
		// inspecting the error message. sdk-go does not expose a typed
		// error with StatusCode, so string-match is the simplest option.
		if !strings.Contains(err.Error(), "429") &&
			!strings.Contains(err.Error(), "Too Many Requests") {
			return nil, fmt.Errorf("Bitwarden access-token login failed: %w", err)
		}

		if attempt == maxRetries {
			return nil, fmt.Errorf("Bitwarden access-token login failed after %d attempts: %w", maxRetries, err)
		}

		time.Sleep(backoff)
		backoff *= 2
	}

	return nil, errors.New("unexpected error in NewBWSClient")
}

// Close releases resources held by the underlying SDK client.
func (c *BWSClient) Close() {
	if c != nil && c.bw != nil {
		c.bw.Close()
	}
}

// GetProjectSecrets retrieves all key/value secrets belonging to the
// specified Bitwarden project name and returns them as a map.
func (c *BWSClient) GetProjectSecrets(projectName string) (map[string]string, error) {
	if strings.TrimSpace(projectName) == "" {
		return nil, errors.New("projectName must not be empty")
	}

	projectsResp, err := c.bw.Projects().List(c.orgID)
	if err != nil {
		utils.Logger.WithError(err).Error("Failed to list Bitwarden projects")
		return nil, fmt.Errorf("listing Bitwarden projects: %w", err)
	}

	var projectID string
	for _, p := range projectsResp.Data {
		if strings.EqualFold(p.Name, projectName) {
			projectID = p.ID
			break
		}
	}
	if projectID == "" {
		return nil, fmt.Errorf("project %q not found in organisation %s", projectName, c.orgID)
	}

	syncResp, err := c.bw.Secrets().Sync(c.orgID, nil)
	if err != nil {
		utils.Logger.WithError(err).Error("Failed to sync Bitwarden secrets")
		return nil, fmt.Errorf("syncing Bitwarden secrets: %w", err)
	}

	out := make(map[string]string)
	for _, s := range syncResp.Secrets {
		if s.ProjectID != nil && *s.ProjectID == projectID {
			out[s.Key] = s.Value
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no secrets found for project %q", projectName)
	}
	return out, nil
}
