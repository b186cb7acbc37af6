// Package provider is the typed HTTP client for the third-party
// identification service (token endpoint, signed-upload request, and
// recognition-result fetch).
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

const (
	tokenPath  = "/v1/auth/token"
	uploadPath = "/v1/recognition/upload"
	resultPath = "/v1/recognition/image"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ExchangeToken trades the confidential client credential pair for a
// short-lived access token. The response shape is validated strictly:
// token_type must be the literal "Bearer" (case-sensitive) and
// access_token must be a non-empty string. Any deviation is an upstream
// protocol error, never coerced. Transport failures are not retried here.
func (c *Client) ExchangeToken(ctx context.Context, clientID, clientSecret string) (string, error) {
	body, err := json.Marshal(tokenRequest{ClientID: clientID, ClientSecret: clientSecret})
	if err != nil {
		return "", fmt.Errorf("encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint call failed: %w", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: token response is not JSON: %v", utils.ErrUpstreamProtocol, err)
	}
	if tr.TokenType != "Bearer" {
		return "", fmt.Errorf("%w: expected Bearer token, got %q", utils.ErrUpstreamProtocol, tr.TokenType)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: access token is missing or empty", utils.ErrUpstreamProtocol)
	}
	return tr.AccessToken, nil
}

// UploadDescriptor is the canonical request body for the signed-upload
// step, snake_case on the wire.
type UploadDescriptor struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ByteSize    int64  `json:"byte_size"`
	Checksum    string `json:"checksum"`
}

// RequestUpload asks the provider for a signed upload ticket. The raw
// response body is returned so the gateway can relay it verbatim.
func (c *Client) RequestUpload(ctx context.Context, accessToken string, desc UploadDescriptor) (int, []byte, error) {
	body, err := json.Marshal(desc)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding upload descriptor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+uploadPath, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("upload endpoint call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading upload response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// FetchResult retrieves the recognition result for a signed id. Clients
// poll this via the gateway until the provider reports completion.
func (c *Client) FetchResult(ctx context.Context, accessToken, signedID string) (int, []byte, error) {
	u := c.BaseURL + resultPath + "?q=" + url.QueryEscape(signedID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("building result request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("result endpoint call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading result response: %w", err)
	}
	return resp.StatusCode, raw, nil
}
