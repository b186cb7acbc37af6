package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/drewster99/FishIdentifierCam/internal/client/capture"
	"github.com/drewster99/FishIdentifierCam/internal/dtos"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// State tracks where the login bootstrap currently is. Transitions are
// strictly sequential; there is no skipping forward.
type State int

const (
	StateIdle State = iota
	StateAuthenticatingIdentity
	StateFetchingIdentityToken
	StateFetchingAttestationToken
	StateSubmittingLogin
	StateLoggedIn
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticatingIdentity:
		return "authenticating_identity"
	case StateFetchingIdentityToken:
		return "fetching_identity_token"
	case StateFetchingAttestationToken:
		return "fetching_attestation_token"
	case StateSubmittingLogin:
		return "submitting_login"
	case StateLoggedIn:
		return "logged_in"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrAuthFailed wraps an identity sign-in failure.
	ErrAuthFailed = errors.New("identity sign-in failed")

	// ErrTokenUnexpectedlyNil marks a provider that reported success but
	// handed back an empty token. Kept distinct from fetch errors so the
	// caller can tell a broken provider from an unreachable one.
	ErrTokenUnexpectedlyNil = errors.New("token unexpectedly empty")

	// ErrLoginRejected means the gateway answered but did not accept the
	// login.
	ErrLoginRejected = errors.New("login rejected")

	// ErrCancelled marks a bootstrap abandoned via its context.
	ErrCancelled = errors.New("login cancelled")
)

// SignedUploadTicket is the actionable part of an upload grant: where to
// PUT the bytes, which headers to replay verbatim, and the opaque id used
// to poll for the recognition result.
type SignedUploadTicket struct {
	SignedID      string
	UploadURL     string
	UploadHeaders map[string]string
}

type uploadTicketWire struct {
	SignedID     string `json:"signed-id"`
	DirectUpload struct {
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"direct-upload"`
}

// Client is the app-side gateway client. One Client corresponds to one
// user session; Bootstrap must succeed before the other calls are useful.
type Client struct {
	BaseURL    string
	AppVersion string
	HTTPClient *http.Client

	Identity    IdentityProvider
	Attestation AttestationProvider

	mu        sync.Mutex
	state     State
	lastLogin *dtos.LoginResponse
}

func NewClient(baseURL, appVersion string, identity IdentityProvider, attestation AttestationProvider) *Client {
	return &Client{
		BaseURL:     baseURL,
		AppVersion:  appVersion,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		Identity:    identity,
		Attestation: attestation,
		state:       StateIdle,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LoginResponse returns the body of the last successful login, nil before
// one has happened.
func (c *Client) LoginResponse() *dtos.LoginResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLogin
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	utils.Logger.WithField("state", s.String()).Debug("Session state changed")
}

func (c *Client) fail(err error) error {
	c.setState(StateFailed)
	return err
}

// Bootstrap drives the full login chain: anonymous sign-in, forced
// identity-token refresh, attestation fetch, then the login submission.
// Each step runs only after the previous one succeeded; cancellation is
// honored between steps and inside every network call.
func (c *Client) Bootstrap(ctx context.Context) error {
	c.mu.Lock()
	c.lastLogin = nil
	c.mu.Unlock()

	c.setState(StateAuthenticatingIdentity)
	if err := ctx.Err(); err != nil {
		return c.fail(fmt.Errorf("%w: %v", ErrCancelled, err))
	}
	if err := c.Identity.SignInAnonymously(ctx); err != nil {
		if ctx.Err() != nil {
			return c.fail(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
		}
		return c.fail(fmt.Errorf("%w: %v", ErrAuthFailed, err))
	}

	c.setState(StateFetchingIdentityToken)
	idToken, err := c.Identity.IdentityToken(ctx, true)
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
		}
		return c.fail(fmt.Errorf("fetching identity token: %w", err))
	}
	if idToken == "" {
		return c.fail(fmt.Errorf("identity provider: %w", ErrTokenUnexpectedlyNil))
	}

	c.setState(StateFetchingAttestationToken)
	attToken, err := c.Attestation.AttestationToken(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
		}
		return c.fail(fmt.Errorf("fetching attestation token: %w", err))
	}
	if attToken == "" {
		return c.fail(fmt.Errorf("attestation provider: %w", ErrTokenUnexpectedlyNil))
	}

	c.setState(StateSubmittingLogin)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/login", bytes.NewReader([]byte("{}")))
	if err != nil {
		return c.fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+idToken)
	req.Header.Set(utils.AppCheckHeaderName, attToken)
	req.Header.Set(utils.VersionHeaderName, c.AppVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
		}
		return c.fail(fmt.Errorf("submitting login: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(fmt.Errorf("reading login response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(fmt.Errorf("%w: status %d", ErrLoginRejected, resp.StatusCode))
	}

	var login dtos.LoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		return c.fail(fmt.Errorf("decoding login response: %w", err))
	}
	if login.LoginResult != utils.LoginResultSuccess {
		return c.fail(fmt.Errorf("%w: login_result %q", ErrLoginRejected, login.LoginResult))
	}

	c.mu.Lock()
	c.lastLogin = &login
	c.state = StateLoggedIn
	c.mu.Unlock()
	utils.Logger.Info("Session established")
	return nil
}

// tokenPair fetches both credentials concurrently without forcing a
// refresh. A failed fetch degrades to an empty token rather than aborting
// the request; the gateway decides what to do about the missing header.
func (c *Client) tokenPair(ctx context.Context) (idToken, attToken string) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t, err := c.Identity.IdentityToken(ctx, false)
		if err != nil {
			utils.Logger.WithError(err).Warn("Identity token fetch failed")
			return
		}
		idToken = t
	}()
	go func() {
		defer wg.Done()
		t, err := c.Attestation.AttestationToken(ctx, false)
		if err != nil {
			utils.Logger.WithError(err).Warn("Attestation token fetch failed")
			return
		}
		attToken = t
	}()
	wg.Wait()
	return idToken, attToken
}

func (c *Client) newAuthedRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	idToken, attToken := c.tokenPair(ctx)
	if idToken != "" {
		req.Header.Set("Authorization", "Bearer "+idToken)
	}
	if attToken != "" {
		req.Header.Set(utils.AppCheckHeaderName, attToken)
	}
	req.Header.Set(utils.VersionHeaderName, c.AppVersion)
	return req, nil
}

// RequestUpload submits the image descriptor and returns the signed
// upload ticket the gateway relayed back.
func (c *Client) RequestUpload(ctx context.Context, desc *capture.Descriptor) (*SignedUploadTicket, error) {
	payload, err := json.Marshal(map[string]any{
		"filename":     desc.Filename,
		"content_type": desc.ContentType,
		"byte_size":    desc.ByteSize,
		"checksum":     desc.Checksum,
	})
	if err != nil {
		return nil, err
	}

	req, err := c.newAuthedRequest(ctx, http.MethodPost, "/upload_request", payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var wire uploadTicketWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding upload ticket: %w", err)
	}
	if wire.SignedID == "" || wire.DirectUpload.URL == "" {
		return nil, fmt.Errorf("upload ticket incomplete")
	}
	return &SignedUploadTicket{
		SignedID:      wire.SignedID,
		UploadURL:     wire.DirectUpload.URL,
		UploadHeaders: wire.DirectUpload.Headers,
	}, nil
}

// DirectUpload PUTs the image bytes straight to the ticket's storage URL.
// The ticket headers are replayed exactly as issued; no Content-Type is
// added beyond what the ticket carries, since the URL signature covers the
// header set.
func (c *Client) DirectUpload(ctx context.Context, ticket *SignedUploadTicket, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ticket.UploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header["Content-Type"] = []string{""}
	for k, v := range ticket.UploadHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading image: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("direct upload failed: status %d", resp.StatusCode)
	}
	return nil
}

// FetchResult polls the recognition result for a completed upload. The
// body comes back verbatim from the recognition service.
func (c *Client) FetchResult(ctx context.Context, signedID string) ([]byte, error) {
	req, err := c.newAuthedRequest(ctx, http.MethodGet, "/recognition_result?q="+url.QueryEscape(signedID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching result: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("result fetch failed: status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
