package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// AttestationVerifier validates a device/app attestation token and
// consumes it: a token that verified once must not verify again. The
// atomicity of verify-and-consume is the verifier backend's problem, not
// ours; both implementations below honor the single-use contract.
type AttestationVerifier interface {
	VerifyAndConsume(ctx context.Context, token string) error
}

// RemoteAttestationVerifier delegates to an external verification
// backend over HTTP. The backend performs the consume atomically.
type RemoteAttestationVerifier struct {
	VerifyURL  string
	HTTPClient *http.Client
}

func NewRemoteAttestationVerifier(verifyURL string) *RemoteAttestationVerifier {
	return &RemoteAttestationVerifier{
		VerifyURL:  verifyURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type remoteVerifyRequest struct {
	Token   string `json:"token"`
	Consume bool   `json:"consume"`
}

func (v *RemoteAttestationVerifier) VerifyAndConsume(ctx context.Context, token string) error {
	body, err := json.Marshal(remoteVerifyRequest{Token: token, Consume: true})
	if err != nil {
		return fmt.Errorf("encoding attestation verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building attestation verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("attestation verify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		utils.Logger.Debugf("Attestation backend rejected token (status %d)", resp.StatusCode)
		return utils.ErrAttestationInvalid
	}
	return nil
}

// StaticAttestationVerifier accepts exactly one well-known token value,
// once. Used when real attestation is disabled (local runs, tests); keeps
// the single-use semantics so replay behavior is still exercised.
type StaticAttestationVerifier struct {
	Token string

	mu       sync.Mutex
	consumed map[string]bool
}

func NewStaticAttestationVerifier(token string) *StaticAttestationVerifier {
	return &StaticAttestationVerifier{Token: token, consumed: make(map[string]bool)}
}

func (v *StaticAttestationVerifier) VerifyAndConsume(_ context.Context, token string) error {
	if token != v.Token {
		return utils.ErrAttestationInvalid
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.consumed[token] {
		return utils.ErrAttestationInvalid
	}
	v.consumed[token] = true
	return nil
}

// Reset clears consume history. Test hook.
func (v *StaticAttestationVerifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.consumed = make(map[string]bool)
}
