package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/drewster99/FishIdentifierCam/internal/provider"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// UploadService brokers a provider token and forwards a validated upload
// descriptor, handing the provider's signed-upload ticket back verbatim.
type UploadService struct {
	broker   *TokenBroker
	provider *provider.Client
}

func NewUploadService(broker *TokenBroker, pc *provider.Client) *UploadService {
	return &UploadService{broker: broker, provider: pc}
}

// RequestUpload returns the provider's raw JSON ticket for the given
// descriptor. The two-call sequence (get token, then POST with that
// bearer) happens per request; repeated calls with the same descriptor
// may mint distinct tickets.
func (s *UploadService) RequestUpload(ctx context.Context, subject string, desc provider.UploadDescriptor) ([]byte, error) {
	utils.Logger.Debugf("Requesting signed upload for user %s (%s, %d bytes)", subject, desc.ContentType, desc.ByteSize)

	token, err := s.broker.Token(ctx)
	if err != nil {
		return nil, err
	}

	status, raw, err := s.provider.RequestUpload(ctx, token, desc)
	if err != nil {
		return nil, &utils.AppError{
			StatusCode: http.StatusBadGateway,
			Code:       utils.ErrCodeExternalServiceFailure,
			Message:    "Identification provider is unreachable",
			Err:        err,
		}
	}
	if status < 200 || status >= 300 {
		return nil, &utils.AppError{
			StatusCode: http.StatusBadGateway,
			Code:       utils.ErrCodeUpstreamProtocol,
			Message:    "Identification provider rejected the upload request",
			Err:        fmt.Errorf("%w: provider status %d", utils.ErrUpstreamProtocol, status),
		}
	}
	if !json.Valid(raw) {
		return nil, &utils.AppError{
			StatusCode: http.StatusBadGateway,
			Code:       utils.ErrCodeUpstreamProtocol,
			Message:    "Identification provider returned an unexpected response",
			Err:        fmt.Errorf("%w: upload response is not JSON", utils.ErrUpstreamProtocol),
		}
	}
	return raw, nil
}

// FetchResult relays the provider's recognition result for a signed id.
// The provider's status code and body pass through untouched so clients
// can poll until completion.
func (s *UploadService) FetchResult(ctx context.Context, subject, signedID string) (int, []byte, error) {
	utils.Logger.Debugf("Fetching recognition result for user %s", subject)

	token, err := s.broker.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	status, raw, err := s.provider.FetchResult(ctx, token, signedID)
	if err != nil {
		return 0, nil, &utils.AppError{
			StatusCode: http.StatusBadGateway,
			Code:       utils.ErrCodeExternalServiceFailure,
			Message:    "Identification provider is unreachable",
			Err:        err,
		}
	}
	return status, raw, nil
}
