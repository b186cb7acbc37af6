package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/drewster99/FishIdentifierCam/internal/provider"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// TokenBroker exchanges the confidential client credential pair for a
// short-lived provider access token. The pair comes from the secret
// store at startup, never from request input. No caching: a fresh
// exchange per handling unit keeps correctness independent of expiry.
type TokenBroker struct {
	clientID     string
	clientSecret string
	provider     *provider.Client
}

func NewTokenBroker(clientID, clientSecret string, pc *provider.Client) *TokenBroker {
	return &TokenBroker{
		clientID:     clientID,
		clientSecret: clientSecret,
		provider:     pc,
	}
}

// Token returns a provider access token or a structured AppError. The
// configuration-error message deliberately does not say which secret is
// missing.
func (b *TokenBroker) Token(ctx context.Context) (string, error) {
	if b.clientID == "" || b.clientSecret == "" {
		return "", &utils.AppError{
			StatusCode: http.StatusInternalServerError,
			Code:       utils.ErrCodeConfiguration,
			Message:    "Service is not configured",
			Err:        utils.ErrConfiguration,
		}
	}

	token, err := b.provider.ExchangeToken(ctx, b.clientID, b.clientSecret)
	if err != nil {
		if errors.Is(err, utils.ErrUpstreamProtocol) {
			return "", &utils.AppError{
				StatusCode: http.StatusBadGateway,
				Code:       utils.ErrCodeUpstreamProtocol,
				Message:    "Identification provider returned an unexpected response",
				Err:        err,
			}
		}
		return "", &utils.AppError{
			StatusCode: http.StatusBadGateway,
			Code:       utils.ErrCodeExternalServiceFailure,
			Message:    "Identification provider is unreachable",
			Err:        err,
		}
	}
	return token, nil
}
