package middleware

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

type contextKey string

// ContextKeyUserID carries the verified subject identifier into handlers.
const ContextKeyUserID = contextKey("userID")

// AuthMiddleware is the two-factor request gate. Both checks are
// independent and both mandatory:
//
//  1. Authorization: Bearer <identity-token> must verify (signature,
//     expiry, issuer) and carry a subject.
//  2. Unless trustLocalClients is set, the X-App-Check header must be
//     present and verify-and-consume against the attestation backend.
//
// Any failure short-circuits with 401 and a generic message. Handler logic
// never runs on a partially verified request.
func AuthMiddleware(pub *rsa.PublicKey, trustLocalClients bool, verifier AttestationVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized,
					"Unauthorized", nil,
				)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			subject, err := ValidateIdentityToken(tokenStr, pub)
			if err != nil {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized,
					"Unauthorized", nil, err,
				)
				return
			}

			if !trustLocalClients {
				attToken := r.Header.Get(utils.AppCheckHeaderName)
				if attToken == "" {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeUnauthorized,
						"Unauthorized", nil,
					)
					return
				}
				if err := verifier.VerifyAndConsume(r.Context(), attToken); err != nil {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeUnauthorized,
						"Unauthorized", nil, err,
					)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromRequest returns the verified user identifier placed in
// context by AuthMiddleware, or "" if the gate did not run.
func SubjectFromRequest(r *http.Request) string {
	sub, _ := r.Context().Value(ContextKeyUserID).(string)
	return sub
}
