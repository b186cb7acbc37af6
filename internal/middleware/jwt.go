package middleware

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// ValidateIdentityToken checks the token's signature and standard claims
// and returns the subject (user identifier). Any deviation returns a
// descriptive error; callers map every one of them to a generic 401.
func ValidateIdentityToken(tokenString string, publicKey *rsa.PublicKey) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return publicKey, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", errors.New("missing expiration claim")
	}
	if time.Unix(int64(exp), 0).Before(time.Now()) {
		return "", jwt.ErrTokenExpired
	}

	iss, ok := claims["iss"].(string)
	if !ok {
		return "", errors.New("missing issuer claim")
	}
	if iss != utils.TokenIssuer {
		return "", errors.New("invalid token issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing subject claim")
	}

	return sub, nil
}
