package config

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/drewster99/FishIdentifierCam/internal/secrets"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// Config holds all application configuration, including secrets.
type Config struct {
	AppName string
	AppPort string
	AppUrl  string

	// RSAPublicKey verifies inbound identity tokens.
	RSAPublicKey *rsa.PublicKey

	// Identification provider (upstream) settings. The client credential
	// pair is confidential: read from the secret store, never logged.
	ProviderBaseURL      string
	ProviderClientID     string
	ProviderClientSecret string

	// AttestationVerifyURL is the verification backend that consumes
	// attestation tokens. Unused when TrustLocalClients is set.
	AttestationVerifyURL string

	// TrustLocalClients skips the attestation check entirely
	// (local/emulated runs). Identity tokens are still verified.
	TrustLocalClients bool

	// CounterDBPath is the sqlite file backing best-effort activity counters.
	CounterDBPath string

	// MessageCatalogPath optionally overrides the built-in login message
	// catalog with a JSON file.
	MessageCatalogPath string
}

// AppName is overridden with ldflags at build time.
var AppName string

// LoadConfig reads env vars, fetches secrets, and returns a *Config.
// Missing required values are fatal: the service must not come up
// half-configured.
func LoadConfig() *Config {
	if AppName == "" {
		utils.Logger.Fatal("AppName was not overridden with ldflags at build time (or is empty)")
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	env := os.Getenv("ENV")
	if env == "" {
		utils.Logger.Fatal("ENV env var is missing")
	}
	appUrl := os.Getenv("APP_URL")
	if appUrl == "" {
		utils.Logger.Fatal("APP_URL env var is missing")
	}
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		utils.Logger.Fatal("APP_PORT env var is missing")
	}

	providerBaseURL := os.Getenv("PROVIDER_BASE_URL")
	if providerBaseURL == "" {
		providerBaseURL = "https://api-users.fishial.ai"
	}

	trustLocalClients := strings.EqualFold(os.Getenv("TRUST_LOCAL_CLIENTS"), "true")

	attestationVerifyURL := os.Getenv("ATTESTATION_VERIFY_URL")
	if !trustLocalClients && attestationVerifyURL == "" {
		utils.Logger.Fatal("ATTESTATION_VERIFY_URL env var is missing (required unless TRUST_LOCAL_CLIENTS=true)")
	}

	counterDBPath := os.Getenv("COUNTER_DB_PATH")
	if counterDBPath == "" {
		counterDBPath = "fishidcam-counters.db"
	}

	//----------------------------------------------------------------------
	// Secrets: Bitwarden project "<appName>-<env>", or plain env vars when
	// SECRETS_FROM_ENV=true (local development and CI).
	//----------------------------------------------------------------------
	var appSecrets map[string]string
	if strings.EqualFold(os.Getenv("SECRETS_FROM_ENV"), "true") {
		utils.Logger.Info("SECRETS_FROM_ENV=true; reading secrets from the environment")
		appSecrets = map[string]string{
			"PROVIDER_CLIENT_ID":     os.Getenv("PROVIDER_CLIENT_ID"),
			"PROVIDER_CLIENT_SECRET": os.Getenv("PROVIDER_CLIENT_SECRET"),
			"RSA_PUBLIC_KEY_BASE64":  os.Getenv("RSA_PUBLIC_KEY_BASE64"),
		}
	} else {
		client, err := secrets.NewBWSClient()
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to initialize Bitwarden secrets client")
		}
		defer client.Close()

		projectName := fmt.Sprintf("%s-%s", AppName, env)
		utils.Logger.Debugf("Fetching secrets from Bitwarden project %s", projectName)
		appSecrets, err = client.GetProjectSecrets(projectName)
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to fetch secrets from Bitwarden")
		}
	}

	providerClientID, ok := appSecrets["PROVIDER_CLIENT_ID"]
	if !ok || providerClientID == "" {
		utils.Logger.Fatal("PROVIDER_CLIENT_ID not found in secrets")
	}
	providerClientSecret, ok := appSecrets["PROVIDER_CLIENT_SECRET"]
	if !ok || providerClientSecret == "" {
		utils.Logger.Fatal("PROVIDER_CLIENT_SECRET not found in secrets")
	}

	publicKeyBase64, ok := appSecrets["RSA_PUBLIC_KEY_BASE64"]
	if !ok || publicKeyBase64 == "" {
		utils.Logger.Fatal("RSA_PUBLIC_KEY_BASE64 not found in secrets")
	}
	publicKeyPEM, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to decode base64 public key")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}

	return &Config{
		AppName:              AppName,
		AppPort:              appPort,
		AppUrl:               appUrl,
		RSAPublicKey:         publicKey,
		ProviderBaseURL:      providerBaseURL,
		ProviderClientID:     providerClientID,
		ProviderClientSecret: providerClientSecret,
		AttestationVerifyURL: attestationVerifyURL,
		TrustLocalClients:    trustLocalClients,
		CounterDBPath:        counterDBPath,
		MessageCatalogPath:   os.Getenv("MESSAGE_CATALOG_PATH"),
	}
}
