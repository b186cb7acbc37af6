package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/drewster99/FishIdentifierCam/internal/app"
	"github.com/drewster99/FishIdentifierCam/internal/config"
	"github.com/drewster99/FishIdentifierCam/internal/controllers"
	"github.com/drewster99/FishIdentifierCam/internal/middleware"
	"github.com/drewster99/FishIdentifierCam/internal/provider"
	"github.com/drewster99/FishIdentifierCam/internal/services"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

func main() {
	_ = godotenv.Load()

	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	//----------------------------------------------------------------------
	// Attestation verifier
	//----------------------------------------------------------------------
	var attVerifier middleware.AttestationVerifier
	if cfg.TrustLocalClients {
		utils.Logger.Warn("TRUST_LOCAL_CLIENTS=true; attestation checks are DISABLED")
	} else {
		attVerifier = middleware.NewRemoteAttestationVerifier(cfg.AttestationVerifyURL)
	}

	//----------------------------------------------------------------------
	// Services
	//----------------------------------------------------------------------
	providerClient := provider.NewClient(cfg.ProviderBaseURL)
	tokenBroker := services.NewTokenBroker(cfg.ProviderClientID, cfg.ProviderClientSecret, providerClient)
	uploadService := services.NewUploadService(tokenBroker, providerClient)

	//----------------------------------------------------------------------
	// Controllers
	//----------------------------------------------------------------------
	loginController := controllers.NewLoginController(cfg.MessageCatalogPath, application.Counters)
	uploadController := controllers.NewUploadController(uploadService, application.Counters)
	healthController := controllers.NewHealthController()

	//----------------------------------------------------------------------
	// Router & Endpoints
	//----------------------------------------------------------------------
	router := mux.NewRouter()

	// Health
	router.HandleFunc("/health", healthController.HealthCheckHandler).Methods("GET")

	// Everything else sits behind the two-factor gate.
	protected := router.PathPrefix("/").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.RSAPublicKey, cfg.TrustLocalClients, attVerifier))
	protected.HandleFunc("/login", loginController.Login).Methods("POST")
	protected.HandleFunc("/upload_request", uploadController.RequestUpload).Methods("POST")
	protected.HandleFunc("/recognition_result", uploadController.RecognitionResult).Methods("GET")

	//----------------------------------------------------------------------
	// Daily counter rollup via cron
	//----------------------------------------------------------------------
	c := cron.New()
	if application.Counters != nil {
		_, schErr := c.AddFunc("15 3 * * *", application.Counters.LogRollup)
		if schErr != nil {
			utils.Logger.WithError(schErr).Fatal("Failed to schedule counter rollup job")
		}
	}
	c.Start()

	co := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.AppUrl},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Authorization", "Content-Type",
			utils.AppCheckHeaderName, utils.VersionHeaderName,
		},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("Failed to start server:", err)
	}
}
