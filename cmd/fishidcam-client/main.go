package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/drewster99/FishIdentifierCam/internal/client/capture"
	"github.com/drewster99/FishIdentifierCam/internal/client/messages"
	"github.com/drewster99/FishIdentifierCam/internal/client/session"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

const defaultAppVersion = "1.0(16)"

func main() {
	utils.InitLogger("fishidcam-client")
	godotenv.Load()

	var (
		serverURL  = flag.String("server", envOr("FISHIDCAM_SERVER_URL", "http://localhost:8080"), "gateway base URL")
		imagePath  = flag.String("image", "", "path to the image to identify")
		appVersion = flag.String("app-version", envOr("FISHIDCAM_APP_VERSION", defaultAppVersion), "client version reported to the gateway")
		pollWait   = flag.Duration("poll-interval", 3*time.Second, "delay between recognition result polls")
		pollMax    = flag.Int("poll-attempts", 10, "maximum recognition result polls")
		stateDir   = flag.String("state-dir", defaultStateDir(), "directory for client state (shown message ids)")
	)
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	creds := session.StaticCredentials{
		Identity:    os.Getenv("FISHIDCAM_IDENTITY_TOKEN"),
		Attestation: os.Getenv("FISHIDCAM_ATTESTATION_TOKEN"),
	}
	if creds.Identity == "" {
		utils.Logger.Fatal("FISHIDCAM_IDENTITY_TOKEN is required")
	}
	if creds.Attestation == "" {
		creds.Attestation = utils.StaticAttestationToken
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := session.NewClient(*serverURL, *appVersion, creds, creds)
	if err := client.Bootstrap(ctx); err != nil {
		utils.Logger.WithError(err).WithField("state", client.State().String()).Fatal("Login failed")
	}

	showServerMessages(client, *appVersion, *stateDir)

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Could not read image")
	}
	contentType := mime.TypeByExtension(filepath.Ext(*imagePath))
	desc, err := capture.NewDescriptorFromBytes(data, contentType, filepath.Base(*imagePath))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Could not describe image")
	}
	utils.Logger.WithFields(map[string]any{
		"filename":  desc.Filename,
		"byte_size": desc.ByteSize,
		"checksum":  desc.Checksum,
	}).Info("Requesting upload")

	ticket, err := client.RequestUpload(ctx, &desc)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Upload request failed")
	}
	if err := client.DirectUpload(ctx, ticket, desc.Data); err != nil {
		utils.Logger.WithError(err).Fatal("Image upload failed")
	}
	utils.Logger.Info("Image uploaded, waiting for recognition")

	for attempt := 1; attempt <= *pollMax; attempt++ {
		result, err := client.FetchResult(ctx, ticket.SignedID)
		if err == nil {
			fmt.Println(string(result))
			return
		}
		if ctx.Err() != nil {
			utils.Logger.Fatal("Cancelled")
		}
		utils.Logger.WithError(err).WithField("attempt", attempt).Debug("Result not ready")
		time.Sleep(*pollWait)
	}
	utils.Logger.Fatal("Recognition result not available, try again later")
}

func showServerMessages(client *session.Client, appVersion, stateDir string) {
	login := client.LoginResponse()
	if login == nil || len(login.Messages) == 0 {
		return
	}
	gate := messages.Gate{AppVersion: appVersion, DebugBuild: os.Getenv("FISHIDCAM_DEBUG") != ""}
	store := messages.NewFileSeenStore(stateDir)
	for _, msg := range login.Messages {
		if !gate.ShouldShow(msg, store) {
			continue
		}
		fmt.Printf("\n== %s ==\n%s\n\n", msg.Title, msg.Message)
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".fishidcam")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
