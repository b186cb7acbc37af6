package controllers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/drewster99/FishIdentifierCam/internal/dtos"
	"github.com/drewster99/FishIdentifierCam/internal/metrics"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// defaultMessageCatalog is served when no catalog file is configured.
var defaultMessageCatalog = []dtos.Message{
	{
		ID:         "0x0001",
		Type:       "debug",
		IsOneTime:  true,
		AppVersion: "=1.0(16)",
		Title:      "Thank you!",
		Message:    "Thank you for using Fish Identifier Cam",
		Buttons: []dtos.MessageButton{
			{Title: "Cancel", ActionType: "dismiss", ActionData: ""},
			{Title: "OK", ActionType: "open_url", ActionData: "https://example.com"},
		},
	},
}

type LoginController struct {
	messages []dtos.Message
	counters *metrics.CounterStore
}

// NewLoginController loads the message catalog from catalogPath if set,
// falling back to the built-in catalog on any problem. A broken catalog
// must not take logins down.
func NewLoginController(catalogPath string, counters *metrics.CounterStore) *LoginController {
	msgs := defaultMessageCatalog
	if catalogPath != "" {
		raw, err := os.ReadFile(catalogPath)
		if err != nil {
			utils.Logger.WithError(err).Warnf("Failed to read message catalog %s; using built-in catalog", catalogPath)
		} else {
			var loaded []dtos.Message
			if err := json.Unmarshal(raw, &loaded); err != nil {
				utils.Logger.WithError(err).Warnf("Failed to parse message catalog %s; using built-in catalog", catalogPath)
			} else {
				msgs = loaded
			}
		}
	}
	return &LoginController{messages: msgs, counters: counters}
}

// Login runs behind the auth gate: both credentials are already verified
// by the time control reaches here. It checks the client-version header,
// then returns the success literal plus the message catalog.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	c.counters.Increment("login_requests")

	if !requireClientVersion(w, r) {
		c.counters.Increment("login_versionCheckFailed")
		return
	}

	subject, ok := requireSubject(w, r)
	if !ok {
		c.counters.Increment("login_uidCheckFailed")
		return
	}

	utils.Logger.Debugf("Login succeeded for user %s (version %s)", subject, r.Header.Get(utils.VersionHeaderName))

	resp := dtos.LoginResponse{
		LoginResult: utils.LoginResultSuccess,
		Messages:    c.messages,
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
