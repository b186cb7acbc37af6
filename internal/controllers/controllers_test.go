package controllers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/drewster99/FishIdentifierCam/internal/dtos"
	"github.com/drewster99/FishIdentifierCam/internal/middleware"
	"github.com/drewster99/FishIdentifierCam/internal/provider"
	"github.com/drewster99/FishIdentifierCam/internal/services"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

const testAppVersion = "1.0(16)"

func newProviderStub(t *testing.T, upload, result http.HandlerFunc) *provider.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/token":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-abc", "token_type": "Bearer"})
		case "/v1/recognition/upload":
			upload(w, r)
		case "/v1/recognition/image":
			result(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return provider.NewClient(srv.URL)
}

func newUploadController(t *testing.T, upload, result http.HandlerFunc) *UploadController {
	t.Helper()
	pc := newProviderStub(t, upload, result)
	return NewUploadController(services.NewUploadService(services.NewTokenBroker("id", "secret", pc), pc), nil)
}

// authedRequest fakes an already-gated request: the middleware has
// verified both credentials and attached the subject.
func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set(utils.VersionHeaderName, testAppVersion)
	ctx := context.WithValue(req.Context(), middleware.ContextKeyUserID, "user-123")
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const validUploadBody = `{"filename":"photo.jpg","content_type":"image/jpeg","byte_size":1024,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg=="}`

func TestRequestUploadValidation(t *testing.T) {
	ctrl := newUploadController(t,
		func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"signed-id":"abc"}`)) },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
	)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			"missing filename",
			`{"content_type":"image/jpeg","byte_size":1024,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg=="}`,
			"Bad Request: 'filename' is required and must be a non-empty string",
		},
		{
			"blank filename",
			`{"filename":"   ","content_type":"image/jpeg","byte_size":1024,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg=="}`,
			"Bad Request: 'filename' is required and must be a non-empty string",
		},
		{
			"non-image content type",
			`{"filename":"photo.jpg","content_type":"text/plain","byte_size":1024,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg=="}`,
			"Bad Request: 'content_type' must be a valid image MIME type",
		},
		{
			"zero byte size",
			`{"filename":"photo.jpg","content_type":"image/jpeg","byte_size":0,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg=="}`,
			"Bad Request: 'byte_size' must be a positive number",
		},
		{
			"negative byte size",
			`{"filename":"photo.jpg","content_type":"image/jpeg","byte_size":-5,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg=="}`,
			"Bad Request: 'byte_size' must be a positive number",
		},
		{
			"malformed checksum",
			`{"filename":"photo.jpg","content_type":"image/jpeg","byte_size":1024,"checksum":"not-a-checksum"}`,
			"Bad Request: 'checksum' must be a base64-encoded MD5 string",
		},
		{
			"checksum wrong padding",
			`{"filename":"photo.jpg","content_type":"image/jpeg","byte_size":1024,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg="}`,
			"Bad Request: 'checksum' must be a base64-encoded MD5 string",
		},
		{
			// Every field invalid: the first declared field wins.
			"first failure wins",
			`{"filename":"","content_type":"text/plain","byte_size":0,"checksum":"nope"}`,
			"Bad Request: 'filename' is required and must be a non-empty string",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ctrl.RequestUpload(rec, authedRequest(http.MethodPost, "/upload_request", tt.body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, tt.message, decodeError(t, rec).Message)
		})
	}
}

func TestRequestUploadStrictDecoding(t *testing.T) {
	ctrl := newUploadController(t,
		func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"signed-id":"abc"}`)) },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
	)

	for name, body := range map[string]string{
		"unknown field": `{"filename":"photo.jpg","content_type":"image/jpeg","byte_size":1024,"checksum":"1B2M2Y8AsgTpgAmY7PhCfg==","extra":true}`,
		"not JSON":      `filename=photo.jpg`,
		"empty body":    ``,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ctrl.RequestUpload(rec, authedRequest(http.MethodPost, "/upload_request", body))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			require.Equal(t, utils.ErrCodeInvalidPayload, resp.Code)
			require.Equal(t, "Bad Request: JSON body required", resp.Message)
		})
	}
}

func TestRequestUploadMissingVersionHeader(t *testing.T) {
	ctrl := newUploadController(t,
		func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"signed-id":"abc"}`)) },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
	)

	req := authedRequest(http.MethodPost, "/upload_request", validUploadBody)
	req.Header.Del(utils.VersionHeaderName)
	rec := httptest.NewRecorder()
	ctrl.RequestUpload(rec, req)

	// Missing version header is 401, not 400.
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Unauthorized: Malformed data", decodeError(t, rec).Message)
}

func TestRequestUploadRelaysTicketVerbatim(t *testing.T) {
	ticket := `{"signed-id":"abc","direct-upload":{"url":"https://storage/x","headers":{"Content-MD5":"sum"}}}`
	var gotDesc provider.UploadDescriptor
	ctrl := newUploadController(t,
		func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDesc))
			w.Write([]byte(ticket))
		},
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
	)

	rec := httptest.NewRecorder()
	ctrl.RequestUpload(rec, authedRequest(http.MethodPost, "/upload_request", validUploadBody))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ticket, rec.Body.String())
	require.Equal(t, provider.UploadDescriptor{
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
		ByteSize:    1024,
		Checksum:    "1B2M2Y8AsgTpgAmY7PhCfg==",
	}, gotDesc)
}

func TestRequestUploadProviderFailure(t *testing.T) {
	ctrl := newUploadController(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"bad checksum"}`))
		},
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
	)

	rec := httptest.NewRecorder()
	ctrl.RequestUpload(rec, authedRequest(http.MethodPost, "/upload_request", validUploadBody))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, utils.ErrCodeUpstreamProtocol, decodeError(t, rec).Code)
}

func TestRecognitionResult(t *testing.T) {
	ctrl := newUploadController(t,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "signed-id-1", r.URL.Query().Get("q"))
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"status":"pending"}`))
		},
	)

	t.Run("relays provider status and body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ctrl.RecognitionResult(rec, authedRequest(http.MethodGet, "/recognition_result?q=signed-id-1", ""))

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.JSONEq(t, `{"status":"pending"}`, rec.Body.String())
	})

	t.Run("missing q parameter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ctrl.RecognitionResult(rec, authedRequest(http.MethodGet, "/recognition_result", ""))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing version header", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/recognition_result?q=signed-id-1", "")
		req.Header.Del(utils.VersionHeaderName)
		rec := httptest.NewRecorder()
		ctrl.RecognitionResult(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginController(t *testing.T) {
	ctrl := NewLoginController("", nil)

	t.Run("success with message catalog", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ctrl.Login(rec, authedRequest(http.MethodPost, "/login", "{}"))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dtos.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, utils.LoginResultSuccess, resp.LoginResult)
		require.NotEmpty(t, resp.Messages)
		require.Equal(t, "0x0001", resp.Messages[0].ID)
	})

	t.Run("missing version header", func(t *testing.T) {
		req := authedRequest(http.MethodPost, "/login", "{}")
		req.Header.Del(utils.VersionHeaderName)
		rec := httptest.NewRecorder()
		ctrl.Login(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "Unauthorized: Malformed data", decodeError(t, rec).Message)
	})

	t.Run("missing subject despite gate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{}"))
		req.Header.Set(utils.VersionHeaderName, testAppVersion)
		rec := httptest.NewRecorder()
		ctrl.Login(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginControllerCatalogFile(t *testing.T) {
	t.Run("loads catalog from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "messages.json")
		catalog := []dtos.Message{{ID: "0x0042", Type: "info", AppVersion: ">1.0(1)", Title: "Hi"}}
		raw, err := json.Marshal(catalog)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, raw, 0o644))

		ctrl := NewLoginController(path, nil)
		rec := httptest.NewRecorder()
		ctrl.Login(rec, authedRequest(http.MethodPost, "/login", "{}"))

		var resp dtos.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 1)
		require.Equal(t, "0x0042", resp.Messages[0].ID)
	})

	t.Run("broken catalog falls back to built-in", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "messages.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		ctrl := NewLoginController(path, nil)
		rec := httptest.NewRecorder()
		ctrl.Login(rec, authedRequest(http.MethodPost, "/login", "{}"))

		var resp dtos.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "0x0001", resp.Messages[0].ID)
	})
}

// TestLoginThroughGate runs the full path a real client hits: router,
// auth middleware with both credentials, then the login handler.
func TestLoginThroughGate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user-123",
		"iss": utils.TokenIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	verifier := middleware.NewStaticAttestationVerifier(utils.StaticAttestationToken)
	router := mux.NewRouter()
	protected := router.PathPrefix("/").Subrouter()
	protected.Use(middleware.AuthMiddleware(&key.PublicKey, false, verifier))
	protected.HandleFunc("/login", NewLoginController("", nil).Login).Methods(http.MethodPost)

	do := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{}"))
		req.Header.Set(utils.VersionHeaderName, testAppVersion)
		mutate(req)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("both credentials accepted", func(t *testing.T) {
		rec := do(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed)
			r.Header.Set(utils.AppCheckHeaderName, utils.StaticAttestationToken)
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp dtos.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, utils.LoginResultSuccess, resp.LoginResult)
	})

	t.Run("replayed attestation token rejected", func(t *testing.T) {
		rec := do(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed)
			r.Header.Set(utils.AppCheckHeaderName, utils.StaticAttestationToken)
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("identity token alone is not enough", func(t *testing.T) {
		verifier.Reset()
		rec := do(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed)
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
