package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/drewster99/FishIdentifierCam/internal/dtos"
	"github.com/drewster99/FishIdentifierCam/internal/metrics"
	"github.com/drewster99/FishIdentifierCam/internal/provider"
	"github.com/drewster99/FishIdentifierCam/internal/services"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

type UploadController struct {
	uploadService *services.UploadService
	counters      *metrics.CounterStore
	validate      *validator.Validate
}

func NewUploadController(uploadService *services.UploadService, counters *metrics.CounterStore) *UploadController {
	return &UploadController{
		uploadService: uploadService,
		counters:      counters,
		validate:      dtos.NewUploadValidator(),
	}
}

// RequestUpload validates the upload descriptor and relays the
// provider's signed-upload ticket. Descriptor checks fail with 400 in
// field order, first failure wins; the missing-version-header case is
// 401 (see requireClientVersion).
func (c *UploadController) RequestUpload(w http.ResponseWriter, r *http.Request) {
	c.counters.Increment("upload_requests")

	var body dtos.UploadRequestBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeInvalidPayload,
			"Bad Request: JSON body required", nil, err,
		)
		return
	}

	if err := c.validate.Struct(&body); err != nil {
		c.counters.Increment("upload_validationFailed")
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeValidation,
			"Bad Request: "+dtos.UploadValidationMessage(err), nil, err,
		)
		return
	}

	if !requireClientVersion(w, r) {
		c.counters.Increment("upload_versionCheckFailed")
		return
	}

	subject, ok := requireSubject(w, r)
	if !ok {
		c.counters.Increment("upload_uidCheckFailed")
		return
	}

	desc := provider.UploadDescriptor{
		Filename:    body.Filename,
		ContentType: body.ContentType,
		ByteSize:    int64(body.ByteSize),
		Checksum:    body.Checksum,
	}

	raw, err := c.uploadService.RequestUpload(r.Context(), subject, desc)
	if err != nil {
		c.counters.Increment("upload_providerFailed")
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithRawJSON(w, http.StatusOK, raw)
}

// RecognitionResult relays the provider's recognition result for the
// signed id in the q query parameter. Body and status pass through.
func (c *UploadController) RecognitionResult(w http.ResponseWriter, r *http.Request) {
	c.counters.Increment("result_requests")

	if !requireClientVersion(w, r) {
		c.counters.Increment("result_versionCheckFailed")
		return
	}

	subject, ok := requireSubject(w, r)
	if !ok {
		c.counters.Increment("result_uidCheckFailed")
		return
	}

	signedID := r.URL.Query().Get("q")
	if signedID == "" {
		utils.RespondErrorWithCode(
			w, http.StatusBadRequest, utils.ErrCodeValidation,
			"Bad Request: 'q' signed id is required", nil,
		)
		return
	}

	status, raw, err := c.uploadService.FetchResult(r.Context(), subject, signedID)
	if err != nil {
		c.counters.Increment("result_providerFailed")
		utils.HandleAppError(w, err)
		return
	}

	utils.RespondWithRawJSON(w, status, raw)
}
