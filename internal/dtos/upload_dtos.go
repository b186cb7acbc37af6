package dtos

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ----------------------
// Requests
// ----------------------

// UploadRequestBody is the content-addressed upload descriptor, snake_case
// on the wire. Field order matters: validation reports the first failing
// field, in declaration order.
type UploadRequestBody struct {
	Filename    string  `json:"filename" validate:"required,notblank"`
	ContentType string  `json:"content_type" validate:"required,image_mime"`
	ByteSize    float64 `json:"byte_size" validate:"required,gt=0"`
	Checksum    string  `json:"checksum" validate:"required,md5b64"`
}

var (
	contentTypeRegex = regexp.MustCompile(`(?i)^image/[a-z0-9.+-]+$`)
	checksumRegex    = regexp.MustCompile(`^[A-Za-z0-9+/]{22}==$`)
)

// NewUploadValidator returns a validator with the custom checks the
// descriptor needs registered.
func NewUploadValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("image_mime", func(fl validator.FieldLevel) bool {
		return contentTypeRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("md5b64", func(fl validator.FieldLevel) bool {
		return checksumRegex.MatchString(fl.Field().String())
	})
	return v
}

// uploadFieldMessages keeps the exact public wording shipped clients see.
var uploadFieldMessages = map[string]string{
	"Filename":    "'filename' is required and must be a non-empty string",
	"ContentType": "'content_type' must be a valid image MIME type",
	"ByteSize":    "'byte_size' must be a positive number",
	"Checksum":    "'checksum' must be a base64-encoded MD5 string",
}

// UploadValidationMessage maps a validation error to the public message
// for its first failing field.
func UploadValidationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		if msg, found := uploadFieldMessages[vErrs[0].StructField()]; found {
			return msg
		}
	}
	return "Invalid request body"
}
