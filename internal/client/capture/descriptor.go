// Package capture turns a captured image into a content-addressed upload
// descriptor: encoded bytes, MIME type, byte size, and an md5 checksum in
// the base64 form the identification provider expects.
package capture

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/google/uuid"
)

// ErrUnrecognizedFormat is the only capture failure a user ever sees.
var ErrUnrecognizedFormat = errors.New("we don't recognize the image format of this photo; please try as JPEG or PNG")

// Descriptor describes a not-yet-uploaded image. Immutable once created;
// it is the canonical request body for the upload-request step.
type Descriptor struct {
	RequestID   string
	Filename    string
	ContentType string
	ByteSize    int64
	Checksum    string

	// Data is the exact encoded bytes the checksum covers. The direct
	// upload must send these bytes and no others.
	Data []byte
}

// NewDescriptor encodes img and builds its descriptor. Encoding priority
// is fixed: lossless PNG first, then JPEG at maximum quality. ByteSize
// and Checksum are computed over the encoded bytes actually produced,
// not the caller's original blob.
func NewDescriptor(img image.Image) (Descriptor, error) {
	if img == nil {
		return Descriptor{}, ErrUnrecognizedFormat
	}

	name := uuid.New().String()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err == nil {
		return fromEncoded(buf.Bytes(), "image/png", name+".png")
	}

	buf.Reset()
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err == nil {
		return fromEncoded(buf.Bytes(), "image/jpeg", name+".jpg")
	}

	return Descriptor{}, ErrUnrecognizedFormat
}

// NewDescriptorFromBytes builds a descriptor for bytes that are already
// in their final encoded form, with the caller declaring the MIME type.
// Used when uploading files straight from disk.
func NewDescriptorFromBytes(data []byte, contentType, filename string) (Descriptor, error) {
	if len(data) == 0 || contentType == "" {
		return Descriptor{}, ErrUnrecognizedFormat
	}
	if filename == "" {
		filename = uuid.New().String()
	}
	return fromEncoded(data, contentType, filename)
}

func fromEncoded(data []byte, contentType, filename string) (Descriptor, error) {
	return Descriptor{
		RequestID:   uuid.New().String(),
		Filename:    filename,
		ContentType: contentType,
		ByteSize:    int64(len(data)),
		Checksum:    MD5Base64(data),
		Data:        data,
	}, nil
}

// MD5Base64 returns the base64 encoding of the raw 16-byte md5 digest:
// 22 base64 characters plus "==" padding. This is a content-integrity
// check agreed bit-for-bit with the provider, not a security signature.
func MD5Base64(data []byte) string {
	digest := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(digest[:])
}
