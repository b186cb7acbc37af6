package capture

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMD5Base64KnownVector(t *testing.T) {
	// md5 of the empty input, base64 of the raw 16-byte digest.
	require.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", MD5Base64(nil))
	require.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", MD5Base64([]byte{}))
}

func TestMD5Base64Shape(t *testing.T) {
	sum := MD5Base64([]byte("some image bytes"))
	require.Len(t, sum, 24)
	require.True(t, strings.HasSuffix(sum, "=="))
	require.Equal(t, sum, MD5Base64([]byte("some image bytes")))
	require.NotEqual(t, sum, MD5Base64([]byte("other image bytes")))
}

func TestNewDescriptorEncodesPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{R: 255, A: 255})
	}

	desc, err := NewDescriptor(img)
	require.NoError(t, err)

	require.Equal(t, "image/png", desc.ContentType)
	require.True(t, strings.HasSuffix(desc.Filename, ".png"))
	require.NotEmpty(t, desc.RequestID)
	require.Equal(t, int64(len(desc.Data)), desc.ByteSize)
	require.Positive(t, desc.ByteSize)
	require.Equal(t, MD5Base64(desc.Data), desc.Checksum)
}

func TestNewDescriptorNilImage(t *testing.T) {
	_, err := NewDescriptor(nil)
	require.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestNewDescriptorFromBytes(t *testing.T) {
	data := []byte("already-encoded-jpeg-bytes")

	desc, err := NewDescriptorFromBytes(data, "image/jpeg", "photo.jpg")
	require.NoError(t, err)
	require.Equal(t, "photo.jpg", desc.Filename)
	require.Equal(t, "image/jpeg", desc.ContentType)
	require.Equal(t, int64(len(data)), desc.ByteSize)
	require.Equal(t, MD5Base64(data), desc.Checksum)
	require.Equal(t, data, desc.Data)
}

func TestNewDescriptorFromBytesRejectsEmpty(t *testing.T) {
	_, err := NewDescriptorFromBytes(nil, "image/jpeg", "photo.jpg")
	require.ErrorIs(t, err, ErrUnrecognizedFormat)

	_, err = NewDescriptorFromBytes([]byte("x"), "", "photo.jpg")
	require.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestNewDescriptorFromBytesGeneratesFilename(t *testing.T) {
	desc, err := NewDescriptorFromBytes([]byte("x"), "image/png", "")
	require.NoError(t, err)
	require.NotEmpty(t, desc.Filename)
}
