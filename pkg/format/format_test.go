package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stegoscope/pkg/models"
)

func padded(magic []byte) []byte {
	out := make([]byte, SniffLen+8)
	copy(out, magic)
	return out
}

func TestDetectKnownSignatures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want models.Format
	}{
		{"png", padded([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}), models.FormatPNG},
		{"jpeg", padded([]byte{0xff, 0xd8, 0xff, 0xe0}), models.FormatJPEG},
		{"gif87a", padded([]byte("GIF87a")), models.FormatGIF},
		{"gif89a", padded([]byte("GIF89a")), models.FormatGIF},
		{"bmp", padded([]byte("BM")), models.FormatBMP},
		{"tiff little endian", padded([]byte{'I', 'I', 0x2a, 0x00}), models.FormatTIFF},
		{"tiff big endian", padded([]byte{'M', 'M', 0x00, 0x2a}), models.FormatTIFF},
		{"webp", []byte("RIFF\x10\x00\x00\x00WEBPVP8 "), models.FormatWEBP},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Detect(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetectFailsClosedToUnknown(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"plain text", []byte("definitely not an image")},
		{"riff but not webp", []byte("RIFF\x10\x00\x00\x00WAVEfmt ")},
		{"high entropy", bytes.Repeat([]byte{0xa7, 0x13, 0xee}, 16)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Detect(tc.data)
			require.NoError(t, err, "unknown is a classification, not an error")
			assert.Equal(t, models.FormatUnknown, got)
		})
	}
}

func TestDetectRejectsUnprocessableInput(t *testing.T) {
	_, err := Detect(nil)
	assert.ErrorIs(t, err, ErrEmptySubmission)

	_, err = Detect([]byte{})
	assert.ErrorIs(t, err, ErrEmptySubmission)

	_, err = Detect([]byte("BM"))
	assert.ErrorIs(t, err, ErrUnreadableSubmission, "too short to sniff, even with a plausible prefix")
}

func TestDetectIgnoresTrailingBytes(t *testing.T) {
	data := append(padded([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}),
		[]byte("RIFFWEBP trailing noise")...)
	got, err := Detect(data)
	require.NoError(t, err)
	assert.Equal(t, models.FormatPNG, got)
}
