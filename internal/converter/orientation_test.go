package converter

import (
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRotation(t *testing.T) {
	tests := []struct {
		orientation uint16
		want        int
	}{
		{1, 0},
		{2, 0}, // mirrored
		{3, 180},
		{4, 0},
		{5, 0},
		{6, 90},
		{7, 0},
		{8, 270},
		{0, 0},
		{42, 0},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			got, err := ReadRotation(orientedJPEG(t, 8, 4, tt.orientation))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "orientation %d", tt.orientation)
		})
	}
}

func TestReadRotationWithoutMetadata(t *testing.T) {
	for name, data := range map[string][]byte{
		"jpeg": encodeAs(t, gradient(8, 4), imaging.JPEG),
		"png":  encodeAs(t, gradient(8, 4), imaging.PNG),
		"text": []byte("plain text"),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := ReadRotation(data)
			assert.NoError(t, err)
			assert.Equal(t, 0, got)
		})
	}
}

func TestReadRotationCorruptMetadata(t *testing.T) {
	data := withExif(t, encodeAs(t, gradient(8, 4), imaging.JPEG), tiffBrokenIFD())

	got, err := ReadRotation(data)
	assert.Error(t, err)
	assert.Equal(t, 0, got)
}

func TestReadRotationDoesNotAffectPixels(t *testing.T) {
	data := orientedJPEG(t, 8, 4, 6)

	pixels, err := DecodePixels(data)
	require.NoError(t, err)
	assert.Equal(t, 8, pixels.Bounds().Dx())
	assert.Equal(t, 4, pixels.Bounds().Dy())
}
