package frame

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

// Decode parses an encoded frame in any registered format.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", apperrors.New(apperrors.CodeFrameDecodeFailed, "empty frame")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.CodeFrameDecodeFailed, "decode frame")
	}
	return img, format, nil
}
