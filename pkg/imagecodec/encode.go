package imagecodec

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/disintegration/imaging"
)

func encode(img image.Image, format imaging.Format, opts ...imaging.EncodeOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodePNG(b *PixelBuffer) ([]byte, error) {
	return encode(b.NRGBA(), imaging.PNG)
}

func EncodeJPEG(b *PixelBuffer, quality int) ([]byte, error) {
	return encode(b.NRGBA(), imaging.JPEG, imaging.JPEGQuality(quality))
}

// EncodeBase64PNG renders img as the transport form accepted by Decode.
func EncodeBase64PNG(img image.Image) (string, error) {
	data, err := encode(img, imaging.PNG)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
