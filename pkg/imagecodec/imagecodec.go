// Package imagecodec turns transport-encoded frames into 3-channel pixel
// buffers and back.
//
// Decoded buffers come out in BGR order. Consumers that expect RGB must call
// SwapRedBlue first; the two orders are never converted implicitly.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"FaceDetection/pkg/env"

	"github.com/disintegration/imaging"
)

const Channels = 3

// DefaultMaxPixels bounds the declared width x height of a frame when
// FRAME_MAX_PIXELS is unset.
const DefaultMaxPixels = 40_000_000

type ChannelOrder int

const (
	OrderBGR ChannelOrder = iota
	OrderRGB
)

func (o ChannelOrder) String() string {
	switch o {
	case OrderBGR:
		return "BGR"
	case OrderRGB:
		return "RGB"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", int(o))
	}
}

var (
	ErrEmptyFrame       = errors.New("empty frame")
	ErrMissingSeparator = errors.New("data URL without comma separator")
	ErrEmptyImage       = errors.New("decoded image has no pixels")
	ErrInvalidBase64    = errors.New("invalid base64 payload")
	ErrFrameTooLarge    = errors.New("frame dimensions exceed the pixel limit")
)

// PixelBuffer is a decoded image, Height rows of Width pixels, Channels bytes
// per pixel.
type PixelBuffer struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []uint8
}

func (b *PixelBuffer) Stride() int {
	return b.Width * Channels
}

// Pixel returns the three channel values at (x, y) in buffer order.
func (b *PixelBuffer) Pixel(x, y int) (uint8, uint8, uint8) {
	i := y*b.Stride() + x*Channels
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// SwapRedBlue returns a copy with the first and third channel exchanged and
// the order flipped accordingly.
func (b *PixelBuffer) SwapRedBlue() *PixelBuffer {
	pix := make([]uint8, len(b.Pix))
	for i := 0; i+2 < len(b.Pix); i += Channels {
		pix[i] = b.Pix[i+2]
		pix[i+1] = b.Pix[i+1]
		pix[i+2] = b.Pix[i]
	}

	order := OrderRGB
	if b.Order == OrderRGB {
		order = OrderBGR
	}

	return &PixelBuffer{
		Width:  b.Width,
		Height: b.Height,
		Order:  order,
		Pix:    pix,
	}
}

// NRGBA converts the buffer into an opaque image.NRGBA, honouring Order.
func (b *PixelBuffer) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c0, c1, c2 := b.Pixel(x, y)
			r, g, bl := c0, c1, c2
			if b.Order == OrderBGR {
				r, bl = c2, c0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: 0xff})
		}
	}
	return img
}

// FromImage copies img into a BGR buffer. Alpha is dropped.
func FromImage(img image.Image) *PixelBuffer {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	pix := make([]uint8, w*h*Channels)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			o := (y*w + x) * Channels
			pix[o] = row[i+2]
			pix[o+1] = row[i+1]
			pix[o+2] = row[i]
		}
	}

	return &PixelBuffer{
		Width:  w,
		Height: h,
		Order:  OrderBGR,
		Pix:    pix,
	}
}

// StripDataURL removes a leading "data:image...," header. Strings without the
// header are returned unchanged.
func StripDataURL(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "data:image") {
		return encoded, nil
	}

	_, rest, found := strings.Cut(encoded, ",")
	if !found {
		return "", ErrMissingSeparator
	}
	return rest, nil
}

// DecodeBase64 decodes padded or unpadded standard base64, ignoring
// surrounding whitespace and line breaks.
func DecodeBase64(encoded string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, encoded)

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
	}
	return data, nil
}

// DecodeBytes decodes a compressed raster container (JPEG, PNG, GIF, BMP,
// TIFF, WebP) applying any EXIF orientation. Containers declaring more than
// FRAME_MAX_PIXELS pixels are refused before any pixel memory is allocated.
func DecodeBytes(data []byte) (*PixelBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if limit := int64(env.Int("FRAME_MAX_PIXELS", DefaultMaxPixels)); int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, fmt.Errorf("%w: %dx%d over %d", ErrFrameTooLarge, cfg.Width, cfg.Height, limit)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image container: %w", err)
	}

	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	return FromImage(img), nil
}

// Decode turns a transport-encoded frame into a BGR buffer. It never panics;
// any failure yields a nil buffer and the cause.
func Decode(encoded string) (buf *PixelBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("decode frame: %v", r)
		}
	}()

	if encoded == "" {
		return nil, ErrEmptyFrame
	}

	payload, err := StripDataURL(encoded)
	if err != nil {
		return nil, err
	}

	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}

	return DecodeBytes(data)
}
