// Package imaging turns uploaded pictures into square avatars.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// AvatarSize is the edge length of stored avatars in pixels.
const AvatarSize = 256

// MaxUploadBytes bounds how much of an upload is read.
const MaxUploadBytes = 4 << 20

// JPEGQuality is the compression quality for avatar output.
const JPEGQuality = 85

// Upload errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image exceeds upload limit")
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Avatar is an encoded avatar image.
type Avatar struct {
	Data []byte
	MIME string
}

// ProcessAvatar validates the upload by sniffing its bytes, crops the
// centered square, scales it to AvatarSize and re-encodes it as JPEG.
// Images smaller than AvatarSize are cropped but not enlarged.
func ProcessAvatar(r io.Reader) (*Avatar, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = squareThumbnail(img, AvatarSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Avatar{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

func squareThumbnail(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	edge := min(bounds.Dx(), bounds.Dy())
	x0 := bounds.Min.X + (bounds.Dx()-edge)/2
	y0 := bounds.Min.Y + (bounds.Dy()-edge)/2
	src := image.Rect(x0, y0, x0+edge, y0+edge)

	out := min(edge, size)
	dst := image.NewRGBA(image.Rect(0, 0, out, out))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("gif", "GIF8?a", gif.Decode, gif.DecodeConfig)
}
