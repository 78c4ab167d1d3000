// Package imaging turns wardrobe photos into small JPEG thumbnails.
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

// ThumbnailSize is the default bound on a thumbnail's width and height.
const ThumbnailSize = 256

// MaxSourceBytes caps how much of a source image is read.
const MaxSourceBytes = 10 << 20

// JPEGQuality is the compression quality for thumbnails.
const JPEGQuality = 80

// ErrTooLarge is returned when the source exceeds MaxSourceBytes.
var ErrTooLarge = errors.New("image too large")

// supported lists the source formats, sniffed from the bytes.
var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Result is an encoded thumbnail.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Thumbnail decodes a JPEG, PNG or GIF image and re-encodes it as a JPEG
// no larger than maxDim on either side. Smaller images keep their size.
func Thumbnail(r io.Reader, maxDim int) (*Result, error) {
	if maxDim <= 0 {
		maxDim = ThumbnailSize
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxSourceBytes {
		return nil, ErrTooLarge
	}

	detected := http.DetectContentType(data)
	if !supported[detected] {
		return nil, fmt.Errorf("unsupported image format: %s", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = fit(img, maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Result{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// fit scales img down so neither side exceeds maxDim, keeping the aspect
// ratio. Transparent areas are flattened onto white.
func fit(img image.Image, maxDim int) image.Image {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()

	newW, newH := w, h
	if w > maxDim || h > maxDim {
		if w > h {
			newW = maxDim
			newH = max(1, h*maxDim/w)
		} else {
			newH = maxDim
			newW = max(1, w*maxDim/h)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if newW == w && newH == h {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	}
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("gif", "GIF8", gif.Decode, gif.DecodeConfig)
}
