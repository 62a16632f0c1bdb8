package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	stddraw "image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// MaxDimension caps the longest side of an embedded image in pixels.
const MaxDimension = 2000

var ErrUnsupportedImage = errors.New("unsupported image type")

// Image is a decoded picture re-encoded into a form the PDF writer accepts.
type Image struct {
	Data   []byte
	Type   string // "PNG" or "JPEG"
	Width  int
	Height int
}

func (i Image) AspectRatio() float64 {
	if i.Height == 0 {
		return 0
	}
	return float64(i.Width) / float64(i.Height)
}

// Decode sniffs raw and returns it as PNG or JPEG. JPEGs within MaxDimension
// pass through untouched; everything else is decoded, downscaled if needed
// and written out as 8-bit PNG.
func Decode(raw []byte) (Image, error) {
	if len(raw) == 0 {
		return Image{}, errors.New("image is empty")
	}
	mime := mimetype.Detect(raw).String()
	switch mime {
	case "image/jpeg":
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return Image{}, fmt.Errorf("decode jpeg: %w", err)
		}
		if cfg.Width <= MaxDimension && cfg.Height <= MaxDimension {
			return Image{Data: raw, Type: "JPEG", Width: cfg.Width, Height: cfg.Height}, nil
		}
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			return Image{}, fmt.Errorf("decode jpeg: %w", err)
		}
		return encodeJPEG(downscale(img))
	case "image/png":
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return Image{}, fmt.Errorf("decode png: %w", err)
		}
		return encodePNG(downscale(img))
	case "image/webp":
		img, err := webp.Decode(bytes.NewReader(raw))
		if err != nil {
			return Image{}, fmt.Errorf("decode webp: %w", err)
		}
		return encodePNG(downscale(img))
	case "image/gif":
		img, err := gif.Decode(bytes.NewReader(raw))
		if err != nil {
			return Image{}, fmt.Errorf("decode gif: %w", err)
		}
		return encodePNG(downscale(img))
	default:
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mime)
	}
}

func downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= MaxDimension && h <= MaxDimension {
		return img
	}
	scale := float64(MaxDimension) / float64(max(w, h))
	tw := max(1, int(float64(w)*scale+0.5))
	th := max(1, int(float64(h)*scale+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func encodePNG(img image.Image) (Image, error) {
	// The PDF writer rejects 16-bit and interlaced PNGs, so flatten to NRGBA.
	b := img.Bounds()
	flat, ok := img.(*image.NRGBA)
	if !ok {
		flat = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		stddraw.Draw(flat, flat.Bounds(), img, b.Min, stddraw.Src)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, flat); err != nil {
		return Image{}, fmt.Errorf("encode png: %w", err)
	}
	return Image{Data: out.Bytes(), Type: "PNG", Width: b.Dx(), Height: b.Dy()}, nil
}

func encodeJPEG(img image.Image) (Image, error) {
	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 85}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}
	b := img.Bounds()
	return Image{Data: out.Bytes(), Type: "JPEG", Width: b.Dx(), Height: b.Dy()}, nil
}
