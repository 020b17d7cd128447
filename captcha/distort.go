package captcha

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand/v2"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	imageSize   = 100
	maxShift    = 3
	blurSigma   = 0.5
	jpegQuality = 85
	maxPixels   = 4096 * 4096
)

// Distort decodes src, resamples it to 100x100, shifts every pixel by a
// random offset of up to three pixels in each direction (wrapping at the
// edges), applies a light gaussian blur and re-encodes the result as JPEG.
func Distort(src []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode captcha image: %w", err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("captcha image too large: %dx%d", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode captcha image: %w", err)
	}

	resized := imaging.Resize(img, imageSize, imageSize, imaging.Box)
	shifted := imaging.New(imageSize, imageSize, color.NRGBA{})
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			sx := wrap(x+rand.IntN(2*maxShift+1)-maxShift, imageSize)
			sy := wrap(y+rand.IntN(2*maxShift+1)-maxShift, imageSize)
			shifted.SetNRGBA(x, y, resized.NRGBAAt(sx, sy))
		}
	}
	blurred := imaging.Blur(shifted, blurSigma)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, blurred, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode captcha image: %w", err)
	}
	return out.Bytes(), nil
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
