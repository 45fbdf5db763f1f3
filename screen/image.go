package screen

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var gridColor = color.RGBA{R: 200, G: 20, B: 20, A: 255}

// Fit scales img down so its longest side is at most maxDim, keeping the
// aspect ratio. It returns the source pixels per output pixel; 1 when img
// already fits.
func Fit(img image.Image, maxDim int) (image.Image, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img, 1
	}

	scale := float64(maxDim) / float64(max(w, h))
	nw := max(int(float64(w)*scale), 1)
	nh := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, float64(w) / float64(nw)
}

// Grid copies img and overlays labelled lines every step pixels so the
// model can name coordinates. step <= 0 returns a plain copy.
func Grid(img image.Image, step int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if step <= 0 {
		return dst
	}

	w, h := b.Dx(), b.Dy()
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(gridColor), Face: face}

	for x := 0; x < w; x += step {
		for y := 0; y < h; y++ {
			dst.SetRGBA(x, y, gridColor)
		}
		d.Dot = fixed.P(x+2, 2+ascent)
		d.DrawString(strconv.Itoa(x))
	}
	for y := 0; y < h; y += step {
		for x := 0; x < w; x++ {
			dst.SetRGBA(x, y, gridColor)
		}
		d.Dot = fixed.P(2, y+2+ascent)
		d.DrawString(strconv.Itoa(y))
	}
	return dst
}

// EncodeJPEG encodes img at the given quality
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
