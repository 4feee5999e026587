package qr

import (
	"image"

	"golang.org/x/image/draw"
)

// variants returns the contrast/geometry transforms tried during decoding:
// original, color-inverted, grayscale, grayscale-inverted, contrast-stretched,
// upscaled, and fixed-threshold binarized.
func variants(img image.Image) []image.Image {
	rgb := toRGBA(img)
	g := toGray(img)
	return []image.Image{
		rgb,
		invertRGBA(rgb),
		g,
		invertGray(g),
		autoContrast(g, 2),
		upscale(g, 2),
		threshold(g, 128),
	}
}

func rotations(img image.Image) []image.Image {
	r90 := rotate90(img)
	r180 := rotate90(r90)
	r270 := rotate90(r180)
	return []image.Image{img, r90, r180, r270}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func invertRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255 - out.Pix[i]
		out.Pix[i+1] = 255 - out.Pix[i+1]
		out.Pix[i+2] = 255 - out.Pix[i+2]
	}
	return out
}

func invertGray(img *image.Gray) *image.Gray {
	out := image.NewGray(img.Bounds())
	for i, p := range img.Pix {
		out.Pix[i] = 255 - p
	}
	return out
}

// autoContrast stretches gray levels to the full range, ignoring the darkest
// and brightest cutoff percent of pixels.
func autoContrast(img *image.Gray, cutoff int) *image.Gray {
	var hist [256]int
	for _, p := range img.Pix {
		hist[p]++
	}
	total := len(img.Pix)
	if total == 0 {
		return img
	}
	clip := total * cutoff / 100

	lo, hi := 0, 255
	for n := 0; lo < 255; lo++ {
		n += hist[lo]
		if n > clip {
			break
		}
	}
	for n := 0; hi > 0; hi-- {
		n += hist[hi]
		if n > clip {
			break
		}
	}
	if hi <= lo {
		return img
	}

	out := image.NewGray(img.Bounds())
	scale := 255.0 / float64(hi-lo)
	for i, p := range img.Pix {
		v := (float64(int(p)-lo)) * scale
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out.Pix[i] = uint8(v)
	}
	return out
}

func upscale(img image.Image, factor int) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}

func threshold(img *image.Gray, level uint8) *image.Gray {
	out := image.NewGray(img.Bounds())
	for i, p := range img.Pix {
		if p >= level {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(b.Max.Y-1-y, x-b.Min.X, img.At(x, y))
		}
	}
	return out
}
