package augment

import (
	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/types"
)

// Crop returns the h×w window of img whose top-left corner is (y, x).
// The window must lie inside the image.
func Crop(img types.Image, y, x, h, w int) (types.Image, error) {
	if y < 0 || x < 0 || h <= 0 || w <= 0 || y+h > img.Height || x+w > img.Width {
		return types.Image{}, errors.Errorf("crop window %dx%d@(%d,%d) outside %s image", h, w, y, x, img)
	}
	out := types.NewImage(h, w, img.Channels)
	row := w * img.Channels
	for r := 0; r < h; r++ {
		src := img.Offset(y+r, x, 0)
		copy(out.Pix[r*row:(r+1)*row], img.Pix[src:src+row])
	}
	return out, nil
}

// FlipHorizontal mirrors img left-right.
func FlipHorizontal(img types.Image) types.Image {
	out := types.NewImage(img.Height, img.Width, img.Channels)
	c := img.Channels
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			src := img.Offset(y, img.Width-1-x, 0)
			dst := out.Offset(y, x, 0)
			copy(out.Pix[dst:dst+c], img.Pix[src:src+c])
		}
	}
	return out
}

// RotateQuarter rotates img counter-clockwise by k quarter turns. k is taken modulo 4.
func RotateQuarter(img types.Image, k int) types.Image {
	k = ((k % 4) + 4) % 4
	if k == 0 {
		out := types.NewImage(img.Height, img.Width, img.Channels)
		copy(out.Pix, img.Pix)
		return out
	}

	h, w, c := img.Height, img.Width, img.Channels
	var out types.Image
	if k == 2 {
		out = types.NewImage(h, w, c)
	} else {
		out = types.NewImage(w, h, c)
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			var sy, sx int
			switch k {
			case 1:
				sy, sx = x, w-1-y
			case 2:
				sy, sx = h-1-y, w-1-x
			case 3:
				sy, sx = h-1-x, y
			}
			src := img.Offset(sy, sx, 0)
			dst := out.Offset(y, x, 0)
			copy(out.Pix[dst:dst+c], img.Pix[src:src+c])
		}
	}
	return out
}

// Normalize maps 8-bit samples to [0,1] by dividing by 255.
func Normalize(img types.Image) types.FloatImage {
	out := types.FloatImage{
		Height:   img.Height,
		Width:    img.Width,
		Channels: img.Channels,
		Pix:      make([]float64, len(img.Pix)),
	}
	for i, v := range img.Pix {
		out.Pix[i] = float64(v) / 255
	}
	return out
}
