package analysis

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// decodeFrame decodes one JPEG frame.
func decodeFrame(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg frame: %w", err)
	}
	return img, nil
}

// toGray converts a frame to 8-bit luma for motion differencing.
func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.At(x, y)).(color.Gray))
		}
	}
	return gray
}

// resizeRGB bilinearly resamples a frame to w by h and returns NHWC
// float32 data normalized to 0..1, the layout both model inputs expect.
func resizeRGB(img image.Image, w, h int) []float32 {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	out := make([]float32, w*h*3)
	if srcW == 0 || srcH == 0 {
		return out
	}

	scaleX := float64(srcW) / float64(w)
	scaleY := float64(srcH) / float64(h)
	for y := 0; y < h; y++ {
		srcY := (float64(y)+0.5)*scaleY - 0.5
		y0 := int(srcY)
		fy := srcY - float64(y0)
		if y0 < 0 {
			y0, fy = 0, 0
		}
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}
		for x := 0; x < w; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			x0 := int(srcX)
			fx := srcX - float64(x0)
			if x0 < 0 {
				x0, fx = 0, 0
			}
			x1 := x0 + 1
			if x1 >= srcW {
				x1 = srcW - 1
			}

			r00, g00, b00 := rgbAt(img, bounds.Min.X+x0, bounds.Min.Y+y0)
			r10, g10, b10 := rgbAt(img, bounds.Min.X+x1, bounds.Min.Y+y0)
			r01, g01, b01 := rgbAt(img, bounds.Min.X+x0, bounds.Min.Y+y1)
			r11, g11, b11 := rgbAt(img, bounds.Min.X+x1, bounds.Min.Y+y1)

			idx := (y*w + x) * 3
			out[idx] = lerp2(r00, r10, r01, r11, fx, fy)
			out[idx+1] = lerp2(g00, g10, g01, g11, fx, fy)
			out[idx+2] = lerp2(b00, b10, b01, b11, fx, fy)
		}
	}
	return out
}

func rgbAt(img image.Image, x, y int) (float64, float64, float64) {
	r, g, b, _ := img.At(x, y).RGBA()
	return float64(r) / 65535, float64(g) / 65535, float64(b) / 65535
}

func lerp2(v00, v10, v01, v11, fx, fy float64) float32 {
	top := v00 + (v10-v00)*fx
	bottom := v01 + (v11-v01)*fx
	return float32(top + (bottom-top)*fy)
}
