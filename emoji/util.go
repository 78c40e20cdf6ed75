package emoji

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// alphaBBox 从 alpha 通道计算主体 bounding box
// 把 alpha > threshold 的像素当作“主体”，没有任何主体像素时 found 为 false
func alphaBBox(img *image.NRGBA, threshold uint8) (bbox image.Rectangle, found bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			a := img.Pix[row+(x-b.Min.X)*4+3]
			if a > threshold {
				found = true
				minX = min(minX, x)
				minY = min(minY, y)
				maxX = max(maxX, x)
				maxY = max(maxY, y)
			}
		}
	}

	if !found {
		return image.Rectangle{}, false
	}

	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// cropPadded 按 bounding box 加 padding 裁剪
// 左上角向外扩 padding 后夹到图像内，宽高为 box+2*padding 再夹到剩余范围内
func cropPadded(img *image.NRGBA, bbox image.Rectangle, padding int) *image.NRGBA {
	b := img.Bounds()
	x0 := max(bbox.Min.X-padding, b.Min.X)
	y0 := max(bbox.Min.Y-padding, b.Min.Y)
	w := min(bbox.Dx()+2*padding, b.Max.X-x0)
	h := min(bbox.Dy()+2*padding, b.Max.Y-y0)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(x0, y0), draw.Src)
	return dst
}

// fitSize 等比缩放到最长边为 target
func fitSize(w, h, target int) (int, int) {
	scale := min(float64(target)/float64(w), float64(target)/float64(h))
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}

// centerOnCanvas Lanczos3 缩放后居中贴到全透明的 canvas×canvas 画布上
func centerOnCanvas(img *image.NRGBA, canvas, content int) *image.NRGBA {
	nw, nh := fitSize(img.Bounds().Dx(), img.Bounds().Dy(), content)
	scaled := toNRGBA(resize.Resize(uint(nw), uint(nh), img, resize.Lanczos3))

	dst := image.NewNRGBA(image.Rect(0, 0, canvas, canvas))
	offX := (canvas - nw) / 2
	offY := (canvas - nh) / 2
	draw.Draw(dst, image.Rect(offX, offY, offX+nw, offY+nh), scaled, scaled.Bounds().Min, draw.Src)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
