package rembg

import (
	"errors"
	"fmt"
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	ErrInconsistentBackground = errors.New("background inconsistent")
	ErrNotGreenDominant       = errors.New("background not green-dominant")
	ErrEmptyImage             = errors.New("empty image")
)

// Background 由四个角采样得到的背景色，Valid 只有在采样成功时为 true
type Background struct {
	R, G, B uint8
	Valid   bool
}

// Hex 返回 #rrggbb 形式，用于日志和进度事件
func (b Background) Hex() string {
	return colorful.Color{
		R: float64(b.R) / 255,
		G: float64(b.G) / 255,
		B: float64(b.B) / 255,
	}.Hex()
}

func (b Background) String() string {
	return fmt.Sprintf("(%d,%d,%d)", b.R, b.G, b.B)
}

// matches 每个通道与背景色的差值都小于 tolerance
func (b Background) matches(r, g, bl uint8, tolerance int) bool {
	return absDiff(r, b.R) < tolerance && absDiff(g, b.G) < tolerance && absDiff(bl, b.B) < tolerance
}

type InconsistentBackgroundError struct {
	Reference Background
	Corner    Background
	Index     int
}

func (e *InconsistentBackgroundError) Error() string {
	return fmt.Sprintf("%s: corner 0 is %s, corner %d is %s", ErrInconsistentBackground, e.Reference, e.Index, e.Corner)
}

func (e *InconsistentBackgroundError) Is(target error) bool {
	return target == ErrInconsistentBackground
}

type NotGreenDominantError struct {
	Average Background
}

func (e *NotGreenDominantError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotGreenDominant, e.Average)
}

func (e *NotGreenDominantError) Is(target error) bool {
	return target == ErrNotGreenDominant
}

// Sample 读取四个角的像素判断是否存在可去除的绿色背景
//
//	四个角与左上角逐通道比较，差值超过 CornerTolerance 即失败
//	四角 RGB 取整数平均，G 必须严格大于 R 和 B
//
// 结果只取决于四个角，alpha 不参与计算
func Sample(img *image.NRGBA, th Thresholds) (Background, error) {
	b := img.Bounds()
	if b.Empty() {
		return Background{}, ErrEmptyImage
	}

	corners := [4]Background{
		pixelAt(img, b.Min.X, b.Min.Y),
		pixelAt(img, b.Max.X-1, b.Min.Y),
		pixelAt(img, b.Min.X, b.Max.Y-1),
		pixelAt(img, b.Max.X-1, b.Max.Y-1),
	}

	ref := corners[0]
	for i := 1; i < len(corners); i++ {
		c := corners[i]
		if absDiff(c.R, ref.R) > th.CornerTolerance ||
			absDiff(c.G, ref.G) > th.CornerTolerance ||
			absDiff(c.B, ref.B) > th.CornerTolerance {
			return Background{}, &InconsistentBackgroundError{Reference: ref, Corner: c, Index: i}
		}
	}

	var sr, sg, sb int
	for _, c := range corners {
		sr += int(c.R)
		sg += int(c.G)
		sb += int(c.B)
	}
	avg := Background{R: uint8(sr / 4), G: uint8(sg / 4), B: uint8(sb / 4)}

	if avg.G <= avg.R || avg.G <= avg.B {
		return Background{}, &NotGreenDominantError{Average: avg}
	}

	avg.Valid = true
	return avg, nil
}

func pixelAt(img *image.NRGBA, x, y int) Background {
	i := img.PixOffset(x, y)
	return Background{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2]}
}
