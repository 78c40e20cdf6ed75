package rembg

import (
	"image"
)

const (
	StrategyFloodFill = "flood_fill"
	StrategyColorKey  = "color_key"
)

// Remover 把背景像素变成全透明，返回与输入同尺寸的新图像，输入本身不会被修改
type Remover interface {
	Name() string
	Remove(src *image.NRGBA, bg Background) *image.NRGBA
}

// Thresholds 背景检测与去除使用的阈值，都是针对绿色背景调出来的经验值
type Thresholds struct {
	// 四个角之间每个通道允许的最大差值
	CornerTolerance int
	// 泛洪填充时像素与背景色每个通道的差值必须小于它，比 CornerTolerance 更严
	MatchTolerance int
	// 色键：R < KeyMaxRed && G > KeyMinGreen && B < KeyMaxBlue 视为背景
	KeyMaxRed   uint8
	KeyMinGreen uint8
	KeyMaxBlue  uint8
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CornerTolerance: 50,
		MatchTolerance:  40,
		KeyMaxRed:       60,
		KeyMinGreen:     200,
		KeyMaxBlue:      60,
	}
}

// NewRemovers 返回默认的两种策略，顺序固定：泛洪填充在前，色键在后
func NewRemovers(th Thresholds) []Remover {
	return []Remover{
		NewFloodFill(th.MatchTolerance),
		NewColorKey(th.KeyMaxRed, th.KeyMinGreen, th.KeyMaxBlue),
	}
}

// clone 复制一份从 (0,0) 开始的 NRGBA，各策略都在自己的副本上改 alpha
func clone(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	rowLen := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], src.Pix[si:si+rowLen])
	}
	return dst
}

func erase(pix []uint8, i int) {
	pix[i] = 0
	pix[i+1] = 0
	pix[i+2] = 0
	pix[i+3] = 0
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
