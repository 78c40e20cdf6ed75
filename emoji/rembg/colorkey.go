package rembg

import "image"

// ColorKey 逐像素按颜色范围判断背景，不考虑连通性，被主体包围的绿色也会被去掉
type ColorKey struct {
	MaxRed   uint8
	MinGreen uint8
	MaxBlue  uint8
}

func NewColorKey(maxRed, minGreen, maxBlue uint8) *ColorKey {
	return &ColorKey{MaxRed: maxRed, MinGreen: minGreen, MaxBlue: maxBlue}
}

func (c *ColorKey) Name() string {
	return StrategyColorKey
}

// Remove 不使用 bg，只看像素自身颜色
func (c *ColorKey) Remove(src *image.NRGBA, _ Background) *image.NRGBA {
	dst := clone(src)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		if c.keyed(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2]) {
			erase(dst.Pix, i)
		}
	}
	return dst
}

func (c *ColorKey) keyed(r, g, b uint8) bool {
	return r < c.MaxRed && g > c.MinGreen && b < c.MaxBlue
}

var _ Remover = (*ColorKey)(nil)
