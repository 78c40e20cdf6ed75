package rembg

import "image"

// FloodFill 从图像四条边出发做 4 连通泛洪，只有与边缘连通的背景色像素才会被去除，
// 被主体包围的同色区域（比如绿色的内部装饰）保持不变
type FloodFill struct {
	Tolerance int
}

func NewFloodFill(tolerance int) *FloodFill {
	return &FloodFill{Tolerance: tolerance}
}

func (f *FloodFill) Name() string {
	return StrategyFloodFill
}

func (f *FloodFill) Remove(src *image.NRGBA, bg Background) *image.NRGBA {
	dst := clone(src)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	if w == 0 || h == 0 {
		return dst
	}

	visited := make([]bool, w*h)
	// 显式栈，避免大图递归过深
	stack := make([]int, 0, 2*(w+h))
	for x := 0; x < w; x++ {
		stack = append(stack, x, (h-1)*w+x)
	}
	for y := 1; y < h-1; y++ {
		stack = append(stack, y*w, y*w+w-1)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[p] {
			continue
		}
		visited[p] = true

		x, y := p%w, p/w
		i := y*dst.Stride + x*4
		if !bg.matches(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], f.Tolerance) {
			// 主体像素不继续扩散
			continue
		}
		erase(dst.Pix, i)

		if x > 0 {
			stack = append(stack, p-1)
		}
		if x < w-1 {
			stack = append(stack, p+1)
		}
		if y > 0 {
			stack = append(stack, p-w)
		}
		if y < h-1 {
			stack = append(stack, p+w)
		}
	}

	return dst
}

var _ Remover = (*FloodFill)(nil)
