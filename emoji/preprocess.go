package emoji

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/chaos-io/mojimix/emoji/rembg"
)

var (
	ErrDecode = errors.New("failed to load image")
	ErrEncode = errors.New("failed to encode PNG")
)

type Options struct {
	Thresholds rembg.Thresholds
	// alpha 大于它才算可见像素，过滤抗锯齿噪点
	Visibility uint8
	// 裁剪时 bounding box 每边向外扩的像素数
	Padding int
	// 输出画布边长
	CanvasSize int
	// 主体缩放后的最长边，必须小于 CanvasSize 留出边距
	ContentSize int
}

func DefaultOptions() Options {
	return Options{
		Thresholds:  rembg.DefaultThresholds(),
		Visibility:  10,
		Padding:     4,
		CanvasSize:  128,
		ContentSize: 120,
	}
}

// Variant 一种去背景策略得到的最终 PNG
type Variant struct {
	Strategy string
	PNG      []byte
}

// Variants 同一张原图按每种策略各处理一次的结果，顺序与 Processor.Removers 一致
type Variants struct {
	Background rembg.Background
	Items      []Variant
}

func (v *Variants) Get(strategy string) ([]byte, bool) {
	if v == nil {
		return nil, false
	}
	for _, it := range v.Items {
		if it.Strategy == strategy {
			return it.PNG, true
		}
	}
	return nil, false
}

type Processor struct {
	opt      Options
	Removers []rembg.Remover
}

func NewProcessor(opt Options) *Processor {
	return &Processor{
		opt:      opt,
		Removers: rembg.NewRemovers(opt.Thresholds),
	}
}

func (p *Processor) Options() Options {
	return p.opt
}

// Process 把生成模型返回的原始字节变成若干张 128×128 透明底 PNG
//
//	解码 → 四角采样背景色 → 每种策略在自己的副本上去背景 → 裁剪 → 居中缩放 → PNG
//
// 任何一步失败都返回错误，不会返回只有部分策略结果的 Variants
func (p *Processor) Process(raw []byte) (*Variants, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return p.ProcessImage(img)
}

func (p *Processor) ProcessImage(input image.Image) (*Variants, error) {
	src := toNRGBA(input)

	bg, err := rembg.Sample(src, p.opt.Thresholds)
	if err != nil {
		return nil, err
	}

	out := &Variants{
		Background: bg,
		Items:      make([]Variant, 0, len(p.Removers)),
	}
	for _, r := range p.Removers {
		data, err := encodePNG(p.Finish(r.Remove(src, bg)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Name(), err)
		}
		out.Items = append(out.Items, Variant{Strategy: r.Name(), PNG: data})
	}

	return out, nil
}

// Finish 去背景之后的两步：裁剪到主体，再贴到固定尺寸画布
func (p *Processor) Finish(removed *image.NRGBA) *image.NRGBA {
	return Composite(Crop(removed, p.opt.Visibility, p.opt.Padding), p.opt.CanvasSize, p.opt.ContentSize)
}

// Crop 裁剪到 alpha > visibility 的像素范围并加 padding，没有可见像素时原样返回
func Crop(img *image.NRGBA, visibility uint8, padding int) *image.NRGBA {
	bbox, found := alphaBBox(img, visibility)
	if !found {
		return img
	}
	return cropPadded(img, bbox, padding)
}

// Composite 等比缩放使最长边为 content，居中放到 canvas×canvas 透明画布
func Composite(img *image.NRGBA, canvas, content int) *image.NRGBA {
	if img.Bounds().Empty() {
		return image.NewNRGBA(image.Rect(0, 0, canvas, canvas))
	}
	return centerOnCanvas(img, canvas, content)
}
