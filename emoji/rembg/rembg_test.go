package rembg

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	green  = color.NRGBA{R: 20, G: 230, B: 30, A: 255}
	red    = color.NRGBA{R: 220, G: 30, B: 40, A: 255}
	yellow = color.NRGBA{R: 250, G: 220, B: 40, A: 255}
)

func filled(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Bounds(), c)
	return img
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// ring 绿底上画一个红色方环，环内是与背景同色的绿色
func ring() *image.NRGBA {
	img := filled(20, 20, green)
	fillRect(img, image.Rect(5, 5, 15, 15), red)
	fillRect(img, image.Rect(7, 7, 13, 13), green)
	return img
}

func TestSample(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	tests := []struct {
		name    string
		img     func() *image.NRGBA
		want    Background
		wantErr error
	}{
		{
			name: "绿色背景",
			img:  ring,
			want: Background{R: 20, G: 230, B: 30, Valid: true},
		},
		{
			name: "四角略有差异取平均",
			img: func() *image.NRGBA {
				img := filled(10, 10, green)
				img.SetNRGBA(9, 9, color.NRGBA{R: 60, G: 250, B: 70, A: 255})
				return img
			},
			want: Background{R: 30, G: 235, B: 40, Valid: true},
		},
		{
			name: "角落颜色不一致",
			img: func() *image.NRGBA {
				img := filled(10, 10, green)
				img.SetNRGBA(0, 9, red)
				return img
			},
			wantErr: ErrInconsistentBackground,
		},
		{
			name:    "白色背景不是绿色主导",
			img:     func() *image.NRGBA { return filled(10, 10, color.NRGBA{R: 250, G: 250, B: 250, A: 255}) },
			wantErr: ErrNotGreenDominant,
		},
		{
			name:    "空图",
			img:     func() *image.NRGBA { return image.NewNRGBA(image.Rect(0, 0, 0, 0)) },
			wantErr: ErrEmptyImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Sample(tt.img(), th)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, got.Valid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSample_ReportsOffendingCorner(t *testing.T) {
	img := filled(8, 8, green)
	img.SetNRGBA(7, 0, yellow)

	_, err := Sample(img, DefaultThresholds())

	var inconsistent *InconsistentBackgroundError
	require.True(t, errors.As(err, &inconsistent))
	assert.Equal(t, 1, inconsistent.Index)
	assert.Equal(t, Background{R: 250, G: 220, B: 40}, inconsistent.Corner)
	assert.Contains(t, err.Error(), "corner 0 is (20,230,30), corner 1 is (250,220,40)")
}

func TestSample_OnlyCornersMatter(t *testing.T) {
	a := ring()
	b := filled(20, 20, green)

	ga, errA := Sample(a, DefaultThresholds())
	gb, errB := Sample(b, DefaultThresholds())
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, ga, gb)
}

func TestSample_SubImageBounds(t *testing.T) {
	img := filled(30, 30, red)
	fillRect(img, image.Rect(10, 10, 20, 20), green)

	got, err := Sample(img.SubImage(image.Rect(10, 10, 20, 20)).(*image.NRGBA), DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, uint8(230), got.G)
}

func TestBackground_Hex(t *testing.T) {
	assert.Equal(t, "#14e61e", Background{R: 20, G: 230, B: 30}.Hex())
}

func TestFloodFill_PreservesEnclosedBackground(t *testing.T) {
	t.Parallel()

	src := ring()
	bg, err := Sample(src, DefaultThresholds())
	require.NoError(t, err)

	got := NewFloodFill(DefaultThresholds().MatchTolerance).Remove(src, bg)

	assert.Equal(t, src.Bounds(), got.Bounds())
	// 外部背景被去除
	assert.Equal(t, color.NRGBA{}, got.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{}, got.NRGBAAt(19, 10))
	assert.Equal(t, color.NRGBA{}, got.NRGBAAt(4, 4))
	// 主体不变
	assert.Equal(t, red, got.NRGBAAt(5, 5))
	// 被包围的绿色保留
	assert.Equal(t, green, got.NRGBAAt(10, 10))
	assert.Equal(t, green, got.NRGBAAt(7, 12))
	// 源图不被修改
	assert.Equal(t, green, src.NRGBAAt(0, 0))
}

func TestFloodFill_ToleranceIsStrict(t *testing.T) {
	src := filled(5, 5, green)
	// 与背景 G 通道差值正好为 40，不算背景
	src.SetNRGBA(2, 0, color.NRGBA{R: 20, G: 190, B: 30, A: 255})
	// 差值 39，算背景
	src.SetNRGBA(3, 0, color.NRGBA{R: 20, G: 191, B: 30, A: 255})

	got := NewFloodFill(40).Remove(src, Background{R: 20, G: 230, B: 30, Valid: true})

	assert.Equal(t, uint8(255), got.NRGBAAt(2, 0).A)
	assert.Equal(t, uint8(0), got.NRGBAAt(3, 0).A)
}

func TestFloodFill_NoPathToBorder(t *testing.T) {
	t.Parallel()

	// 一条对角线的绿色被红色完全隔开，只能通过斜向相邻，4 连通不可达
	src := filled(9, 9, red)
	for i := 2; i < 7; i++ {
		src.SetNRGBA(i, i, green)
	}
	// 顶边为绿色
	fillRect(src, image.Rect(0, 0, 9, 1), green)

	got := NewFloodFill(40).Remove(src, Background{R: 20, G: 230, B: 30, Valid: true})

	for i := 2; i < 7; i++ {
		assert.Equal(t, green, got.NRGBAAt(i, i), "diagonal pixel %d", i)
	}
	for x := 0; x < 9; x++ {
		assert.Equal(t, uint8(0), got.NRGBAAt(x, 0).A)
	}
}

func TestFloodFill_SinglePixelRowAndColumn(t *testing.T) {
	bg := Background{R: 20, G: 230, B: 30, Valid: true}

	row := filled(6, 1, green)
	row.SetNRGBA(3, 0, red)
	got := NewFloodFill(40).Remove(row, bg)
	assert.Equal(t, red, got.NRGBAAt(3, 0))
	assert.Equal(t, uint8(0), got.NRGBAAt(5, 0).A)

	col := filled(1, 6, green)
	got = NewFloodFill(40).Remove(col, bg)
	for y := 0; y < 6; y++ {
		assert.Equal(t, uint8(0), got.NRGBAAt(0, y).A)
	}
}

func TestColorKey_RemovesEverywhere(t *testing.T) {
	t.Parallel()

	src := ring()
	th := DefaultThresholds()
	got := NewColorKey(th.KeyMaxRed, th.KeyMinGreen, th.KeyMaxBlue).Remove(src, Background{})

	assert.Equal(t, color.NRGBA{}, got.NRGBAAt(0, 0))
	// 被包围的绿色同样被去除
	assert.Equal(t, color.NRGBA{}, got.NRGBAAt(10, 10))
	assert.Equal(t, red, got.NRGBAAt(5, 5))
	assert.Equal(t, green, src.NRGBAAt(10, 10))
}

func TestColorKey_PerPixel(t *testing.T) {
	t.Parallel()

	c := NewColorKey(60, 200, 60)
	tests := []struct {
		name  string
		pixel color.NRGBA
		keyed bool
	}{
		{"纯绿", color.NRGBA{R: 0, G: 255, B: 0, A: 255}, true},
		{"G 等于阈值", color.NRGBA{R: 0, G: 200, B: 0, A: 255}, false},
		{"R 等于阈值", color.NRGBA{R: 60, G: 255, B: 0, A: 255}, false},
		{"B 等于阈值", color.NRGBA{R: 0, G: 255, B: 60, A: 255}, false},
		{"暗绿", color.NRGBA{R: 10, G: 120, B: 10, A: 255}, false},
		{"黄色", yellow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 同一颜色放在不同位置、不同邻居旁，结果一致
			a := filled(3, 3, red)
			a.SetNRGBA(1, 1, tt.pixel)
			b := filled(3, 3, green)
			b.SetNRGBA(0, 2, tt.pixel)

			ga := c.Remove(a, Background{})
			gb := c.Remove(b, Background{})
			assert.Equal(t, tt.keyed, ga.NRGBAAt(1, 1).A == 0)
			assert.Equal(t, tt.keyed, gb.NRGBAAt(0, 2).A == 0)
		})
	}
}

func TestNewRemovers(t *testing.T) {
	removers := NewRemovers(DefaultThresholds())
	require.Len(t, removers, 2)
	assert.Equal(t, StrategyFloodFill, removers[0].Name())
	assert.Equal(t, StrategyColorKey, removers[1].Name())
}

func TestClone_NormalizesOrigin(t *testing.T) {
	src := filled(10, 10, red)
	sub := src.SubImage(image.Rect(2, 3, 7, 9)).(*image.NRGBA)

	got := clone(sub)
	assert.Equal(t, image.Rect(0, 0, 5, 6), got.Bounds())
	assert.Equal(t, red, got.NRGBAAt(4, 5))
}
