package medsam

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextDrawer 叠加图标题绘制工具
type TextDrawer struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64
}

// NewTextDrawer 从字体文件创建绘制工具
//
// # Params:
//
//	fontPath: 字体路径 (ttf/otf)
func NewTextDrawer(fontPath string) (*TextDrawer, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("打开字体文件失败：%w", err)
	}
	return NewTextDrawerFromBytes(fontBytes)
}

// NewTextDrawerFromBytes 从字体数据创建绘制工具
func NewTextDrawerFromBytes(fontBytes []byte) (*TextDrawer, error) {
	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析字体文件失败：%w", err)
	}

	d := &TextDrawer{font: ttFont}
	if err := d.SetSize(14); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSize 调整字体大小
func (d *TextDrawer) SetSize(fontSize float64) error {
	if d.face != nil && d.fontSize == fontSize {
		return nil
	}

	nf, err := opentype.NewFace(d.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return err
	}
	if d.face != nil {
		d.face.Close()
	}

	d.face = nf
	d.fontSize = fontSize
	return nil
}

// Measure 返回文本绘制后的包围盒 (以基线起点为原点)
func (d *TextDrawer) Measure(text string) image.Rectangle {
	bounds, _ := font.BoundString(d.face, text)
	return image.Rect(bounds.Min.X.Floor(), bounds.Min.Y.Floor(), bounds.Max.X.Ceil(), bounds.Max.Y.Ceil())
}

// DrawCaption 在 (x, y) 左上角绘制带底色的标题
//
// # Params:
//
//	img: 被绘制的图像
//	text: 标题
//	x, y: 左上角坐标
//	fg, bg: 文字颜色和底色, bg 为 nil 时不绘制底色
func (d *TextDrawer) DrawCaption(img draw.Image, text string, x, y int, fg, bg color.Color) {
	const pad = 2
	m := d.Measure(text)
	baseline := y + pad - m.Min.Y

	if bg != nil {
		backdrop := image.Rect(x, y, x+m.Dx()+2*pad, y+m.Dy()+2*pad)
		draw.Draw(img, backdrop.Intersect(img.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)
	}

	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: d.face,
		Dot:  fixed.P(x+pad-m.Min.X, baseline),
	}
	dr.DrawString(text)
}

// Close 释放资源
func (d *TextDrawer) Close() {
	if d.face != nil {
		d.face.Close()
		d.face = nil
	}
}
