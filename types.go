package medsam

import (
	"image"
)

// RawImage 原始图像 (HWC, 行优先), 像素值保持文件中的原始数值
type RawImage struct {
	Width    int
	Height   int
	Channels int // 1 或 3
	BitDepth int // 8 或 16
	Pix      []float64
}

// NewRawImage 创建空的原始图像
func NewRawImage(w, h, channels, bitDepth int) *RawImage {
	return &RawImage{
		Width:    w,
		Height:   h,
		Channels: channels,
		BitDepth: bitDepth,
		Pix:      make([]float64, w*h*channels),
	}
}

// Image 三通道浮点图像 (HWC)
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// NewImage 创建 w x h x 3 的浮点图像
func NewImage(w, h int) *Image {
	return &Image{
		Width:  w,
		Height: h,
		Pix:    make([]float64, w*h*3),
	}
}

// At 返回 (x, y) 处第 c 个通道的值
func (img *Image) At(x, y, c int) float64 {
	return img.Pix[(y*img.Width+x)*3+c]
}

// Box 原图坐标系下的检测框 (x0, y0, x1, y1)
type Box struct {
	X0, Y0, X1, Y1 int
}

// Valid x0 < x1 且 y0 < y1
func (b Box) Valid() bool {
	return b.X0 < b.X1 && b.Y0 < b.Y1
}

// In 检测框是否位于 [0, w] x [0, h] 内
func (b Box) In(w, h int) bool {
	return b.X0 >= 0 && b.Y0 >= 0 && b.X1 <= w && b.Y1 <= h
}

// Rect 转换为 image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X0, b.Y0, b.X1, b.Y1)
}

// ModelBox 模型坐标系 (R x R) 下的检测框, 不做取整
type ModelBox struct {
	X0, Y0, X1, Y1 float64
}

// Mask 二值分割结果, 取值 {0, 1}, 与原图对齐
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask 创建空 Mask
func NewMask(w, h int) *Mask {
	return &Mask{
		Width:  w,
		Height: h,
		Pix:    make([]uint8, w*h),
	}
}

// Count 前景像素个数
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Gray 转为灰度图, 像素值保持 0/1
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(img.Pix, m.Pix)
	return img
}
