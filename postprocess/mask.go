package postprocess

import (
	"fmt"
	"math"

	"github.com/getcharzp/go-medsam"
)

// DefaultThreshold 概率二值化阈值
const DefaultThreshold = 0.5

// ProbabilityMap 单通道概率图
type ProbabilityMap struct {
	Width  int
	Height int
	Pix    []float64
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Sigmoid 逐元素计算 sigmoid
//
// # Params:
//
//	logits: 低分辨率 logits (行优先)
//	w, h: logits 宽高
func Sigmoid(logits []float32, w, h int) (*ProbabilityMap, error) {
	if w <= 0 || h <= 0 || len(logits) != w*h {
		return nil, fmt.Errorf("%w: logits 长度 %d 与尺寸 %dx%d 不符", medsam.ErrShapeMismatch, len(logits), w, h)
	}
	p := &ProbabilityMap{Width: w, Height: h, Pix: make([]float64, w*h)}
	for i, v := range logits {
		p.Pix[i] = sigmoid(float64(v))
	}
	return p, nil
}

// sourceIndex align_corners=false 的源坐标映射, 返回相邻两点及插值权重
func sourceIndex(dst int, scale float64, n int) (i0, i1 int, lambda float64) {
	src := (float64(dst)+0.5)*scale - 0.5
	if src < 0 {
		src = 0
	}
	i0 = int(src)
	if i0 > n-1 {
		i0 = n - 1
	}
	i1 = i0 + 1
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1, src - float64(i0)
}

// ResizeBilinear 双线性插值到 w x h (align_corners=false, 像素中心对齐)
func ResizeBilinear(p *ProbabilityMap, w, h int) *ProbabilityMap {
	out := &ProbabilityMap{Width: w, Height: h, Pix: make([]float64, w*h)}
	sx := float64(p.Width) / float64(w)
	sy := float64(p.Height) / float64(h)

	// 预计算列索引
	x0s := make([]int, w)
	x1s := make([]int, w)
	lxs := make([]float64, w)
	for x := 0; x < w; x++ {
		x0s[x], x1s[x], lxs[x] = sourceIndex(x, sx, p.Width)
	}

	for y := 0; y < h; y++ {
		y0, y1, ly := sourceIndex(y, sy, p.Height)
		row0 := p.Pix[y0*p.Width : (y0+1)*p.Width]
		row1 := p.Pix[y1*p.Width : (y1+1)*p.Width]
		for x := 0; x < w; x++ {
			lx := lxs[x]
			top := (1-lx)*row0[x0s[x]] + lx*row0[x1s[x]]
			bot := (1-lx)*row1[x0s[x]] + lx*row1[x1s[x]]
			out.Pix[y*w+x] = (1-ly)*top + ly*bot
		}
	}
	return out
}

// Threshold 严格大于阈值的像素置 1
func Threshold(p *ProbabilityMap, t float64) *medsam.Mask {
	m := medsam.NewMask(p.Width, p.Height)
	for i, v := range p.Pix {
		if v > t {
			m.Pix[i] = 1
		}
	}
	return m
}

// Reconstruct sigmoid -> 双线性上采样到原图 w x h -> 阈值 0.5
func Reconstruct(logits []float32, lw, lh, w, h int) (*medsam.Mask, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: 目标尺寸 %dx%d 不合法", medsam.ErrShapeMismatch, w, h)
	}
	prob, err := Sigmoid(logits, lw, lh)
	if err != nil {
		return nil, err
	}
	return Threshold(ResizeBilinear(prob, w, h), DefaultThreshold), nil
}
