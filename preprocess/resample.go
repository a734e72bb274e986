package preprocess

import (
	"math"

	"github.com/getcharzp/go-medsam"
	"gonum.org/v1/gonum/floats"
)

// rescaleEpsilon 防止均匀图像除零
const rescaleEpsilon = 1e-8

// Resize 三次 B 样条重采样到 w x h, 缩小时抗混叠, 保持数值范围.
// 先沿 x 轴, 再沿 y 轴, 各通道独立处理.
func Resize(img *medsam.Image, w, h int) *medsam.Image {
	srcW, srcH := img.Width, img.Height

	// x 轴: srcW -> w
	tmp := medsam.NewImage(w, srcH)
	line := make([]float64, srcW)
	for y := 0; y < srcH; y++ {
		for c := 0; c < 3; c++ {
			for x := 0; x < srcW; x++ {
				line[x] = img.Pix[(y*srcW+x)*3+c]
			}
			res := resampleLine(line, w)
			for x := 0; x < w; x++ {
				tmp.Pix[(y*w+x)*3+c] = res[x]
			}
		}
	}

	// y 轴: srcH -> h
	out := medsam.NewImage(w, h)
	col := make([]float64, srcH)
	for x := 0; x < w; x++ {
		for c := 0; c < 3; c++ {
			for y := 0; y < srcH; y++ {
				col[y] = tmp.Pix[(y*w+x)*3+c]
			}
			res := resampleLine(col, h)
			for y := 0; y < h; y++ {
				out.Pix[(y*w+x)*3+c] = res[y]
			}
		}
	}
	return out
}

// Rescale 第二次归一化: (x - min) / max(eps, max - min), 全图统一计算
func Rescale(img *medsam.Image) *medsam.Image {
	out := &medsam.Image{Width: img.Width, Height: img.Height, Pix: make([]float64, len(img.Pix))}
	if len(img.Pix) == 0 {
		return out
	}
	lo, hi := floats.Min(img.Pix), floats.Max(img.Pix)
	span := math.Max(rescaleEpsilon, hi-lo)
	for i, v := range img.Pix {
		out.Pix[i] = (v - lo) / span
	}
	return out
}

// Resample 缩放到 size x size x 3 后重新归一化到 [0, 1].
// 顺序固定: Normalize -> Resize -> Rescale, 调换会改变数值结果.
func Resample(img *medsam.Image, size int) *medsam.Image {
	return Rescale(Resize(img, size, size))
}
