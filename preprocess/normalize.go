package preprocess

import (
	"fmt"

	"github.com/getcharzp/go-medsam"
	"gonum.org/v1/gonum/floats"
)

// Stats 返回原始图像的最小值和最大值
func Stats(raw *medsam.RawImage) (lo, hi float64) {
	if len(raw.Pix) == 0 {
		return 0, 0
	}
	return floats.Min(raw.Pix), floats.Max(raw.Pix)
}

// Normalize 强度归一化: 除以图像自身的最大值, 单通道复制为三通道.
// 不按位深截断, 16 位数据的高亮信息得以保留.
func Normalize(raw *medsam.RawImage) (*medsam.Image, error) {
	if raw.Channels != 1 && raw.Channels != 3 {
		return nil, fmt.Errorf("%w: 不支持的通道数 %d", medsam.ErrShapeMismatch, raw.Channels)
	}
	if len(raw.Pix) != raw.Width*raw.Height*raw.Channels || len(raw.Pix) == 0 {
		return nil, fmt.Errorf("%w: 像素数 %d 与尺寸 %dx%dx%d 不符",
			medsam.ErrShapeMismatch, len(raw.Pix), raw.Width, raw.Height, raw.Channels)
	}

	hi := floats.Max(raw.Pix)
	if hi == 0 {
		return nil, fmt.Errorf("%w: 图像最大值为 0", medsam.ErrDegenerateInput)
	}

	out := medsam.NewImage(raw.Width, raw.Height)
	if raw.Channels == 3 {
		copy(out.Pix, raw.Pix)
	} else {
		for i, v := range raw.Pix {
			out.Pix[3*i] = v
			out.Pix[3*i+1] = v
			out.Pix[3*i+2] = v
		}
	}
	for i := range out.Pix {
		out.Pix[i] /= hi
	}
	return out, nil
}
