package preprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/getcharzp/go-medsam"
)

// ParseBox 解析 "[x0,y0,x1,y1]" 形式的检测框
func ParseBox(s string) (medsam.Box, error) {
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, "[") || !strings.HasSuffix(body, "]") {
		return medsam.Box{}, fmt.Errorf("%w: 检测框需以方括号包裹, 如 [x0,y0,x1,y1]: %q", medsam.ErrInputFormat, s)
	}
	body = body[1 : len(body)-1]

	parts := strings.Split(body, ",")
	if len(parts) != 4 {
		return medsam.Box{}, fmt.Errorf("%w: 检测框需要 4 个整数, 实际 %d 个: %q", medsam.ErrInputFormat, len(parts), s)
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return medsam.Box{}, fmt.Errorf("%w: 检测框第 %d 个值不是整数: %q", medsam.ErrInputFormat, i+1, p)
		}
		v[i] = n
	}

	box := medsam.Box{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	if !box.Valid() {
		return medsam.Box{}, fmt.Errorf("%w: 检测框需满足 x0<x1 且 y0<y1: %q", medsam.ErrInputFormat, s)
	}
	return box, nil
}

// MapBox 原图坐标 -> 模型坐标 (size x size), x 按 size/w, y 按 size/h 缩放, 不取整不裁剪
func MapBox(box medsam.Box, w, h, size int) medsam.ModelBox {
	fw, fh, r := float64(w), float64(h), float64(size)
	return medsam.ModelBox{
		X0: float64(box.X0) / fw * r,
		Y0: float64(box.Y0) / fh * r,
		X1: float64(box.X1) / fw * r,
		Y1: float64(box.Y1) / fh * r,
	}
}

// UnmapBox 模型坐标 -> 原图坐标, MapBox 的逆变换
func UnmapBox(mb medsam.ModelBox, w, h, size int) (x0, y0, x1, y1 float64) {
	sx := float64(w) / float64(size)
	sy := float64(h) / float64(size)
	return mb.X0 * sx, mb.Y0 * sy, mb.X1 * sx, mb.Y1 * sy
}
