package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/getcharzp/go-medsam"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load 读取图像文件, 像素值保持原始数值
//
// PGM (P2/P5) 由内置解码器处理, 其余格式走已注册的解码器
func Load(path string) (*medsam.RawImage, error) {
	if strings.EqualFold(filepath.Ext(path), ".pgm") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("打开图片失败: %w", err)
		}
		defer f.Close()
		return DecodePGM(f)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 解码图片失败: %v", medsam.ErrInputFormat, err)
	}
	return FromImage(img), nil
}

// FromImage image.Image -> RawImage
//
// 灰度图保留单通道, 其余转为 RGB; alpha 通道丢弃
func FromImage(img image.Image) *medsam.RawImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		raw := medsam.NewRawImage(w, h, 1, 8)
		for y := 0; y < h; y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[i : i+w]
			for x, v := range row {
				raw.Pix[y*w+x] = float64(v)
			}
		}
		return raw
	case *image.Gray16:
		raw := medsam.NewRawImage(w, h, 1, 16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				raw.Pix[y*w+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return raw
	case *image.NRGBA:
		raw := medsam.NewRawImage(w, h, 3, 8)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				o := (y*w + x) * 3
				raw.Pix[o] = float64(src.Pix[i])
				raw.Pix[o+1] = float64(src.Pix[i+1])
				raw.Pix[o+2] = float64(src.Pix[i+2])
			}
		}
		return raw
	case *image.NRGBA64, *image.RGBA64:
		return fromColorModel(img, 16)
	default:
		return fromColorModel(img, 8)
	}
}

// fromColorModel 通用路径, 经 NRGBA64 取值避免预乘 alpha 的影响
func fromColorModel(img image.Image, bitDepth int) *medsam.RawImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	raw := medsam.NewRawImage(w, h, 3, bitDepth)
	shift := 16 - bitDepth

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			o := (y*w + x) * 3
			raw.Pix[o] = float64(c.R >> shift)
			raw.Pix[o+1] = float64(c.G >> shift)
			raw.Pix[o+2] = float64(c.B >> shift)
		}
	}
	return raw
}
