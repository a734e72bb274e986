package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/getcharzp/go-medsam"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	maskColor    = color.NRGBA{R: 251, G: 252, B: 30, A: 255}
	boxColor     = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	captionColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	captionBg    = color.RGBA{R: 0, G: 0, B: 0, A: 160}
)

const maskOpacity = 0.6

// toNRGBA 归一化图像 [0,1] -> 8 位
func toNRGBA(img *medsam.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i := 0; i < img.Width*img.Height; i++ {
		for c := 0; c < 3; c++ {
			v := math.Round(img.Pix[3*i+c] * 255)
			dst.Pix[4*i+c] = uint8(math.Max(0, math.Min(255, v)))
		}
		dst.Pix[4*i+3] = 255
	}
	return dst
}

// maskLayer 前景像素填充 maskColor, 其余透明
func maskLayer(m *medsam.Mask) *image.NRGBA {
	layer := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v != 0 {
			layer.Pix[4*i] = maskColor.R
			layer.Pix[4*i+1] = maskColor.G
			layer.Pix[4*i+2] = maskColor.B
			layer.Pix[4*i+3] = maskColor.A
		}
	}
	return layer
}

// renderOverlay 原图 + 半透明 Mask + 检测框 + 标题
func renderOverlay(normalized *medsam.Image, m *medsam.Mask, box medsam.Box, caption string, drawer *medsam.TextDrawer) *image.RGBA {
	blended := imaging.Overlay(toNRGBA(normalized), maskLayer(m), image.Pt(0, 0), maskOpacity)

	dst := image.NewRGBA(blended.Bounds())
	draw.Draw(dst, dst.Bounds(), blended, blended.Bounds().Min, draw.Src)
	imageutil.DrawThickRectOutline(dst, box.Rect(), boxColor, 2)

	if drawer != nil && caption != "" {
		drawer.DrawCaption(dst, caption, 2, 2, captionColor, captionBg)
	}
	return dst
}

func (p *Pipeline) newTextDrawer() (*medsam.TextDrawer, error) {
	if p.config.FontPath != "" {
		return medsam.NewTextDrawer(p.config.FontPath)
	}
	return medsam.NewTextDrawerFromBytes(goregular.TTF)
}

// writeOverlay 输出叠加图, 失败不影响分割结果
func (p *Pipeline) writeOverlay(path string, seg *segmentation, box medsam.Box) error {
	drawer, err := p.newTextDrawer()
	if err != nil {
		return err
	}
	defer drawer.Close()

	caption := fmt.Sprintf("MedSAM iou=%.3f", seg.score)
	img := renderOverlay(seg.normalized, seg.mask, box, caption, drawer)
	if err := imageutil.Save(path, img, 100); err != nil {
		return fmt.Errorf("保存叠加图失败: %w", err)
	}
	return nil
}
