package imageio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getcharzp/go-medsam"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// MaskPrefix 分割结果文件名前缀
const MaskPrefix = "seg_"

// OutputPath 生成结果路径 dir/seg_<basename>
//
// 有损格式 (jpg/jpeg/webp) 改为 png, 保证 Mask 无损
func OutputPath(dir, input string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".webp":
		base = strings.TrimSuffix(base, ext) + ".png"
	case "":
		base += ".png"
	}
	return filepath.Join(dir, MaskPrefix+base)
}

// Save 按扩展名无损写出 Mask, 像素值保持 0/1
//
// 先写入同目录临时文件再重命名, 失败时不会留下不完整的结果
func Save(path string, m *medsam.Mask) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pgm", ".tif", ".tiff", ".bmp":
	default:
		ext = ".png"
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".seg-*"+ext)
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	switch ext {
	case ".pgm":
		err = EncodePGM(tmp, m)
	case ".tif", ".tiff":
		err = tiff.Encode(tmp, m.Gray(), &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		err = bmp.Encode(tmp, m.Gray())
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	// png 由 imageutil 按路径写入
	if err == nil && ext == ".png" {
		err = imageutil.Save(tmpPath, m.Gray(), 100)
	}
	if err != nil {
		return fmt.Errorf("写入 Mask 失败: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("重命名结果文件失败: %w", err)
	}
	return nil
}
