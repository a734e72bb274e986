package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getcharzp/go-medsam"
)

func TestDecodePGM_P2(t *testing.T) {
	src := "P2\n# CAVASS slice\n3 2\n1200\n0 10 1200\n  400 5\n7\n"
	raw, err := DecodePGM(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if raw.Width != 3 || raw.Height != 2 || raw.Channels != 1 || raw.BitDepth != 16 {
		t.Fatalf("文件头解析错误: %+v", raw)
	}
	want := []float64{0, 10, 1200, 400, 5, 7}
	for i, v := range want {
		if raw.Pix[i] != v {
			t.Fatalf("Pix = %v, 期望 %v", raw.Pix, want)
		}
	}
}

func TestDecodePGM_P5_16bit(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("P5\n# comment\n2 2\n4095\n")
	// 大端 16 位
	buf.Write([]byte{0x00, 0x01, 0x0f, 0xff, 0x01, 0x00, 0x00, 0x00})

	raw, err := DecodePGM(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 4095, 256, 0}
	for i, v := range want {
		if raw.Pix[i] != v {
			t.Fatalf("Pix = %v, 期望 %v", raw.Pix, want)
		}
	}
}

func TestDecodePGM_Invalid(t *testing.T) {
	tests := map[string]string{
		"magic":     "P3\n1 1\n255\n0\n",
		"width":     "P2\nx 1\n255\n0\n",
		"truncated": "P5\n4 4\n255\n\x00\x01",
		"pixel":     "P2\n2 1\n255\n0 a\n",
		"oversized": "P5\n200000 200000\n65535\n",
		"overflow":  "P2\n9223372036854775807 2\n255\n0\n",
		"short_p2":  "P2\n4000 4000\n255\n1 2 3\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodePGM(strings.NewReader(src)); !errors.Is(err, medsam.ErrInputFormat) {
				t.Fatalf("期望 ErrInputFormat, 实际 %v", err)
			}
		})
	}
}

func TestEncodePGM(t *testing.T) {
	m := medsam.NewMask(3, 1)
	m.Pix[1] = 1

	var buf bytes.Buffer
	if err := EncodePGM(&buf, m); err != nil {
		t.Fatal(err)
	}
	want := "P5\n3 1\n255\n\x00\x01\x00"
	if buf.String() != want {
		t.Fatalf("编码结果 %q, 期望 %q", buf.String(), want)
	}
}

func TestOutputPath(t *testing.T) {
	tests := map[string]string{
		"/data/slice_001.pgm": "seg_slice_001.pgm",
		"ct.png":              "seg_ct.png",
		"/tmp/photo.JPG":      "seg_photo.png",
		"scan.webp":           "seg_scan.png",
		"volume/slice.tif":    "seg_slice.tif",
		"/data/no_extension":  "seg_no_extension.png",
	}
	for input, want := range tests {
		if got := OutputPath("/out", input); got != filepath.Join("/out", want) {
			t.Errorf("OutputPath(%q) = %q, 期望 %q", input, got, want)
		}
	}
}

func testMask() *medsam.Mask {
	m := medsam.NewMask(4, 3)
	for i := range m.Pix {
		m.Pix[i] = uint8(i % 2)
	}
	return m
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	m := testMask()

	for _, name := range []string{"seg.png", "seg.pgm", "seg.tif", "seg.bmp"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, m); err != nil {
				t.Fatal(err)
			}
			raw, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if raw.Width != m.Width || raw.Height != m.Height {
				t.Fatalf("尺寸 %dx%d", raw.Width, raw.Height)
			}
			for i, v := range m.Pix {
				if got := raw.Pix[i*raw.Channels]; got != float64(v) {
					t.Fatalf("像素 %d = %v, 期望 %d", i, got, v)
				}
			}
		})
	}

	// 不应残留临时文件
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".seg-") {
			t.Fatalf("残留临时文件 %s", e.Name())
		}
	}
}

func TestSave_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "seg.png")
	if err := Save(path, testMask()); err == nil {
		t.Fatal("期望返回错误")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("不应生成结果文件: %v", err)
	}
}

func TestLoad_PNG16(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 1))
	img.SetGray16(0, 0, color.Gray16{Y: 3000})
	img.SetGray16(1, 0, color.Gray16{Y: 12})

	path := filepath.Join(t.TempDir(), "ct.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	raw, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Channels != 1 || raw.BitDepth != 16 {
		t.Fatalf("应保留 16 位单通道: %+v", raw)
	}
	if raw.Pix[0] != 3000 || raw.Pix[1] != 12 {
		t.Fatalf("Pix = %v", raw.Pix)
	}
}

func TestFromImage_DropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})

	raw := FromImage(img)
	if raw.Channels != 3 || raw.BitDepth != 8 {
		t.Fatalf("通道 %d, 位深 %d", raw.Channels, raw.BitDepth)
	}
	if raw.Pix[0] != 10 || raw.Pix[1] != 20 || raw.Pix[2] != 30 {
		t.Fatalf("Pix = %v", raw.Pix)
	}
}

func TestLoad_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, medsam.ErrInputFormat) {
		t.Fatalf("期望 ErrInputFormat, 实际 %v", err)
	}
}
