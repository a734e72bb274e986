package postprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/getcharzp/go-medsam"
)

func TestSigmoid(t *testing.T) {
	p, err := Sigmoid([]float32{0, 10, -10, 2}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Pix[0] != 0.5 {
		t.Errorf("sigmoid(0) = %v", p.Pix[0])
	}
	if p.Pix[1] < 0.9999 || p.Pix[2] > 0.0001 {
		t.Errorf("sigmoid(±10) = %v, %v", p.Pix[1], p.Pix[2])
	}

	if _, err := Sigmoid([]float32{1, 2, 3}, 2, 2); !errors.Is(err, medsam.ErrShapeMismatch) {
		t.Fatalf("期望 ErrShapeMismatch, 实际 %v", err)
	}
}

func TestResizeBilinear_HalfPixel(t *testing.T) {
	p := &ProbabilityMap{Width: 2, Height: 1, Pix: []float64{0, 1}}
	out := ResizeBilinear(p, 4, 1)
	want := []float64{0, 0.25, 0.75, 1}
	for i, w := range want {
		if math.Abs(out.Pix[i]-w) > 1e-12 {
			t.Fatalf("像素 %d = %v, 期望 %v (全部 %v)", i, out.Pix[i], w, out.Pix)
		}
	}
}

func TestResizeBilinear_Identity(t *testing.T) {
	p := &ProbabilityMap{Width: 3, Height: 2, Pix: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}
	out := ResizeBilinear(p, 3, 2)
	for i := range p.Pix {
		if math.Abs(out.Pix[i]-p.Pix[i]) > 1e-12 {
			t.Fatalf("像素 %d 变化: %v -> %v", i, p.Pix[i], out.Pix[i])
		}
	}
}

// maskToProbability 将二值 Mask 视为概率图
func maskToProbability(m *medsam.Mask) *ProbabilityMap {
	p := &ProbabilityMap{Width: m.Width, Height: m.Height, Pix: make([]float64, len(m.Pix))}
	for i, v := range m.Pix {
		p.Pix[i] = float64(v)
	}
	return p
}

func TestThreshold_Idempotent(t *testing.T) {
	m := medsam.NewMask(4, 3)
	for i := range m.Pix {
		m.Pix[i] = uint8(i % 3 % 2)
	}
	again := Threshold(maskToProbability(m), DefaultThreshold)
	for i := range m.Pix {
		if m.Pix[i] != again.Pix[i] {
			t.Fatalf("像素 %d: %d -> %d", i, m.Pix[i], again.Pix[i])
		}
	}
}

func TestThreshold_Strict(t *testing.T) {
	p := &ProbabilityMap{Width: 3, Height: 1, Pix: []float64{0.5, 0.5000001, 0.4}}
	m := Threshold(p, 0.5)
	if m.Pix[0] != 0 || m.Pix[1] != 1 || m.Pix[2] != 0 {
		t.Fatalf("阈值应为严格大于: %v", m.Pix)
	}
}

func TestReconstruct_BoxRegion(t *testing.T) {
	// 256x256 logits, [64,192) 区域为 +10, 其余 -10, 上采样到 200x100
	const n = 256
	logits := make([]float32, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			logits[y*n+x] = -10
			if x >= 64 && x < 192 && y >= 64 && y < 192 {
				logits[y*n+x] = 10
			}
		}
	}

	m, err := Reconstruct(logits, n, n, 200, 100)
	if err != nil {
		t.Fatal(err)
	}
	if m.Width != 200 || m.Height != 100 {
		t.Fatalf("尺寸 %dx%d", m.Width, m.Height)
	}
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			want := uint8(0)
			if x >= 50 && x < 150 && y >= 25 && y < 75 {
				want = 1
			}
			if got := m.Pix[y*200+x]; got != want {
				t.Fatalf("(%d, %d) = %d, 期望 %d", x, y, got, want)
			}
		}
	}
}

func TestReconstruct_BadSize(t *testing.T) {
	if _, err := Reconstruct(make([]float32, 4), 2, 2, 0, 10); !errors.Is(err, medsam.ErrShapeMismatch) {
		t.Fatalf("期望 ErrShapeMismatch, 实际 %v", err)
	}
}
