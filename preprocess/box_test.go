package preprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/getcharzp/go-medsam"
)

func TestParseBox(t *testing.T) {
	valid := map[string]medsam.Box{
		"[95,255,190,350]":   {X0: 95, Y0: 255, X1: 190, Y1: 350},
		" [ 1, 2 , 3, 4 ] ":  {X0: 1, Y0: 2, X1: 3, Y1: 4},
		"[232,107,257,131]":  {X0: 232, Y0: 107, X1: 257, Y1: 131},
		"[-5,-5,1000,1000]":  {X0: -5, Y0: -5, X1: 1000, Y1: 1000},
	}
	for in, want := range valid {
		got, err := ParseBox(in)
		if err != nil {
			t.Fatalf("ParseBox(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseBox(%q) = %+v, 期望 %+v", in, got, want)
		}
	}

	invalid := []string{"[1,2,3]", "[1,2,3,4,5]", "[a,2,3,4]", "[1.5,2,3,4]", "", "[]", "[5,2,3,4]", "[1,4,3,4]",
		"10,20,30,40", "[1,2,3,4", "1,2,3,4]", "]"}
	for _, in := range invalid {
		if _, err := ParseBox(in); !errors.Is(err, medsam.ErrInputFormat) {
			t.Errorf("ParseBox(%q) 期望 ErrInputFormat, 实际 %v", in, err)
		}
	}
}

func TestMapBox(t *testing.T) {
	box := medsam.Box{X0: 10, Y0: 10, X1: 20, Y1: 20}
	mb := MapBox(box, 100, 200, 1024)

	want := medsam.ModelBox{X0: 102.4, Y0: 51.2, X1: 204.8, Y1: 102.4}
	const eps = 1e-9
	if math.Abs(mb.X0-want.X0) > eps || math.Abs(mb.Y0-want.Y0) > eps ||
		math.Abs(mb.X1-want.X1) > eps || math.Abs(mb.Y1-want.Y1) > eps {
		t.Fatalf("MapBox = %+v, 期望 %+v", mb, want)
	}

	x0, y0, x1, y1 := UnmapBox(mb, 100, 200, 1024)
	if math.Abs(x0-10) > eps || math.Abs(y0-10) > eps || math.Abs(x1-20) > eps || math.Abs(y1-20) > eps {
		t.Fatalf("UnmapBox = (%v, %v, %v, %v), 期望 (10, 10, 20, 20)", x0, y0, x1, y1)
	}
}

func TestMapBox_NoClamp(t *testing.T) {
	mb := MapBox(medsam.Box{X0: -10, Y0: 0, X1: 150, Y1: 50}, 100, 100, 1000)
	if mb.X0 != -100 || mb.X1 != 1500 {
		t.Fatalf("越界坐标不应被裁剪: %+v", mb)
	}
}
