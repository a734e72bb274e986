package sam

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getcharzp/go-medsam"
	"github.com/x448/float16"
	ort "github.com/yalue/onnxruntime_go"
)

// toCHW HWC float64 -> CHW float32 (batch 维由张量形状补充)
func toCHW(img *medsam.Image) []float32 {
	plane := img.Width * img.Height
	data := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		data[i] = float32(img.Pix[3*i])
		data[plane+i] = float32(img.Pix[3*i+1])
		data[2*plane+i] = float32(img.Pix[3*i+2])
	}
	return data
}

// halfToFloat32 小端 float16 字节流 -> float32
func halfToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
	}
	return out
}

// tensorFloats 读取输出张量数据, 支持 float32 和 float16 导出的模型
func tensorFloats(v ort.Value) ([]float32, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return t.GetData(), nil
	case *ort.CustomDataTensor:
		n := t.GetShape().FlattenedSize()
		raw := t.GetData()
		if int64(len(raw)) != 2*n {
			return nil, fmt.Errorf("%w: 不支持的输出数据类型 (%d 字节, %d 个元素)", medsam.ErrShapeMismatch, len(raw), n)
		}
		return halfToFloat32(raw), nil
	default:
		return nil, fmt.Errorf("%w: 不支持的输出张量类型 %T", medsam.ErrShapeMismatch, v)
	}
}

// shapeMatches want 中小于等于 0 的维度视为动态维度
func shapeMatches(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if want[i] > 0 && got[i] > 0 && got[i] != want[i] {
			return false
		}
	}
	return true
}

// findIO 按名称查找模型声明的张量
func findIO(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, error) {
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("%w: 模型缺少张量 %s", medsam.ErrResource, name)
}

// checkIO 检查模型是否声明了指定张量, 且维度与预期兼容
func checkIO(infos []ort.InputOutputInfo, name string, want []int64) error {
	info, err := findIO(infos, name)
	if err != nil {
		return err
	}
	if want != nil && !shapeMatches(info.Dimensions, want) {
		return fmt.Errorf("%w: 张量 %s 形状 %v 与预期 %v 不符", medsam.ErrResource, name, info.Dimensions, want)
	}
	return nil
}

// concreteShape 用 fallback 补全声明中的动态维度
func concreteShape(dims, fallback []int64) ort.Shape {
	shape := make(ort.Shape, len(fallback))
	for i := range fallback {
		shape[i] = fallback[i]
		if i < len(dims) && dims[i] > 0 {
			shape[i] = dims[i]
		}
	}
	return shape
}

// outputSpec 解码器输出的元素类型和形状
type outputSpec struct {
	dataType ort.TensorElementDataType
	shape    ort.Shape
}

// newOutputSpec 校验输出张量, 仅支持 float32 和 float16
//
// # Params:
//
//	want: 预期形状, 小于等于 0 的维度不校验
//	fallback: 声明为动态维度时使用的取值
func newOutputSpec(infos []ort.InputOutputInfo, name string, want, fallback []int64) (outputSpec, error) {
	info, err := findIO(infos, name)
	if err != nil {
		return outputSpec{}, err
	}
	if !shapeMatches(info.Dimensions, want) {
		return outputSpec{}, fmt.Errorf("%w: 张量 %s 形状 %v 与预期 %v 不符", medsam.ErrResource, name, info.Dimensions, want)
	}
	switch info.DataType {
	case ort.TensorElementDataTypeFloat, ort.TensorElementDataTypeFloat16:
	default:
		return outputSpec{}, fmt.Errorf("%w: 张量 %s 的数据类型 %v 不受支持", medsam.ErrResource, name, info.DataType)
	}
	return outputSpec{dataType: info.DataType, shape: concreteShape(info.Dimensions, fallback)}, nil
}

// newOutput float16 输出按 2 字节/元素预先分配, float32 输出返回 nil 交由 onnxruntime 分配
func (s outputSpec) newOutput() (ort.Value, error) {
	if s.dataType != ort.TensorElementDataTypeFloat16 {
		return nil, nil
	}
	buf := make([]byte, 2*s.shape.FlattenedSize())
	t, err := ort.NewCustomDataTensor(s.shape, buf, s.dataType)
	if err != nil {
		return nil, fmt.Errorf("创建 float16 输出 Tensor 失败: %w", err)
	}
	return t, nil
}

// resolveCheckpoint 定位编码器和解码器文件
//
// # Params:
//
//	checkpoint: 模型目录, 或目录中的任意 .onnx 文件
func resolveCheckpoint(checkpoint, encoderFile, decoderFile string) (encPath, decPath string, err error) {
	info, err := os.Stat(checkpoint)
	if err != nil {
		return "", "", fmt.Errorf("%w: 模型路径不可用: %v", medsam.ErrResource, err)
	}

	dir := checkpoint
	if !info.IsDir() {
		switch strings.ToLower(filepath.Ext(checkpoint)) {
		case ".onnx":
			dir = filepath.Dir(checkpoint)
		case ".pth", ".pt":
			return "", "", fmt.Errorf("%w: %s 是 PyTorch 权重, 请先导出为 ONNX (%s, %s)",
				medsam.ErrResource, checkpoint, encoderFile, decoderFile)
		default:
			return "", "", fmt.Errorf("%w: 无法识别的模型文件 %s", medsam.ErrResource, checkpoint)
		}
	}

	encPath = filepath.Join(dir, encoderFile)
	decPath = filepath.Join(dir, decoderFile)
	for _, p := range []string{encPath, decPath} {
		fi, err := os.Stat(p)
		if err != nil {
			return "", "", fmt.Errorf("%w: 模型文件不可用: %v", medsam.ErrResource, err)
		}
		if fi.Size() == 0 {
			return "", "", fmt.Errorf("%w: 模型文件为空: %s", medsam.ErrResource, p)
		}
	}
	return encPath, decPath, nil
}
