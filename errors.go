package medsam

import (
	"errors"
	"fmt"
)

var (
	// ErrInputFormat 输入格式错误, 例如检测框字符串不合法
	ErrInputFormat = errors.New("输入格式错误")
	// ErrDegenerateInput 图像最大值为 0, 无法归一化
	ErrDegenerateInput = errors.New("退化输入")
	// ErrResource 模型文件缺失/损坏, 或设备不可用
	ErrResource = errors.New("资源不可用")
	// ErrShapeMismatch 张量形状与预期不符
	ErrShapeMismatch = errors.New("形状不匹配")
)

// 流水线阶段名称
const (
	StageLoad        = "load"
	StageNormalize   = "normalize"
	StageResample    = "resample"
	StageMapBox      = "map_box"
	StageEncode      = "encode"
	StageDecode      = "decode"
	StageReconstruct = "reconstruct"
	StageSave        = "save"
)

// StageError 标记失败的流水线阶段
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("阶段 %s 失败: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
