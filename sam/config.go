package sam

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/getcharzp/go-medsam"
)

// Label 提示点类型, 与 SAM ONNX 解码器一致
type Label float32

const (
	LabelBoxTopLeft  Label = 2 // 框选左上
	LabelBoxBotRight Label = 3 // 框选右下
)

// DecoderNames 解码器输入输出张量名称
type DecoderNames struct {
	ImageEmbeddings string `json:"image_embeddings"`
	PointCoords     string `json:"point_coords"`
	PointLabels     string `json:"point_labels"`
	MaskInput       string `json:"mask_input"`
	HasMaskInput    string `json:"has_mask_input"`
	OrigImSize      string `json:"orig_im_size"`

	IoUPredictions string `json:"iou_predictions"`
	LowResMasks    string `json:"low_res_masks"`
}

// Config 配置项
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string `json:"onnxruntime_lib_path"` // onnxruntime.dll (或 .so, .dylib) 的路径
	CheckpointDir      string `json:"checkpoint_dir"`       // 存放编码器和解码器的目录
	EncoderFile        string `json:"encoder_file"`         // 图片特征提取模型
	DecoderFile        string `json:"decoder_file"`         // Prompt 编码 + Mask 解码模型

	// 模型参数
	InputSize  int `json:"input_size"`   // 编码器输入边长 R, 默认 1024
	PatchSize  int `json:"patch_size"`   // 编码器下采样倍数, 默认 16
	EmbedDim   int `json:"embed_dim"`    // embedding 通道数, 默认 256
	LowResSize int `json:"low_res_size"` // 低分辨率 Mask 边长, 默认 256
	NumMasks   int `json:"num_masks"`    // 解码器输出的 mask 个数, 模型声明为动态维度时使用, 默认 4
	MaskIndex  int `json:"mask_index"`   // 单 Mask 模式使用的 mask token, 默认 0

	// 张量名称
	EncoderInput  string       `json:"encoder_input"`
	EncoderOutput string       `json:"encoder_output"`
	Decoder       DecoderNames `json:"decoder"`

	// 可选参数
	Device     medsam.Device `json:"device"`      // (可选) 推理设备
	NumThreads int           `json:"num_threads"` // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 返回 MedSAM ViT-B 的默认配置
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: medsam.DefaultLibraryPath(),
		CheckpointDir:      "./medsam_weights",
		EncoderFile:        "vision_encoder.onnx",
		DecoderFile:        "prompt_encoder_mask_decoder.onnx",
		InputSize:          1024,
		PatchSize:          16,
		EmbedDim:           256,
		LowResSize:         256,
		NumMasks:           4,
		EncoderInput:       "image",
		EncoderOutput:      "image_embeddings",
		Decoder: DecoderNames{
			ImageEmbeddings: "image_embeddings",
			PointCoords:     "point_coords",
			PointLabels:     "point_labels",
			MaskInput:       "mask_input",
			HasMaskInput:    "has_mask_input",
			OrigImSize:      "orig_im_size",
			IoUPredictions:  "iou_predictions",
			LowResMasks:     "low_res_masks",
		},
		Device: medsam.CPU,
	}
}

// LoadConfig 在默认配置基础上读取 JSON 覆盖项
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate 检查模型参数
func (c Config) Validate() error {
	if c.InputSize <= 0 || c.PatchSize <= 0 || c.InputSize%c.PatchSize != 0 {
		return fmt.Errorf("input_size (%d) 必须为 patch_size (%d) 的正整数倍", c.InputSize, c.PatchSize)
	}
	if c.EmbedDim <= 0 || c.LowResSize <= 0 {
		return fmt.Errorf("embed_dim 和 low_res_size 必须为正数")
	}
	if c.MaskIndex < 0 || c.MaskIndex >= c.NumMasks {
		return fmt.Errorf("mask_index (%d) 必须位于 [0, num_masks=%d) 内", c.MaskIndex, c.NumMasks)
	}
	return nil
}

// LowResShape 解码器 low_res_masks 输出形状 (1, N, L, L)
func (c Config) LowResShape() []int64 {
	l := int64(c.LowResSize)
	return []int64{1, int64(c.NumMasks), l, l}
}

// EmbeddingShape 编码器输出形状 (1, C, R/patch, R/patch)
func (c Config) EmbeddingShape() []int64 {
	g := int64(c.InputSize / c.PatchSize)
	return []int64{1, int64(c.EmbedDim), g, g}
}
