package sam

import "github.com/getcharzp/go-medsam"

// Embedding 编码器输出的图像特征, 对调用方不透明
type Embedding interface {
	Shape() []int64
	Destroy()
}

// Logits 解码器输出的低分辨率 Mask logits
type Logits struct {
	Width  int
	Height int
	Data   []float32 // 行优先
	Score  float32   // 预测 IoU
}

// Model 预训练分割模型能力接口
type Model interface {
	// InputSize 编码器要求的输入边长 R
	InputSize() int
	// Encode 对 R x R x 3 的图像提取特征, 每张图只调用一次
	Encode(img *medsam.Image) (Embedding, error)
	// Decode 以模型坐标系下的检测框为提示解码 Mask
	Decode(emb Embedding, box medsam.ModelBox) (*Logits, error)
}
