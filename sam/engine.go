package sam

import (
	"fmt"
	"runtime"

	"github.com/getcharzp/go-medsam"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
)

// Engine 持有编码器和解码器 ONNX Session, 实现 Model
type Engine struct {
	onnxConfig     *medsam.OnnxConfig
	encoderSession *ort.DynamicAdvancedSession
	decoderSession *ort.DynamicAdvancedSession
	iouOutput      outputSpec
	maskOutput     outputSpec
	config         Config
}

// NewEngine 初始化 MedSAM 引擎
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", medsam.ErrResource, err)
	}
	encPath, decPath, err := resolveCheckpoint(cfg.CheckpointDir, cfg.EncoderFile, cfg.DecoderFile)
	if err != nil {
		return nil, err
	}

	onnxConfig := new(medsam.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	// 初始化 ONNX
	if err := onnxConfig.New(); err != nil {
		return nil, err
	}

	iouOutput, maskOutput, err := validateModels(cfg, encPath, decPath)
	if err != nil {
		onnxConfig.Destroy()
		return nil, err
	}

	// encoder session
	encSession, err := ort.NewDynamicAdvancedSession(encPath,
		[]string{cfg.EncoderInput}, []string{cfg.EncoderOutput}, onnxConfig.SessionOptions)
	if err != nil {
		onnxConfig.Destroy()
		return nil, fmt.Errorf("%w: 创建 Encoder ONNX 会话失败: %v", medsam.ErrResource, err)
	}

	// decoder session
	n := cfg.Decoder
	decInputs := []string{n.ImageEmbeddings, n.PointCoords, n.PointLabels, n.MaskInput, n.HasMaskInput, n.OrigImSize}
	decOutputs := []string{n.IoUPredictions, n.LowResMasks}
	decSession, err := ort.NewDynamicAdvancedSession(decPath, decInputs, decOutputs, onnxConfig.SessionOptions)
	if err != nil {
		encSession.Destroy()
		onnxConfig.Destroy()
		return nil, fmt.Errorf("%w: 创建 Decoder ONNX 会话失败: %v", medsam.ErrResource, err)
	}

	return &Engine{
		onnxConfig:     onnxConfig,
		encoderSession: encSession,
		decoderSession: decSession,
		iouOutput:      iouOutput,
		maskOutput:     maskOutput,
		config:         cfg,
	}, nil
}

// validateModels 读取模型声明的输入输出, 提前发现不兼容的权重, 并返回解码器输出的类型和形状
func validateModels(cfg Config, encPath, decPath string) (iou, mask outputSpec, err error) {
	r := int64(cfg.InputSize)
	encIn, encOut, err := ort.GetInputOutputInfo(encPath)
	if err != nil {
		return iou, mask, fmt.Errorf("%w: 读取 Encoder 模型失败: %v", medsam.ErrResource, err)
	}
	if err := checkIO(encIn, cfg.EncoderInput, []int64{1, 3, r, r}); err != nil {
		return iou, mask, err
	}
	if err := checkIO(encOut, cfg.EncoderOutput, cfg.EmbeddingShape()); err != nil {
		return iou, mask, err
	}

	decIn, decOut, err := ort.GetInputOutputInfo(decPath)
	if err != nil {
		return iou, mask, fmt.Errorf("%w: 读取 Decoder 模型失败: %v", medsam.ErrResource, err)
	}
	n := cfg.Decoder
	for _, name := range []string{n.ImageEmbeddings, n.PointCoords, n.PointLabels, n.MaskInput, n.HasMaskInput, n.OrigImSize} {
		if err := checkIO(decIn, name, nil); err != nil {
			return iou, mask, err
		}
	}

	// mask 个数由模型声明, 动态维度时取 NumMasks
	l := int64(cfg.LowResSize)
	if mask, err = newOutputSpec(decOut, n.LowResMasks, []int64{1, -1, l, l}, cfg.LowResShape()); err != nil {
		return iou, mask, err
	}
	if masks := mask.shape[1]; masks <= int64(cfg.MaskIndex) {
		return iou, mask, fmt.Errorf("%w: 解码器仅输出 %d 个 mask, mask_index=%d 越界", medsam.ErrResource, masks, cfg.MaskIndex)
	}
	iou, err = newOutputSpec(decOut, n.IoUPredictions, []int64{1, -1}, mask.shape[:2])
	return iou, mask, err
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	if e.encoderSession != nil {
		if err := e.encoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Encoder ONNX 会话失败: %w", err)
		}
		e.encoderSession = nil
	}
	if e.decoderSession != nil {
		if err := e.decoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Decoder ONNX 会话失败: %w", err)
		}
		e.decoderSession = nil
	}
	if e.onnxConfig != nil {
		e.onnxConfig.Destroy()
	}
	return nil
}

// InputSize 编码器输入边长
func (e *Engine) InputSize() int {
	return e.config.InputSize
}

// imageEmbedding 单张图像的特征缓存
type imageEmbedding struct {
	value       ort.Value
	shape       []int64
	isDestroyed bool
}

func (emb *imageEmbedding) Shape() []int64 {
	return emb.shape
}

// Destroy 释放图像特征缓存
func (emb *imageEmbedding) Destroy() {
	if emb.isDestroyed {
		return
	}
	if emb.value != nil {
		emb.value.Destroy()
	}
	emb.value = nil
	emb.isDestroyed = true
}

// Encode 图像特征提取
func (e *Engine) Encode(img *medsam.Image) (Embedding, error) {
	r := e.config.InputSize
	if img.Width != r || img.Height != r || len(img.Pix) != r*r*3 {
		return nil, fmt.Errorf("%w: 编码器输入应为 %dx%dx3, 实际 %dx%d (%d)",
			medsam.ErrShapeMismatch, r, r, img.Width, img.Height, len(img.Pix))
	}

	// HWC -> (1, 3, R, R)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(r), int64(r)), toCHW(img))
	if err != nil {
		return nil, fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 1)
	if err := e.encoderSession.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("encoder 推理失败: %w", err)
	}

	shape := []int64(outputs[0].GetShape())
	if want := e.config.EmbeddingShape(); !shapeMatches(shape, want) {
		outputs[0].Destroy()
		return nil, fmt.Errorf("%w: embedding 形状 %v, 期望 %v", medsam.ErrShapeMismatch, shape, want)
	}

	emb := &imageEmbedding{value: outputs[0], shape: shape}
	// 设置 Finalizer 以防调用方忘记 Destroy
	runtime.SetFinalizer(emb, func(c *imageEmbedding) { c.Destroy() })
	return emb, nil
}

// Decode 以检测框为提示解码低分辨率 Mask logits
func (e *Engine) Decode(emb Embedding, box medsam.ModelBox) (*Logits, error) {
	ie, ok := emb.(*imageEmbedding)
	if !ok || ie.isDestroyed {
		return nil, fmt.Errorf("%w: 图片特征无效或已销毁", medsam.ErrShapeMismatch)
	}

	// 检测框以左上/右下两个点传入
	coords := []float32{float32(box.X0), float32(box.Y0), float32(box.X1), float32(box.Y1)}
	labels := []float32{float32(LabelBoxTopLeft), float32(LabelBoxBotRight)}

	tCoords, err := ort.NewTensor(ort.NewShape(1, 2, 2), coords)
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder Points Tensor 失败: %w", err)
	}
	defer tCoords.Destroy()

	tLabels, err := ort.NewTensor(ort.NewShape(1, 2), labels)
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder Labels Tensor 失败: %w", err)
	}
	defer tLabels.Destroy()

	l := int64(e.config.LowResSize)
	tMask, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, l, l))
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder Mask Tensor 失败: %w", err)
	}
	defer tMask.Destroy()

	tHasMask, err := ort.NewTensor(ort.NewShape(1), []float32{0})
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder HasMask Tensor 失败: %w", err)
	}
	defer tHasMask.Destroy()

	r := float32(e.config.InputSize)
	tOrigSize, err := ort.NewTensor(ort.NewShape(2), []float32{r, r})
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder OrigSize Tensor 失败: %w", err)
	}
	defer tOrigSize.Destroy()

	// float16 输出需预先分配, 其余由 onnxruntime 分配
	outputs := make([]ort.Value, 2)
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()
	for i, spec := range []outputSpec{e.iouOutput, e.maskOutput} {
		if outputs[i], err = spec.newOutput(); err != nil {
			return nil, err
		}
	}

	inputs := []ort.Value{ie.value, tCoords, tLabels, tMask, tHasMask, tOrigSize}
	if err := e.decoderSession.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("decoder 推理失败: %w", err)
	}

	return e.extractLogits(outputs[0], outputs[1])
}

// extractLogits 取单 Mask 模式对应的 mask token
func (e *Engine) extractLogits(iou, lowRes ort.Value) (*Logits, error) {
	shape := []int64(lowRes.GetShape()) // [1, N, 256, 256]
	l := int64(e.config.LowResSize)
	idx := e.config.MaskIndex
	if len(shape) != 4 || shape[0] != 1 || shape[2] != l || shape[3] != l || shape[1] <= int64(idx) {
		return nil, fmt.Errorf("%w: low_res_masks 形状 %v, 期望 [1, >%d, %d, %d]", medsam.ErrShapeMismatch, shape, idx, l, l)
	}

	masks, err := tensorFloats(lowRes)
	if err != nil {
		return nil, err
	}
	pixels := int(l * l)
	data := make([]float32, pixels)
	copy(data, masks[idx*pixels:(idx+1)*pixels])

	var score float32
	if scores, err := tensorFloats(iou); err == nil && len(scores) > idx {
		score = scores[idx]
	}

	return &Logits{
		Width:  int(l),
		Height: int(l),
		Data:   data,
		Score:  score,
	}, nil
}
