package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/getcharzp/go-medsam"
	"github.com/getcharzp/go-medsam/imageio"
	"github.com/getcharzp/go-medsam/postprocess"
	"github.com/getcharzp/go-medsam/preprocess"
	"github.com/getcharzp/go-medsam/sam"
	"github.com/rs/zerolog"
)

// Config 流水线配置项
type Config struct {
	Overlay  bool   // 额外输出叠加图 overlay_<name>.png
	FontPath string // (可选) 叠加图标题字体, 为空使用内置 Go 字体
}

// DefaultConfig 默认不输出叠加图
func DefaultConfig() Config {
	return Config{}
}

// Option 可选参数
type Option func(*Pipeline)

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline 单图单框分割流水线
type Pipeline struct {
	model  sam.Model
	config Config
	logger zerolog.Logger
}

// New 创建流水线, 默认不输出日志
func New(model sam.Model, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		model:  model,
		config: cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "pipeline").Logger()
	return p
}

// Request 一次推理请求
type Request struct {
	InputPath string     // 输入图像
	OutputDir string     // 结果目录, 为空时与输入同目录
	Box       medsam.Box // 原图坐标系下的检测框
}

// Result 推理结果
type Result struct {
	OutputPath  string
	OverlayPath string // 未输出叠加图时为空
	Mask        *medsam.Mask
	Score       float32 // 解码器预测的 IoU
	Min, Max    float64 // 输入像素范围
	Timings     Timings
}

// segmentation 分割中间结果
type segmentation struct {
	normalized *medsam.Image
	mask       *medsam.Mask
	score      float32
}

// Segment 对已加载的图像执行 归一化 -> 重采样 -> 坐标映射 -> 编码 -> 解码 -> 重建
func (p *Pipeline) Segment(raw *medsam.RawImage, box medsam.Box) (*medsam.Mask, error) {
	tr := &tracker{logger: p.logger}
	seg, err := p.segment(tr, raw, box)
	if err != nil {
		return nil, err
	}
	return seg.mask, nil
}

func (p *Pipeline) segment(tr *tracker, raw *medsam.RawImage, box medsam.Box) (*segmentation, error) {
	var (
		normalized *medsam.Image
		resampled  *medsam.Image
		modelBox   medsam.ModelBox
		emb        sam.Embedding
		logits     *sam.Logits
		mask       *medsam.Mask
	)
	size := p.model.InputSize()

	err := tr.run(medsam.StageNormalize, func() (err error) {
		lo, hi := preprocess.Stats(raw)
		p.logger.Debug().Float64("min", lo).Float64("max", hi).
			Int("width", raw.Width).Int("height", raw.Height).Int("channels", raw.Channels).
			Msg("输入像素范围")
		normalized, err = preprocess.Normalize(raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = tr.run(medsam.StageResample, func() error {
		resampled = preprocess.Resample(normalized, size)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = tr.run(medsam.StageMapBox, func() error {
		if !box.Valid() {
			return fmt.Errorf("%w: 检测框需满足 x0<x1 且 y0<y1: %v", medsam.ErrInputFormat, box)
		}
		if !box.In(raw.Width, raw.Height) {
			p.logger.Warn().Interface("box", box).Int("width", raw.Width).Int("height", raw.Height).
				Msg("检测框超出图像范围, 按原值传入模型")
		}
		modelBox = preprocess.MapBox(box, raw.Width, raw.Height, size)
		p.logger.Debug().Interface("model_box", modelBox).Msg("模型坐标系检测框")
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = tr.run(medsam.StageEncode, func() (err error) {
		emb, err = p.model.Encode(resampled)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer emb.Destroy()
	p.logger.Debug().Ints64("shape", emb.Shape()).Msg("图像 embedding")

	err = tr.run(medsam.StageDecode, func() (err error) {
		logits, err = p.model.Decode(emb, modelBox)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = tr.run(medsam.StageReconstruct, func() (err error) {
		mask, err = postprocess.Reconstruct(logits.Data, logits.Width, logits.Height, raw.Width, raw.Height)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.logger.Debug().Int("foreground", mask.Count()).Float32("score", logits.Score).Msg("分割完成")

	return &segmentation{normalized: normalized, mask: mask, score: logits.Score}, nil
}

// Run 读取图像, 分割, 写出 seg_<name>
//
// 结果先写入临时文件再重命名, 任一阶段失败都不会留下结果文件
func (p *Pipeline) Run(req Request) (*Result, error) {
	tr := &tracker{logger: p.logger}
	res := &Result{}

	var raw *medsam.RawImage
	err := tr.run(medsam.StageLoad, func() (err error) {
		raw, err = imageio.Load(req.InputPath)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.Min, res.Max = preprocess.Stats(raw)

	seg, err := p.segment(tr, raw, req.Box)
	if err != nil {
		return nil, err
	}
	res.Mask = seg.mask
	res.Score = seg.score

	outDir := req.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(req.InputPath)
	}
	res.OutputPath = imageio.OutputPath(outDir, req.InputPath)
	err = tr.run(medsam.StageSave, func() error {
		return imageio.Save(res.OutputPath, seg.mask)
	})
	if err != nil {
		return nil, err
	}

	if p.config.Overlay {
		path := overlayPath(outDir, req.InputPath)
		if err := p.writeOverlay(path, seg, req.Box); err != nil {
			p.logger.Warn().Err(err).Str("path", path).Msg("输出叠加图失败")
		} else {
			res.OverlayPath = path
		}
	}

	res.Timings = tr.timings
	p.logger.Info().Str("output", res.OutputPath).Str("timings", res.Timings.String()).Msg("推理完成")
	return res, nil
}

// overlayPath dir/overlay_<stem>.png
func overlayPath(dir, input string) string {
	base := filepath.Base(input)
	return filepath.Join(dir, "overlay_"+strings.TrimSuffix(base, filepath.Ext(base))+".png")
}
