package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/getcharzp/go-medsam"
	"github.com/getcharzp/go-medsam/pipeline"
	"github.com/getcharzp/go-medsam/preprocess"
	"github.com/getcharzp/go-medsam/sam"
	"github.com/rs/zerolog"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

type options struct {
	input      string
	outputDir  string
	box        string
	device     string
	checkpoint string
	configPath string
	ortPath    string
	threads    int
	overlay    bool
	fontPath   string
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("medsam", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.input, "i", "", "input image path (png/jpg/tif/bmp/webp/pgm)")
	fs.StringVar(&o.input, "data_path", "", "alias of -i")
	fs.StringVar(&o.outputDir, "o", "", "output directory for seg_<name> (default: input directory)")
	fs.StringVar(&o.outputDir, "seg_path", "", "alias of -o")
	fs.StringVar(&o.box, "box", "", "bounding box in original pixels: [x0,y0,x1,y1]")
	fs.StringVar(&o.device, "device", "", "cpu | cuda | cuda:N | gpu (overrides config)")
	fs.StringVar(&o.checkpoint, "chk", "", "ONNX checkpoint directory (overrides config)")
	fs.StringVar(&o.checkpoint, "checkpoint", "", "alias of -chk")
	fs.StringVar(&o.configPath, "config", "", "JSON file overriding model config")
	fs.StringVar(&o.ortPath, "ort", "", "onnxruntime shared library path (overrides config)")
	fs.IntVar(&o.threads, "threads", 0, "ONNX intra-op threads, 0 = runtime default")
	fs.BoolVar(&o.overlay, "overlay", false, "also write overlay_<name>.png")
	fs.StringVar(&o.fontPath, "font", "", "caption font for the overlay (ttf/otf)")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.input == "" || o.box == "" {
		fmt.Fprintf(stderr, "usage: %s -i image.pgm -box [x0,y0,x1,y1] [-o outdir] [-device cpu|cuda:N] [-chk weights_dir]\n", filepath.Base(os.Args[0]))
		return nil, flag.ErrHelp
	}
	return &o, nil
}

// modelConfig 默认配置 <- JSON 覆盖 <- 命令行覆盖
func modelConfig(o *options) (sam.Config, error) {
	cfg := sam.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = sam.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.checkpoint != "" {
		cfg.CheckpointDir = o.checkpoint
	}
	if o.ortPath != "" {
		cfg.OnnxRuntimeLibPath = o.ortPath
	}
	if o.threads > 0 {
		cfg.NumThreads = o.threads
	}
	if o.device != "" {
		dev, err := medsam.ParseDevice(o.device)
		if err != nil {
			return cfg, err
		}
		cfg.Device = dev
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}

	level := zerolog.InfoLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	// 检测框最先解析, 格式错误时不加载模型
	box, err := preprocess.ParseBox(o.box)
	if err != nil {
		logger.Error().Err(err).Msg("检测框格式错误")
		return exitUsage
	}

	cfg, err := modelConfig(o)
	if err != nil {
		logger.Error().Err(err).Msg("加载配置失败")
		return exitFail
	}

	engine, err := sam.NewEngine(cfg)
	if err != nil {
		logger.Error().Err(err).Str("checkpoint", cfg.CheckpointDir).Str("device", cfg.Device.String()).Msg("初始化引擎失败")
		return exitFail
	}
	defer engine.Destroy()
	logger.Debug().Str("checkpoint", cfg.CheckpointDir).Str("device", cfg.Device.String()).Msg("模型已加载")

	pcfg := pipeline.DefaultConfig()
	pcfg.Overlay = o.overlay
	pcfg.FontPath = o.fontPath
	p := pipeline.New(engine, pcfg, pipeline.WithLogger(logger))

	res, err := p.Run(pipeline.Request{InputPath: o.input, OutputDir: o.outputDir, Box: box})
	if err != nil {
		var se *medsam.StageError
		if errors.As(err, &se) {
			logger.Error().Str("stage", se.Stage).Err(se.Err).Msg("推理失败")
		} else {
			logger.Error().Err(err).Msg("推理失败")
		}
		return exitFail
	}

	fmt.Fprintf(stdout, "input range: min=%g max=%g\n", res.Min, res.Max)
	for _, st := range res.Timings {
		fmt.Fprintf(stdout, "%-12s %v\n", st.Stage, st.Elapsed)
	}
	fmt.Fprintf(stdout, "segmentation: %s (%d px, iou %.3f, total %v)\n", res.OutputPath, res.Mask.Count(), res.Score, res.Timings.Total())
	if res.OverlayPath != "" {
		fmt.Fprintf(stdout, "overlay: %s\n", res.OverlayPath)
	}
	return exitOK
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
