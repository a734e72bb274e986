package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getcharzp/go-medsam"
)

func TestRun_Usage(t *testing.T) {
	tests := map[string][]string{
		"no_args":   {},
		"no_box":    {"-i", "ct.png"},
		"bad_flag":  {"-i", "ct.png", "-box", "[1,2,3,4]", "-nope"},
		"bad_box":   {"-i", "ct.png", "-box", "[1,2,3]"},
		"empty_box": {"-i", "ct.png", "-box", "[5,5,5,5]"},
		"float_box": {"-data_path", "ct.png", "--box", "[1.5,2,3,4]"},
		"bare_box":  {"-i", "ct.png", "-box", "10,20,30,40"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(args, &stdout, &stderr); code != exitUsage {
				t.Fatalf("退出码 %d, 期望 %d (stderr: %s)", code, exitUsage, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Fatalf("不应有标准输出: %s", stdout.String())
			}
		})
	}
}

func TestRun_MissingCheckpoint(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	args := []string{
		"-i", filepath.Join(dir, "ct.png"),
		"-box", "[1,2,30,40]",
		"-chk", filepath.Join(dir, "medsam_vit_b.pth"),
		"-device", "cpu",
	}
	if code := run(args, &stdout, &stderr); code != exitFail {
		t.Fatalf("退出码 %d, 期望 %d", code, exitFail)
	}
	if !strings.Contains(stderr.String(), "初始化引擎失败") {
		t.Fatalf("stderr: %s", stderr.String())
	}
}

func TestRun_BadDevice(t *testing.T) {
	var stdout, stderr bytes.Buffer
	args := []string{"-i", "ct.png", "-box", "[1,2,30,40]", "-device", "tpu"}
	if code := run(args, &stdout, &stderr); code != exitFail {
		t.Fatalf("退出码 %d, 期望 %d", code, exitFail)
	}
}

func TestModelConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medsam.json")
	if err := os.WriteFile(path, []byte(`{"checkpoint_dir": "/models", "num_threads": 2}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := modelConfig(&options{configPath: path, device: "gpu", threads: 8, ortPath: "/opt/libonnxruntime.so"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CheckpointDir != "/models" {
		t.Fatalf("CheckpointDir = %s", cfg.CheckpointDir)
	}
	if cfg.NumThreads != 8 || cfg.OnnxRuntimeLibPath != "/opt/libonnxruntime.so" {
		t.Fatalf("命令行覆盖未生效: %+v", cfg)
	}
	if cfg.Device != (medsam.Device{Kind: medsam.DeviceCUDA}) {
		t.Fatalf("Device = %v", cfg.Device)
	}
}
