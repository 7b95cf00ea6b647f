package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Videos.SourceDir != "assets/media" {
		t.Errorf("videos.source_dir = %q", cfg.Videos.SourceDir)
	}
	if cfg.Videos.OutputDir != "assets/media/optimized" {
		t.Errorf("videos.output_dir = %q", cfg.Videos.OutputDir)
	}
	if cfg.Concurrency.Workers != 1 {
		t.Errorf("默认应顺序处理, workers = %d", cfg.Concurrency.Workers)
	}
	if cfg.Tools.Timeout != 0 {
		t.Errorf("默认不应有编码超时, got %v", cfg.Tools.Timeout)
	}
	if len(cfg.Profiles.HeroKeywords) != 2 || cfg.Profiles.HeroKeywords[0] != "romix" {
		t.Errorf("hero keywords = %v", cfg.Profiles.HeroKeywords)
	}
	if cfg.Images.ResizeThreshold != 1024*1024 {
		t.Errorf("resize threshold = %d", cfg.Images.ResizeThreshold)
	}
	want := []string{".mp4", ".mov", ".avi", ".mkv"}
	for i, ext := range want {
		if cfg.Videos.Extensions[i] != ext {
			t.Errorf("videos.extensions[%d] = %q, want %q", i, cfg.Videos.Extensions[i], ext)
		}
	}
}

func TestNewConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "assetopt.yaml")
	content := `
videos:
  source_dir: media
  output_dir: media/out
  extensions: [MP4, ".MOV"]
concurrency:
  workers: 3
tools:
  timeout: 90s
images:
  webp_quality: 400
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	cfg, err := NewConfig(file, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Videos.SourceDir != "media" || cfg.Videos.OutputDir != "media/out" {
		t.Errorf("videos = %+v", cfg.Videos)
	}
	if len(cfg.Videos.Extensions) != 2 || cfg.Videos.Extensions[0] != ".mp4" || cfg.Videos.Extensions[1] != ".mov" {
		t.Errorf("扩展名未规范化: %v", cfg.Videos.Extensions)
	}
	if cfg.Tools.Timeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Tools.Timeout)
	}
	if cfg.Images.WebPQuality != 80 {
		t.Errorf("越界质量应回退为80, got %d", cfg.Images.WebPQuality)
	}
	if cfg.Images.ResizedDir != "assets/img/optimized" {
		t.Errorf("resized_dir = %q", cfg.Images.ResizedDir)
	}
}

func TestNewConfigInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(file, []byte("logging:\n  level: loud\n"), 0644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	_, err := NewConfig(file, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("期望 ValidationError, got %v", err)
	}
	if verr.Field != "logging.level" {
		t.Errorf("field = %q", verr.Field)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", ".assetopt.yaml")

	if err := WriteDefaultConfig(file); err != nil {
		t.Fatalf("写入默认配置失败: %v", err)
	}
	if err := WriteDefaultConfig(file); err == nil {
		t.Error("文件已存在时应返回错误")
	}

	cfg, err := NewConfig(file, nil)
	if err != nil {
		t.Fatalf("读取默认配置失败: %v", err)
	}
	if cfg.Images.OutputDir != "assets/img/webp" {
		t.Errorf("images.output_dir = %q", cfg.Images.OutputDir)
	}
}

func TestWorkersZeroMeansAuto(t *testing.T) {
	for content, want := range map[string]int{
		"concurrency:\n  workers: 0\n":  0,
		"concurrency:\n  workers: -2\n": 0,
	} {
		file := filepath.Join(t.TempDir(), "assetopt.yaml")
		if err := os.WriteFile(file, []byte(content), 0644); err != nil {
			t.Fatalf("写入配置文件失败: %v", err)
		}
		cfg, err := NewConfig(file, zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		if cfg.Concurrency.Workers != want {
			t.Errorf("%q: workers = %d, want %d", content, cfg.Concurrency.Workers, want)
		}
	}
}
