package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerWithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultLoggerConfig()
	cfg.EnableFile = true
	cfg.LogDir = dir
	cfg.Component = "unit"

	log, err := NewLoggerWithConfig(cfg)
	if err != nil {
		t.Fatalf("创建日志记录器失败: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取日志目录失败: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "unit_") {
		t.Fatalf("日志文件未创建: %v", entries)
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("日志内容缺少消息: %s", data)
	}
}

func TestNewLoggerConsoleOnly(t *testing.T) {
	log, err := NewLogger(true)
	if err != nil {
		t.Fatalf("创建日志记录器失败: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose 模式应启用 debug 级别")
	}
}
