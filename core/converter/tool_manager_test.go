package converter

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestToolManagerExecuteNormalOperation 测试Execute方法正常操作
func TestToolManagerExecuteNormalOperation(t *testing.T) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("创建日志记录器失败: %v", err)
	}

	tm := NewToolManager(logger, 0, 0)

	output, err := tm.Execute(context.Background(), "echo", "hello world")
	if err != nil {
		t.Errorf("Execute should succeed for normal operation, got error: %v", err)
	}

	expectedOutput := "hello world\n"
	if string(output) != expectedOutput {
		t.Errorf("Expected output '%s', got '%s'", expectedOutput, string(output))
	}
}

// TestToolManagerExecuteContextCanceled 已取消的上下文不会重试
func TestToolManagerExecuteContextCanceled(t *testing.T) {
	tm := NewToolManager(zap.NewNop(), 0, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := tm.Execute(ctx, "sleep", "5")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("canceled execution should return immediately, took %v", time.Since(start))
	}
}

// TestToolManagerExecuteTimeout 单次调用超时返回 DeadlineExceeded
func TestToolManagerExecuteTimeout(t *testing.T) {
	tm := NewToolManager(zap.NewNop(), 50*time.Millisecond, 2)

	start := time.Now()
	_, err := tm.Execute(context.Background(), "sleep", "5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("timeout should not be retried, took %v", time.Since(start))
	}
}

func TestToolManagerMissingTool(t *testing.T) {
	tm := NewToolManager(zap.NewNop(), 0, 0)

	if tm.IsToolAvailable("definitely-not-a-real-tool-xyz") {
		t.Error("missing tool reported as available")
	}
	if _, err := tm.Execute(context.Background(), "definitely-not-a-real-tool-xyz"); err == nil {
		t.Error("expected error executing missing tool")
	}
}
