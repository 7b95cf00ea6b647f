package converter

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ToolManager 外部工具管理器：可用性缓存、超时与重试
type ToolManager struct {
	logger     *zap.Logger
	timeout    time.Duration
	maxRetries int
	toolCache  map[string]bool
	cacheMutex sync.RWMutex
}

// NewToolManager 创建新的工具管理器；timeout 为 0 表示不限制单次调用时长
func NewToolManager(logger *zap.Logger, timeout time.Duration, maxRetries int) *ToolManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ToolManager{
		logger:     logger,
		timeout:    timeout,
		maxRetries: maxRetries,
		toolCache:  make(map[string]bool),
	}
}

// IsToolAvailable 检查工具是否可用
func (tm *ToolManager) IsToolAvailable(toolPath string) bool {
	tm.cacheMutex.RLock()
	if available, exists := tm.toolCache[toolPath]; exists {
		tm.cacheMutex.RUnlock()
		return available
	}
	tm.cacheMutex.RUnlock()

	available := tm.checkTool(toolPath)

	tm.cacheMutex.Lock()
	tm.toolCache[toolPath] = available
	tm.cacheMutex.Unlock()

	return available
}

// checkTool 实际检查工具是否可用
func (tm *ToolManager) checkTool(toolPath string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := exec.CommandContext(ctx, toolPath, "-version").Run()
	if err != nil {
		err = exec.CommandContext(ctx, toolPath, "--version").Run()
	}

	if err != nil {
		tm.logger.Debug("工具不可用", zap.String("tool", toolPath), zap.Error(err))
	} else {
		tm.logger.Debug("工具可用", zap.String("tool", toolPath))
	}
	return err == nil
}

// FindToolInPath 在系统PATH中查找工具
func (tm *ToolManager) FindToolInPath(toolName string) (string, error) {
	return exec.LookPath(toolName)
}

// HasEncoders 检查 ffmpeg 是否编译了所需的编码器，返回缺失的编码器
func (tm *ToolManager) HasEncoders(ctx context.Context, ffmpegPath string, encoders ...string) ([]string, error) {
	output, err := tm.Execute(ctx, ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		return nil, err
	}
	listing := string(output)

	var missing []string
	for _, enc := range encoders {
		if !strings.Contains(listing, " "+enc+" ") {
			missing = append(missing, enc)
		}
	}
	return missing, nil
}

// Execute 执行单个工具命令，带可选超时与重试
func (tm *ToolManager) Execute(ctx context.Context, toolPath string, args ...string) ([]byte, error) {
	var output []byte
	var err error

	for attempt := 0; attempt <= tm.maxRetries; attempt++ {
		if attempt > 0 {
			tm.logger.Debug("工具执行重试",
				zap.String("tool", toolPath),
				zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return output, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		output, err = tm.run(ctx, toolPath, args)
		if err == nil {
			return output, nil
		}

		// 取消与超时不重试
		if errors.Is(err, context.Canceled) {
			tm.logger.Warn("工具执行被取消", zap.String("tool", toolPath), zap.Error(err))
			return output, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			tm.logger.Warn("工具执行超时",
				zap.String("tool", toolPath),
				zap.Duration("timeout", tm.timeout),
				zap.Error(err))
			return output, err
		}
	}

	tm.logger.Debug("工具执行失败",
		zap.String("tool", toolPath),
		zap.Int("attempts", tm.maxRetries+1),
		zap.Error(err))
	return output, err
}

func (tm *ToolManager) run(ctx context.Context, toolPath string, args []string) ([]byte, error) {
	runCtx := ctx
	if tm.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, tm.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, toolPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil && runCtx.Err() != nil {
		// 进程被杀时 err 只是 "signal: killed"，改为返回上下文错误
		return output, runCtx.Err()
	}
	return output, err
}
