package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// ErrInsufficientDisk 输出磁盘剩余空间不足
var ErrInsufficientDisk = errors.New("insufficient disk space")

// maxAutoWorkers 编码器本身是多线程的，自动并发数不宜过高
const maxAutoWorkers = 4

// Preflight 运行前的磁盘空间检查
type Preflight struct {
	MinFreeMB uint64
	logger    *zap.Logger

	// 测试可替换
	usage func(path string) (*disk.UsageStat, error)
}

// NewPreflight 创建运行前检查
func NewPreflight(minFreeMB uint64, logger *zap.Logger) *Preflight {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preflight{MinFreeMB: minFreeMB, logger: logger, usage: disk.Usage}
}

// Check 输出目录所在磁盘剩余空间低于阈值时返回 ErrInsufficientDisk；无法获取磁盘信息时只记录警告
func (pf *Preflight) Check(outputDir string) error {
	path, err := filepath.Abs(outputDir)
	if err != nil {
		path = outputDir
	}

	stat, err := pf.usage(path)
	if err != nil {
		pf.logger.Warn("无法获取磁盘信息，跳过空间检查", zap.String("path", path), zap.Error(err))
		return nil
	}

	freeMB := stat.Free / 1024 / 1024
	pf.logger.Debug("磁盘空间检查",
		zap.String("path", path),
		zap.Uint64("free_mb", freeMB),
		zap.Uint64("min_free_mb", pf.MinFreeMB))

	if freeMB < pf.MinFreeMB {
		return fmt.Errorf("%w: %d MB free on %s, need %d MB", ErrInsufficientDisk, freeMB, path, pf.MinFreeMB)
	}
	return nil
}

// AutoWorkers 根据物理核心数与可用内存推荐并发数
func AutoWorkers(logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}

	cores, err := cpu.Counts(false)
	if err != nil || cores <= 0 {
		cores, err = cpu.Counts(true)
		if err != nil || cores <= 0 {
			return 1
		}
	}

	workers := cores / 2
	if memInfo, err := mem.VirtualMemory(); err == nil {
		// 每路编码预留约 1GB
		byMemory := int(memInfo.Available / (1 << 30))
		if byMemory < workers {
			workers = byMemory
		}
	}

	if workers < 1 {
		workers = 1
	}
	if workers > maxAutoWorkers {
		workers = maxAutoWorkers
	}

	logger.Debug("自动并发数", zap.Int("cores", cores), zap.Int("workers", workers))
	return workers
}
