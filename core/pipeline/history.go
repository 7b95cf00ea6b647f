package pipeline

import (
	"sync"

	"go.uber.org/zap"

	"assetopt/core/converter"
	"assetopt/core/report"
	"assetopt/core/state"
)

// HistoryRecorder 将运行结果写入 bbolt 历史；写入失败只记录警告
type HistoryRecorder struct {
	history *state.History
	logger  *zap.Logger

	mu  sync.Mutex
	run *state.RunInfo
}

// NewHistoryRecorder 创建历史记录器
func NewHistoryRecorder(history *state.History, logger *zap.Logger) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{history: history, logger: logger}
}

// Begin 开始一次运行
func (h *HistoryRecorder) Begin(target, sourceDir string) error {
	run, err := h.history.StartRun(target, sourceDir)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.run = run
	h.mu.Unlock()
	return nil
}

// Record 写入单个资产结果
func (h *HistoryRecorder) Record(r converter.ProcessingResult) {
	h.mu.Lock()
	run := h.run
	h.mu.Unlock()
	if run == nil {
		return
	}

	rec := state.AssetRecord{
		Asset:          r.Asset.Name,
		Profile:        r.Profile.String(),
		Artifacts:      r.Artifacts,
		OriginalBytes:  r.OriginalBytes,
		OptimizedBytes: r.OptimizedBytes,
		Success:        r.Success,
		Duration:       r.Duration,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	if err := h.history.Record(run.ID, rec); err != nil {
		h.logger.Warn("写入运行历史失败", zap.String("asset", r.Asset.Name), zap.Error(err))
	}
}

// Finish 写入运行统计
func (h *HistoryRecorder) Finish(s report.Summary, runErr error) {
	h.mu.Lock()
	run := h.run
	h.run = nil
	h.mu.Unlock()
	if run == nil {
		return
	}

	run.Scanned = s.Scanned
	run.Processed = s.Processed
	run.Skipped = s.Skipped
	run.Failed = s.Failed
	run.SourceBytes = s.SourceBytes
	run.OutputBytes = s.OutputBytes

	status := state.RunCompleted
	if runErr != nil {
		status = state.RunAborted
	}
	if err := h.history.FinishRun(run, status); err != nil {
		h.logger.Warn("写入运行历史失败", zap.Error(err))
	}
}
