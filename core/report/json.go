package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"assetopt/core/asset"
	"assetopt/internal/version"
)

// DetailedReport JSON 运行报告
type DetailedReport struct {
	Target           string        `json:"target"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	SourceDirectory  string        `json:"source_directory"`
	OutputDirectory  string        `json:"output_directory"`
	TotalFiles       int           `json:"total_files"`
	ProcessedFiles   int           `json:"processed_files"`
	SkippedFiles     int           `json:"skipped_files"`
	FailedFiles      int           `json:"failed_files"`
	PendingFiles     int           `json:"pending_files,omitempty"`
	Aborted          bool          `json:"aborted,omitempty"`
	TotalSizeBefore  int64         `json:"total_size_before"`
	TotalSizeAfter   int64         `json:"total_size_after"`
	CompressionRatio float64       `json:"compression_ratio"`
	Assets           []AssetDetail `json:"assets"`
	SystemInfo       SystemInfo    `json:"system_info"`
	Build            version.Info  `json:"build"`
}

// AssetDetail 单个资产的处理详情
type AssetDetail struct {
	Name             string        `json:"name"`
	Profile          string        `json:"profile"`
	Artifacts        []string      `json:"artifacts"`
	OriginalSize     int64         `json:"original_size"`
	OutputSize       int64         `json:"output_size"`
	CompressionRatio float64       `json:"compression_ratio"`
	ProcessingTime   time.Duration `json:"processing_time"`
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`
}

// SystemInfo 系统信息
type SystemInfo struct {
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	CPUCores    int    `json:"cpu_cores"`
	Concurrency int    `json:"concurrency"`
}

// NewDetailedReport 由汇总构建报告
func NewDetailedReport(s Summary, start time.Time, workers int) DetailedReport {
	r := DetailedReport{
		Target:           s.Target,
		StartTime:        start,
		EndTime:          start.Add(s.Duration),
		Duration:         s.Duration,
		SourceDirectory:  s.SourceDir,
		OutputDirectory:  s.OutputDir,
		TotalFiles:       s.Scanned,
		ProcessedFiles:   s.Processed,
		SkippedFiles:     s.Skipped,
		FailedFiles:      s.Failed,
		PendingFiles:     s.Pending,
		Aborted:          s.Aborted,
		TotalSizeBefore:  s.SourceBytes,
		TotalSizeAfter:   s.OutputBytes,
		CompressionRatio: s.ReductionPercent,
		Build:            version.Get(),
		SystemInfo: SystemInfo{
			OS:          runtime.GOOS,
			Arch:        runtime.GOARCH,
			CPUCores:    runtime.NumCPU(),
			Concurrency: workers,
		},
	}

	for _, res := range s.Results {
		detail := AssetDetail{
			Name:             res.Asset.Name,
			Profile:          res.Profile.String(),
			Artifacts:        res.Artifacts,
			OriginalSize:     res.OriginalBytes,
			OutputSize:       res.OptimizedBytes,
			CompressionRatio: res.ReductionPercent(),
			ProcessingTime:   res.Duration,
			Success:          res.Success,
		}
		if res.Err != nil {
			detail.Error = res.Err.Error()
		}
		r.Assets = append(r.Assets, detail)
	}
	return r
}

// SaveJSON 将报告写入 dir，返回文件路径
func SaveJSON(dir string, r DetailedReport) (string, error) {
	if err := asset.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	name := fmt.Sprintf("assetopt_%s_%s.json", r.Target, r.StartTime.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("保存JSON报告失败: %w", err)
	}
	return path, nil
}
