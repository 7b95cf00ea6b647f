package report

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"assetopt/core/asset"
	"assetopt/core/converter"
)

// Summary 一次运行的汇总，在工作池全部结束后生成
type Summary struct {
	Target           string
	SourceDir        string
	OutputDir        string
	Scanned          int
	Processed        int
	Skipped          int
	Failed           int
	SourceBytes      int64
	OutputBytes      int64
	ReductionPercent float64
	Duration         time.Duration
	Results          []converter.ProcessingResult

	// 预演模式下只统计待处理数量，不生成任何文件
	DryRun  bool
	Pending int

	// 运行在处理完所有过期资产前中止（预检失败或被取消）
	Aborted bool
}

// UpToDate 没有任何资产需要处理
func (s Summary) UpToDate() bool {
	return !s.Aborted && s.Processed == 0 && s.Failed == 0 && s.Pending == 0
}

// MarkAborted 标记运行中止，pending 个未处理的过期资产不再计为跳过
func (s *Summary) MarkAborted(pending int) {
	s.Aborted = true
	if pending < 0 {
		pending = 0
	}
	s.Pending = pending
	s.Skipped -= pending
	if s.Skipped < 0 {
		s.Skipped = 0
	}
}

// FailedResults 失败的处理结果
func (s Summary) FailedResults() []converter.ProcessingResult {
	var failed []converter.ProcessingResult
	for _, r := range s.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// Tally 统计处理结果；未出现在 results 中的扫描资产计为跳过
func Tally(scanned int, results []converter.ProcessingResult) Summary {
	s := Summary{Scanned: scanned, Results: results}
	for _, r := range results {
		if r.Success {
			s.Processed++
		} else {
			s.Failed++
		}
	}
	s.Skipped = scanned - s.Processed - s.Failed
	if s.Skipped < 0 {
		s.Skipped = 0
	}
	return s
}

// MeasureDirs 并发统计源目录与输出目录大小并填入汇总
//
// 源目录统计时排除嵌套在其中的输出目录。
func MeasureDirs(ctx context.Context, s *Summary, sourceDir string, outputDirs ...string) error {
	s.SourceDir = sourceDir
	if len(outputDirs) > 0 {
		s.OutputDir = outputDirs[0]
	}

	var excluded []string
	for _, out := range outputDirs {
		if asset.IsWithin(sourceDir, out) {
			excluded = append(excluded, out)
		}
	}

	sizes := make([]int64, len(outputDirs))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		size, err := FolderSize(gctx, sourceDir, excluded...)
		s.SourceBytes = size
		return err
	})
	for i, out := range outputDirs {
		i, out := i, out
		g.Go(func() error {
			size, err := FolderSize(gctx, out)
			sizes[i] = size
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.OutputBytes = 0
	for i, size := range sizes {
		// 同一目录只计一次
		if i > 0 && outputDirs[i] == outputDirs[0] {
			continue
		}
		s.OutputBytes += size
	}
	s.ReductionPercent = converter.Reduction(s.SourceBytes, s.OutputBytes)
	return nil
}

// FolderSize 递归统计目录下所有普通文件大小；目录不存在时返回 0
func FolderSize(ctx context.Context, dir string, exclude ...string) (int64, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = true
		}
	}

	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if len(skip) > 0 {
				if abs, absErr := filepath.Abs(path); absErr == nil && skip[abs] {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes 以 1024 为进制格式化字节数，保留两位小数并去掉末尾的 0
func FormatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	sign := ""
	if bytes < 0 {
		sign = "-"
		bytes = -bytes
	}

	i := 0
	for rest := bytes; rest >= 1024 && i < len(byteUnits)-1; rest /= 1024 {
		i++
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	value = math.Round(value*100) / 100

	return sign + strconv.FormatFloat(value, 'f', -1, 64) + " " + byteUnits[i]
}
