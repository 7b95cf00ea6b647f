package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"assetopt/core/asset"
	"assetopt/core/converter"
	"assetopt/core/profile"
	"assetopt/core/report"
)

// Target 一条管线处理的源目录与输出目录
type Target struct {
	Name       string
	Kind       asset.Kind
	SourceDir  string
	OutputDir  string
	ResizedDir string
	Extensions []string
}

// Options 单次运行选项
type Options struct {
	// 同时处理的文件数，<= 1 时顺序处理
	Workers int
	Force   bool
	DryRun  bool
}

// Observer 接收运行进度，实现需并发安全
type Observer interface {
	OnPlan(target string, decisions []profile.Decision)
	OnAssetStart(a asset.SourceAsset, p profile.Profile)
	OnAssetDone(r converter.ProcessingResult)
}

// Recorder 持久化运行结果
type Recorder interface {
	Begin(target, sourceDir string) error
	Record(r converter.ProcessingResult)
	Finish(s report.Summary, runErr error)
}

// Pipeline 扫描、分类、生成、汇总
type Pipeline struct {
	target     Target
	classifier *profile.Classifier
	generator  *converter.Generator
	preflight  *Preflight
	observer   Observer
	recorder   Recorder
	logger     *zap.Logger
}

// Option 管线可选组件
type Option func(*Pipeline)

// WithObserver 设置进度观察者
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithRecorder 设置运行记录器
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithPreflight 设置运行前检查
func WithPreflight(pf *Preflight) Option {
	return func(p *Pipeline) { p.preflight = pf }
}

// New 创建管线
func New(target Target, classifier *profile.Classifier, generator *converter.Generator, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		target:     target,
		classifier: classifier,
		generator:  generator,
		logger:     logger.With(zap.String("target", target.Name)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Target 管线目标
func (p *Pipeline) Target() Target {
	return p.target
}

// Plan 扫描源目录并给出每个资产的分类与是否需要处理
func (p *Pipeline) Plan(force bool) ([]profile.Decision, error) {
	scanner := asset.NewScanner(p.target.Kind, p.target.Extensions)
	assets, err := scanner.Scan(p.target.SourceDir)
	if err != nil {
		return nil, converter.WrapDirectoryError("scan source", p.target.SourceDir, err)
	}

	outputs, err := asset.ListOutputs(p.target.OutputDir)
	if err != nil {
		return nil, converter.WrapDirectoryError("list outputs", p.target.OutputDir, err)
	}

	p.logger.Info("扫描完成",
		zap.String("source", p.target.SourceDir),
		zap.Int("assets", len(assets)),
		zap.Int("outputs", outputs.Len()))

	return profile.Decide(p.classifier, assets, outputs, force), nil
}

// Run 执行一次完整的增量处理
//
// 只有源目录或输出目录不可访问时返回致命错误；单个资产失败计入汇总。
func (p *Pipeline) Run(ctx context.Context, opts Options) (report.Summary, error) {
	start := time.Now()
	summary := report.Summary{Target: p.target.Name}

	decisions, err := p.Plan(opts.Force)
	if err != nil {
		return summary, err
	}

	var stale []profile.Decision
	for _, d := range decisions {
		if d.Stale {
			stale = append(stale, d)
		}
	}
	if p.observer != nil {
		p.observer.OnPlan(p.target.Name, decisions)
	}

	if opts.DryRun {
		summary = report.Tally(len(decisions), nil)
		summary.Target = p.target.Name
		summary.SourceDir = p.target.SourceDir
		summary.OutputDir = p.target.OutputDir
		summary.DryRun = true
		summary.Pending = len(stale)
		summary.Duration = time.Since(start)
		return summary, nil
	}

	for _, dir := range p.generator.OutputDirs() {
		if err := asset.EnsureDir(dir); err != nil {
			return summary, converter.WrapDirectoryError("create output", dir, err)
		}
	}

	if p.recorder != nil {
		if err := p.recorder.Begin(p.target.Name, p.target.SourceDir); err != nil {
			p.logger.Warn("运行历史不可用", zap.Error(err))
		}
	}

	var results []converter.ProcessingResult
	var runErr error

	if len(stale) == 0 {
		p.logger.Info("所有资产均为最新", zap.Int("assets", len(decisions)))
	} else {
		if p.preflight != nil {
			if err := p.preflight.Check(p.target.OutputDir); err != nil {
				runErr = err
			}
		}
		if runErr == nil {
			removed := p.cleanup(stale)
			stale = append(stale, p.damaged(decisions, removed)...)
			results, runErr = p.generate(ctx, stale, opts.Workers)
		}
	}

	summary = report.Tally(len(decisions), results)
	summary.Target = p.target.Name
	if runErr != nil {
		summary.MarkAborted(len(stale) - len(results))
	}
	if err := report.MeasureDirs(ctx, &summary, p.target.SourceDir, p.generator.OutputDirs()...); err != nil {
		p.logger.Warn("统计目录大小失败", zap.Error(err))
	}
	summary.Duration = time.Since(start)

	if p.recorder != nil {
		p.recorder.Finish(summary, runErr)
	}

	p.logger.Info("处理完成",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	return summary, runErr
}

// cleanup 在任何生成开始前统一删除过期资产的旧产物，返回被删除的路径
//
// 前缀匹配会波及同前缀的其他资产（如 romi 与 romix），先全部清理再生成可避免删掉刚写好的产物。
func (p *Pipeline) cleanup(stale []profile.Decision) map[string]bool {
	removed := make(map[string]bool)
	for _, d := range stale {
		paths, err := p.generator.Cleanup(d.Asset)
		if err != nil {
			p.logger.Warn("清理旧产物失败", zap.String("asset", d.Asset.Name), zap.Error(err))
		}
		for _, path := range paths {
			removed[path] = true
		}
		if len(paths) > 0 {
			p.logger.Debug("已删除旧产物", zap.String("asset", d.Asset.Name), zap.Strings("files", paths))
		}
	}
	return removed
}

// damaged 找出本为最新、但产物在清理阶段被其他资产的前缀匹配删除的资产
func (p *Pipeline) damaged(decisions []profile.Decision, removed map[string]bool) []profile.Decision {
	if len(removed) == 0 {
		return nil
	}
	var out []profile.Decision
	for _, d := range decisions {
		if d.Stale {
			continue
		}
		for _, art := range p.generator.Plan(d.Asset, d.Profile) {
			if removed[art.Path()] {
				p.logger.Info("产物被同前缀资产清理，重新生成",
					zap.String("asset", d.Asset.Name), zap.String("artifact", art.Name))
				d.Stale = true
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// generate 顺序或通过 ants 池并发生成产物，等待全部完成后返回
func (p *Pipeline) generate(ctx context.Context, stale []profile.Decision, workers int) ([]converter.ProcessingResult, error) {
	acc := newAccumulator(len(stale))

	process := func(i int, d profile.Decision) {
		if p.observer != nil {
			p.observer.OnAssetStart(d.Asset, d.Profile)
		}
		result := p.generator.Generate(ctx, d.Asset, d.Profile)
		acc.add(i, result)
		if p.recorder != nil {
			p.recorder.Record(result)
		}
		if p.observer != nil {
			p.observer.OnAssetDone(result)
		}
	}

	if workers <= 1 {
		for i, d := range stale {
			if ctx.Err() != nil {
				break
			}
			process(i, d)
		}
		return acc.results(), ctx.Err()
	}

	pool, err := ants.NewPool(workers, ants.WithOptions(ants.Options{
		ExpiryDuration: time.Minute,
		PanicHandler: func(v interface{}) {
			p.logger.Error("任务执行发生panic", zap.Any("panic", v))
		},
	}))
	if err != nil {
		return nil, fmt.Errorf("创建工作器池失败: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, d := range stale {
		if ctx.Err() != nil {
			break
		}
		i, d := i, d
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			process(i, d)
		}); err != nil {
			wg.Done()
			acc.add(i, converter.ProcessingResult{
				Asset:         d.Asset,
				Profile:       d.Profile,
				OriginalBytes: d.Asset.Size,
				Err:           err,
			})
		}
	}
	wg.Wait()

	return acc.results(), ctx.Err()
}

// accumulator 汇总各 worker 的结果，按提交顺序输出
type accumulator struct {
	mu      sync.Mutex
	indexed map[int]converter.ProcessingResult
}

func newAccumulator(size int) *accumulator {
	return &accumulator{indexed: make(map[int]converter.ProcessingResult, size)}
}

func (a *accumulator) add(i int, r converter.ProcessingResult) {
	a.mu.Lock()
	a.indexed[i] = r
	a.mu.Unlock()
}

func (a *accumulator) results() []converter.ProcessingResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]int, 0, len(a.indexed))
	for k := range a.indexed {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]converter.ProcessingResult, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.indexed[k])
	}
	return out
}

// IsFatal 错误是否应以非零状态退出
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ae *converter.AssetError
	if errors.As(err, &ae) {
		return ae.Fatal()
	}
	return true
}
