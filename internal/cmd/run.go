package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assetopt/config"
	"assetopt/core/asset"
	"assetopt/core/converter"
	"assetopt/core/pipeline"
	"assetopt/core/profile"
	"assetopt/core/report"
	"assetopt/core/state"
	"assetopt/internal/ui"
)

const (
	targetVideos = "videos"
	targetImages = "images"
)

// runFlags 运行类命令共用的参数
type runFlags struct {
	workers int
	force   bool
	dryRun  bool
	timeout time.Duration
}

func addRunFlags(c *cobra.Command, f *runFlags) {
	c.Flags().IntVarP(&f.workers, "workers", "c", 1, "同时处理的文件数，0 表示根据CPU与内存自动选择")
	c.Flags().BoolVar(&f.force, "force", false, "忽略已有产物，全部重新生成")
	c.Flags().BoolVar(&f.dryRun, "dry-run", false, "只分析不生成")
	c.Flags().DurationVar(&f.timeout, "timeout", 0, "单次编码超时，0 表示不限制")
}

func newRunCommand(use, short string, targets ...string) *cobra.Command {
	f := &runFlags{}
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ready(); err != nil {
				return err
			}
			return runTargets(cmd, f, targets)
		},
	}
	addRunFlags(c, f)
	return c
}

func init() {
	rootCmd.AddCommand(
		newRunCommand("videos", "优化视频源目录", targetVideos),
		newRunCommand("images", "优化图片源目录", targetImages),
		newRunCommand("all", "依次优化视频与图片", targetVideos, targetImages),
	)
}

// resolveWorkers 命令行参数优先于配置
func resolveWorkers(cmd *cobra.Command, f *runFlags) int {
	workers := cfg.Concurrency.Workers
	if cmd.Flags().Changed("workers") {
		workers = f.workers
	}
	if workers <= 0 {
		return pipeline.AutoWorkers(log)
	}
	return workers
}

func resolveTimeout(cmd *cobra.Command, f *runFlags) time.Duration {
	if cmd.Flags().Changed("timeout") {
		return f.timeout
	}
	return cfg.Tools.Timeout
}

// targetFor 根据配置组装管线目标与生成器配置
func targetFor(c *config.Config, name string) (pipeline.Target, converter.GeneratorConfig, error) {
	switch name {
	case targetVideos:
		return pipeline.Target{
				Name:       targetVideos,
				Kind:       asset.KindVideo,
				SourceDir:  c.Videos.SourceDir,
				OutputDir:  c.Videos.OutputDir,
				Extensions: c.Videos.Extensions,
			}, converter.GeneratorConfig{
				OutputDir: c.Videos.OutputDir,
			}, nil
	case targetImages:
		return pipeline.Target{
				Name:       targetImages,
				Kind:       asset.KindImage,
				SourceDir:  c.Images.SourceDir,
				OutputDir:  c.Images.OutputDir,
				ResizedDir: c.Images.ResizedDir,
				Extensions: c.Images.Extensions,
			}, converter.GeneratorConfig{
				OutputDir:       c.Images.OutputDir,
				ResizedDir:      c.Images.ResizedDir,
				ResizeThreshold: c.Images.ResizeThreshold,
				MaxWidth:        c.Images.MaxWidth,
				MaxHeight:       c.Images.MaxHeight,
				WebPQuality:     c.Images.WebPQuality,
				JPEGQuality:     c.Images.JPEGQuality,
			}, nil
	}
	return pipeline.Target{}, converter.GeneratorConfig{}, fmt.Errorf("unknown target %q", name)
}

// buildPipeline 组装单条管线
func buildPipeline(name string, timeout time.Duration, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	target, genCfg, err := targetFor(cfg, name)
	if err != nil {
		return nil, err
	}

	named := log.Named(name)
	tm := converter.NewToolManager(named.Named("tools"), timeout, cfg.Tools.MaxRetries)
	gen := converter.NewGenerator(genCfg,
		converter.NewFFmpegTranscoder(cfg.Tools.FFmpegPath, tm),
		converter.NewFFmpegImageProcessor(cfg.Tools.FFmpegPath, tm),
		named.Named("generator"))
	classifier := profile.NewClassifier(profile.Keywords{
		Hero:       cfg.Profiles.HeroKeywords,
		Tutorial:   cfg.Profiles.TutorialKeywords,
		LargeImage: cfg.Profiles.LargeImageKeywords,
	})

	if cfg.Preflight.CheckDiskSpace {
		opts = append(opts, pipeline.WithPreflight(pipeline.NewPreflight(cfg.Preflight.MinFreeMB, named)))
	}
	return pipeline.New(target, classifier, gen, named, opts...), nil
}

// openHistory 历史未启用时返回 nil
func openHistory() (*state.History, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return state.Open(cfg.History.DBPath, log.Named("history"))
}

// signalContext 收到中断信号时取消
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runTargets 依次运行各管线；单个资产失败不影响退出码，致命错误立即返回
func runTargets(cmd *cobra.Command, f *runFlags, targets []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	workers := resolveWorkers(cmd, f)
	timeout := resolveTimeout(cmd, f)

	console := ui.NewConsole(cmd.OutOrStdout(), f.dryRun || verbose)
	console.Animate = ui.SupportsAnimation() && !verbose && !f.dryRun

	history, err := openHistory()
	if err != nil {
		log.Warn("运行历史不可用", zap.Error(err))
	}
	if history != nil {
		defer history.Close()
	}

	for _, name := range targets {
		var opts []pipeline.Option
		opts = append(opts, pipeline.WithObserver(console))
		if history != nil && !f.dryRun {
			opts = append(opts, pipeline.WithRecorder(pipeline.NewHistoryRecorder(history, log)))
		}

		p, err := buildPipeline(name, timeout, opts...)
		if err != nil {
			return err
		}

		start := time.Now()
		summary, runErr := p.Run(ctx, pipeline.Options{Workers: workers, Force: f.force, DryRun: f.dryRun})
		finish(console, name, summary, runErr)

		if cfg.Output.GenerateReport && !f.dryRun {
			path, err := report.SaveJSON(cfg.Output.ReportDir, report.NewDetailedReport(summary, start, workers))
			if err != nil {
				log.Warn("保存报告失败", zap.Error(err))
			} else {
				log.Info("报告已保存", zap.String("path", path))
			}
		}

		if runErr != nil && pipeline.IsFatal(runErr) {
			return runErr
		}
	}
	return nil
}

// finish 输出汇总；致命错误时没有可用的汇总，只打印中止信息
func finish(console *ui.Console, name string, summary report.Summary, runErr error) {
	if runErr == nil || summary.Aborted {
		if err := console.Finish(summary); err != nil {
			log.Warn("输出汇总失败", zap.Error(err))
		}
	}
	if runErr != nil {
		console.Errorf("✗ %s 运行中止: %v", name, runErr)
	}
}
