package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assetopt/core/pipeline"
	"assetopt/internal/ui"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听源目录，有变化时增量处理",
	Long: `先对视频与图片各运行一次，然后监听源目录。
源文件新增、修改或删除后，等待 debounce 时间无新变化再重新运行对应管线。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ready(); err != nil {
			return err
		}
		return runWatch(cmd)
	},
}

var watchFlags = &runFlags{}

func init() {
	addRunFlags(watchCmd, watchFlags)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", pipeline.DefaultDebounce, "合并连续变化的等待时间")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	workers := resolveWorkers(cmd, watchFlags)
	timeout := resolveTimeout(cmd, watchFlags)
	console := ui.NewConsole(cmd.OutOrStdout(), verbose)

	var pipelines []*pipeline.Pipeline
	for _, name := range []string{targetVideos, targetImages} {
		p, err := buildPipeline(name, timeout, pipeline.WithObserver(console))
		if err != nil {
			return err
		}
		pipelines = append(pipelines, p)
	}

	// 首次运行时允许 --force，之后只做增量处理
	force := watchFlags.force
	run := func(ctx context.Context, p *pipeline.Pipeline) {
		summary, err := p.Run(ctx, pipeline.Options{Workers: workers, Force: force})
		if err != nil {
			log.Error("处理失败", zap.String("target", p.Target().Name), zap.Error(err))
		}
		finish(console, p.Target().Name, summary, err)
	}

	for _, p := range pipelines {
		run(ctx, p)
	}
	force = false

	return pipeline.Watch(ctx, pipelines, watchDebounce, log.Named("watch"), run)
}
