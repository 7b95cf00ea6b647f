package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assetopt/config"
	"assetopt/internal/logger"
	"assetopt/internal/ui"
	"assetopt/internal/version"
)

// 全局变量
var (
	cfgFile string
	verbose bool
	log     *zap.Logger
	cfg     *config.Config

	// initConfig 中的错误延迟到命令执行时返回
	initErr error
)

// rootCmd 不带子命令时显示帮助
var rootCmd = &cobra.Command{
	Use:   "assetopt",
	Short: "增量优化网站媒体资源",
	Long: `assetopt 扫描视频与图片源目录，按文件名分类，
只为缺失或过期的资源调用 ffmpeg 生成各尺寸、各格式的产物。

示例：
  assetopt videos
  assetopt images --workers 4
  assetopt all --dry-run`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() error {
	err := rootCmd.Execute()
	if log != nil {
		_ = log.Sync()
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认 $HOME/.assetopt.yaml 或 ./.assetopt.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.SetVersionTemplate("assetopt {{.Version}}\n")
}

// initConfig 初始化配置与日志
func initConfig() {
	ui.ConfigureColor()

	bootstrap, err := logger.NewLogger(verbose)
	if err != nil {
		initErr = err
		return
	}

	cfg, err = config.NewConfig(cfgFile, bootstrap)
	if err != nil {
		log = bootstrap
		initErr = err
		return
	}

	log, err = logger.NewLoggerWithConfig(&logger.LoggerConfig{
		Verbose:    verbose,
		EnableFile: cfg.Logging.EnableFile,
		LogLevel:   cfg.Logging.Level,
		LogDir:     cfg.Logging.LogDir,
		Component:  "assetopt",
	})
	if err != nil {
		log = bootstrap
		initErr = err
		return
	}

	log.Debug("assetopt initialized", zap.String("version", version.Get().String()))
}

// ready 命令执行前确认配置已成功加载
func ready() error {
	return initErr
}
