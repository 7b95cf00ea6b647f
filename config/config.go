package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config 应用配置结构
type Config struct {
	// 视频管线
	Videos VideoTargetConfig `mapstructure:"videos"`

	// 图片管线
	Images ImageTargetConfig `mapstructure:"images"`

	// 文件名分类关键字
	Profiles ProfilesConfig `mapstructure:"profiles"`

	// 并发设置
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`

	// 外部工具
	Tools ToolsConfig `mapstructure:"tools"`

	// 日志设置
	Logging LoggingConfig `mapstructure:"logging"`

	// 运行历史
	History HistoryConfig `mapstructure:"history"`

	// 报告输出
	Output OutputConfig `mapstructure:"output"`

	// 运行前检查
	Preflight PreflightConfig `mapstructure:"preflight"`
}

// VideoTargetConfig 视频源目录与输出目录
type VideoTargetConfig struct {
	SourceDir  string   `mapstructure:"source_dir"`
	OutputDir  string   `mapstructure:"output_dir"`
	Extensions []string `mapstructure:"extensions"`
}

// ImageTargetConfig 图片源目录、WebP输出目录与缩放输出目录
type ImageTargetConfig struct {
	SourceDir  string   `mapstructure:"source_dir"`
	OutputDir  string   `mapstructure:"output_dir"`
	ResizedDir string   `mapstructure:"resized_dir"`
	Extensions []string `mapstructure:"extensions"`

	// 超过此大小（字节）的图片额外生成缩放版本
	ResizeThreshold int64 `mapstructure:"resize_threshold_bytes"`

	MaxWidth    int `mapstructure:"max_width"`
	MaxHeight   int `mapstructure:"max_height"`
	WebPQuality int `mapstructure:"webp_quality"`
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

// ProfilesConfig 分类关键字（大小写敏感，子串匹配）
type ProfilesConfig struct {
	HeroKeywords       []string `mapstructure:"hero_keywords"`
	TutorialKeywords   []string `mapstructure:"tutorial_keywords"`
	LargeImageKeywords []string `mapstructure:"large_image_keywords"`
}

// ConcurrencyConfig 并发配置
type ConcurrencyConfig struct {
	// 同时处理的文件数，1 表示顺序处理
	Workers int `mapstructure:"workers"`
}

// ToolsConfig 外部工具配置
type ToolsConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`

	// 单次编码超时，0 表示不限制
	Timeout time.Duration `mapstructure:"timeout"`

	// 编码失败后的重试次数
	MaxRetries int `mapstructure:"max_retries"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	// 日志级别 (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// 是否启用文件日志
	EnableFile bool `mapstructure:"enable_file"`

	// 日志目录
	LogDir string `mapstructure:"log_dir"`
}

// HistoryConfig 运行历史配置
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// OutputConfig 报告配置
type OutputConfig struct {
	// 生成JSON报告
	GenerateReport bool   `mapstructure:"generate_report"`
	ReportDir      string `mapstructure:"report_dir"`
}

// PreflightConfig 运行前检查
type PreflightConfig struct {
	CheckDiskSpace bool `mapstructure:"check_disk_space"`

	// 输出目录所在磁盘最少剩余空间 (MB)
	MinFreeMB uint64 `mapstructure:"min_free_mb"`
}

// ValidationError 配置验证错误
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	var builder strings.Builder
	builder.WriteString("配置验证失败 [")
	builder.WriteString(e.Field)
	builder.WriteString("]: ")
	builder.WriteString(e.Message)
	builder.WriteString(" (当前值: ")
	builder.WriteString(fmt.Sprint(e.Value))
	builder.WriteString(")")
	return builder.String()
}

// NewConfig 创建新的配置实例
func NewConfig(configFile string, logger *zap.Logger) (*Config, error) {
	v := newViper(configFile)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// 配置文件不存在，使用默认配置
	} else if logger != nil {
		logger.Debug("已加载配置文件", zap.String("file", v.ConfigFileUsed()))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	_ = validateConfig(&config)
	return &config
}

// WriteDefaultConfig 将默认配置写入文件，文件已存在时返回错误
func WriteDefaultConfig(path string) error {
	v := viper.New()
	setDefaults(v)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return v.SafeWriteConfigAs(path)
}

// newViper 组装viper实例：默认值、配置文件搜索路径与环境变量
func newViper(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".assetopt")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ASSETOPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// validateConfig 验证配置
func validateConfig(config *Config) error {
	if config.Videos.SourceDir == "" {
		return &ValidationError{Field: "videos.source_dir", Value: config.Videos.SourceDir, Message: "源目录不能为空"}
	}
	if config.Videos.OutputDir == "" {
		return &ValidationError{Field: "videos.output_dir", Value: config.Videos.OutputDir, Message: "输出目录不能为空"}
	}
	if config.Images.SourceDir == "" {
		return &ValidationError{Field: "images.source_dir", Value: config.Images.SourceDir, Message: "源目录不能为空"}
	}
	if config.Images.OutputDir == "" {
		return &ValidationError{Field: "images.output_dir", Value: config.Images.OutputDir, Message: "输出目录不能为空"}
	}
	if config.Images.ResizedDir == "" {
		config.Images.ResizedDir = config.Images.OutputDir
	}

	config.Videos.Extensions = normalizeExtensions(config.Videos.Extensions)
	config.Images.Extensions = normalizeExtensions(config.Images.Extensions)

	// 0 表示运行时根据CPU与内存自动选择
	if config.Concurrency.Workers < 0 {
		config.Concurrency.Workers = 0
	}
	if limit := runtime.NumCPU() * 2; config.Concurrency.Workers > limit {
		config.Concurrency.Workers = limit
	}

	images := &config.Images
	if images.WebPQuality < 1 || images.WebPQuality > 100 {
		images.WebPQuality = 80
	}
	if images.JPEGQuality < 1 || images.JPEGQuality > 100 {
		images.JPEGQuality = 85
	}
	if images.MaxWidth <= 0 {
		images.MaxWidth = 1200
	}
	if images.MaxHeight <= 0 {
		images.MaxHeight = 1200
	}
	if images.ResizeThreshold < 0 {
		images.ResizeThreshold = 1024 * 1024
	}

	if config.Tools.Timeout < 0 {
		config.Tools.Timeout = 0
	}
	if config.Tools.MaxRetries < 0 {
		config.Tools.MaxRetries = 0
	}
	if config.Tools.FFmpegPath == "" {
		config.Tools.FFmpegPath = "ffmpeg"
	}
	if config.Tools.FFprobePath == "" {
		config.Tools.FFprobePath = "ffprobe"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[config.Logging.Level] {
		return &ValidationError{
			Field:   "logging.level",
			Value:   config.Logging.Level,
			Message: "日志级别必须是 debug, info, warn, error 之一",
		}
	}

	return nil
}

// normalizeExtensions 统一为小写并带前导点
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
