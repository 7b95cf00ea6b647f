package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig 日志配置
type LoggerConfig struct {
	Verbose    bool
	EnableFile bool
	LogLevel   string
	LogDir     string
	Component  string
}

// DefaultLoggerConfig 默认日志配置
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Verbose:    false,
		EnableFile: false,
		LogLevel:   "info",
		LogDir:     "./output/logs",
		Component:  "assetopt",
	}
}

// NewLogger 创建新的日志实例
func NewLogger(verbose bool) (*zap.Logger, error) {
	config := DefaultLoggerConfig()
	config.Verbose = verbose
	return NewLoggerWithConfig(config)
}

// NewLoggerWithConfig 使用配置创建日志实例
func NewLoggerWithConfig(config *LoggerConfig) (*zap.Logger, error) {
	// 控制台默认只显示WARN及以上，进度信息由UI输出
	consoleLevel := zapcore.WarnLevel
	if config.Verbose {
		consoleLevel = zapcore.DebugLevel
	} else if config.LogLevel != "" && config.LogLevel != "info" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(config.LogLevel)); err == nil {
			consoleLevel = lvl
		}
	}

	consoleConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    colorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(os.Stderr), consoleLevel),
	}

	if config.EnableFile {
		fileConfig := consoleConfig
		fileConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		file, err := os.OpenFile(getLogFilePathWithConfig(config), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(file), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger.Named(componentName(config)), nil
}

// colorLevelEncoder 彩色级别编码器
func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var coloredLevel string
	switch level {
	case zapcore.DebugLevel:
		coloredLevel = color.CyanString("[DEBUG]")
	case zapcore.InfoLevel:
		coloredLevel = color.GreenString("[INFO] ")
	case zapcore.WarnLevel:
		coloredLevel = color.YellowString("[WARN] ")
	case zapcore.ErrorLevel:
		coloredLevel = color.RedString("[ERROR]")
	case zapcore.FatalLevel:
		coloredLevel = color.RedString("[FATAL]")
	default:
		coloredLevel = level.CapitalString()
	}
	enc.AppendString(coloredLevel)
}

// getLogFilePathWithConfig 使用配置获取日志文件路径
func getLogFilePathWithConfig(config *LoggerConfig) string {
	logDir := config.LogDir
	if logDir == "" {
		logDir = "./output/logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		// 如果无法创建目录，使用当前目录
		logDir = "."
	}

	timestamp := time.Now().Format("20060102")
	return filepath.Join(logDir, componentName(config)+"_"+timestamp+".log")
}

func componentName(config *LoggerConfig) string {
	if config.Component == "" {
		return "assetopt"
	}
	return config.Component
}
