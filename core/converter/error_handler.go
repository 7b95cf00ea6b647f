package converter

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"assetopt/core/asset"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 源目录或输出目录不可访问，中止整次运行
	ErrorTypeDirectoryNotFound ErrorType = "DIRECTORY_NOT_FOUND"
	// 外部编码器调用失败，只影响当前资产
	ErrorTypeEncoderInvocation ErrorType = "ENCODER_INVOCATION_FAILED"
	// 删除、stat、mkdir 失败，尽力继续
	ErrorTypeFileOperation ErrorType = "FILE_SYSTEM_OPERATION_FAILED"
)

// ErrorSeverity 定义错误严重程度
type ErrorSeverity string

const (
	SeverityRecoverable ErrorSeverity = "RECOVERABLE"
	SeverityFatal       ErrorSeverity = "FATAL"
)

// severityOf 只有目录不可访问是致命的
func severityOf(t ErrorType) ErrorSeverity {
	if t == ErrorTypeDirectoryNotFound {
		return SeverityFatal
	}
	return SeverityRecoverable
}

// AssetError 带分类的错误
type AssetError struct {
	Type      ErrorType
	Severity  ErrorSeverity
	Operation string
	Asset     string
	Path      string
	Output    string
	Cause     error
}

// Error 实现error接口
func (e *AssetError) Error() string {
	var builder strings.Builder
	builder.WriteString("[")
	builder.WriteString(string(e.Type))
	builder.WriteString("] ")
	builder.WriteString(e.Operation)
	if e.Asset != "" {
		builder.WriteString(" (asset: ")
		builder.WriteString(e.Asset)
		builder.WriteString(")")
	}
	if e.Path != "" {
		builder.WriteString(" ")
		builder.WriteString(e.Path)
	}
	if e.Cause != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Cause.Error())
	}
	return builder.String()
}

// Unwrap 支持错误链
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// Fatal 是否应中止整次运行
func (e *AssetError) Fatal() bool {
	return e.Severity == SeverityFatal
}

// NewAssetError 创建分类错误
func NewAssetError(errorType ErrorType, operation, assetName, path string, cause error) *AssetError {
	return &AssetError{
		Type:      errorType,
		Severity:  severityOf(errorType),
		Operation: operation,
		Asset:     assetName,
		Path:      path,
		Cause:     cause,
	}
}

// IsType 判断错误链中是否包含指定类型的 AssetError
func IsType(err error, errorType ErrorType) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Type == errorType
	}
	if errorType == ErrorTypeDirectoryNotFound {
		return errors.Is(err, asset.ErrDirectoryNotFound)
	}
	return false
}

// WrapDirectoryError 将目录访问错误统一包装为致命错误
func WrapDirectoryError(operation, dir string, err error) error {
	if err == nil {
		return nil
	}
	return NewAssetError(ErrorTypeDirectoryNotFound, operation, "", dir, err)
}

// WrapErrorWithOutput 包装带编码器输出的错误，只保留输出末尾几行
func WrapErrorWithOutput(operation, assetName, path string, err error, output []byte) error {
	if err == nil {
		return nil
	}
	ae := NewAssetError(ErrorTypeEncoderInvocation, operation, assetName, path, err)
	ae.Output = tailLines(string(output), 5)
	return ae
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// FileOperationHandler 统一的文件操作处理器
type FileOperationHandler struct {
	logger *zap.Logger
}

// NewFileOperationHandler 创建新的文件操作处理器
func NewFileOperationHandler(logger *zap.Logger) *FileOperationHandler {
	return &FileOperationHandler{logger: logger}
}

// SafeCreateDir 安全创建目录
func (foh *FileOperationHandler) SafeCreateDir(dirPath string) error {
	if err := asset.EnsureDir(dirPath); err != nil {
		return NewAssetError(ErrorTypeFileOperation, "create directory", "", dirPath, err)
	}
	return nil
}

// SafeRemoveFile 安全删除文件，文件不存在视为成功
func (foh *FileOperationHandler) SafeRemoveFile(filePath string) error {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return NewAssetError(ErrorTypeFileOperation, "remove file", "", filePath, err)
	}
	return nil
}

// BatchFileOperation 批量文件操作结果
type BatchFileOperation struct {
	SuccessCount int
	FailureCount int
	Err          error
}

// BatchRemoveFiles 批量删除文件，失败不影响其余文件
func (foh *FileOperationHandler) BatchRemoveFiles(filePaths []string) *BatchFileOperation {
	result := &BatchFileOperation{}

	for _, filePath := range filePaths {
		if err := foh.SafeRemoveFile(filePath); err != nil {
			result.FailureCount++
			result.Err = multierr.Append(result.Err, err)
			if foh.logger != nil {
				foh.logger.Warn("删除文件失败", zap.String("path", filePath), zap.Error(err))
			}
		} else {
			result.SuccessCount++
		}
	}

	return result
}

// Errors 展开批量操作中的所有错误
func (b *BatchFileOperation) Errors() []error {
	return multierr.Errors(b.Err)
}

// describe 用于日志的简短错误描述
func describe(err error) string {
	var ae *AssetError
	if errors.As(err, &ae) && ae.Output != "" {
		return fmt.Sprintf("%s | %s", ae.Error(), ae.Output)
	}
	return err.Error()
}
